package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

var _ driven.PermissionStore = (*MockPermissionStore)(nil)

// MockPermissionStore holds per-user channel roles, favorites and list memberships.
type MockPermissionStore struct {
	mu        sync.RWMutex
	channels  map[int64][]string
	favorites map[int64]domain.Favorites
	lists     map[int64]domain.UserLists

	// Err, when set, is returned from every call
	Err error
	// Calls counts lookups, to assert anonymous requests never hit the store
	Calls int
}

// NewMockPermissionStore creates an empty MockPermissionStore
func NewMockPermissionStore() *MockPermissionStore {
	return &MockPermissionStore{
		channels:  make(map[int64][]string),
		favorites: make(map[int64]domain.Favorites),
		lists:     make(map[int64]domain.UserLists),
	}
}

// AddChannelRole grants the user a contributor or moderator role on channel.
func (m *MockPermissionStore) AddChannelRole(userID int64, channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[userID] = append(m.channels[userID], channel)
}

// AddFavorite records a favorite "object_type:id" key.
func (m *MockPermissionStore) AddFavorite(userID int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.favorites[userID] = append(m.favorites[userID], key)
}

// AddListItem records that list listID of the user contains key.
func (m *MockPermissionStore) AddListItem(userID int64, key string, listID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lists[userID] == nil {
		m.lists[userID] = make(domain.UserLists)
	}
	m.lists[userID][key] = append(m.lists[userID][key], listID)
}

func (m *MockPermissionStore) AdvancedChannels(ctx context.Context, userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]string(nil), m.channels[userID]...), nil
}

func (m *MockPermissionStore) Favorites(ctx context.Context, userID int64) (domain.Favorites, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	return append(domain.Favorites(nil), m.favorites[userID]...), nil
}

func (m *MockPermissionStore) ListMemberships(ctx context.Context, userID int64) (domain.UserLists, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	out := make(domain.UserLists, len(m.lists[userID]))
	for k, v := range m.lists[userID] {
		out[k] = append([]int64(nil), v...)
	}
	return out, nil
}
