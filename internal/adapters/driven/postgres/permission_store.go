package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PermissionStore = (*PermissionStore)(nil)

// PermissionStore implements driven.PermissionStore over channel memberships,
// favorites and list items
type PermissionStore struct {
	db *DB
}

// NewPermissionStore creates a new PermissionStore
func NewPermissionStore(db *DB) *PermissionStore {
	return &PermissionStore{db: db}
}

func (s *PermissionStore) AdvancedChannels(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT DISTINCT channel_name
		FROM channel_memberships
		WHERE user_id = $1 AND role IN ('contributor', 'moderator')
		ORDER BY channel_name
	`
	channels, err := queryAll(ctx, s.db, scanString, query, userID)
	if err != nil {
		return nil, fmt.Errorf("advanced channels of user %d: %w", userID, err)
	}
	return channels, nil
}

func (s *PermissionStore) Favorites(ctx context.Context, userID int64) (domain.Favorites, error) {
	query := `
		SELECT object_type || ':' || object_id
		FROM favorites
		WHERE user_id = $1
		ORDER BY object_type, object_id
	`
	keys, err := queryAll(ctx, s.db, scanString, query, userID)
	if err != nil {
		return nil, fmt.Errorf("favorites of user %d: %w", userID, err)
	}
	return domain.Favorites(keys), nil
}

func (s *PermissionStore) ListMemberships(ctx context.Context, userID int64) (domain.UserLists, error) {
	query := `
		SELECT i.object_type || ':' || i.object_id, l.id
		FROM user_list_items i
		JOIN user_lists l ON l.id = i.list_id
		WHERE l.author_id = $1
		ORDER BY l.id
	`
	type membership struct {
		key    string
		listID int64
	}
	rows, err := queryAll(ctx, s.db, func(rows *sql.Rows) (membership, error) {
		var m membership
		err := rows.Scan(&m.key, &m.listID)
		return m, err
	}, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list memberships of user %d: %w", userID, err)
	}

	out := make(domain.UserLists, len(rows))
	for _, m := range rows {
		out[m.key] = append(out[m.key], m.listID)
	}
	return out, nil
}
