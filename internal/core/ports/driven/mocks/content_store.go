package mocks

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

var _ driven.ContentStore = (*MockContentStore)(nil)

// MockContentStore is an in-memory ContentStore keyed by natural id.
type MockContentStore struct {
	mu         sync.RWMutex
	posts      map[string]*domain.Post
	comments   map[string]*domain.Comment
	profiles   map[string]*domain.Profile
	courses    map[string]*domain.Course
	programs   map[string]*domain.Program
	videos     map[string]*domain.Video
	podcasts   map[string]*domain.Podcast
	episodes   map[string]*domain.PodcastEpisode
	userLists  map[string]*domain.UserList
	staffLists map[string]*domain.UserList
	files      map[string]*domain.ContentFile

	// Err, when set, is returned from every call
	Err error
}

// NewMockContentStore creates an empty MockContentStore
func NewMockContentStore() *MockContentStore {
	return &MockContentStore{
		posts:      make(map[string]*domain.Post),
		comments:   make(map[string]*domain.Comment),
		profiles:   make(map[string]*domain.Profile),
		courses:    make(map[string]*domain.Course),
		programs:   make(map[string]*domain.Program),
		videos:     make(map[string]*domain.Video),
		podcasts:   make(map[string]*domain.Podcast),
		episodes:   make(map[string]*domain.PodcastEpisode),
		userLists:  make(map[string]*domain.UserList),
		staffLists: make(map[string]*domain.UserList),
		files:      make(map[string]*domain.ContentFile),
	}
}

func (m *MockContentStore) AddPost(p *domain.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posts[p.PostID] = p
}

func (m *MockContentStore) AddComment(c *domain.Comment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.CommentID] = c
}

func (m *MockContentStore) AddProfile(p *domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.Username] = p
}

func (m *MockContentStore) AddCourse(c *domain.Course) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.courses[key(c.ID)] = c
}

func (m *MockContentStore) AddProgram(p *domain.Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.programs[key(p.ID)] = p
}

func (m *MockContentStore) AddVideo(v *domain.Video) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.videos[key(v.ID)] = v
}

func (m *MockContentStore) AddPodcast(p *domain.Podcast) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.podcasts[key(p.ID)] = p
}

func (m *MockContentStore) AddPodcastEpisode(e *domain.PodcastEpisode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.episodes[key(e.ID)] = e
}

// AddUserList stores l as a staff list when l.Staff is set.
func (m *MockContentStore) AddUserList(l *domain.UserList) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.Staff {
		m.staffLists[key(l.ID)] = l
		return
	}
	m.userLists[key(l.ID)] = l
}

func (m *MockContentStore) AddContentFile(f *domain.ContentFile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key(f.ID)] = f
}

func (m *MockContentStore) GetPosts(ctx context.Context, ids []string) ([]*domain.Post, error) {
	return get(m, m.posts, ids)
}

func (m *MockContentStore) GetComments(ctx context.Context, ids []string) ([]*domain.Comment, error) {
	return get(m, m.comments, ids)
}

func (m *MockContentStore) GetProfiles(ctx context.Context, usernames []string) ([]*domain.Profile, error) {
	return get(m, m.profiles, usernames)
}

func (m *MockContentStore) GetCourses(ctx context.Context, ids []string) ([]*domain.Course, error) {
	return get(m, m.courses, ids)
}

func (m *MockContentStore) GetPrograms(ctx context.Context, ids []string) ([]*domain.Program, error) {
	return get(m, m.programs, ids)
}

func (m *MockContentStore) GetVideos(ctx context.Context, ids []string) ([]*domain.Video, error) {
	return get(m, m.videos, ids)
}

func (m *MockContentStore) GetPodcasts(ctx context.Context, ids []string) ([]*domain.Podcast, error) {
	return get(m, m.podcasts, ids)
}

func (m *MockContentStore) GetPodcastEpisodes(ctx context.Context, ids []string) ([]*domain.PodcastEpisode, error) {
	return get(m, m.episodes, ids)
}

func (m *MockContentStore) GetUserLists(ctx context.Context, ids []string) ([]*domain.UserList, error) {
	return get(m, m.userLists, ids)
}

func (m *MockContentStore) GetStaffLists(ctx context.Context, ids []string) ([]*domain.UserList, error) {
	return get(m, m.staffLists, ids)
}

func (m *MockContentStore) GetContentFiles(ctx context.Context, ids []string) ([]*domain.ContentFile, error) {
	return get(m, m.files, ids)
}

func (m *MockContentStore) ListIDs(ctx context.Context, objectType domain.ObjectType, platform string) ([]string, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	switch objectType {
	case domain.ObjectTypePost:
		ids = keys(m.posts, nil)
	case domain.ObjectTypeComment:
		ids = keys(m.comments, nil)
	case domain.ObjectTypeProfile:
		ids = keys(m.profiles, nil)
	case domain.ObjectTypeCourse:
		ids = keys(m.courses, func(c *domain.Course) bool { return platform == "" || c.Platform == platform })
	case domain.ObjectTypeProgram:
		ids = keys(m.programs, nil)
	case domain.ObjectTypeVideo:
		ids = keys(m.videos, func(v *domain.Video) bool { return platform == "" || v.Platform == platform })
	case domain.ObjectTypePodcast:
		ids = keys(m.podcasts, nil)
	case domain.ObjectTypePodcastEpisode:
		ids = keys(m.episodes, nil)
	case domain.ObjectTypeUserList:
		ids = keys(m.userLists, func(l *domain.UserList) bool { return l.ListType != domain.ListTypeLearningPath })
	case domain.ObjectTypeLearningPath:
		ids = keys(m.userLists, func(l *domain.UserList) bool { return l.ListType == domain.ListTypeLearningPath })
	case domain.ObjectTypeStaffList:
		ids = keys(m.staffLists, nil)
	case domain.ObjectTypeResourceFile:
		ids = keys(m.files, func(f *domain.ContentFile) bool { return platform == "" || f.CoursePlatform == platform })
	default:
		return nil, domain.ErrUnknownObjectType
	}
	return ids, nil
}

func (m *MockContentStore) Ping(ctx context.Context) error {
	return m.Err
}

func get[T any](m *MockContentStore, items map[string]*T, ids []string) ([]*T, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		if item, ok := items[id]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func keys[T any](items map[string]*T, keep func(*T) bool) []string {
	out := make([]string, 0, len(items))
	for k, v := range items {
		if keep == nil || keep(v) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func key(id int64) string {
	return strconv.FormatInt(id, 10)
}
