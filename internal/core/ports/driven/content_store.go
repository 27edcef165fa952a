package driven

import (
	"context"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// ContentStore gives read-only bulk access to the entities that are indexed.
// Lookups take natural ids and silently omit ids that do not exist.
type ContentStore interface {
	GetPosts(ctx context.Context, postIDs []string) ([]*domain.Post, error)
	GetComments(ctx context.Context, commentIDs []string) ([]*domain.Comment, error)
	GetProfiles(ctx context.Context, usernames []string) ([]*domain.Profile, error)
	GetCourses(ctx context.Context, ids []string) ([]*domain.Course, error)
	GetPrograms(ctx context.Context, ids []string) ([]*domain.Program, error)
	GetVideos(ctx context.Context, ids []string) ([]*domain.Video, error)
	GetPodcasts(ctx context.Context, ids []string) ([]*domain.Podcast, error)
	GetPodcastEpisodes(ctx context.Context, ids []string) ([]*domain.PodcastEpisode, error)

	// GetUserLists returns user lists and learning paths
	GetUserLists(ctx context.Context, ids []string) ([]*domain.UserList, error)

	// GetStaffLists returns staff-curated lists
	GetStaffLists(ctx context.Context, ids []string) ([]*domain.UserList, error)

	// GetContentFiles returns content files of published course runs
	GetContentFiles(ctx context.Context, ids []string) ([]*domain.ContentFile, error)

	// ListIDs returns the natural ids of every indexable entity of an object type.
	// A non-empty platform restricts courses, videos and content files to that platform.
	ListIDs(ctx context.Context, objectType domain.ObjectType, platform string) ([]string, error)

	// Ping checks the store connection
	Ping(ctx context.Context) error
}

// PermissionStore answers the per-user questions the query filters need.
type PermissionStore interface {
	// AdvancedChannels returns the names of channels where the user is a
	// contributor or moderator
	AdvancedChannels(ctx context.Context, userID int64) ([]string, error)

	// Favorites returns the "object_type:id" keys of the user's favorites
	Favorites(ctx context.Context, userID int64) (domain.Favorites, error)

	// ListMemberships maps "object_type:id" keys to the ids of the user's lists containing them
	ListMemberships(ctx context.Context, userID int64) (domain.UserLists, error)
}
