package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore implements driven.ContentStore over the platform read model
type ContentStore struct {
	db *DB
}

// NewContentStore creates a new ContentStore
func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

const authorColumns = `
	COALESCE(a.username, ''), COALESCE(a.name, ''), COALESCE(a.headline, ''), COALESCE(a.bio, ''),
	COALESCE(a.avatar_small, ''), COALESCE(a.avatar_medium, '')`

func (s *ContentStore) GetPosts(ctx context.Context, postIDs []string) ([]*domain.Post, error) {
	if len(postIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT p.post_id, p.title, p.slug, p.post_type, p.text, p.article_content, p.url, p.thumbnail,
		       p.score, p.num_comments, p.stickied, p.created, p.banned_by, p.approved,
		       c.name, c.title, c.channel_type,` + authorColumns + `
		FROM posts p
		JOIN channels c ON c.name = p.channel_name
		LEFT JOIN profiles a ON a.username = p.author_username
		WHERE p.post_id = ANY($1)
		ORDER BY p.post_id
	`
	posts, err := queryAll(ctx, s.db, func(rows *sql.Rows) (*domain.Post, error) {
		var p domain.Post
		var bannedBy sql.NullString
		err := rows.Scan(
			&p.PostID, &p.Title, &p.Slug, &p.Type, &p.Text, &p.ArticleContent, &p.URL, &p.Thumbnail,
			&p.Score, &p.NumComments, &p.Stickied, &p.Created, &bannedBy, &p.Approved,
			&p.Channel.Name, &p.Channel.Title, &p.Channel.Type,
			&p.Author.Username, &p.Author.Name, &p.Author.Headline, &p.Author.Bio,
			&p.Author.AvatarSmall, &p.Author.AvatarMedium,
		)
		p.BannedBy = stringPtr(bannedBy)
		return &p, err
	}, query, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("get posts: %w", err)
	}
	return posts, nil
}

func (s *ContentStore) GetComments(ctx context.Context, commentIDs []string) ([]*domain.Comment, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT cm.comment_id, cm.parent_comment_id, cm.post_id, p.title, p.slug,
		       cm.text, cm.score, cm.created, cm.banned_by, cm.approved,
		       c.name, c.title, c.channel_type,` + authorColumns + `
		FROM comments cm
		JOIN posts p ON p.post_id = cm.post_id
		JOIN channels c ON c.name = p.channel_name
		LEFT JOIN profiles a ON a.username = cm.author_username
		WHERE cm.comment_id = ANY($1)
		ORDER BY cm.comment_id
	`
	comments, err := queryAll(ctx, s.db, func(rows *sql.Rows) (*domain.Comment, error) {
		var c domain.Comment
		var bannedBy sql.NullString
		err := rows.Scan(
			&c.CommentID, &c.ParentCommentID, &c.PostID, &c.PostTitle, &c.PostSlug,
			&c.Text, &c.Score, &c.Created, &bannedBy, &c.Approved,
			&c.Channel.Name, &c.Channel.Title, &c.Channel.Type,
			&c.Author.Username, &c.Author.Name, &c.Author.Headline, &c.Author.Bio,
			&c.Author.AvatarSmall, &c.Author.AvatarMedium,
		)
		c.BannedBy = stringPtr(bannedBy)
		return &c, err
	}, query, pq.Array(commentIDs))
	if err != nil {
		return nil, fmt.Errorf("get comments: %w", err)
	}
	return comments, nil
}

func (s *ContentStore) GetProfiles(ctx context.Context, usernames []string) ([]*domain.Profile, error) {
	if len(usernames) == 0 {
		return nil, nil
	}
	query := `
		SELECT a.username, a.name, a.headline, a.bio, a.avatar_small, a.avatar_medium,
		       COALESCE(json_agg(json_build_object('name', m.channel_name, 'joined', m.joined)
		                ORDER BY m.joined) FILTER (WHERE m.channel_name IS NOT NULL), '[]')
		FROM profiles a
		LEFT JOIN channel_memberships m ON m.user_id = a.user_id AND m.role = 'subscriber'
		WHERE a.username = ANY($1)
		GROUP BY a.username
		ORDER BY a.username
	`
	profiles, err := queryAll(ctx, s.db, func(rows *sql.Rows) (*domain.Profile, error) {
		var p domain.Profile
		var channels []byte
		if err := rows.Scan(&p.Username, &p.Name, &p.Headline, &p.Bio, &p.AvatarSmall, &p.AvatarMedium, &channels); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(channels, &p.Channels); err != nil {
			return nil, fmt.Errorf("decode channels of %s: %w", p.Username, err)
		}
		return &p, nil
	}, query, pq.Array(usernames))
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	return profiles, nil
}

// resourceDetails are the per-type columns kept in learning_resources.details
type resourceDetails struct {
	CourseNum         string    `json:"coursenum"`
	DepartmentName    string    `json:"department_name"`
	Transcript        string    `json:"transcript"`
	ApplePodcastsURL  string    `json:"apple_podcasts_url"`
	GooglePodcastsURL string    `json:"google_podcasts_url"`
	RSSURL            string    `json:"rss_url"`
	SeriesTitle       string    `json:"series_title"`
	Duration          string    `json:"duration"`
	EpisodeLink       string    `json:"episode_link"`
	LastModified      time.Time `json:"last_modified"`
}

type resourceRow struct {
	domain.Resource
	ResourceID string
	Platform   string
	PodcastRef int64
	Details    resourceDetails
}

// getResources loads published learning resources of one object type by primary key.
func (s *ContentStore) getResources(ctx context.Context, objectType domain.ObjectType, ids []string) ([]resourceRow, error) {
	keys := parseIDs(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, resource_id, platform, title, short_description, full_description, image_src, url,
		       topics, offered_by, certification, audience, published, created,
		       COALESCE(podcast_ref, 0), details, runs
		FROM learning_resources
		WHERE object_type = $1 AND id = ANY($2) AND published
		ORDER BY id
	`
	rows, err := queryAll(ctx, s.db, scanResource, query, string(objectType), pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("get %s resources: %w", objectType, err)
	}
	return rows, nil
}

func scanResource(rows *sql.Rows) (resourceRow, error) {
	var r resourceRow
	var details, runs []byte
	err := rows.Scan(
		&r.ID, &r.ResourceID, &r.Platform, &r.Title, &r.ShortDescription, &r.FullDescription, &r.ImageSrc, &r.URL,
		pq.Array(&r.Topics), pq.Array(&r.OfferedBy), pq.Array(&r.Certification), pq.Array(&r.Audience),
		&r.Published, &r.Created, &r.PodcastRef, &details, &runs,
	)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(details, &r.Details); err != nil {
		return r, fmt.Errorf("decode details of resource %d: %w", r.ID, err)
	}
	if err := json.Unmarshal(runs, &r.Runs); err != nil {
		return r, fmt.Errorf("decode runs of resource %d: %w", r.ID, err)
	}
	return r, nil
}

func (s *ContentStore) GetCourses(ctx context.Context, ids []string) ([]*domain.Course, error) {
	rows, err := s.getResources(ctx, domain.ObjectTypeCourse, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Course, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Course{
			Resource:       r.Resource,
			CourseID:       r.ResourceID,
			Platform:       r.Platform,
			CourseNum:      r.Details.CourseNum,
			DepartmentName: r.Details.DepartmentName,
		})
	}
	return out, nil
}

func (s *ContentStore) GetPrograms(ctx context.Context, ids []string) ([]*domain.Program, error) {
	rows, err := s.getResources(ctx, domain.ObjectTypeProgram, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Program, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Program{Resource: r.Resource, ProgramID: r.ResourceID})
	}
	return out, nil
}

func (s *ContentStore) GetVideos(ctx context.Context, ids []string) ([]*domain.Video, error) {
	rows, err := s.getResources(ctx, domain.ObjectTypeVideo, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Video, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Video{
			Resource:   r.Resource,
			VideoID:    r.ResourceID,
			Platform:   r.Platform,
			Transcript: r.Details.Transcript,
		})
	}
	return out, nil
}

func (s *ContentStore) GetPodcasts(ctx context.Context, ids []string) ([]*domain.Podcast, error) {
	rows, err := s.getResources(ctx, domain.ObjectTypePodcast, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Podcast, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.Podcast{
			Resource:          r.Resource,
			PodcastID:         r.ResourceID,
			ApplePodcastsURL:  r.Details.ApplePodcastsURL,
			GooglePodcastsURL: r.Details.GooglePodcastsURL,
			RSSURL:            r.Details.RSSURL,
		})
	}
	return out, nil
}

func (s *ContentStore) GetPodcastEpisodes(ctx context.Context, ids []string) ([]*domain.PodcastEpisode, error) {
	rows, err := s.getResources(ctx, domain.ObjectTypePodcastEpisode, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.PodcastEpisode, 0, len(rows))
	for _, r := range rows {
		out = append(out, &domain.PodcastEpisode{
			Resource:     r.Resource,
			EpisodeID:    r.ResourceID,
			PodcastID:    r.PodcastRef,
			SeriesTitle:  r.Details.SeriesTitle,
			Duration:     r.Details.Duration,
			EpisodeLink:  r.Details.EpisodeLink,
			LastModified: r.Details.LastModified,
		})
	}
	return out, nil
}

func (s *ContentStore) GetUserLists(ctx context.Context, ids []string) ([]*domain.UserList, error) {
	return s.getLists(ctx, ids, false)
}

func (s *ContentStore) GetStaffLists(ctx context.Context, ids []string) ([]*domain.UserList, error) {
	return s.getLists(ctx, ids, true)
}

func (s *ContentStore) getLists(ctx context.Context, ids []string, staff bool) ([]*domain.UserList, error) {
	keys := parseIDs(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	query := `
		SELECT l.id, l.title, l.short_description, l.image_src, l.topics, l.author_id, l.author_name,
		       l.list_type, l.privacy_level, l.staff, l.created,
		       (SELECT count(*) FROM user_list_items i WHERE i.list_id = l.id)
		FROM user_lists l
		WHERE l.id = ANY($1) AND l.staff = $2
		ORDER BY l.id
	`
	lists, err := queryAll(ctx, s.db, func(rows *sql.Rows) (*domain.UserList, error) {
		var l domain.UserList
		err := rows.Scan(&l.ID, &l.Title, &l.ShortDescription, &l.ImageSrc, pq.Array(&l.Topics),
			&l.AuthorID, &l.AuthorName, &l.ListType, &l.PrivacyLevel, &l.Staff, &l.Created, &l.ItemCount)
		return &l, err
	}, query, pq.Array(keys), staff)
	if err != nil {
		return nil, fmt.Errorf("get lists: %w", err)
	}
	return lists, nil
}

func (s *ContentStore) GetContentFiles(ctx context.Context, ids []string) ([]*domain.ContentFile, error) {
	keys := parseIDs(ids)
	if len(keys) == 0 {
		return nil, nil
	}
	query := `
		SELECT f.id, f.key, f.uid, f.title, f.description, f.url, f.image_src, f.section, f.section_slug,
		       f.file_type, f.content_type, f.content, f.content_title, f.content_author, f.content_language,
		       f.run_id, f.run_title, f.run_slug, f.semester, f.year,
		       r.topics, r.resource_id, r.platform, COALESCE(r.details->>'coursenum', '')
		FROM content_files f
		JOIN learning_resources r ON r.id = f.course_ref AND r.object_type = 'course'
		WHERE f.id = ANY($1) AND f.run_published
		ORDER BY f.id
	`
	files, err := queryAll(ctx, s.db, func(rows *sql.Rows) (*domain.ContentFile, error) {
		var f domain.ContentFile
		err := rows.Scan(
			&f.ID, &f.Key, &f.UID, &f.Title, &f.Description, &f.URL, &f.ImageSrc, &f.Section, &f.SectionSlug,
			&f.FileType, &f.ContentType, &f.Content, &f.ContentTitle, &f.ContentAuthor, &f.ContentLanguage,
			&f.RunID, &f.RunTitle, &f.RunSlug, &f.Semester, &f.Year,
			pq.Array(&f.Topics), &f.CourseID, &f.CoursePlatform, &f.CourseNum,
		)
		return &f, err
	}, query, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("get content files: %w", err)
	}
	return files, nil
}

// listIDsQuery returns the query listing the natural ids of an object type.
// Queries for types that honour a platform filter take it as $1.
func listIDsQuery(objectType domain.ObjectType) (query string, usesPlatform bool, err error) {
	switch objectType {
	case domain.ObjectTypePost:
		return `SELECT post_id FROM posts ORDER BY post_id`, false, nil
	case domain.ObjectTypeComment:
		return `SELECT comment_id FROM comments ORDER BY comment_id`, false, nil
	case domain.ObjectTypeProfile:
		return `SELECT username FROM profiles ORDER BY username`, false, nil
	case domain.ObjectTypeCourse, domain.ObjectTypeVideo:
		return `SELECT id::text FROM learning_resources
			WHERE object_type = '` + string(objectType) + `' AND published AND ($1 = '' OR platform = $1)
			ORDER BY id`, true, nil
	case domain.ObjectTypeProgram, domain.ObjectTypePodcast, domain.ObjectTypePodcastEpisode:
		return `SELECT id::text FROM learning_resources
			WHERE object_type = '` + string(objectType) + `' AND published
			ORDER BY id`, false, nil
	case domain.ObjectTypeUserList:
		return `SELECT id::text FROM user_lists WHERE NOT staff AND list_type = 'userlist' ORDER BY id`, false, nil
	case domain.ObjectTypeLearningPath:
		return `SELECT id::text FROM user_lists WHERE NOT staff AND list_type = 'learningpath' ORDER BY id`, false, nil
	case domain.ObjectTypeStaffList:
		return `SELECT id::text FROM user_lists WHERE staff ORDER BY id`, false, nil
	case domain.ObjectTypeResourceFile:
		return `SELECT f.id::text FROM content_files f
			JOIN learning_resources r ON r.id = f.course_ref AND r.object_type = 'course'
			WHERE f.run_published AND ($1 = '' OR r.platform = $1)
			ORDER BY f.id`, true, nil
	default:
		return "", false, fmt.Errorf("%w: %s", domain.ErrUnknownObjectType, objectType)
	}
}

func (s *ContentStore) ListIDs(ctx context.Context, objectType domain.ObjectType, platform string) ([]string, error) {
	query, usesPlatform, err := listIDsQuery(objectType)
	if err != nil {
		return nil, err
	}
	var args []any
	if usesPlatform {
		args = append(args, platform)
	}

	ids, err := queryAll(ctx, s.db, scanString, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s ids: %w", objectType, err)
	}
	return ids, nil
}

func (s *ContentStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// parseIDs keeps the ids that can be primary keys; others cannot exist.
func parseIDs(ids []string) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
