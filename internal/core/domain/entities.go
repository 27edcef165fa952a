package domain

import "time"

// Entities read from the upstream content store. The search subsystem never
// writes them; they only exist to be serialized into documents.

// ChannelType is the visibility of a discussion channel
type ChannelType string

const (
	ChannelTypePublic     ChannelType = "public"
	ChannelTypeRestricted ChannelType = "restricted"
	ChannelTypePrivate    ChannelType = "private"
)

// DeletedSentinel is the literal text the discussion platform leaves behind
// when an author deletes a post or comment.
const DeletedSentinel = "[deleted]"

// PostType describes what a post carries
type PostType string

const (
	PostTypeText    PostType = "self"
	PostTypeLink    PostType = "link"
	PostTypeArticle PostType = "article"
)

// Channel is a discussion channel
type Channel struct {
	Name  string      `json:"name"`
	Title string      `json:"title"`
	Type  ChannelType `json:"channel_type"`
}

// Author is the denormalized author info copied into post, comment and profile documents
type Author struct {
	Username     string `json:"username"`
	Name         string `json:"name"`
	Headline     string `json:"headline"`
	Bio          string `json:"bio"`
	AvatarSmall  string `json:"avatar_small"`
	AvatarMedium string `json:"avatar_medium"`
}

// Moderation carries the moderator actions on a post or comment
type Moderation struct {
	BannedBy *string `json:"banned_by,omitempty"`
	Approved bool    `json:"approved"`
}

// IsRemoved reports whether a moderator removed the item without approving it afterwards.
func (m Moderation) IsRemoved() bool {
	return m.BannedBy != nil && !m.Approved
}

// Post is a discussion post
type Post struct {
	PostID         string    `json:"post_id"`
	Title          string    `json:"title"`
	Slug           string    `json:"slug"`
	Type           PostType  `json:"post_type"`
	Text           string    `json:"text"`
	ArticleContent string    `json:"article_content,omitempty"` // rendered HTML for articles
	URL            string    `json:"url,omitempty"`
	Thumbnail      string    `json:"thumbnail,omitempty"`
	Score          int       `json:"score"`
	NumComments    int       `json:"num_comments"`
	Stickied       bool      `json:"stickied"`
	Created        time.Time `json:"created"`
	Author         Author    `json:"author"`
	Channel        Channel   `json:"channel"`
	Moderation
}

// Comment is a reply to a post or to another comment
type Comment struct {
	CommentID       string    `json:"comment_id"`
	ParentCommentID string    `json:"parent_comment_id,omitempty"`
	PostID          string    `json:"post_id"`
	PostTitle       string    `json:"post_title"`
	PostSlug        string    `json:"post_slug"`
	Text            string    `json:"text"`
	Score           int       `json:"score"`
	Created         time.Time `json:"created"`
	Author          Author    `json:"author"`
	Channel         Channel   `json:"channel"`
	Moderation
}

// ChannelMembership records when a profile joined a channel
type ChannelMembership struct {
	Name   string    `json:"name"`
	Joined time.Time `json:"joined"`
}

// Profile is a user's public profile
type Profile struct {
	Author
	Channels []ChannelMembership `json:"channels"`
}

// Price is a run price for one enrollment mode
type Price struct {
	Price float64 `json:"price"`
	Mode  string  `json:"mode"`
}

// Instructor teaches a run
type Instructor struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName returns "First Last", trimming missing parts.
func (i Instructor) FullName() string {
	switch {
	case i.FirstName == "":
		return i.LastName
	case i.LastName == "":
		return i.FirstName
	default:
		return i.FirstName + " " + i.LastName
	}
}

// Run is one offering of a course, program, video or podcast
type Run struct {
	ID               int64        `json:"id"`
	RunID            string       `json:"run_id"`
	Title            string       `json:"title"`
	Slug             string       `json:"slug"`
	ShortDescription string       `json:"short_description"`
	FullDescription  string       `json:"full_description"`
	Language         string       `json:"language"`
	Semester         string       `json:"semester"`
	Year             int          `json:"year"`
	Level            string       `json:"level"`
	Availability     string       `json:"availability"`
	ImageSrc         string       `json:"image_src"`
	Checksum         string       `json:"checksum"`
	Published        bool         `json:"published"`
	StartDate        *time.Time   `json:"start_date,omitempty"`
	EndDate          *time.Time   `json:"end_date,omitempty"`
	EnrollmentStart  *time.Time   `json:"enrollment_start,omitempty"`
	EnrollmentEnd    *time.Time   `json:"enrollment_end,omitempty"`
	BestStartDate    *time.Time   `json:"best_start_date,omitempty"`
	BestEndDate      *time.Time   `json:"best_end_date,omitempty"`
	Prices           []Price      `json:"prices"`
	Instructors      []Instructor `json:"instructors"`
}

// Resource holds the fields shared by every learning resource
type Resource struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	ShortDescription string    `json:"short_description"`
	FullDescription  string    `json:"full_description"`
	ImageSrc         string    `json:"image_src"`
	URL              string    `json:"url"`
	Topics           []string  `json:"topics"`
	OfferedBy        []string  `json:"offered_by"`
	Certification    []string  `json:"certification"`
	Audience         []string  `json:"audience"`
	Published        bool      `json:"published"`
	Created          time.Time `json:"created"`
	Runs             []Run     `json:"runs"`
}

// Course is a learning resource offered by a platform
type Course struct {
	Resource
	CourseID       string `json:"course_id"`
	Platform       string `json:"platform"`
	CourseNum      string `json:"coursenum"`
	DepartmentName string `json:"department_name"`
}

// Program groups courses into a credential
type Program struct {
	Resource
	ProgramID string `json:"program_id"`
}

// Video is a standalone video resource
type Video struct {
	Resource
	VideoID    string `json:"video_id"`
	Platform   string `json:"platform"`
	Transcript string `json:"transcript"`
}

// Podcast is a podcast series
type Podcast struct {
	Resource
	PodcastID         string `json:"podcast_id"`
	ApplePodcastsURL  string `json:"apple_podcasts_url"`
	GooglePodcastsURL string `json:"google_podcasts_url"`
	RSSURL            string `json:"rss_url"`
}

// PodcastEpisode is a single episode of a podcast
type PodcastEpisode struct {
	Resource
	EpisodeID    string    `json:"episode_id"`
	PodcastID    int64     `json:"podcast_id"`
	SeriesTitle  string    `json:"series_title"`
	Duration     string    `json:"duration"`
	EpisodeLink  string    `json:"episode_link"`
	LastModified time.Time `json:"last_modified"`
}

// PrivacyLevel controls who can find a list
type PrivacyLevel string

const (
	PrivacyLevelPublic   PrivacyLevel = "public"
	PrivacyLevelPrivate  PrivacyLevel = "private"
	PrivacyLevelUnlisted PrivacyLevel = "unlisted"
)

// ListType distinguishes user lists from learning paths
type ListType string

const (
	ListTypeUserList     ListType = "userlist"
	ListTypeLearningPath ListType = "learningpath"
)

// UserList is a user-curated list of learning resources
type UserList struct {
	ID               int64        `json:"id"`
	Title            string       `json:"title"`
	ShortDescription string       `json:"short_description"`
	ImageSrc         string       `json:"image_src"`
	Topics           []string     `json:"topics"`
	AuthorID         int64        `json:"author"`
	AuthorName       string       `json:"author_name"`
	ListType         ListType     `json:"list_type"`
	PrivacyLevel     PrivacyLevel `json:"privacy_level"`
	ItemCount        int          `json:"item_count"`
	Created          time.Time    `json:"created"`
	Staff            bool         `json:"-"` // staff lists are stored in their own index
}

// ObjectType returns the object type a list is indexed as.
func (l *UserList) ObjectType() ObjectType {
	switch {
	case l.Staff:
		return ObjectTypeStaffList
	case l.ListType == ListTypeLearningPath:
		return ObjectTypeLearningPath
	default:
		return ObjectTypeUserList
	}
}

// ContentFile is a file belonging to a course run (lecture notes, assignments, ...)
type ContentFile struct {
	ID              int64    `json:"id"`
	Key             string   `json:"key"`
	UID             string   `json:"uid"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	URL             string   `json:"url"`
	ImageSrc        string   `json:"image_src"`
	Section         string   `json:"section"`
	SectionSlug     string   `json:"section_slug"`
	FileType        string   `json:"file_type"`
	ContentType     string   `json:"content_type"`
	Content         string   `json:"content"`
	ContentTitle    string   `json:"content_title"`
	ContentAuthor   string   `json:"content_author"`
	ContentLanguage string   `json:"content_language"`
	RunID           string   `json:"run_id"`
	RunTitle        string   `json:"run_title"`
	RunSlug         string   `json:"run_slug"`
	Semester        string   `json:"semester"`
	Year            int      `json:"year"`
	Topics          []string `json:"topics"`
	CourseID        string   `json:"course_id"`
	CoursePlatform  string   `json:"platform"`
	CourseNum       string   `json:"coursenum"`
}
