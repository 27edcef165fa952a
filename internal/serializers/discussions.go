package serializers

import (
	"sort"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// PostSerializer serializes discussion posts
type PostSerializer struct {
	text plainTexter
}

func (s *PostSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypePost }

func (s *PostSerializer) DocumentID(entity any) (string, error) {
	p, ok := entity.(*domain.Post)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.PostID(p.PostID), nil
}

func (s *PostSerializer) Serialize(entity any) (domain.Document, error) {
	p, ok := entity.(*domain.Post)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}

	plain := s.text.markdown(p.Text)
	if p.Type == domain.PostTypeArticle {
		plain = s.text.html(p.ArticleContent)
	}

	doc := domain.Document{
		"object_type":         string(domain.ObjectTypePost),
		"post_id":             p.PostID,
		"post_title":          p.Title,
		"post_slug":           p.Slug,
		"post_type":           string(p.Type),
		"post_link_url":       p.URL,
		"post_link_thumbnail": p.Thumbnail,
		"text":                p.Text,
		"plain_text":          plain,
		"score":               p.Score,
		"num_comments":        p.NumComments,
		"stickied":            p.Stickied,
		"created":             isoTime(p.Created),
		"removed":             p.IsRemoved(),
		"deleted":             p.Text == domain.DeletedSentinel,
	}
	authorFields(doc, p.Author)
	channelFields(doc, p.Channel)
	return doc, nil
}

// CommentSerializer serializes comments
type CommentSerializer struct {
	text plainTexter
}

func (s *CommentSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypeComment }

func (s *CommentSerializer) DocumentID(entity any) (string, error) {
	c, ok := entity.(*domain.Comment)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.CommentID(c.CommentID), nil
}

func (s *CommentSerializer) Serialize(entity any) (domain.Document, error) {
	c, ok := entity.(*domain.Comment)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}

	doc := domain.Document{
		"object_type":       string(domain.ObjectTypeComment),
		"comment_id":        c.CommentID,
		"parent_comment_id": c.ParentCommentID,
		"post_id":           c.PostID,
		"post_title":        c.PostTitle,
		"post_slug":         c.PostSlug,
		"text":              c.Text,
		"plain_text":        s.text.markdown(c.Text),
		"score":             c.Score,
		"created":           isoTime(c.Created),
		"removed":           c.IsRemoved(),
		"deleted":           c.Text == domain.DeletedSentinel,
	}
	if c.ParentCommentID == "" {
		doc["parent_comment_id"] = nil
	}
	authorFields(doc, c.Author)
	channelFields(doc, c.Channel)
	return doc, nil
}

// ProfileSerializer serializes user profiles
type ProfileSerializer struct{}

func (s *ProfileSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypeProfile }

func (s *ProfileSerializer) DocumentID(entity any) (string, error) {
	p, ok := entity.(*domain.Profile)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.ProfileID(p.Username), nil
}

func (s *ProfileSerializer) Serialize(entity any) (domain.Document, error) {
	p, ok := entity.(*domain.Profile)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}

	memberships := append([]domain.ChannelMembership(nil), p.Channels...)
	sort.SliceStable(memberships, func(i, j int) bool {
		return memberships[i].Joined.After(memberships[j].Joined)
	})

	names := make([]string, 0, len(memberships))
	joins := make([]map[string]any, 0, len(memberships))
	for _, m := range memberships {
		names = append(names, m.Name)
		joins = append(joins, map[string]any{"name": m.Name, "joined": isoTime(m.Joined)})
	}

	doc := domain.Document{
		"object_type":               string(domain.ObjectTypeProfile),
		"author_bio":                p.Bio,
		"author_channel_membership": names,
		"author_channel_join_data":  joins,
	}
	authorFields(doc, p.Author)
	return doc, nil
}

func authorFields(doc domain.Document, a domain.Author) {
	doc["author_id"] = a.Username
	doc["author_name"] = a.Name
	doc["author_headline"] = a.Headline
	doc["author_avatar_small"] = a.AvatarSmall
	doc["author_avatar_medium"] = a.AvatarMedium
}

func channelFields(doc domain.Document, c domain.Channel) {
	doc["channel_name"] = c.Name
	doc["channel_title"] = c.Title
	doc["channel_type"] = string(c.Type)
}
