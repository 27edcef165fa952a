package serializers

import (
	"sort"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// resourceDocument holds the fields every learning resource shares.
func resourceDocument(objectType domain.ObjectType, r domain.Resource) domain.Document {
	runs := publishedRuns(r.Runs)
	return domain.Document{
		"object_type":             string(objectType),
		"id":                      r.ID,
		"title":                   r.Title,
		"short_description":       r.ShortDescription,
		"full_description":        r.FullDescription,
		"image_src":               r.ImageSrc,
		"url":                     r.URL,
		"topics":                  strs(r.Topics),
		"offered_by":              strs(r.OfferedBy),
		"certification":           strs(r.Certification),
		"audience":                strs(r.Audience),
		"published":               r.Published,
		"created":                 isoTime(r.Created),
		"runs":                    serializeRuns(runs),
		"minimum_price":           minimumPrice(runs),
		"default_search_priority": searchPriority(objectType, r.Published),
	}
}

// publishedRuns returns the published runs, newest best start date first.
// Runs without a start date sort last.
func publishedRuns(runs []domain.Run) []domain.Run {
	out := make([]domain.Run, 0, len(runs))
	for _, run := range runs {
		if run.Published {
			out = append(out, run)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].BestStartDate, out[j].BestStartDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
	return out
}

func serializeRuns(runs []domain.Run) []map[string]any {
	out := make([]map[string]any, 0, len(runs))
	for _, run := range runs {
		prices := make([]map[string]any, 0, len(run.Prices))
		for _, p := range run.Prices {
			prices = append(prices, map[string]any{"price": p.Price, "mode": p.Mode})
		}
		instructors := make([]string, 0, len(run.Instructors))
		for _, i := range run.Instructors {
			if name := i.FullName(); name != "" {
				instructors = append(instructors, name)
			}
		}
		out = append(out, map[string]any{
			"id":                run.ID,
			"run_id":            run.RunID,
			"title":             run.Title,
			"slug":              run.Slug,
			"short_description": run.ShortDescription,
			"full_description":  run.FullDescription,
			"language":          run.Language,
			"semester":          run.Semester,
			"year":              run.Year,
			"level":             run.Level,
			"availability":      run.Availability,
			"image_src":         run.ImageSrc,
			"checksum":          run.Checksum,
			"published":         run.Published,
			"start_date":        isoTimePtr(run.StartDate),
			"end_date":          isoTimePtr(run.EndDate),
			"enrollment_start":  isoTimePtr(run.EnrollmentStart),
			"enrollment_end":    isoTimePtr(run.EnrollmentEnd),
			"best_start_date":   isoTimePtr(run.BestStartDate),
			"best_end_date":     isoTimePtr(run.BestEndDate),
			"prices":            prices,
			"instructors":       instructors,
		})
	}
	return out
}

// minimumPrice is the lowest price across runs, or 0 when no run has a price.
func minimumPrice(runs []domain.Run) float64 {
	found := false
	lowest := 0.0
	for _, run := range runs {
		for _, p := range run.Prices {
			if !found || p.Price < lowest {
				lowest = p.Price
				found = true
			}
		}
	}
	return lowest
}

// searchPriority ranks published learning resources above curated lists.
func searchPriority(objectType domain.ObjectType, published bool) int {
	if objectType.IsList() || !published {
		return 0
	}
	return 1
}

// CourseSerializer serializes courses
type CourseSerializer struct{}

func (s *CourseSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypeCourse }

func (s *CourseSerializer) DocumentID(entity any) (string, error) {
	c, ok := entity.(*domain.Course)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.CourseID(c.Platform, c.CourseID), nil
}

func (s *CourseSerializer) Serialize(entity any) (domain.Document, error) {
	c, ok := entity.(*domain.Course)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}
	doc := resourceDocument(s.ObjectType(), c.Resource)
	doc["course_id"] = c.CourseID
	doc["platform"] = c.Platform
	doc["coursenum"] = c.CourseNum
	doc["department_name"] = c.DepartmentName
	doc["resource_relations"] = map[string]any{"name": "resource"}
	return doc, nil
}

// ProgramSerializer serializes programs
type ProgramSerializer struct{}

func (s *ProgramSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypeProgram }

func (s *ProgramSerializer) DocumentID(entity any) (string, error) {
	p, ok := entity.(*domain.Program)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.ProgramID(p.ID), nil
}

func (s *ProgramSerializer) Serialize(entity any) (domain.Document, error) {
	p, ok := entity.(*domain.Program)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}
	doc := resourceDocument(s.ObjectType(), p.Resource)
	doc["program_id"] = p.ProgramID
	return doc, nil
}

// VideoSerializer serializes videos
type VideoSerializer struct{}

func (s *VideoSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypeVideo }

func (s *VideoSerializer) DocumentID(entity any) (string, error) {
	v, ok := entity.(*domain.Video)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.VideoID(v.Platform, v.VideoID), nil
}

func (s *VideoSerializer) Serialize(entity any) (domain.Document, error) {
	v, ok := entity.(*domain.Video)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}
	doc := resourceDocument(s.ObjectType(), v.Resource)
	doc["video_id"] = v.VideoID
	doc["platform"] = v.Platform
	doc["transcript"] = v.Transcript
	return doc, nil
}

// PodcastSerializer serializes podcasts
type PodcastSerializer struct{}

func (s *PodcastSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypePodcast }

func (s *PodcastSerializer) DocumentID(entity any) (string, error) {
	p, ok := entity.(*domain.Podcast)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.PodcastID(p.ID), nil
}

func (s *PodcastSerializer) Serialize(entity any) (domain.Document, error) {
	p, ok := entity.(*domain.Podcast)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}
	doc := resourceDocument(s.ObjectType(), p.Resource)
	doc["podcast_id"] = p.PodcastID
	doc["apple_podcasts_url"] = p.ApplePodcastsURL
	doc["google_podcasts_url"] = p.GooglePodcastsURL
	doc["rss_url"] = p.RSSURL
	return doc, nil
}

// PodcastEpisodeSerializer serializes podcast episodes
type PodcastEpisodeSerializer struct{}

func (s *PodcastEpisodeSerializer) ObjectType() domain.ObjectType {
	return domain.ObjectTypePodcastEpisode
}

func (s *PodcastEpisodeSerializer) DocumentID(entity any) (string, error) {
	e, ok := entity.(*domain.PodcastEpisode)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.PodcastEpisodeID(e.ID), nil
}

func (s *PodcastEpisodeSerializer) Serialize(entity any) (domain.Document, error) {
	e, ok := entity.(*domain.PodcastEpisode)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}
	doc := resourceDocument(s.ObjectType(), e.Resource)
	doc["episode_id"] = e.EpisodeID
	doc["podcast_id"] = e.PodcastID
	doc["series_title"] = e.SeriesTitle
	doc["duration"] = e.Duration
	doc["episode_link"] = e.EpisodeLink
	doc["last_modified"] = isoTime(e.LastModified)
	return doc, nil
}

// UserListSerializer serializes user lists, learning paths and staff lists
type UserListSerializer struct {
	objectType domain.ObjectType
}

func (s *UserListSerializer) ObjectType() domain.ObjectType { return s.objectType }

func (s *UserListSerializer) DocumentID(entity any) (string, error) {
	l, ok := entity.(*domain.UserList)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	if l.Staff {
		return domain.StaffListID(l.ID), nil
	}
	return domain.UserListID(l.ID), nil
}

func (s *UserListSerializer) Serialize(entity any) (domain.Document, error) {
	l, ok := entity.(*domain.UserList)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}
	return domain.Document{
		"object_type":             string(l.ObjectType()),
		"id":                      l.ID,
		"title":                   l.Title,
		"short_description":       l.ShortDescription,
		"image_src":               l.ImageSrc,
		"topics":                  strs(l.Topics),
		"author":                  l.AuthorID,
		"author_name":             l.AuthorName,
		"list_type":               string(l.ListType),
		"privacy_level":           string(l.PrivacyLevel),
		"item_count":              l.ItemCount,
		"created":                 isoTime(l.Created),
		"audience":                []string{},
		"certification":           []string{},
		"minimum_price":           0.0,
		"default_search_priority": searchPriority(l.ObjectType(), true),
	}, nil
}
