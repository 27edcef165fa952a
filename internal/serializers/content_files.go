package serializers

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/discussion-search/internal/core/domain"
)

// Resource types of course content files
const (
	ResourceTypeAssignments    = "Assignments"
	ResourceTypeExams          = "Exams"
	ResourceTypeLabs           = "Labs"
	ResourceTypeLectureAudio   = "Lecture Audio"
	ResourceTypeLectureNotes   = "Lecture Notes"
	ResourceTypeLectureVideos  = "Lecture Videos"
	ResourceTypeProjects       = "Projects"
	ResourceTypeReadings       = "Readings"
	ResourceTypeRecitations    = "Recitations"
	ResourceTypeTextbooks      = "Textbooks"
	ResourceTypeTools          = "Tools"
	ResourceTypeTutorials      = "Tutorials"
	ResourceTypeVideos         = "Videos"
	ResourceTypeRelatedContent = "Related Resources"
)

// sectionResourceTypes maps lower-cased course section names to resource types.
var sectionResourceTypes = map[string]string{
	"assignments":                  ResourceTypeAssignments,
	"assignments and student work": ResourceTypeAssignments,
	"problem sets":                 ResourceTypeAssignments,
	"exams":                        ResourceTypeExams,
	"exams and solutions":          ResourceTypeExams,
	"quizzes":                      ResourceTypeExams,
	"labs":                         ResourceTypeLabs,
	"lab exercises":                ResourceTypeLabs,
	"lecture audio":                ResourceTypeLectureAudio,
	"audio lectures":               ResourceTypeLectureAudio,
	"lecture notes":                ResourceTypeLectureNotes,
	"lecture slides":               ResourceTypeLectureNotes,
	"lecture summaries":            ResourceTypeLectureNotes,
	"lecture videos":               ResourceTypeLectureVideos,
	"video lectures":               ResourceTypeLectureVideos,
	"projects":                     ResourceTypeProjects,
	"final project":                ResourceTypeProjects,
	"readings":                     ResourceTypeReadings,
	"reading list":                 ResourceTypeReadings,
	"recitations":                  ResourceTypeRecitations,
	"textbooks":                    ResourceTypeTextbooks,
	"online textbook":              ResourceTypeTextbooks,
	"tools":                        ResourceTypeTools,
	"software":                     ResourceTypeTools,
	"tutorials":                    ResourceTypeTutorials,
	"videos":                       ResourceTypeVideos,
	"related resources":            ResourceTypeRelatedContent,
}

// ResourceType classifies a content file by its section name. Any section
// mentioning an assignment counts as one. It returns "" when nothing matches.
func ResourceType(section string) string {
	key := strings.ToLower(strings.TrimSpace(section))
	if key == "" {
		return ""
	}
	if t, ok := sectionResourceTypes[key]; ok {
		return t
	}
	if strings.Contains(key, "assignment") {
		return ResourceTypeAssignments
	}
	return ""
}

// ContentFileSerializer serializes course content files. Their documents are
// children of the course document and routed to its shard.
type ContentFileSerializer struct {
	maxSize int
}

func (s *ContentFileSerializer) ObjectType() domain.ObjectType { return domain.ObjectTypeResourceFile }

func (s *ContentFileSerializer) DocumentID(entity any) (string, error) {
	f, ok := entity.(*domain.ContentFile)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.ContentFileID(f.Key), nil
}

func (s *ContentFileSerializer) Routing(entity any) (string, error) {
	f, ok := entity.(*domain.ContentFile)
	if !ok {
		return "", unexpected(s.ObjectType(), entity)
	}
	return domain.CourseID(f.CoursePlatform, f.CourseID), nil
}

func (s *ContentFileSerializer) Serialize(entity any) (domain.Document, error) {
	f, ok := entity.(*domain.ContentFile)
	if !ok {
		return nil, unexpected(s.ObjectType(), entity)
	}

	var resourceType any
	if t := ResourceType(f.Section); t != "" {
		resourceType = t
	}

	doc := domain.Document{
		"object_type":       string(domain.ObjectTypeResourceFile),
		"id":                f.ID,
		"key":               f.Key,
		"uid":               f.UID,
		"title":             f.Title,
		"short_description": f.Description,
		"url":               f.URL,
		"image_src":         f.ImageSrc,
		"section":           f.Section,
		"section_slug":      f.SectionSlug,
		"file_type":         f.FileType,
		"content_type":      f.ContentType,
		"content":           f.Content,
		"content_title":     f.ContentTitle,
		"content_author":    f.ContentAuthor,
		"content_language":  f.ContentLanguage,
		"run_id":            f.RunID,
		"run_title":         f.RunTitle,
		"run_slug":          f.RunSlug,
		"semester":          f.Semester,
		"year":              f.Year,
		"topics":            strs(f.Topics),
		"course_id":         f.CourseID,
		"coursenum":         f.CourseNum,
		"platform":          f.CoursePlatform,
		"resource_type":     resourceType,
		"resource_relations": map[string]any{
			"name":   "resourcefile",
			"parent": domain.CourseID(f.CoursePlatform, f.CourseID),
		},
	}

	if err := truncateContent(doc, s.maxSize); err != nil {
		return nil, err
	}
	return doc, nil
}

// truncateContent shortens doc["content"] until the encoded document fits in
// maxSize bytes. Cuts land on rune boundaries so the text stays valid UTF-8
// and re-encodes cleanly.
func truncateContent(doc domain.Document, maxSize int) error {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode content file: %w", err)
	}

	content, _ := doc["content"].(string)
	for len(encoded) > maxSize && content != "" {
		// escaping can make the encoded excess larger than the raw text,
		// so never cut more than half per pass
		cut := len(content) - (len(encoded) - maxSize)
		if half := len(content) / 2; cut < half {
			cut = half
		}
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
		doc["content"] = content

		if encoded, err = json.Marshal(doc); err != nil {
			return fmt.Errorf("encode content file: %w", err)
		}
	}
	return nil
}
