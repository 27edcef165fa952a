package domain

import (
	"fmt"
	"strings"
)

// ObjectType identifies the kind of entity a search document was built from.
// Each object type is stored in its own backing index.
type ObjectType string

const (
	ObjectTypePost           ObjectType = "post"
	ObjectTypeComment        ObjectType = "comment"
	ObjectTypeProfile        ObjectType = "profile"
	ObjectTypeCourse         ObjectType = "course"
	ObjectTypeProgram        ObjectType = "program"
	ObjectTypeVideo          ObjectType = "video"
	ObjectTypePodcast        ObjectType = "podcast"
	ObjectTypePodcastEpisode ObjectType = "podcast_episode"
	ObjectTypeUserList       ObjectType = "user_list"
	ObjectTypeLearningPath   ObjectType = "learning_path"
	ObjectTypeStaffList      ObjectType = "staff_list"
	ObjectTypeResourceFile   ObjectType = "resource_file"
)

// AliasAllIndices names the global alias that spans every object type.
const AliasAllIndices = "all"

// ValidObjectTypes lists every object type a document can carry.
var ValidObjectTypes = []ObjectType{
	ObjectTypePost,
	ObjectTypeComment,
	ObjectTypeProfile,
	ObjectTypeCourse,
	ObjectTypeProgram,
	ObjectTypeVideo,
	ObjectTypePodcast,
	ObjectTypePodcastEpisode,
	ObjectTypeUserList,
	ObjectTypeLearningPath,
	ObjectTypeStaffList,
	ObjectTypeResourceFile,
}

// IndexedObjectTypes lists the object types that own a backing index, in
// indexing order. Content files live in the course index so that they can
// join to their parent course.
var IndexedObjectTypes = []ObjectType{
	ObjectTypePost,
	ObjectTypeComment,
	ObjectTypeProfile,
	ObjectTypeCourse,
	ObjectTypeProgram,
	ObjectTypeVideo,
	ObjectTypePodcast,
	ObjectTypePodcastEpisode,
	ObjectTypeUserList,
	ObjectTypeLearningPath,
	ObjectTypeStaffList,
}

// DiscussionTypes are the object types subject to channel visibility and moderation filters.
var DiscussionTypes = []ObjectType{ObjectTypePost, ObjectTypeComment}

// ListTypes are user-curated lists subject to privacy filtering.
var ListTypes = []ObjectType{ObjectTypeUserList, ObjectTypeLearningPath, ObjectTypeStaffList}

// LearningResourceTypes can be favorited and added to lists.
var LearningResourceTypes = []ObjectType{
	ObjectTypeCourse,
	ObjectTypeProgram,
	ObjectTypeVideo,
	ObjectTypePodcast,
	ObjectTypePodcastEpisode,
	ObjectTypeUserList,
	ObjectTypeLearningPath,
	ObjectTypeStaffList,
}

// IsValid reports whether t is a known object type.
func (t ObjectType) IsValid() bool {
	for _, v := range ValidObjectTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IndexType returns the object type whose indices hold documents of type t.
func (t ObjectType) IndexType() ObjectType {
	if t == ObjectTypeResourceFile {
		return ObjectTypeCourse
	}
	return t
}

// IsLearningResource reports whether t can be favorited or listed.
func (t ObjectType) IsLearningResource() bool {
	return containsType(LearningResourceTypes, t)
}

// IsList reports whether t is a list type.
func (t ObjectType) IsList() bool {
	return containsType(ListTypes, t)
}

// ParseObjectTypes parses a comma separated list of object types.
// An empty input yields every indexed object type.
func ParseObjectTypes(raw string) ([]ObjectType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]ObjectType(nil), IndexedObjectTypes...), nil
	}

	var types []ObjectType
	seen := make(map[ObjectType]struct{})
	for _, part := range strings.Split(raw, ",") {
		t := ObjectType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObjectType, t)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		types = append(types, t)
	}
	return types, nil
}

// ObjectTypeStrings converts object types to their string values.
func ObjectTypeStrings(types []ObjectType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func containsType(types []ObjectType, t ObjectType) bool {
	for _, v := range types {
		if v == t {
			return true
		}
	}
	return false
}

// IndexTarget selects which aliases of an object type a write goes to.
type IndexTarget int

const (
	// IndexTargetAll writes to the default alias and, during a reindex, the reindexing alias
	IndexTargetAll IndexTarget = iota
	// IndexTargetCurrent writes only to the default alias
	IndexTargetCurrent
	// IndexTargetReindexing writes only to the reindexing alias
	IndexTargetReindexing
)

func (t IndexTarget) String() string {
	switch t {
	case IndexTargetCurrent:
		return "current"
	case IndexTargetReindexing:
		return "reindexing"
	default:
		return "all"
	}
}
