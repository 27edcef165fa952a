package services

import "github.com/custodia-labs/discussion-search/internal/core/domain"

// Field mapping building blocks

func keywordField() map[string]any { return map[string]any{"type": "keyword"} }
func booleanField() map[string]any { return map[string]any{"type": "boolean"} }
func dateField() map[string]any    { return map[string]any{"type": "date"} }
func longField() map[string]any    { return map[string]any{"type": "long"} }

// englishTextField is analyzed text with a raw keyword sub-field for sorting
// and an English stemmed sub-field for recall.
func englishTextField() map[string]any {
	return map[string]any{
		"type": "text",
		"fields": map[string]any{
			"english": map[string]any{"type": "text", "analyzer": "english"},
			"raw":     map[string]any{"type": "keyword"},
		},
	}
}

// suggestTextField additionally feeds the phrase suggester trigram field.
func suggestTextField() map[string]any {
	f := englishTextField()
	f["copy_to"] = "suggest_field"
	return f
}

func nestedField(properties map[string]any) map[string]any {
	return map[string]any{"type": "nested", "properties": properties}
}

// indexSettings holds the analysis chain shared by every backing index:
// "folding" for accent-insensitive matching and "trigram" for suggestions.
func indexSettings(shards, replicas int) map[string]any {
	return map[string]any{
		"index": map[string]any{
			"number_of_shards":   shards,
			"number_of_replicas": replicas,
		},
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"folding": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding"},
				},
				"trigram": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "shingle"},
				},
			},
			"filter": map[string]any{
				"shingle": map[string]any{
					"type":             "shingle",
					"min_shingle_size": 2,
					"max_shingle_size": 3,
				},
			},
		},
	}
}

// discussionProperties are shared by posts, comments and profiles
func discussionProperties() map[string]any {
	return map[string]any{
		"object_type":          keywordField(),
		"author_id":            keywordField(),
		"author_name":          suggestTextField(),
		"author_headline":      englishTextField(),
		"author_avatar_small":  keywordField(),
		"author_avatar_medium": keywordField(),
		"channel_name":         keywordField(),
		"channel_title":        englishTextField(),
		"channel_type":         keywordField(),
		"text":                 englishTextField(),
		"plain_text":           suggestTextField(),
		"score":                longField(),
		"created":              dateField(),
		"deleted":              booleanField(),
		"removed":              booleanField(),
		"suggest_field":        map[string]any{"type": "text", "analyzer": "trigram"},
	}
}

func postProperties() map[string]any {
	p := discussionProperties()
	p["post_id"] = keywordField()
	p["post_title"] = suggestTextField()
	p["post_slug"] = keywordField()
	p["post_type"] = keywordField()
	p["post_link_url"] = keywordField()
	p["post_link_thumbnail"] = keywordField()
	p["num_comments"] = longField()
	p["stickied"] = booleanField()
	return p
}

func commentProperties() map[string]any {
	p := discussionProperties()
	p["comment_id"] = keywordField()
	p["parent_comment_id"] = keywordField()
	p["post_id"] = keywordField()
	p["post_title"] = englishTextField()
	p["post_slug"] = keywordField()
	return p
}

func profileProperties() map[string]any {
	return map[string]any{
		"object_type":               keywordField(),
		"author_id":                 keywordField(),
		"author_name":               suggestTextField(),
		"author_headline":           englishTextField(),
		"author_bio":                englishTextField(),
		"author_avatar_small":       keywordField(),
		"author_avatar_medium":      keywordField(),
		"author_channel_membership": keywordField(),
		"author_channel_join_data": nestedField(map[string]any{
			"name":   keywordField(),
			"joined": dateField(),
		}),
		"suggest_field": map[string]any{"type": "text", "analyzer": "trigram"},
	}
}

func runProperties() map[string]any {
	return nestedField(map[string]any{
		"id":                longField(),
		"run_id":            keywordField(),
		"title":             englishTextField(),
		"slug":              keywordField(),
		"short_description": englishTextField(),
		"full_description":  englishTextField(),
		"language":          keywordField(),
		"semester":          keywordField(),
		"year":              keywordField(),
		"level":             keywordField(),
		"availability":      keywordField(),
		"image_src":         keywordField(),
		"checksum":          keywordField(),
		"published":         booleanField(),
		"start_date":        dateField(),
		"end_date":          dateField(),
		"enrollment_start":  dateField(),
		"enrollment_end":    dateField(),
		"best_start_date":   dateField(),
		"best_end_date":     dateField(),
		"instructors":       map[string]any{"type": "text", "fields": map[string]any{"raw": keywordField()}},
		"prices": nestedField(map[string]any{
			"mode":  keywordField(),
			"price": map[string]any{"type": "scaled_float", "scaling_factor": 100},
		}),
	})
}

// resourceProperties are shared by every learning resource
func resourceProperties() map[string]any {
	return map[string]any{
		"object_type":             keywordField(),
		"id":                      longField(),
		"title":                   suggestTextField(),
		"short_description":       suggestTextField(),
		"full_description":        englishTextField(),
		"image_src":               keywordField(),
		"url":                     keywordField(),
		"topics":                  keywordField(),
		"offered_by":              keywordField(),
		"certification":           keywordField(),
		"audience":                keywordField(),
		"published":               booleanField(),
		"created":                 dateField(),
		"runs":                    runProperties(),
		"minimum_price":           map[string]any{"type": "scaled_float", "scaling_factor": 100},
		"default_search_priority": map[string]any{"type": "integer"},
		"suggest_field":           map[string]any{"type": "text", "analyzer": "trigram"},
	}
}

// courseProperties also covers content files, which live in the course
// index as children of their course.
func courseProperties() map[string]any {
	p := resourceProperties()
	p["course_id"] = keywordField()
	p["platform"] = keywordField()
	p["coursenum"] = keywordField()
	p["department_name"] = keywordField()
	p["resource_relations"] = map[string]any{
		"type":      "join",
		"relations": map[string]any{"resource": "resourcefile"},
	}

	// content file fields
	p["key"] = keywordField()
	p["uid"] = keywordField()
	p["section"] = keywordField()
	p["section_slug"] = keywordField()
	p["file_type"] = keywordField()
	p["content_type"] = keywordField()
	p["content"] = map[string]any{"type": "text", "analyzer": "folding"}
	p["content_title"] = englishTextField()
	p["content_author"] = keywordField()
	p["content_language"] = keywordField()
	p["resource_type"] = keywordField()
	p["run_id"] = keywordField()
	p["run_title"] = englishTextField()
	p["run_slug"] = keywordField()
	p["semester"] = keywordField()
	p["year"] = keywordField()
	return p
}

func listProperties() map[string]any {
	p := resourceProperties()
	p["author"] = longField()
	p["author_name"] = keywordField()
	p["list_type"] = keywordField()
	p["privacy_level"] = keywordField()
	p["item_count"] = longField()
	delete(p, "runs")
	return p
}

// mappingProperties returns the document mapping of an indexed object type.
func mappingProperties(objectType domain.ObjectType) map[string]any {
	switch objectType.IndexType() {
	case domain.ObjectTypePost:
		return postProperties()
	case domain.ObjectTypeComment:
		return commentProperties()
	case domain.ObjectTypeProfile:
		return profileProperties()
	case domain.ObjectTypeCourse:
		return courseProperties()
	case domain.ObjectTypeProgram:
		p := resourceProperties()
		p["program_id"] = keywordField()
		return p
	case domain.ObjectTypeVideo:
		p := resourceProperties()
		p["video_id"] = keywordField()
		p["platform"] = keywordField()
		p["transcript"] = englishTextField()
		return p
	case domain.ObjectTypePodcast:
		p := resourceProperties()
		p["podcast_id"] = keywordField()
		p["apple_podcasts_url"] = keywordField()
		p["google_podcasts_url"] = keywordField()
		p["rss_url"] = keywordField()
		return p
	case domain.ObjectTypePodcastEpisode:
		p := resourceProperties()
		p["episode_id"] = keywordField()
		p["podcast_id"] = longField()
		p["series_title"] = englishTextField()
		p["duration"] = keywordField()
		p["episode_link"] = keywordField()
		p["last_modified"] = dateField()
		return p
	case domain.ObjectTypeUserList, domain.ObjectTypeLearningPath, domain.ObjectTypeStaffList:
		return listProperties()
	default:
		return nil
	}
}

// IndexBody returns the create-index body (settings and mappings) of an object type.
func IndexBody(objectType domain.ObjectType, shards, replicas int) map[string]any {
	return map[string]any{
		"settings": indexSettings(shards, replicas),
		"mappings": map[string]any{
			"dynamic":    false,
			"properties": mappingProperties(objectType),
		},
	}
}
