package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIndexDocuments indexes a chunk of entities of one object type
	TaskTypeIndexDocuments TaskType = "index_documents"
	// TaskTypeDeindexDocuments removes a chunk of documents of one object type
	TaskTypeDeindexDocuments TaskType = "deindex_documents"
	// TaskTypeUpsertDocument indexes a single entity
	TaskTypeUpsertDocument TaskType = "upsert_document"
	// TaskTypeRecreateIndex rebuilds the backing indices of object types and swaps them in
	TaskTypeRecreateIndex TaskType = "recreate_index"
	// TaskTypeUpdateIndex re-indexes existing entities into the current indices
	TaskTypeUpdateIndex TaskType = "update_index"
	// TaskTypeUpdateDocuments merges fields into existing documents
	TaskTypeUpdateDocuments TaskType = "update_documents"
	// TaskTypeIncrementField adds to an integer field of existing documents
	TaskTypeIncrementField TaskType = "increment_field"
	// TaskTypeUpdateByQuery sets fields on every document matching a query
	TaskTypeUpdateByQuery TaskType = "update_by_query"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Payload keys
const (
	PayloadObjectType  = "object_type"
	PayloadObjectTypes = "object_types"
	PayloadIDs         = "ids"
	PayloadUpdateOnly  = "update_only"
	PayloadPlatform    = "platform"
	PayloadFields      = "fields"
	PayloadQuery       = "query"
	PayloadField       = "field"
	PayloadAmount      = "amount"
)

// Task represents a background job to be processed by workers
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For index_documents: {"object_type": "post", "ids": "a,b,c", "update_only": "false"}
	// For recreate_index: {"object_types": "post,comment"}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for retries with backoff)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIndexTask creates a task indexing ids of one object type
func NewIndexTask(objectType ObjectType, ids []string, updateOnly bool) *Task {
	return NewTask(TaskTypeIndexDocuments, map[string]string{
		PayloadObjectType: string(objectType),
		PayloadIDs:        strings.Join(ids, ","),
		PayloadUpdateOnly: strconv.FormatBool(updateOnly),
	})
}

// NewDeindexTask creates a task removing document ids of one object type
func NewDeindexTask(objectType ObjectType, docIDs []string) *Task {
	return NewTask(TaskTypeDeindexDocuments, map[string]string{
		PayloadObjectType: string(objectType),
		PayloadIDs:        strings.Join(docIDs, ","),
	})
}

// NewUpsertTask creates a task indexing a single entity
func NewUpsertTask(objectType ObjectType, id string) *Task {
	return NewTask(TaskTypeUpsertDocument, map[string]string{
		PayloadObjectType: string(objectType),
		PayloadIDs:        id,
	})
}

// NewRecreateIndexTask creates a task rebuilding the indices of object types
func NewRecreateIndexTask(objectTypes []ObjectType) *Task {
	t := NewTask(TaskTypeRecreateIndex, map[string]string{
		PayloadObjectTypes: strings.Join(ObjectTypeStrings(objectTypes), ","),
	})
	// A failed recreate leaves orphaned indices behind; an operator reruns it
	t.MaxAttempts = 1
	return t
}

// NewUpdateIndexTask creates a task refreshing existing documents in place
func NewUpdateIndexTask(objectTypes []ObjectType, platform string) *Task {
	return NewTask(TaskTypeUpdateIndex, map[string]string{
		PayloadObjectTypes: strings.Join(ObjectTypeStrings(objectTypes), ","),
		PayloadPlatform:    platform,
	})
}

// NewUpdateDocumentsTask creates a task merging fields into docIDs
func NewUpdateDocumentsTask(objectType ObjectType, docIDs []string, fields map[string]any) (*Task, error) {
	encoded, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return NewTask(TaskTypeUpdateDocuments, map[string]string{
		PayloadObjectType: string(objectType),
		PayloadIDs:        strings.Join(docIDs, ","),
		PayloadFields:     string(encoded),
	}), nil
}

// NewIncrementFieldTask creates a task adding amount to field of docIDs
func NewIncrementFieldTask(objectType ObjectType, docIDs []string, field string, amount int) *Task {
	return NewTask(TaskTypeIncrementField, map[string]string{
		PayloadObjectType: string(objectType),
		PayloadIDs:        strings.Join(docIDs, ","),
		PayloadField:      field,
		PayloadAmount:     strconv.Itoa(amount),
	})
}

// NewUpdateByQueryTask creates a task setting fields on every document of
// objectTypes matching query
func NewUpdateByQueryTask(objectTypes []ObjectType, query, fields map[string]any) (*Task, error) {
	encodedQuery, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	encodedFields, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return NewTask(TaskTypeUpdateByQuery, map[string]string{
		PayloadObjectTypes: strings.Join(ObjectTypeStrings(objectTypes), ","),
		PayloadQuery:       string(encodedQuery),
		PayloadFields:      string(encodedFields),
	}), nil
}

// ObjectType extracts the object type from the payload
func (t *Task) ObjectType() ObjectType {
	if t.Payload == nil {
		return ""
	}
	return ObjectType(t.Payload[PayloadObjectType])
}

// ObjectTypes extracts the object type list from the payload
func (t *Task) ObjectTypes() ([]ObjectType, error) {
	if t.Payload == nil {
		return ParseObjectTypes("")
	}
	return ParseObjectTypes(t.Payload[PayloadObjectTypes])
}

// IDs extracts the id list from the payload
func (t *Task) IDs() []string {
	if t.Payload == nil || t.Payload[PayloadIDs] == "" {
		return nil
	}
	return strings.Split(t.Payload[PayloadIDs], ",")
}

// UpdateOnly reports whether writes should skip reindexing aliases
func (t *Task) UpdateOnly() bool {
	if t.Payload == nil {
		return false
	}
	v, _ := strconv.ParseBool(t.Payload[PayloadUpdateOnly])
	return v
}

// Platform extracts the optional platform filter
func (t *Task) Platform() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload[PayloadPlatform]
}

// Fields decodes the field values of an update task
func (t *Task) Fields() (map[string]any, error) {
	return t.jsonObject(PayloadFields)
}

// Query decodes the query of an update-by-query task
func (t *Task) Query() (map[string]any, error) {
	return t.jsonObject(PayloadQuery)
}

// Field extracts the field name of an increment task
func (t *Task) Field() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload[PayloadField]
}

// Amount extracts the increment of an increment task
func (t *Task) Amount() (int, error) {
	if t.Payload == nil {
		return 0, fmt.Errorf("%w: missing %s", ErrInvalidInput, PayloadAmount)
	}
	n, err := strconv.Atoi(t.Payload[PayloadAmount])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidInput, PayloadAmount, err)
	}
	return n, nil
}

func (t *Task) jsonObject(key string) (map[string]any, error) {
	if t.Payload == nil || t.Payload[key] == "" {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, key)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(t.Payload[key]), &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, key, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: empty %s", ErrInvalidInput, key)
	}
	return out, nil
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for another attempt after backoff
func (t *Task) Retry(err string, backoff time.Duration) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err
	t.ScheduledFor = now.Add(backoff)
}
