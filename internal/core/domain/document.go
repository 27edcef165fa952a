package domain

// Bulk metadata keys carried inside a serialized document. They are stripped
// from the source before the document is written.
const (
	DocKeyID      = "_id"
	DocKeyOpType  = "_op_type"
	DocKeyRouting = "_routing"
)

// OpTypeDelete marks a bulk document as a deletion
const OpTypeDelete = "delete"

// Document is a serialized search document: field name to value, matching
// the mapping of its object type. Bulk documents also carry "_id" and may
// carry "_op_type" and "_routing".
type Document map[string]any

// ID returns the document id, or "" when the document has none.
func (d Document) ID() string {
	id, _ := d[DocKeyID].(string)
	return id
}

// OpType returns the bulk operation for the document ("index" by default).
func (d Document) OpType() string {
	if op, ok := d[DocKeyOpType].(string); ok && op != "" {
		return op
	}
	return "index"
}

// Routing returns the routing key for the document, if any.
func (d Document) Routing() string {
	r, _ := d[DocKeyRouting].(string)
	return r
}

// Source returns a copy of the document without bulk metadata keys.
func (d Document) Source() map[string]any {
	src := make(map[string]any, len(d))
	for k, v := range d {
		switch k {
		case DocKeyID, DocKeyOpType, DocKeyRouting:
			continue
		}
		src[k] = v
	}
	return src
}

// BulkAction returns the action line that precedes the document in a bulk request.
func (d Document) BulkAction() map[string]any {
	meta := map[string]any{"_id": d.ID()}
	if routing := d.Routing(); routing != "" {
		meta["routing"] = routing
	}
	return map[string]any{d.OpType(): meta}
}

// WithID returns a bulk document: the fields of d plus "_id".
func (d Document) WithID(id string) Document {
	out := make(Document, len(d)+1)
	for k, v := range d {
		out[k] = v
	}
	out[DocKeyID] = id
	return out
}

// DeleteDocument builds a bulk deletion for id.
func DeleteDocument(id string) Document {
	return Document{DocKeyID: id, DocKeyOpType: OpTypeDelete}
}

// BulkItemError is one failed item of a bulk request
type BulkItemError struct {
	Op     string `json:"op"`
	ID     string `json:"id"`
	Index  string `json:"index"`
	Status int    `json:"status"`
	Result string `json:"result,omitempty"`
	Type   string `json:"type,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IsNotFound reports whether the item failed because the document was already absent.
func (e BulkItemError) IsNotFound() bool {
	return e.Result == "not_found" || (e.Op == OpTypeDelete && e.Status == 404)
}

// AliasAction is one add/remove action of an atomic alias update
type AliasAction struct {
	Remove bool   `json:"-"`
	Index  string `json:"index"`
	Alias  string `json:"alias"`
}

// AddAlias builds an add action.
func AddAlias(index, alias string) AliasAction {
	return AliasAction{Index: index, Alias: alias}
}

// RemoveAlias builds a remove action.
func RemoveAlias(index, alias string) AliasAction {
	return AliasAction{Remove: true, Index: index, Alias: alias}
}

// UpdateByQueryResult summarizes an update_by_query call
type UpdateByQueryResult struct {
	Total            int `json:"total"`
	Updated          int `json:"updated"`
	VersionConflicts int `json:"version_conflicts"`
	Failures         int `json:"failures"`
}
