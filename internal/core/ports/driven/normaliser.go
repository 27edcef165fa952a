package driven

// Normaliser reduces formatted text to the plain text stored in plain_text fields.
type Normaliser interface {
	// Normalise transforms raw content into plain text.
	Normalise(content string, mimeType string) string

	// SupportedTypes returns MIME types this normaliser handles.
	// Can include wildcards like "text/*".
	SupportedTypes() []string

	// Priority returns the normaliser priority (higher = more specific).
	Priority() int
}

// NormaliserRegistry selects the highest priority normaliser for a MIME type.
type NormaliserRegistry interface {
	Get(mimeType string) Normaliser
	Register(normaliser Normaliser)
	List() []string
}
