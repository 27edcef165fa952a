package normalisers

import (
	"html"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/discussion-search/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.NormaliserRegistry = (*Registry)(nil)

// MIME types of the formatted text the discussion platform stores
const (
	MIMEPlain    = "text/plain"
	MIMEMarkdown = "text/markdown"
	MIMEHTML     = "text/html"
)

// Registry implements NormaliserRegistry with priority-based selection.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
}

// NewRegistry creates an empty normaliser registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register registers a normaliser.
func (r *Registry) Register(normaliser driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, normaliser)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// Get returns the highest priority normaliser supporting mimeType, or nil.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.normalisers {
		if matchesMIMEType(n.SupportedTypes(), mimeType) {
			return n
		}
	}
	return nil
}

// List returns all registered MIME types.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	typeSet := make(map[string]struct{})
	for _, n := range r.normalisers {
		for _, t := range n.SupportedTypes() {
			typeSet[t] = struct{}{}
		}
	}

	types := make([]string, 0, len(typeSet))
	for t := range typeSet {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// PlainText normalises content with the best normaliser for mimeType.
// Content is returned unchanged when nothing matches.
func (r *Registry) PlainText(content, mimeType string) string {
	if n := r.Get(mimeType); n != nil {
		return n.Normalise(content, mimeType)
	}
	return content
}

// matchesMIMEType checks if any of the supported types match the given MIME type.
// Supports wildcards ("text/*", "*/*") and ignores parameters such as charset.
func matchesMIMEType(supportedTypes []string, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	for _, supported := range supportedTypes {
		supported = strings.ToLower(strings.TrimSpace(supported))
		switch {
		case supported == mimeType, supported == "*/*":
			return true
		case strings.HasSuffix(supported, "/*") && strings.HasPrefix(mimeType, supported[:len(supported)-1]):
			return true
		}
	}
	return false
}

// DefaultRegistry creates a registry with the plain, markdown and html normalisers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&PlaintextNormaliser{})
	r.Register(&MarkdownNormaliser{})
	r.Register(&HTMLNormaliser{})
	return r
}

// PlaintextNormaliser handles plain text content and is the fallback for any type.
type PlaintextNormaliser struct{}

func (n *PlaintextNormaliser) Normalise(content string, mimeType string) string {
	return collapseWhitespace(normaliseNewlines(content))
}

func (n *PlaintextNormaliser) SupportedTypes() []string {
	return []string{MIMEPlain, "*/*"}
}

func (n *PlaintextNormaliser) Priority() int {
	return 1
}

var (
	mdImage      = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	mdHeading    = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+`)
	mdQuote      = regexp.MustCompile(`(?m)^\s{0,3}>\s?`)
	mdListMarker = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+\.)\s+`)
	mdEmphasis   = regexp.MustCompile(`(\*{1,3}|_{1,3}|~~)([^*_~\n]+)(\*{1,3}|_{1,3}|~~)`)
	mdCodeFence  = regexp.MustCompile("(?m)^```.*$")
	mdInlineCode = regexp.MustCompile("`([^`]*)`")
	mdRule       = regexp.MustCompile(`(?m)^\s*(?:-{3,}|\*{3,}|_{3,})\s*$`)
)

// MarkdownNormaliser strips markdown syntax from post and comment bodies,
// keeping link and image text.
type MarkdownNormaliser struct{}

func (n *MarkdownNormaliser) Normalise(content string, mimeType string) string {
	content = normaliseNewlines(content)
	content = mdCodeFence.ReplaceAllString(content, "")
	content = mdRule.ReplaceAllString(content, "")
	content = mdImage.ReplaceAllString(content, "$1")
	content = mdLink.ReplaceAllString(content, "$1")
	content = mdHeading.ReplaceAllString(content, "")
	content = mdQuote.ReplaceAllString(content, "")
	content = mdListMarker.ReplaceAllString(content, "")
	content = mdEmphasis.ReplaceAllString(content, "$2")
	content = mdInlineCode.ReplaceAllString(content, "$1")
	return collapseWhitespace(html.UnescapeString(content))
}

func (n *MarkdownNormaliser) SupportedTypes() []string {
	return []string{MIMEMarkdown, "text/x-markdown"}
}

func (n *MarkdownNormaliser) Priority() int {
	return 50
}

// HTMLNormaliser extracts the text of article posts.
type HTMLNormaliser struct{}

func (n *HTMLNormaliser) Normalise(content string, mimeType string) string {
	content = removeHTMLBlocks(content, "script")
	content = removeHTMLBlocks(content, "style")
	content = stripHTMLTags(content)
	content = html.UnescapeString(content)
	return collapseWhitespace(normaliseNewlines(content))
}

func (n *HTMLNormaliser) SupportedTypes() []string {
	return []string{MIMEHTML, "application/xhtml+xml"}
}

func (n *HTMLNormaliser) Priority() int {
	return 50
}

func normaliseNewlines(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	return strings.ReplaceAll(content, "\r", "\n")
}

// collapseWhitespace squeezes runs of spaces and keeps at most one blank line.
func collapseWhitespace(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func removeHTMLBlocks(content, tagName string) string {
	startTag := "<" + tagName
	endTag := "</" + tagName + ">"

	for {
		lower := strings.ToLower(content)
		start := strings.Index(lower, startTag)
		if start == -1 {
			return content
		}
		end := strings.Index(lower[start:], endTag)
		if end == -1 {
			return content
		}
		content = content[:start] + content[start+end+len(endTag):]
	}
}

func stripHTMLTags(content string) string {
	var b strings.Builder
	inTag := false

	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
