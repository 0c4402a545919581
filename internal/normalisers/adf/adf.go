// Package adf extracts plain text from Atlassian Document Format trees, the
// rich-text JSON used by Jira descriptions and comments.
package adf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Node is one node of an ADF tree.
type Node struct {
	Type    string         `json:"type"`
	Text    string         `json:"text,omitempty"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
}

// blockTypes end with a newline so paragraphs and list items stay on
// separate lines.
var blockTypes = map[string]bool{
	"paragraph":   true,
	"heading":     true,
	"bulletList":  true,
	"orderedList": true,
	"listItem":    true,
	"blockquote":  true,
	"codeBlock":   true,
	"tableRow":    true,
	"panel":       true,
}

// cellTypes are separated from the previous cell of their row by a space.
var cellTypes = map[string]bool{
	"tableCell":   true,
	"tableHeader": true,
}

// Text walks the tree depth first and returns its text, trimmed.
func Text(n *Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	walk(&sb, n)
	return strings.TrimSpace(sb.String())
}

func walk(sb *strings.Builder, n *Node) {
	switch n.Type {
	case "text":
		sb.WriteString(n.Text)
		return
	case "hardBreak":
		sb.WriteByte('\n')
		return
	case "mention", "emoji", "status", "date":
		if s, ok := n.Attrs["text"].(string); ok {
			sb.WriteString(s)
		}
		return
	case "inlineCard":
		if s, ok := n.Attrs["url"].(string); ok {
			sb.WriteString(s)
		}
		return
	}

	for i := range n.Content {
		child := &n.Content[i]
		if cellTypes[child.Type] && i > 0 && !endsWithSpace(sb) {
			sb.WriteByte(' ')
		}
		walk(sb, child)
		if blockTypes[child.Type] {
			sb.WriteByte('\n')
		}
	}
}

func endsWithSpace(sb *strings.Builder) bool {
	s := sb.String()
	if s == "" {
		return false
	}
	switch s[len(s)-1] {
	case ' ', '\n', '\t':
		return true
	}
	return false
}

// FieldText returns the text of a field that may hold an ADF document, a
// plain string or null. Null and absent fields give "". Any other shape, or
// a malformed tree, gives "" and an error wrapping domain.ErrNormalization,
// so callers can log it and keep the rest of the document.
func FieldText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", fmt.Errorf("%w: string field: %w", domain.ErrNormalization, err)
		}
		return strings.TrimSpace(s), nil
	case '{':
		var n Node
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", fmt.Errorf("%w: rich text field: %w", domain.ErrNormalization, err)
		}
		return Text(&n), nil
	default:
		return "", fmt.Errorf("%w: unexpected field shape %q", domain.ErrNormalization, string(trimmed[:1]))
	}
}
