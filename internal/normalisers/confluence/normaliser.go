// Package confluence normalises Confluence pages stored in the XHTML storage
// format. Footer comments are appended after the page body.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-sync/internal/normalisers/html"
)

// MIMETypeConfluencePage is the custom MIME type for Confluence pages.
const MIMETypeConfluencePage = "application/vnd.atlassian.confluence.page+json"

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Confluence page documents.
type Normaliser struct{}

// New creates a new Confluence page normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMETypeConfluencePage}
}

type storageBody struct {
	Storage struct {
		Value string `json:"value"`
	} `json:"storage"`
}

type page struct {
	ID       string      `json:"id"`
	Title    string      `json:"title"`
	Body     storageBody `json:"body"`
	Children struct {
		Comment struct {
			Results []struct {
				ID   string      `json:"id"`
				Body storageBody `json:"body"`
			} `json:"results"`
		} `json:"comment"`
	} `json:"children"`
}

// Normalise converts a Confluence page to a normalised document.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var p page
	if err := json.Unmarshal(raw.Content, &p); err != nil {
		return nil, fmt.Errorf("%w: parse page %s: %v", domain.ErrNormalization, raw.SourceID, err)
	}

	title := strings.TrimSpace(p.Title)
	parts := make([]string, 0, len(p.Children.Comment.Results)+2)
	if title != "" {
		parts = append(parts, title)
	}
	if body := html.Strip(p.Body.Storage.Value); body != "" {
		parts = append(parts, body)
	}
	for _, c := range p.Children.Comment.Results {
		if text := html.Strip(c.Body.Storage.Value); text != "" {
			parts = append(parts, text)
		}
	}

	md := make(map[string]any, len(raw.Metadata)+1)
	for k, v := range raw.Metadata {
		md[k] = v
	}
	md["format"] = "confluence_page"

	return &domain.Document{
		ID:         raw.SourceID,
		SourceType: raw.SourceType,
		URI:        raw.URI,
		Title:      title,
		FullText:   strings.Join(parts, "\n\n"),
		Metadata:   md,
	}, nil
}
