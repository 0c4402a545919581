package confluence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-sync/internal/connectors/atlassian"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

func page(id, title, creator string, labels ...string) map[string]any {
	labelResults := make([]map[string]any, 0, len(labels))
	for _, l := range labels {
		labelResults = append(labelResults, map[string]any{"name": l})
	}
	return map[string]any{
		"id":      id,
		"type":    "page",
		"status":  "current",
		"title":   title,
		"space":   map[string]any{"key": "ENG"},
		"version": map[string]any{"number": 4, "when": "2024-03-02T10:00:00.000Z"},
		"history": map[string]any{
			"createdDate": "2024-03-01T10:00:00.000Z",
			"createdBy":   map[string]any{"email": creator, "displayName": "Grace", "accountType": "atlassian"},
		},
		"metadata": map[string]any{"labels": map[string]any{"results": labelResults}},
		"body":     map[string]any{"storage": map[string]any{"value": "<p>Body of " + title + "</p>"}},
		"_links":   map[string]any{"webui": "/spaces/ENG/pages/" + id},
	}
}

type serverState struct {
	calls   atomic.Int32
	expands []string
}

func confluenceServer(t *testing.T, pages []map[string]any, failAt int) (*httptest.Server, *serverState) {
	t.Helper()
	state := &serverState{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state.calls.Add(1)
		if r.URL.Path != contentPath {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		state.expands = append(state.expands, q.Get("expand"))
		start, _ := strconv.Atoi(q.Get("start"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		if start == failAt {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		end := min(start+limit, len(pages))
		results := []map[string]any{}
		if start < len(pages) {
			results = pages[start:end]
		}
		links := map[string]any{}
		if end < len(pages) {
			links["next"] = "/rest/api/content?start=" + strconv.Itoa(end)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": results, "start": start, "limit": limit, "size": len(results), "_links": links,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, state
}

func source(baseURL string, extra map[string]string) domain.Source {
	settings := map[string]string{
		"base_url":  baseURL,
		"token":     "secret",
		"page_size": "2",
	}
	for k, v := range extra {
		settings[k] = v
	}
	return domain.Source{Name: "eng-wiki", Type: "confluence", Index: "eng", Settings: settings}
}

func collect(t *testing.T, src domain.Source) ([]domain.RawDocument, []error) {
	t.Helper()
	conn, err := Build(src, atlassian.WithRateLimit(1000, 100))
	require.NoError(t, err)
	defer conn.Close()

	docsCh, errsCh := conn.Fetch(context.Background())
	var docs []domain.RawDocument
	var errs []error
	for docsCh != nil || errsCh != nil {
		select {
		case d, ok := <-docsCh:
			if !ok {
				docsCh = nil
				continue
			}
			docs = append(docs, d)
		case e, ok := <-errsCh:
			if !ok {
				errsCh = nil
				continue
			}
			errs = append(errs, e)
		}
	}
	return docs, errs
}

func ids(docs []domain.RawDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.SourceID)
	}
	return out
}

func TestFetch_FiltersAndPaginates(t *testing.T) {
	pages := []map[string]any{
		page("1", "Release process", "grace@acme.io", "howto"),
		page("2", "Overview", "grace@acme.io"),
		page("3", "Project Plan Q3", "grace@acme.io"),
		page("4", "Generated index", "grace@acme.io", "Auto-Generated"),
		page("5", "Welcome", "confluence@atlassian.com"),
		page("6", "Notifications", "noreply@acme.io"),
		page("7", "Runbook", "alan@acme.io"),
	}
	srv, state := confluenceServer(t, pages, -1)

	docs, errs := collect(t, source(srv.URL, nil))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"1", "7"}, ids(docs))
	assert.Equal(t, int32(4), state.calls.Load())

	d := docs[0]
	assert.Equal(t, "confluence", d.SourceType)
	assert.Equal(t, MIMETypeConfluencePage, d.MIMEType)
	assert.Equal(t, srv.URL+"/wiki/spaces/ENG/pages/1", d.URI)
	assert.Equal(t, "Release process", d.Metadata["title"])
	assert.Equal(t, "1", d.Metadata["page_id"])
	assert.Equal(t, 4, d.Metadata["version"])
	assert.Equal(t, "Grace", d.Metadata["creator"])
	assert.Equal(t, []string{"howto"}, d.Metadata["labels"])
	assert.Equal(t, "ENG", d.Metadata["space"])
	assert.Equal(t, "confluence", d.Metadata["source"])
	assert.Equal(t, 2024, d.UpdatedAt.Year())
	assert.True(t, strings.HasSuffix(state.expands[0], commentExpand))
}

func TestFetch_CustomExclusions(t *testing.T) {
	pages := []map[string]any{
		page("1", "Overview", "grace@acme.io"),
		page("2", "Draft", "grace@acme.io"),
	}
	srv, state := confluenceServer(t, pages, -1)

	docs, errs := collect(t, source(srv.URL, map[string]string{
		"exclude_titles":   "draft",
		"include_comments": "false",
	}))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"1"}, ids(docs))
	assert.Equal(t, baseExpand, state.expands[0])
}

func TestFetch_PageFailureTruncates(t *testing.T) {
	pages := []map[string]any{
		page("1", "A", "a@acme.io"), page("2", "B", "b@acme.io"), page("3", "C", "c@acme.io"),
	}
	srv, _ := confluenceServer(t, pages, 2)

	docs, errs := collect(t, source(srv.URL, nil))
	assert.Equal(t, []string{"1", "2"}, ids(docs))
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrSourceFetch)
}

func TestFetch_MaxPages(t *testing.T) {
	pages := []map[string]any{
		page("1", "A", "a@acme.io"), page("2", "B", "b@acme.io"), page("3", "C", "c@acme.io"),
	}
	srv, _ := confluenceServer(t, pages, -1)

	docs, errs := collect(t, source(srv.URL, map[string]string{"max_pages": "1"}))
	assert.Len(t, docs, 2)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrSourceFetch)
}

func TestFetch_ServerCapsPageSize(t *testing.T) {
	pages := []map[string]any{
		page("1", "A", "a@acme.io"), page("2", "B", "b@acme.io"), page("3", "C", "c@acme.io"),
	}
	var starts []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		starts = append(starts, start)
		results := []map[string]any{}
		links := map[string]any{}
		if start < len(pages) {
			results = pages[start : start+1]
		}
		if start+1 < len(pages) {
			links["next"] = "/rest/api/content?start=" + strconv.Itoa(start+1)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": results, "start": start, "limit": 1, "size": len(results), "_links": links,
		})
	}))
	defer srv.Close()

	docs, errs := collect(t, source(srv.URL, nil))
	assert.Empty(t, errs)
	assert.Equal(t, []string{"1", "2", "3"}, ids(docs))
	assert.Equal(t, []int{0, 1, 2}, starts)
}

func TestFetch_SpaceKey(t *testing.T) {
	var gotSpace string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSpace = r.URL.Query().Get("spaceKey")
		_, _ = w.Write([]byte(`{"results": [], "size": 0}`))
	}))
	defer srv.Close()

	docs, errs := collect(t, source(srv.URL, map[string]string{"space_key": "OPS"}))
	assert.Empty(t, docs)
	assert.Empty(t, errs)
	assert.Equal(t, "OPS", gotSpace)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(source("https://acme.atlassian.net", nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultExcludeTitles, cfg.ExcludeTitles)
	assert.Equal(t, DefaultExcludeTitlePrefixes, cfg.ExcludeTitlePrefixes)
	assert.True(t, cfg.IncludeComments)

	cfg, err = ParseConfig(source("https://acme.atlassian.net", map[string]string{"exclude_labels": ""}))
	require.NoError(t, err)
	assert.Empty(t, cfg.ExcludeLabels)

	_, err = ParseConfig(source("https://acme.atlassian.net", map[string]string{"include_comments": "maybe"}))
	assert.ErrorIs(t, err, domain.ErrMisconfigured)

	_, err = ParseConfig(source("", nil))
	assert.ErrorIs(t, err, domain.ErrMisconfigured)
}

func TestType(t *testing.T) {
	ct := Type()
	assert.Equal(t, "confluence", ct.ID)

	src := source("https://acme.atlassian.net", nil)
	assert.NoError(t, src.Validate(&ct))
	delete(src.Settings, "token")
	assert.ErrorIs(t, src.Validate(&ct), domain.ErrMisconfigured)
}
