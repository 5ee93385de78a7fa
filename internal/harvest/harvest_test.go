package harvest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landseer/landseer/internal/fetch"
	"github.com/landseer/landseer/internal/store"
	"github.com/landseer/landseer/internal/urlnorm"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	heur, err := urlnorm.CompileHeuristics(nil)
	require.NoError(t, err)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), heur)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const articleHTML = `<!DOCTYPE html>
<html><head>
<title>Example Research Portal</title>
<meta name="description" content="A portal about research data.">
<meta name="keywords" content="research,data">
</head><body><article><h1>Example Research Portal</h1>%s</article></body></html>`

func articlePage() string {
	return fmt.Sprintf(articleHTML,
		"<p>"+strings.Repeat("Plenty of article text to satisfy content thresholds. ", 30)+"</p>")
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html><body>hello</body></html>"))
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte("{}"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	h := New(newTestStore(t), nil, "test-agent", time.Second, 1)
	ctx := context.Background()

	html, status := h.get(ctx, server.URL+"/html")
	assert.Equal(t, fetch.FromCode(200), status)
	assert.Contains(t, html, "hello")

	html, status = h.get(ctx, server.URL+"/json")
	assert.Equal(t, fetch.StatusReqNoHTML, status)
	assert.Empty(t, html)

	html, status = h.get(ctx, server.URL+"/missing")
	assert.Equal(t, fetch.FromCode(404), status)
	assert.Empty(t, html)

	_, status = h.get(ctx, "http://127.0.0.1:1/dead")
	assert.Equal(t, fetch.StatusNetworkError, status)
}

func TestApplyMetadata(t *testing.T) {
	dom := &store.Domain{Name: "example.org"}
	applyMetadata(dom, articlePage())

	require.NotNil(t, dom.Title)
	assert.Equal(t, "Example Research Portal", *dom.Title)
	require.NotNil(t, dom.Description)
	assert.Equal(t, "A portal about research data.", *dom.Description)
	require.NotNil(t, dom.Keywords)
	assert.Equal(t, "research,data", *dom.Keywords)
}

func TestCleanStage_ReturnsRawDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage()))
	}))
	defer server.Close()
	host := strings.TrimPrefix(server.URL, "http://")

	h := New(newTestStore(t), nil, "test-agent", 2*time.Second, 1)
	html, status := h.cleanStage(context.Background(), host)

	assert.Equal(t, fetch.FromCode(200), status)
	// The head section must survive the readability check so the
	// metadata pass can read it.
	assert.Contains(t, html, "<title>Example Research Portal</title>")
	assert.Contains(t, html, `name="description"`)
}

func TestCleanStage_RejectsThinPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body><p>tiny</p></body></html>"))
	}))
	defer server.Close()
	host := strings.TrimPrefix(server.URL, "http://")

	h := New(newTestStore(t), nil, "test-agent", 2*time.Second, 1)
	html, status := h.cleanStage(context.Background(), host)

	assert.Empty(t, html)
	assert.Equal(t, fetch.StatusErrTrafi, status)
}

func TestRun_HarvestsDomain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articlePage()))
	}))
	defer server.Close()
	host := strings.TrimPrefix(server.URL, "http://")

	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureDomain(ctx, host)
	require.NoError(t, err)

	h := New(s, nil, "test-agent", 2*time.Second, 2)
	stats, err := h.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 1, Harvested: 1}, stats)

	domains, err := s.DomainsToFetch(ctx, 0, "200")
	require.NoError(t, err)
	require.Len(t, domains, 1)
	require.NotNil(t, domains[0].Title)
	assert.Equal(t, "Example Research Portal", *domains[0].Title)
	require.NotNil(t, domains[0].Description)
	assert.Equal(t, "A portal about research data.", *domains[0].Description)
	require.NotNil(t, domains[0].Keywords)
	assert.Equal(t, "research,data", *domains[0].Keywords)
	require.NotNil(t, domains[0].FetchedAt)

	// Harvested domains leave the default selection.
	stats, err = h.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, stats.Attempted)
}

func TestRun_DeadDomainRecordsSentinel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.EnsureDomain(ctx, "127.0.0.1:1")
	require.NoError(t, err)

	h := New(s, nil, "test-agent", time.Second, 1)
	stats, err := h.Run(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, Stats{Attempted: 1, Harvested: 0}, stats)
	assert.Equal(t, 1, stats.Errors())

	domains, err := s.DomainsToFetch(ctx, 0, string(fetch.StatusNetworkError))
	require.NoError(t, err)
	require.Len(t, domains, 1)
	require.NotNil(t, domains[0].FetchedAt)
}
