package serp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landseer/landseer/internal/config"
	"github.com/landseer/landseer/internal/store"
	"github.com/landseer/landseer/internal/urlnorm"
)

func TestParseResultDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"iso", "2023-04-05T06:07:08Z", true},
		{"us_style", "Mar 5, 2023", true},
		{"plain", "2023-04-05", true},
		{"relative_days", "2 days ago", true},
		{"relative_hours", "3 hours ago", true},
		{"empty", "", false},
		{"noise", "sometime soon maybe", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseResultDate(tt.in)
			if tt.ok && got == nil {
				t.Errorf("ParseResultDate(%q) = nil, want a date", tt.in)
			}
			if !tt.ok && got != nil {
				t.Errorf("ParseResultDate(%q) = %v, want nil", tt.in, got)
			}
		})
	}
}

func TestParseResultDate_RelativeIsRecent(t *testing.T) {
	got := ParseResultDate("2 days ago")
	require.NotNil(t, got)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, -2), *got, 24*time.Hour)
}

func TestSearch(t *testing.T) {
	var starts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		starts = append(starts, r.URL.Query().Get("start"))
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		if r.URL.Query().Get("start") == "" {
			w.Write([]byte(`{"organic_results":[
				{"position":1,"title":"First","link":"https://a.example/1","date":"Mar 5, 2023"},
				{"position":2,"title":"Second","link":"https://a.example/2"}]}`))
			return
		}
		w.Write([]byte(`{"organic_results":[]}`))
	}))
	defer server.Close()

	c, err := NewClient(config.SerpConfig{Provider: "serpapi", APIKey: "key", BaseURL: server.URL}, time.Second)
	require.NoError(t, err)

	results, err := c.Search(context.Background(), "research data", 3)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://a.example/1", results[0].Link)
	// Pagination stops on the first empty page.
	assert.Equal(t, []string{"", "10"}, starts)
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(config.SerpConfig{Provider: "serpapi"}, time.Second)
	assert.Error(t, err)
}

func TestIngest(t *testing.T) {
	heur, err := urlnorm.CompileHeuristics(nil)
	require.NoError(t, err)
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"), heur)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	defer s.Close()

	ctx := context.Background()
	land, err := s.CreateLand(ctx, "demo", "", nil)
	require.NoError(t, err)

	results := []Result{
		{Position: 1, Title: "First", Link: "https://a.example/1", Date: "2023-04-05"},
		{Position: 2, Title: "Skipped", Link: "mailto:x@example.com"},
		{Position: 3, Title: "Plain", Link: "https://a.example/2"},
	}

	created, err := Ingest(ctx, s, land.ID, results)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	candidates, err := s.CrawlCandidates(ctx, land.ID, "", nil)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, 0, candidates[0].Depth)
	require.NotNil(t, candidates[0].Title)
	assert.Equal(t, "First", *candidates[0].Title)
	require.NotNil(t, candidates[0].PublishedAt)
	assert.Equal(t, 2023, candidates[0].PublishedAt.Year())

	// Re-ingesting does not duplicate and keeps the stored title.
	created, err = Ingest(ctx, s, land.ID, results[:1])
	require.NoError(t, err)
	assert.Zero(t, created)
}
