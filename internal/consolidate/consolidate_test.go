package consolidate

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landseer/landseer/internal/lexicon"
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

func seedFetched(t *testing.T, s *store.Store, landID int64, url, readable string, relevance int) *store.Expression {
	t.Helper()
	ctx := context.Background()
	expr, err := s.EnsureExpression(ctx, landID, url, 0)
	require.NoError(t, err)
	now := time.Now().UTC()
	expr.FetchedAt = &now
	expr.Readable = &readable
	expr.Relevance = &relevance
	require.NoError(t, s.SaveExpression(ctx, expr))
	return expr
}

func TestParseReadable_MarkdownAndHTML(t *testing.T) {
	readable := `Intro [one](https://b.example/one) text
![shot](https://cdn.example/shot.png)
<p><a href="/two">two</a> <img src="https://cdn.example/inline.jpg"></p>
[one again](https://b.example/one)`

	links, media := parseReadable("https://a.example/page", readable)

	assert.Equal(t, []string{"https://b.example/one", "https://a.example/two"}, links)

	urls := make([]string, len(media))
	for i, m := range media {
		urls[i] = m.URL
	}
	assert.Contains(t, urls, "https://cdn.example/shot.png")
	assert.Contains(t, urls, "https://cdn.example/inline.jpg")
}

func TestRun_RebuildsGraphFromReadable(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	land, err := s.CreateLand(ctx, "demo", "", []string{"en"})
	require.NoError(t, err)

	readable := "data study " + strings.Repeat("filler ", 20) +
		"[ref](https://b.example/ref) ![img](https://cdn.example/i.png)"
	expr := seedFetched(t, s, land.ID, "https://a.example/page", readable, 0)

	// Pre-existing stale rows that the pass must wipe.
	require.NoError(t, s.Link(ctx, expr, "https://stale.example/old"))
	require.NoError(t, s.RecordMedia(ctx, expr, "https://stale.example/old.png", "img"))

	c := New(s, lexicon.New([]string{"data"}, "en"), 2)
	stats, err := c.Run(ctx, land, Options{})
	require.NoError(t, err)
	// The stale child is unfetched, so only the seeded page qualifies.
	assert.Equal(t, 1, stats.Processed)

	got, err := s.GetExpression(ctx, expr.ID)
	require.NoError(t, err)
	assert.Positive(t, got.RelevanceValue())
	assert.NotNil(t, got.ApprovedAt)

	links, err := s.LinksFrom(ctx, expr.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)
	target, err := s.GetExpression(ctx, links[0].TargetID)
	require.NoError(t, err)
	assert.Equal(t, "https://b.example/ref", target.URL)
	assert.Equal(t, 1, target.Depth)

	media, err := s.MediaOf(ctx, expr.ID)
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "https://cdn.example/i.png", media[0].URL)
}

func TestRun_SweepsApproval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	land, err := s.CreateLand(ctx, "demo", "", []string{"en"})
	require.NoError(t, err)

	// Approved earlier but its readable no longer scores.
	expr := seedFetched(t, s, land.ID, "https://a.example/stale", "nothing to see here at all", 5)
	now := time.Now().UTC()
	expr.ApprovedAt = &now
	require.NoError(t, s.SaveExpression(ctx, expr))

	c := New(s, lexicon.New([]string{"data"}, "en"), 1)
	_, err = c.Run(ctx, land, Options{})
	require.NoError(t, err)

	got, err := s.GetExpression(ctx, expr.ID)
	require.NoError(t, err)
	assert.Zero(t, got.RelevanceValue())
	assert.Nil(t, got.ApprovedAt)
}

func TestRun_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	land, err := s.CreateLand(ctx, "demo", "", []string{"en"})
	require.NoError(t, err)
	seedFetched(t, s, land.ID, "https://a.example/low", "data text", 1)
	seedFetched(t, s, land.ID, "https://a.example/high", "data text", 9)

	c := New(s, lexicon.New([]string{"data"}, "en"), 1)

	minRel := 5
	stats, err := c.Run(ctx, land, Options{MinRelevance: &minRel})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)

	depth := 3
	stats, err = c.Run(ctx, land, Options{Depth: &depth})
	require.NoError(t, err)
	assert.Zero(t, stats.Processed)
}
