package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/landseer/landseer/internal/urlnorm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	heur, err := urlnorm.CompileHeuristics(nil)
	require.NoError(t, err)

	s, err := Open(filepath.Join(t.TempDir(), "landseer.db"), heur)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestLand(t *testing.T, s *Store) *Land {
	t.Helper()
	land, err := s.CreateLand(context.Background(), "demo", "a demo land", []string{"fr", "en"})
	require.NoError(t, err)
	return land
}

func TestMigrate_Idempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Migrate())
}

func TestLand_CreateGetList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	assert.Equal(t, "fr", land.PrimaryLang())
	assert.Equal(t, []string{"fr", "en"}, land.Languages())

	got, err := s.GetLand(ctx, "demo")
	require.NoError(t, err)
	assert.Equal(t, land.ID, got.ID)

	_, err = s.GetLand(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	lands, err := s.ListLands(ctx, "")
	require.NoError(t, err)
	require.Len(t, lands, 1)
	assert.Equal(t, 0, lands[0].Expressions)
}

func TestAddTerms_And_Lemmas(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	words := []Word{{Term: "web", Lemma: "web"}, {Term: "donnée", Lemma: "donné"}}
	require.NoError(t, s.AddTerms(ctx, land.ID, words))
	// Re-adding the same terms must not duplicate.
	require.NoError(t, s.AddTerms(ctx, land.ID, words))

	lemmas, err := s.LandLemmas(ctx, land.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"donné", "web"}, lemmas)
}

func TestEnsureExpression_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	e1, err := s.EnsureExpression(ctx, land.ID, "https://a.example/x#s1", 0)
	require.NoError(t, err)
	require.NotNil(t, e1)
	assert.Equal(t, "https://a.example/x", e1.URL)
	assert.Equal(t, 0, e1.Depth)

	// Same URL with a different anchor and a different depth: same row,
	// depth unchanged.
	e2, err := s.EnsureExpression(ctx, land.ID, "https://a.example/x#s2", 5)
	require.NoError(t, err)
	require.NotNil(t, e2)
	assert.Equal(t, e1.ID, e2.ID)
	assert.Equal(t, 0, e2.Depth)

	// Uncrawlable input is silently rejected.
	e3, err := s.EnsureExpression(ctx, land.ID, "mailto:x@example.com", 0)
	require.NoError(t, err)
	assert.Nil(t, e3)

	e4, err := s.EnsureExpression(ctx, land.ID, "https://a.example/pic.jpg", 0)
	require.NoError(t, err)
	assert.Nil(t, e4)
}

func TestEnsureExpression_SharesDomain(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	e1, err := s.EnsureExpression(ctx, land.ID, "https://a.example/1", 0)
	require.NoError(t, err)
	e2, err := s.EnsureExpression(ctx, land.ID, "https://a.example/2", 0)
	require.NoError(t, err)
	assert.Equal(t, e1.DomainID, e2.DomainID)
}

func TestLink(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	source, err := s.EnsureExpression(ctx, land.ID, "https://a.example/1", 0)
	require.NoError(t, err)

	require.NoError(t, s.Link(ctx, source, "https://b.example/3"))
	// Duplicate edge is swallowed.
	require.NoError(t, s.Link(ctx, source, "https://b.example/3"))
	// Self-link is a no-op.
	require.NoError(t, s.Link(ctx, source, source.URL))

	links, err := s.LinksFrom(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, links, 1)

	target, err := s.GetExpression(ctx, links[0].TargetID)
	require.NoError(t, err)
	assert.Equal(t, 1, target.Depth)
	assert.Equal(t, land.ID, target.LandID)
	assert.Nil(t, target.FetchedAt)
}

func TestReplaceLinks_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	source, err := s.EnsureExpression(ctx, land.ID, "https://a.example/1", 0)
	require.NoError(t, err)

	urls := []string{"https://b.example/1", "https://b.example/2", "https://b.example/1"}
	require.NoError(t, s.ReplaceLinks(ctx, source, urls))
	first, err := s.LinksFrom(ctx, source.ID)
	require.NoError(t, err)
	require.Len(t, first, 2)

	require.NoError(t, s.ReplaceLinks(ctx, source, urls))
	second, err := s.LinksFrom(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReplaceMedia(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	expr, err := s.EnsureExpression(ctx, land.ID, "https://a.example/page", 0)
	require.NoError(t, err)

	require.NoError(t, s.ReplaceMedia(ctx, expr, []MediaItem{
		{URL: "/IMG/Pic.PNG", Kind: "img"},
		{URL: "https://cdn.example/v.mp4", Kind: "video"},
	}))

	media, err := s.MediaOf(ctx, expr.ID)
	require.NoError(t, err)
	require.Len(t, media, 2)
	assert.Equal(t, "https://a.example/img/pic.png", media[0].URL)

	// Replacement wipes stale rows.
	require.NoError(t, s.ReplaceMedia(ctx, expr, []MediaItem{
		{URL: "https://cdn.example/only.png", Kind: "img"},
	}))
	media, err = s.MediaOf(ctx, expr.ID)
	require.NoError(t, err)
	require.Len(t, media, 1)
	assert.Equal(t, "https://cdn.example/only.png", media[0].URL)
}

func TestRecordMedia_Dedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	expr, err := s.EnsureExpression(ctx, land.ID, "https://a.example/page", 0)
	require.NoError(t, err)

	require.NoError(t, s.RecordMedia(ctx, expr, "/p.png", "img"))
	require.NoError(t, s.RecordMedia(ctx, expr, "/P.PNG", "img"))

	media, err := s.MediaOf(ctx, expr.ID)
	require.NoError(t, err)
	assert.Len(t, media, 1)
}

func TestCrawlCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	e1, err := s.EnsureExpression(ctx, land.ID, "https://a.example/1", 0)
	require.NoError(t, err)
	_, err = s.EnsureExpression(ctx, land.ID, "https://a.example/2", 1)
	require.NoError(t, err)

	all, err := s.CrawlCandidates(ctx, land.ID, "", nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 0, all[0].Depth)

	// Mark e1 fetched with a 404; default selection skips it.
	now := time.Now().UTC()
	status := "404"
	e1.FetchedAt = &now
	e1.HTTPStatus = &status
	require.NoError(t, s.SaveExpression(ctx, e1))

	unfetched, err := s.CrawlCandidates(ctx, land.ID, "", nil)
	require.NoError(t, err)
	require.Len(t, unfetched, 1)
	assert.Equal(t, 1, unfetched[0].Depth)

	// Re-crawl mode selects by status instead.
	recrawl, err := s.CrawlCandidates(ctx, land.ID, "404", nil)
	require.NoError(t, err)
	require.Len(t, recrawl, 1)
	assert.Equal(t, e1.ID, recrawl[0].ID)

	depth := 1
	atDepth, err := s.CrawlCandidates(ctx, land.ID, "", &depth)
	require.NoError(t, err)
	require.Len(t, atDepth, 1)
}

func TestEnforceApproval(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	now := time.Now().UTC()
	rel := 5

	// Fetched and relevant, but not yet approved.
	relevant, err := s.EnsureExpression(ctx, land.ID, "https://a.example/rel", 0)
	require.NoError(t, err)
	relevant.FetchedAt = &now
	relevant.Relevance = &rel
	require.NoError(t, s.SaveExpression(ctx, relevant))

	// Approved earlier, relevance has dropped to zero since.
	zero := 0
	stale, err := s.EnsureExpression(ctx, land.ID, "https://a.example/stale", 0)
	require.NoError(t, err)
	stale.FetchedAt = &now
	stale.Relevance = &zero
	stale.ApprovedAt = &now
	require.NoError(t, s.SaveExpression(ctx, stale))

	require.NoError(t, s.EnforceApproval(ctx, land.ID))

	got, err := s.GetExpression(ctx, relevant.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.ApprovedAt)

	got, err = s.GetExpression(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ApprovedAt)
}

func TestDeleteLowRelevance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	now := time.Now().UTC()
	for i, rel := range []int{0, 3, 10} {
		e, err := s.EnsureExpression(ctx, land.ID,
			"https://a.example/"+string(rune('a'+i)), 0)
		require.NoError(t, err)
		r := rel
		e.FetchedAt = &now
		e.Relevance = &r
		require.NoError(t, s.SaveExpression(ctx, e))
	}

	n, err := s.DeleteLowRelevance(ctx, land.ID, 5)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeleteLand_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	src, err := s.EnsureExpression(ctx, land.ID, "https://a.example/1", 0)
	require.NoError(t, err)
	require.NoError(t, s.Link(ctx, src, "https://a.example/2"))
	require.NoError(t, s.RecordMedia(ctx, src, "/p.png", "img"))

	require.NoError(t, s.DeleteLand(ctx, land.ID))

	_, err = s.GetExpression(ctx, src.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReassignDomains(t *testing.T) {
	heur, err := urlnorm.CompileHeuristics(map[string]string{
		"twitter.com": `https?://twitter\.com/([^/?#]+)`,
	})
	require.NoError(t, err)

	// Seed with plain-host heuristics, then reassign under the
	// twitter-collapsing table.
	plain, err := urlnorm.CompileHeuristics(nil)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "landseer.db")
	s, err := Open(path, plain)
	require.NoError(t, err)
	require.NoError(t, s.Migrate())

	ctx := context.Background()
	land, err := s.CreateLand(ctx, "demo", "", nil)
	require.NoError(t, err)

	expr, err := s.EnsureExpression(ctx, land.ID, "https://twitter.com/someone/status/1", 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, heur)
	require.NoError(t, err)
	defer s.Close()

	moved, err := s.ReassignDomains(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, moved)

	got, err := s.GetExpression(ctx, expr.ID)
	require.NoError(t, err)
	assert.NotEqual(t, expr.DomainID, got.DomainID)
}

func TestDomainsToFetch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	land := newTestLand(t, s)

	_, err := s.EnsureExpression(ctx, land.ID, "https://a.example/1", 0)
	require.NoError(t, err)
	_, err = s.EnsureExpression(ctx, land.ID, "https://b.example/1", 0)
	require.NoError(t, err)

	domains, err := s.DomainsToFetch(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, domains, 2)

	// Harvest one; it drops out of the default selection.
	now := time.Now().UTC()
	status := "200"
	domains[0].FetchedAt = &now
	domains[0].HTTPStatus = &status
	require.NoError(t, s.SaveDomain(ctx, &domains[0]))

	remaining, err := s.DomainsToFetch(ctx, 0, "")
	require.NoError(t, err)
	assert.Len(t, remaining, 1)

	harvested, err := s.DomainsToFetch(ctx, 0, "200")
	require.NoError(t, err)
	assert.Len(t, harvested, 1)
}
