package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/landseer/landseer/internal/logger"
	"github.com/landseer/landseer/internal/urlnorm"
)

// MediaItem is a media reference ready for persistence.
type MediaItem struct {
	URL  string
	Kind string
}

// EnsureDomain upserts a domain row by host name.
func (s *Store) EnsureDomain(ctx context.Context, name string) (*Domain, error) {
	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO domains (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure domain %q: %w", name, err)
	}
	var d Domain
	if err := s.db.GetContext(ctx, &d, `SELECT * FROM domains WHERE name = ?`, name); err != nil {
		return nil, err
	}
	return &d, nil
}

// EnsureExpression creates the expression for (land, url) if missing and
// returns the stored row. The URL is anchor-stripped first; uncrawlable
// URLs yield (nil, nil). The stored depth of an existing expression is
// never changed by a re-discovery.
func (s *Store) EnsureExpression(ctx context.Context, landID int64, rawURL string, depth int) (*Expression, error) {
	u := urlnorm.RemoveAnchor(strings.TrimSpace(rawURL))
	if !urlnorm.IsCrawlable(u) {
		return nil, nil
	}
	host := s.heur.DomainOf(u)
	if host == "" {
		return nil, nil
	}

	dom, err := s.EnsureDomain(ctx, host)
	if err != nil {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO expressions (land_id, domain_id, url, depth, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		landID, dom.ID, u, depth, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("ensure expression %q: %w", u, err)
	}

	var e Expression
	if err := s.db.GetContext(ctx, &e,
		`SELECT * FROM expressions WHERE land_id = ? AND url = ?`, landID, u); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetExpression fetches an expression by id.
func (s *Store) GetExpression(ctx context.Context, id int64) (*Expression, error) {
	var e Expression
	err := s.db.GetContext(ctx, &e, `SELECT * FROM expressions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expression %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Link ensures the child expression at depth+1 and inserts the edge
// source -> child. Self-links and already-present edges are no-ops.
func (s *Store) Link(ctx context.Context, source *Expression, childURL string) error {
	target, err := s.EnsureExpression(ctx, source.LandID, childURL, source.Depth+1)
	if err != nil {
		return err
	}
	if target == nil || target.ID == source.ID {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO expression_links (source_id, target_id) VALUES (?, ?)`,
		source.ID, target.ID)
	return err
}

// RecordMedia resolves a media URL against the expression's URL,
// lowercases it and inserts the row unless present.
func (s *Store) RecordMedia(ctx context.Context, expr *Expression, rawURL, kind string) error {
	abs := urlnorm.Resolve(expr.URL, rawURL)
	if abs == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO media (expression_id, url, type) VALUES (?, ?, ?)`,
		expr.ID, strings.ToLower(abs), kind)
	return err
}

// ReplaceLinks deletes all outgoing links of the expression and relinks
// the given URLs. Child expressions are ensured first so the
// delete-then-insert runs in one transaction.
func (s *Store) ReplaceLinks(ctx context.Context, expr *Expression, urls []string) error {
	type edge struct{ sourceID, targetID int64 }
	var edges []edge
	seen := map[int64]struct{}{}
	for _, u := range urls {
		target, err := s.EnsureExpression(ctx, expr.LandID, u, expr.Depth+1)
		if err != nil {
			logger.Warn("link target creation failed", "url", u, "error", err)
			continue
		}
		if target == nil || target.ID == expr.ID {
			continue
		}
		if _, dup := seen[target.ID]; dup {
			continue
		}
		seen[target.ID] = struct{}{}
		edges = append(edges, edge{expr.ID, target.ID})
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM expression_links WHERE source_id = ?`, expr.ID); err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO expression_links (source_id, target_id) VALUES (?, ?)`,
			e.sourceID, e.targetID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ReplaceMedia deletes all media of the expression and inserts the given
// items, resolved and lowercased, in one transaction.
func (s *Store) ReplaceMedia(ctx context.Context, expr *Expression, items []MediaItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM media WHERE expression_id = ?`, expr.ID); err != nil {
		return err
	}
	for _, item := range items {
		abs := urlnorm.Resolve(expr.URL, item.URL)
		if abs == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO media (expression_id, url, type) VALUES (?, ?, ?)`,
			expr.ID, strings.ToLower(abs), item.Kind); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveExpression updates every mutable column of an expression row.
func (s *Store) SaveExpression(ctx context.Context, e *Expression) error {
	_, err := s.db.NamedExecContext(ctx,
		`UPDATE expressions SET
			domain_id = :domain_id,
			http_status = :http_status,
			lang = :lang,
			title = :title,
			description = :description,
			keywords = :keywords,
			readable = :readable,
			raw = :raw,
			relevance = :relevance,
			validllm = :validllm,
			validmodel = :validmodel,
			seorank = :seorank,
			fetched_at = :fetched_at,
			approved_at = :approved_at,
			readable_at = :readable_at,
			published_at = :published_at
		 WHERE id = :id`, e)
	return err
}

// CrawlCandidates selects expressions to fetch: unfetched by default, or
// rows matching an http_status filter for re-crawls, optionally pinned to
// one depth. Ordered by depth then id.
func (s *Store) CrawlCandidates(ctx context.Context, landID int64, httpStatus string, depth *int) ([]Expression, error) {
	query := `SELECT * FROM expressions WHERE land_id = ?`
	args := []any{landID}

	if httpStatus != "" {
		query += ` AND http_status = ?`
		args = append(args, httpStatus)
	} else {
		query += ` AND fetched_at IS NULL`
	}
	if depth != nil {
		query += ` AND depth = ?`
		args = append(args, *depth)
	}
	query += ` ORDER BY depth, id`

	var out []Expression
	err := s.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

// ReadableCandidates selects fetched expressions not yet reprocessed,
// ordered by fetch time then depth.
func (s *Store) ReadableCandidates(ctx context.Context, landID int64, limit int, depth *int) ([]Expression, error) {
	query := `SELECT * FROM expressions
		WHERE land_id = ? AND fetched_at IS NOT NULL AND readable_at IS NULL`
	args := []any{landID}

	if depth != nil {
		query += ` AND depth = ?`
		args = append(args, *depth)
	}
	query += ` ORDER BY fetched_at, depth`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []Expression
	err := s.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

// ConsolidateCandidates selects fetched expressions, optionally filtered
// by depth and minimum relevance.
func (s *Store) ConsolidateCandidates(ctx context.Context, landID int64, limit int, depth, minRelevance *int) ([]Expression, error) {
	query := `SELECT * FROM expressions WHERE land_id = ? AND fetched_at IS NOT NULL`
	args := []any{landID}

	if depth != nil {
		query += ` AND depth = ?`
		args = append(args, *depth)
	}
	if minRelevance != nil {
		query += ` AND COALESCE(relevance, 0) >= ?`
		args = append(args, *minRelevance)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []Expression
	err := s.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

// ExpressionsWithReadable returns every expression of the land carrying
// readable text, used to rescore after lexicon changes.
func (s *Store) ExpressionsWithReadable(ctx context.Context, landID int64) ([]Expression, error) {
	var out []Expression
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM expressions WHERE land_id = ? AND readable IS NOT NULL ORDER BY id`, landID)
	return out, err
}

// LinksFrom returns the outgoing edges of an expression.
func (s *Store) LinksFrom(ctx context.Context, exprID int64) ([]Link, error) {
	var out []Link
	err := s.db.SelectContext(ctx, &out,
		`SELECT source_id, target_id FROM expression_links WHERE source_id = ? ORDER BY target_id`, exprID)
	return out, err
}

// MediaOf returns the media rows of an expression.
func (s *Store) MediaOf(ctx context.Context, exprID int64) ([]Media, error) {
	var out []Media
	err := s.db.SelectContext(ctx, &out,
		`SELECT * FROM media WHERE expression_id = ? ORDER BY id`, exprID)
	return out, err
}

// EnforceApproval sweeps the land so that approved_at is set exactly on
// fetched expressions with positive relevance.
func (s *Store) EnforceApproval(ctx context.Context, landID int64) error {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE expressions SET approved_at = NULL
		 WHERE land_id = ? AND approved_at IS NOT NULL
		   AND (fetched_at IS NULL OR COALESCE(relevance, 0) <= 0)`, landID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE expressions SET approved_at = ?
		 WHERE land_id = ? AND approved_at IS NULL
		   AND fetched_at IS NOT NULL AND COALESCE(relevance, 0) > 0`, now, landID)
	return err
}

// ReassignDomains re-runs domain extraction over every expression and
// repoints domain foreign keys that the current heuristics change.
// Returns the number of expressions moved.
func (s *Store) ReassignDomains(ctx context.Context) (int64, error) {
	type row struct {
		ID       int64  `db:"id"`
		URL      string `db:"url"`
		DomainID int64  `db:"domain_id"`
	}
	var rows []row
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT e.id, e.url, e.domain_id FROM expressions e`); err != nil {
		return 0, err
	}

	var moved int64
	for _, r := range rows {
		host := s.heur.DomainOf(r.URL)
		if host == "" {
			continue
		}
		dom, err := s.EnsureDomain(ctx, host)
		if err != nil {
			return moved, err
		}
		if dom.ID == r.DomainID {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE expressions SET domain_id = ? WHERE id = ?`, dom.ID, r.ID); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}
