package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned for lookup misses.
var ErrNotFound = errors.New("not found")

// CreateLand creates a land. Language codes are stored comma-separated,
// first code primary.
func (s *Store) CreateLand(ctx context.Context, name, description string, langs []string) (*Land, error) {
	if len(langs) == 0 {
		langs = []string{"fr"}
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO lands (name, description, lang, created_at) VALUES (?, ?, ?, ?)`,
		name, description, strings.Join(langs, ","), now)
	if err != nil {
		return nil, fmt.Errorf("create land: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Land{ID: id, Name: name, Description: description, Lang: strings.Join(langs, ","), CreatedAt: now}, nil
}

// GetLand looks a land up by name.
func (s *Store) GetLand(ctx context.Context, name string) (*Land, error) {
	var land Land
	err := s.db.GetContext(ctx, &land, `SELECT * FROM lands WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("land %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &land, nil
}

// LandSummary is a land with corpus counters, as printed by `land list`.
type LandSummary struct {
	Land
	Terms       int `db:"terms" json:"terms"`
	Expressions int `db:"expressions" json:"expressions"`
	Fetched     int `db:"fetched" json:"fetched"`
	Approved    int `db:"approved" json:"approved"`
}

// ListLands returns land summaries, optionally filtered by exact name.
func (s *Store) ListLands(ctx context.Context, name string) ([]LandSummary, error) {
	query := `SELECT l.*,
		(SELECT COUNT(*) FROM land_words lw WHERE lw.land_id = l.id) AS terms,
		(SELECT COUNT(*) FROM expressions e WHERE e.land_id = l.id) AS expressions,
		(SELECT COUNT(*) FROM expressions e WHERE e.land_id = l.id AND e.fetched_at IS NOT NULL) AS fetched,
		(SELECT COUNT(*) FROM expressions e WHERE e.land_id = l.id AND e.approved_at IS NOT NULL) AS approved
		FROM lands l`
	args := []any{}
	if name != "" {
		query += ` WHERE l.name = ?`
		args = append(args, name)
	}
	query += ` ORDER BY l.name`

	var lands []LandSummary
	if err := s.db.SelectContext(ctx, &lands, query, args...); err != nil {
		return nil, err
	}
	return lands, nil
}

// DeleteLand removes a land and, through cascading foreign keys, its
// expressions, links, media and lexicon attachments.
func (s *Store) DeleteLand(ctx context.Context, landID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM lands WHERE id = ?`, landID)
	return err
}

// DeleteLowRelevance removes fetched expressions whose relevance is below
// maxRel and returns the number of rows removed.
func (s *Store) DeleteLowRelevance(ctx context.Context, landID int64, maxRel int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expressions
		 WHERE land_id = ? AND fetched_at IS NOT NULL AND COALESCE(relevance, 0) < ?`,
		landID, maxRel)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AddTerms upserts (term, lemma) words and attaches them to the land's
// lexicon. Duplicate attachments are ignored.
func (s *Store) AddTerms(ctx context.Context, landID int64, words []Word) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, w := range words {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO words (term, lemma) VALUES (?, ?)
			 ON CONFLICT(term) DO UPDATE SET lemma = excluded.lemma`,
			w.Term, w.Lemma); err != nil {
			return fmt.Errorf("upsert word %q: %w", w.Term, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO land_words (land_id, word_id)
			 SELECT ?, id FROM words WHERE term = ?`,
			landID, w.Term); err != nil {
			return fmt.Errorf("attach word %q: %w", w.Term, err)
		}
	}

	return tx.Commit()
}

// LandLemmas returns the lexicon lemmas of a land.
func (s *Store) LandLemmas(ctx context.Context, landID int64) ([]string, error) {
	var lemmas []string
	err := s.db.SelectContext(ctx, &lemmas,
		`SELECT w.lemma FROM words w
		 JOIN land_words lw ON lw.word_id = w.id
		 WHERE lw.land_id = ? ORDER BY w.lemma`, landID)
	return lemmas, err
}
