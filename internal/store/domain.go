package store

import (
	"context"
)

// DomainsToFetch selects domains for the harvester: unfetched by default,
// or rows matching an http_status filter for re-harvests.
func (s *Store) DomainsToFetch(ctx context.Context, limit int, httpStatus string) ([]Domain, error) {
	query := `SELECT * FROM domains`
	args := []any{}

	if httpStatus != "" {
		query += ` WHERE http_status = ?`
		args = append(args, httpStatus)
	} else {
		query += ` WHERE fetched_at IS NULL`
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var out []Domain
	err := s.db.SelectContext(ctx, &out, query, args...)
	return out, err
}

// SaveDomain updates the harvested metadata of a domain row.
func (s *Store) SaveDomain(ctx context.Context, d *Domain) error {
	_, err := s.db.NamedExecContext(ctx,
		`UPDATE domains SET
			http_status = :http_status,
			title = :title,
			description = :description,
			keywords = :keywords,
			fetched_at = :fetched_at
		 WHERE id = :id`, d)
	return err
}
