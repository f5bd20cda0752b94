package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// UpsertAmazonGTI records (or updates) one Amazon GTI -> logical_service
// mapping in the channel table the headless crawler maintains.
func (s *Store) UpsertAmazonGTI(ctx context.Context, gti, logicalService string) error {
	now := nowUTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO amazon_gti_map (gti, logical_service, updated_at) VALUES (?,?,?)
		ON CONFLICT (gti) DO UPDATE SET logical_service=excluded.logical_service, updated_at=excluded.updated_at`,
		gti, logicalService, now)
	if err != nil {
		return fmt.Errorf("catalog: upsert amazon gti %s: %w", gti, err)
	}
	return nil
}

// AmazonGTILookup returns the logical service mapped to gti, or "" if the
// GTI is not present in the channel table.
func (s *Store) AmazonGTILookup(ctx context.Context, gti string) (string, error) {
	var logicalService string
	row := s.db.QueryRowContext(ctx, `SELECT logical_service FROM amazon_gti_map WHERE gti = ?`, gti)
	if err := row.Scan(&logicalService); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("catalog: amazon gti lookup %s: %w", gti, err)
	}
	return logicalService, nil
}

// AllAmazonGTIs returns the full gti -> logical_service map, used to build
// an in-memory lookup for a refresh run without one query per playable.
func (s *Store) AllAmazonGTIs(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT gti, logical_service FROM amazon_gti_map`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list amazon gtis: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var gti, ls string
		if err := rows.Scan(&gti, &ls); err != nil {
			return nil, err
		}
		out[gti] = ls
	}
	return out, rows.Err()
}
