package catalog

import (
	"context"
	"database/sql"
	"fmt"
)

// UpsertESPNGraphID records (or replaces) the enrichment lookup entry for
// one (external_id, locale) pair, mirroring the Amazon GTI table's upsert
// shape.
func (s *Store) UpsertESPNGraphID(ctx context.Context, externalID, locale, graphID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO espn_graph_map (external_id, locale, graph_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (external_id, locale) DO UPDATE SET
			graph_id=excluded.graph_id, updated_at=excluded.updated_at`,
		externalID, locale, graphID, nowUTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert espn graph id %s/%s: %w", externalID, locale, err)
	}
	return nil
}

// ESPNGraphLookup returns the enrichment graph id for (externalID, locale),
// falling back to the locale-less entry, or "" if neither exists.
func (s *Store) ESPNGraphLookup(ctx context.Context, externalID, locale string) (string, error) {
	var graphID string
	row := s.db.QueryRowContext(ctx,
		`SELECT graph_id FROM espn_graph_map WHERE external_id = ? AND locale = ?`, externalID, locale)
	err := row.Scan(&graphID)
	if err == nil {
		return graphID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("catalog: espn graph lookup %s/%s: %w", externalID, locale, err)
	}
	row = s.db.QueryRowContext(ctx,
		`SELECT graph_id FROM espn_graph_map WHERE external_id = ? AND locale = ''`, externalID)
	if err := row.Scan(&graphID); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("catalog: espn graph lookup %s (locale-less): %w", externalID, err)
	}
	return graphID, nil
}

// UpdatePlayableESPNGraphID backfills one playable's espn_graph_id column,
// used by the orchestrator's enrichment stage once a lookup match is found.
func (s *Store) UpdatePlayableESPNGraphID(ctx context.Context, eventID, playableID, graphID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE playables SET espn_graph_id = ? WHERE event_id = ? AND playable_id = ?`,
		graphID, eventID, playableID)
	if err != nil {
		return fmt.Errorf("catalog: update espn_graph_id for %s/%s: %w", eventID, playableID, err)
	}
	return nil
}
