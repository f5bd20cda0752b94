package catalog

import (
	"context"
	"fmt"
)

// migration is one forward-only schema step. Schema evolution is a
// versioned list applied in order and tracked in schema_migrations, never
// ad-hoc introspect-then-ALTER.
type migration struct {
	version int
	desc    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		desc:    "initial schema",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS events (
				id TEXT PRIMARY KEY,
				external_id TEXT NOT NULL,
				pvid TEXT,
				title TEXT NOT NULL,
				short_title TEXT,
				synopsis_long TEXT,
				synopsis_brief TEXT,
				channel_label TEXT,
				channel_provider_id TEXT,
				start_utc TEXT NOT NULL,
				start_ms INTEGER NOT NULL,
				stop_utc TEXT NOT NULL,
				stop_ms INTEGER NOT NULL,
				duration_secs INTEGER NOT NULL,
				is_free INTEGER NOT NULL DEFAULT 0,
				is_premium INTEGER NOT NULL DEFAULT 0,
				hero_image_url TEXT,
				genres TEXT NOT NULL DEFAULT '[]',
				classification TEXT NOT NULL DEFAULT '[]',
				raw_payload TEXT,
				last_seen_utc TEXT NOT NULL,
				is_reair INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE INDEX IF NOT EXISTS idx_events_window ON events(start_ms, stop_ms)`,
			`CREATE INDEX IF NOT EXISTS idx_events_external_id ON events(external_id)`,
			`CREATE TABLE IF NOT EXISTS playables (
				event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
				playable_id TEXT NOT NULL,
				raw_provider_scheme TEXT,
				service_name TEXT,
				logical_service TEXT NOT NULL,
				deeplink_play TEXT,
				deeplink_open TEXT,
				http_deeplink_url TEXT,
				playable_url TEXT,
				variant_label TEXT,
				content_id TEXT,
				locale TEXT,
				priority INTEGER NOT NULL DEFAULT 25,
				espn_graph_id TEXT,
				created_at TEXT NOT NULL,
				PRIMARY KEY (event_id, playable_id)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_playables_logical_service ON playables(logical_service)`,
			`CREATE TABLE IF NOT EXISTS event_images (
				event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
				img_type TEXT NOT NULL,
				url TEXT NOT NULL,
				PRIMARY KEY (event_id, img_type, url)
			)`,
			`CREATE TABLE IF NOT EXISTS user_preferences (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS lanes (
				lane_id INTEGER PRIMARY KEY,
				display_name TEXT NOT NULL,
				logical_number INTEGER NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS lane_events (
				lane_id INTEGER NOT NULL,
				event_id TEXT,
				start_utc TEXT NOT NULL,
				end_utc TEXT NOT NULL,
				is_placeholder INTEGER NOT NULL DEFAULT 0,
				title TEXT,
				chosen_playable_id TEXT,
				chosen_provider TEXT,
				chosen_logical_service TEXT,
				chosen_deeplink TEXT,
				PRIMARY KEY (lane_id, start_utc)
			)`,
			`CREATE INDEX IF NOT EXISTS idx_lane_events_lane_time ON lane_events(lane_id, start_utc, end_utc)`,
			`CREATE TABLE IF NOT EXISTS adb_lanes (
				provider_code TEXT NOT NULL,
				lane_number INTEGER NOT NULL,
				channel_id TEXT NOT NULL,
				event_id TEXT NOT NULL,
				start_utc TEXT NOT NULL,
				stop_utc TEXT NOT NULL,
				PRIMARY KEY (provider_code, lane_number, start_utc)
			)`,
			`CREATE TABLE IF NOT EXISTS provider_lanes (
				provider_code TEXT PRIMARY KEY,
				adb_enabled INTEGER NOT NULL DEFAULT 0,
				adb_lane_count INTEGER NOT NULL DEFAULT 0,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS auth_blobs (
				upstream TEXT PRIMARY KEY,
				device_id TEXT,
				user_id TEXT,
				session_key TEXT,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 2,
		desc:    "amazon GTI channel table (supplemental feature)",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS amazon_gti_map (
				gti TEXT PRIMARY KEY,
				logical_service TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
		},
	},
	{
		version: 3,
		desc:    "espn graph id enrichment lookup (supplemental feature)",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS espn_graph_map (
				external_id TEXT NOT NULL,
				locale TEXT NOT NULL DEFAULT '',
				graph_id TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				PRIMARY KEY (external_id, locale)
			)`,
		},
	},
}

// EnsureSchema applies every migration with version greater than the
// currently recorded schema version, in order, inside one transaction per
// migration. Idempotent: a second run with no new migrations is a no-op.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("catalog: create schema_migrations: %w", err)
	}

	current := 0
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("catalog: read schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("catalog: begin migration %d: %w", m.version, err)
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("catalog: migration %d (%s): %w", m.version, m.desc, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
			m.version, nowUTC()); err != nil {
			tx.Rollback()
			return fmt.Errorf("catalog: record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("catalog: commit migration %d: %w", m.version, err)
		}
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&v); err != nil {
		return 0, fmt.Errorf("catalog: read schema version: %w", err)
	}
	return v, nil
}
