package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertProviderLane writes the admin-configured ADB lane policy for one
// provider.
func (s *Store) UpsertProviderLane(ctx context.Context, p ProviderLane) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_lanes (provider_code, adb_enabled, adb_lane_count, updated_at)
		VALUES (?,?,?,?)
		ON CONFLICT (provider_code) DO UPDATE SET
			adb_enabled=excluded.adb_enabled, adb_lane_count=excluded.adb_lane_count,
			updated_at=excluded.updated_at`,
		p.ProviderCode, boolInt(p.AdbEnabled), p.AdbLaneCount, nowUTC())
	if err != nil {
		return fmt.Errorf("catalog: upsert provider lane %s: %w", p.ProviderCode, err)
	}
	return nil
}

// ListProviderLanes returns every configured provider lane policy.
func (s *Store) ListProviderLanes(ctx context.Context) ([]ProviderLane, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_code, adb_enabled, adb_lane_count, updated_at FROM provider_lanes
		ORDER BY provider_code`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list provider lanes: %w", err)
	}
	defer rows.Close()
	var out []ProviderLane
	for rows.Next() {
		var p ProviderLane
		var enabled int
		var updated string
		if err := rows.Scan(&p.ProviderCode, &enabled, &p.AdbLaneCount, &updated); err != nil {
			return nil, err
		}
		p.AdbEnabled = enabled != 0
		if p.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EnabledProviderLanes returns only providers with adb_enabled=1 AND
// adb_lane_count>0, the set the per-provider scheduler iterates.
func (s *Store) EnabledProviderLanes(ctx context.Context) ([]ProviderLane, error) {
	all, err := s.ListProviderLanes(ctx)
	if err != nil {
		return nil, err
	}
	var out []ProviderLane
	for _, p := range all {
		if p.AdbEnabled && p.AdbLaneCount > 0 {
			out = append(out, p)
		}
	}
	return out, nil
}

// ResetAdbLanes truncates the adb_lanes rows for one provider, ahead of a
// per-provider rebuild.
func (s *Store) ResetAdbLanes(ctx context.Context, providerCode string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM adb_lanes WHERE provider_code = ?`, providerCode)
	if err != nil {
		return fmt.Errorf("catalog: truncate adb_lanes for %s: %w", providerCode, err)
	}
	return nil
}

// InsertAdbLane writes one packed slot in a provider-scoped lane.
func (s *Store) InsertAdbLane(ctx context.Context, l AdbLane) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO adb_lanes (provider_code, lane_number, channel_id, event_id, start_utc, stop_utc)
		VALUES (?,?,?,?,?,?)`,
		l.ProviderCode, l.LaneNumber, l.ChannelID, l.EventID, formatTime(l.StartUTC), formatTime(l.StopUTC))
	if err != nil {
		return fmt.Errorf("catalog: insert adb_lane %s/%d: %w", l.ProviderCode, l.LaneNumber, err)
	}
	return nil
}

// CurrentAdbLane looks up the event scheduled on a provider lane at time at.
func (s *Store) CurrentAdbLane(ctx context.Context, providerCode string, laneNumber int, at time.Time) (*AdbLane, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT provider_code, lane_number, channel_id, event_id, start_utc, stop_utc
		FROM adb_lanes
		WHERE provider_code = ? AND lane_number = ? AND start_utc <= ? AND stop_utc > ?
		ORDER BY start_utc DESC LIMIT 1`,
		providerCode, laneNumber, formatTime(at), formatTime(at))
	var l AdbLane
	var startUTC, stopUTC string
	if err := row.Scan(&l.ProviderCode, &l.LaneNumber, &l.ChannelID, &l.EventID, &startUTC, &stopUTC); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("catalog: current adb lane %s/%d: %w", providerCode, laneNumber, err)
	}
	var err error
	if l.StartUTC, err = parseTime(startUTC); err != nil {
		return nil, err
	}
	if l.StopUTC, err = parseTime(stopUTC); err != nil {
		return nil, err
	}
	return &l, nil
}

// AdbLanesForProvider returns every scheduled slot for a provider, ordered
// by lane number then start, for XMLTV/M3U emission.
func (s *Store) AdbLanesForProvider(ctx context.Context, providerCode string) ([]AdbLane, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT provider_code, lane_number, channel_id, event_id, start_utc, stop_utc
		FROM adb_lanes WHERE provider_code = ? ORDER BY lane_number ASC, start_utc ASC`, providerCode)
	if err != nil {
		return nil, fmt.Errorf("catalog: adb lanes for %s: %w", providerCode, err)
	}
	defer rows.Close()
	var out []AdbLane
	for rows.Next() {
		var l AdbLane
		var startUTC, stopUTC string
		if err := rows.Scan(&l.ProviderCode, &l.LaneNumber, &l.ChannelID, &l.EventID, &startUTC, &stopUTC); err != nil {
			return nil, err
		}
		if l.StartUTC, err = parseTime(startUTC); err != nil {
			return nil, err
		}
		if l.StopUTC, err = parseTime(stopUTC); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
