package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ResetLanes truncates lanes and lane_events then creates count lane rows
// numbered from startCh. Lane tables are fully regenerated each refresh,
// never incrementally reconciled.
func (s *Store) ResetLanes(ctx context.Context, count, startCh int, displayPrefix string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin reset lanes: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM lane_events`); err != nil {
		return fmt.Errorf("catalog: truncate lane_events: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM lanes`); err != nil {
		return fmt.Errorf("catalog: truncate lanes: %w", err)
	}
	for i := 0; i < count; i++ {
		num := startCh + i
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lanes (lane_id, display_name, logical_number) VALUES (?,?,?)`,
			num, fmt.Sprintf("%s %d", displayPrefix, num), num); err != nil {
			return fmt.Errorf("catalog: insert lane %d: %w", num, err)
		}
	}
	return tx.Commit()
}

// ListLanes returns every lane row, ordered by lane_id.
func (s *Store) ListLanes(ctx context.Context) ([]Lane, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT lane_id, display_name, logical_number FROM lanes ORDER BY lane_id`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list lanes: %w", err)
	}
	defer rows.Close()
	var out []Lane
	for rows.Next() {
		var l Lane
		if err := rows.Scan(&l.LaneID, &l.DisplayName, &l.LogicalNumber); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// InsertLaneEvent writes one scheduled or placeholder slot on a lane.
func (s *Store) InsertLaneEvent(ctx context.Context, le LaneEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lane_events (
			lane_id, event_id, start_utc, end_utc, is_placeholder, title,
			chosen_playable_id, chosen_provider, chosen_logical_service, chosen_deeplink
		) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		le.LaneID, nullable(le.EventID), formatTime(le.StartUTC), formatTime(le.EndUTC),
		boolInt(le.IsPlaceholder), nullable(le.Title), nullable(le.ChosenPlayableID),
		nullable(le.ChosenProvider), nullable(le.ChosenLogicalService), nullable(le.ChosenDeeplink))
	if err != nil {
		return fmt.Errorf("catalog: insert lane_event lane=%d start=%s: %w", le.LaneID, le.StartUTC, err)
	}
	return nil
}

// CurrentLaneEvent looks up the current event for a lane at time at: the
// slot satisfying start_utc <= at < end_utc. At most one such row exists
// per lane/time by construction of the scheduler.
func (s *Store) CurrentLaneEvent(ctx context.Context, laneID int, at time.Time) (*LaneEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT lane_id, event_id, start_utc, end_utc, is_placeholder, title,
			chosen_playable_id, chosen_provider, chosen_logical_service, chosen_deeplink
		FROM lane_events
		WHERE lane_id = ? AND start_utc <= ? AND end_utc > ?
		ORDER BY start_utc DESC LIMIT 1`,
		laneID, formatTime(at), formatTime(at))
	le, err := scanLaneEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: current lane event lane=%d: %w", laneID, err)
	}
	return &le, nil
}

// MostRecentEndedLaneEvent returns the most recent non-placeholder slot on a
// lane whose end_utc is at or before `at`, used by the fallback-deeplink
// window.
func (s *Store) MostRecentEndedLaneEvent(ctx context.Context, laneID int, at time.Time) (*LaneEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT lane_id, event_id, start_utc, end_utc, is_placeholder, title,
			chosen_playable_id, chosen_provider, chosen_logical_service, chosen_deeplink
		FROM lane_events
		WHERE lane_id = ? AND end_utc <= ? AND is_placeholder = 0
		ORDER BY end_utc DESC LIMIT 1`,
		laneID, formatTime(at))
	le, err := scanLaneEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: most recent ended lane event lane=%d: %w", laneID, err)
	}
	return &le, nil
}

// LaneEventsForLane returns every slot scheduled on a lane, ordered by start.
func (s *Store) LaneEventsForLane(ctx context.Context, laneID int) ([]LaneEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lane_id, event_id, start_utc, end_utc, is_placeholder, title,
			chosen_playable_id, chosen_provider, chosen_logical_service, chosen_deeplink
		FROM lane_events WHERE lane_id = ? ORDER BY start_utc ASC`, laneID)
	if err != nil {
		return nil, fmt.Errorf("catalog: lane events for lane=%d: %w", laneID, err)
	}
	defer rows.Close()
	var out []LaneEvent
	for rows.Next() {
		le, err := scanLaneEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	return out, rows.Err()
}

func scanLaneEvent(row rowScanner) (LaneEvent, error) {
	var (
		le                                                              LaneEvent
		eventID, title, playableID, provider, logicalService, deeplink sql.NullString
		startUTC, endUTC                                                string
		isPlaceholder                                                   int
	)
	if err := row.Scan(&le.LaneID, &eventID, &startUTC, &endUTC, &isPlaceholder, &title,
		&playableID, &provider, &logicalService, &deeplink); err != nil {
		return LaneEvent{}, err
	}
	le.EventID = eventID.String
	le.Title = title.String
	le.ChosenPlayableID = playableID.String
	le.ChosenProvider = provider.String
	le.ChosenLogicalService = logicalService.String
	le.ChosenDeeplink = deeplink.String
	le.IsPlaceholder = isPlaceholder != 0
	var err error
	if le.StartUTC, err = parseTime(startUTC); err != nil {
		return LaneEvent{}, err
	}
	if le.EndUTC, err = parseTime(endUTC); err != nil {
		return LaneEvent{}, err
	}
	return le, nil
}
