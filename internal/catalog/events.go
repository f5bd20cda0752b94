package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertEvent transactionally upserts an event plus its playables and
// images. Existing playables and images for the event are deleted then
// reinserted, so feeds the upstream ingester no longer reports disappear.
// last_seen_utc is stamped to now. start_ms, stop_ms and duration_secs are
// derived from StartUTC/StopUTC when left zero.
func (s *Store) UpsertEvent(ctx context.Context, ev Event) error {
	if ev.PVID == "" {
		return fmt.Errorf("catalog: event %s missing pvid", ev.ID)
	}
	if !ev.StopUTC.After(ev.StartUTC) {
		return fmt.Errorf("catalog: event %s has end_utc <= start_utc", ev.ID)
	}
	if ev.StartMS == 0 {
		ev.StartMS = ev.StartUTC.UnixMilli()
	}
	if ev.StopMS == 0 {
		ev.StopMS = ev.StopUTC.UnixMilli()
	}
	if ev.DurationSecs == 0 {
		ev.DurationSecs = (ev.StopMS - ev.StartMS) / 1000
	}

	genresJSON, err := json.Marshal(ev.Genres)
	if err != nil {
		return fmt.Errorf("catalog: marshal genres: %w", err)
	}
	classJSON, err := json.Marshal(ev.Classification)
	if err != nil {
		return fmt.Errorf("catalog: marshal classification: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("catalog: begin upsert: %w", err)
	}
	defer tx.Rollback()

	now := nowUTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO events (
			id, external_id, pvid, title, short_title, synopsis_long, synopsis_brief,
			channel_label, channel_provider_id, start_utc, start_ms, stop_utc, stop_ms,
			duration_secs, is_free, is_premium, hero_image_url, genres, classification,
			raw_payload, last_seen_utc, is_reair
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
			external_id=excluded.external_id, pvid=excluded.pvid, title=excluded.title,
			short_title=excluded.short_title, synopsis_long=excluded.synopsis_long,
			synopsis_brief=excluded.synopsis_brief, channel_label=excluded.channel_label,
			channel_provider_id=excluded.channel_provider_id, start_utc=excluded.start_utc,
			start_ms=excluded.start_ms, stop_utc=excluded.stop_utc, stop_ms=excluded.stop_ms,
			duration_secs=excluded.duration_secs, is_free=excluded.is_free,
			is_premium=excluded.is_premium, hero_image_url=excluded.hero_image_url,
			genres=excluded.genres, classification=excluded.classification,
			raw_payload=excluded.raw_payload, last_seen_utc=excluded.last_seen_utc,
			is_reair=excluded.is_reair`,
		ev.ID, ev.ExternalID, ev.PVID, ev.Title, nullable(ev.ShortTitle), nullable(ev.SynopsisLong),
		nullable(ev.SynopsisBrief), nullable(ev.ChannelLabel), nullable(ev.ChannelProviderID),
		formatTime(ev.StartUTC), ev.StartMS, formatTime(ev.StopUTC), ev.StopMS, ev.DurationSecs,
		boolInt(ev.IsFree), boolInt(ev.IsPremium), nullable(ev.HeroImageURL), string(genresJSON),
		string(classJSON), nullable(ev.RawPayload), now, boolInt(ev.IsReair))
	if err != nil {
		return fmt.Errorf("catalog: upsert event %s: %w", ev.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM playables WHERE event_id = ?`, ev.ID); err != nil {
		return fmt.Errorf("catalog: clear playables for %s: %w", ev.ID, err)
	}
	seen := map[string]bool{}
	for _, p := range ev.Playables {
		if seen[p.PlayableID] {
			return fmt.Errorf("catalog: event %s has duplicate playable_id %s", ev.ID, p.PlayableID)
		}
		seen[p.PlayableID] = true

		created := p.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO playables (
				event_id, playable_id, raw_provider_scheme, service_name, logical_service,
				deeplink_play, deeplink_open, http_deeplink_url, playable_url, variant_label,
				content_id, locale, priority, espn_graph_id, created_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			ev.ID, p.PlayableID, nullable(p.RawScheme), nullable(p.ServiceName), p.LogicalService,
			nullable(p.DeeplinkPlay), nullable(p.DeeplinkOpen), nullable(p.HTTPDeeplinkURL),
			nullable(p.PlayableURL), nullable(p.VariantLabel), nullable(p.ContentID),
			nullable(p.Locale), p.Priority, nullable(p.ESPNGraphID), formatTime(created))
		if err != nil {
			return fmt.Errorf("catalog: insert playable %s/%s: %w", ev.ID, p.PlayableID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_images WHERE event_id = ?`, ev.ID); err != nil {
		return fmt.Errorf("catalog: clear images for %s: %w", ev.ID, err)
	}
	dedup := map[string]bool{}
	for _, img := range ev.Images {
		key := img.ImgType + "|" + img.URL
		if dedup[key] {
			continue
		}
		dedup[key] = true
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_images (event_id, img_type, url) VALUES (?,?,?)`,
			ev.ID, img.ImgType, img.URL); err != nil {
			return fmt.Errorf("catalog: insert image %s/%s: %w", ev.ID, img.ImgType, err)
		}
	}

	return tx.Commit()
}

// WindowEvents returns events with end_utc >= now-daysBack AND start_utc <=
// now+daysForward, ordered by start then end then title then id.
func (s *Store) WindowEvents(ctx context.Context, now time.Time, daysBack, daysForward int) ([]Event, error) {
	lower := now.Add(-time.Duration(daysBack) * 24 * time.Hour)
	upper := now.Add(time.Duration(daysForward) * 24 * time.Hour)

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, external_id, pvid, title, short_title, synopsis_long, synopsis_brief,
			channel_label, channel_provider_id, start_utc, start_ms, stop_utc, stop_ms,
			duration_secs, is_free, is_premium, hero_image_url, genres, classification,
			raw_payload, last_seen_utc, is_reair
		FROM events
		WHERE stop_ms >= ? AND start_ms <= ?
		ORDER BY start_ms ASC, stop_ms ASC, title ASC, id ASC`,
		lower.UnixMilli(), upper.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("catalog: window query: %w", err)
	}
	defer rows.Close()

	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	return s.attachPlayablesAndImages(ctx, events)
}

// EventByID fetches a single event with its playables and images attached.
func (s *Store) EventByID(ctx context.Context, id string) (*Event, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, external_id, pvid, title, short_title, synopsis_long, synopsis_brief,
			channel_label, channel_provider_id, start_utc, start_ms, stop_utc, stop_ms,
			duration_secs, is_free, is_premium, hero_image_url, genres, classification,
			raw_payload, last_seen_utc, is_reair
		FROM events WHERE id = ?`, id)
	ev, err := scanEventRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: event by id %s: %w", id, err)
	}
	events, err := s.attachPlayablesAndImages(ctx, []Event{ev})
	if err != nil {
		return nil, err
	}
	return &events[0], nil
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEventRow.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEventRow(row rowScanner) (Event, error) {
	var (
		ev                                                                  Event
		shortTitle, synopsisLong, synopsisBrief, channelLabel, channelProv  sql.NullString
		heroImage, rawPayload                                               sql.NullString
		startUTC, stopUTC, lastSeen                                         string
		genresJSON, classJSON                                               string
		isFree, isPremium, isReair                                          int
	)
	if err := row.Scan(
		&ev.ID, &ev.ExternalID, &ev.PVID, &ev.Title, &shortTitle, &synopsisLong, &synopsisBrief,
		&channelLabel, &channelProv, &startUTC, &ev.StartMS, &stopUTC, &ev.StopMS,
		&ev.DurationSecs, &isFree, &isPremium, &heroImage, &genresJSON, &classJSON,
		&rawPayload, &lastSeen, &isReair,
	); err != nil {
		return Event{}, err
	}
	ev.ShortTitle = shortTitle.String
	ev.SynopsisLong = synopsisLong.String
	ev.SynopsisBrief = synopsisBrief.String
	ev.ChannelLabel = channelLabel.String
	ev.ChannelProviderID = channelProv.String
	ev.HeroImageURL = heroImage.String
	ev.RawPayload = rawPayload.String
	ev.IsFree = isFree != 0
	ev.IsPremium = isPremium != 0
	ev.IsReair = isReair != 0

	var err error
	if ev.StartUTC, err = parseTime(startUTC); err != nil {
		return Event{}, fmt.Errorf("parse start_utc: %w", err)
	}
	if ev.StopUTC, err = parseTime(stopUTC); err != nil {
		return Event{}, fmt.Errorf("parse stop_utc: %w", err)
	}
	if ev.LastSeenUTC, err = parseTime(lastSeen); err != nil {
		return Event{}, fmt.Errorf("parse last_seen_utc: %w", err)
	}
	if err := json.Unmarshal([]byte(genresJSON), &ev.Genres); err != nil {
		return Event{}, fmt.Errorf("unmarshal genres: %w", err)
	}
	if err := json.Unmarshal([]byte(classJSON), &ev.Classification); err != nil {
		return Event{}, fmt.Errorf("unmarshal classification: %w", err)
	}
	return ev, nil
}

// attachPlayablesAndImages fetches playables/images for the given events and
// attaches them in place, preserving order.
func (s *Store) attachPlayablesAndImages(ctx context.Context, events []Event) ([]Event, error) {
	if len(events) == 0 {
		return events, nil
	}
	index := make(map[string]int, len(events))
	ids := make([]any, len(events))
	placeholders := make([]byte, 0, len(events)*2)
	for i, ev := range events {
		index[ev.ID] = i
		ids[i] = ev.ID
		if i > 0 {
			placeholders = append(placeholders, ',', '?')
		} else {
			placeholders = append(placeholders, '?')
		}
	}

	prows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT event_id, playable_id, raw_provider_scheme, service_name, logical_service,
			deeplink_play, deeplink_open, http_deeplink_url, playable_url, variant_label,
			content_id, locale, priority, espn_graph_id, created_at
		FROM playables WHERE event_id IN (%s)`, string(placeholders)), ids...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query playables: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var (
			p                                                            Playable
			rawScheme, serviceName, deeplinkPlay, deeplinkOpen           sql.NullString
			httpURL, playableURL, variant, contentID, locale, graphID    sql.NullString
			createdAt                                                    string
		)
		if err := prows.Scan(&p.EventID, &p.PlayableID, &rawScheme, &serviceName, &p.LogicalService,
			&deeplinkPlay, &deeplinkOpen, &httpURL, &playableURL, &variant, &contentID, &locale,
			&p.Priority, &graphID, &createdAt); err != nil {
			return nil, fmt.Errorf("catalog: scan playable: %w", err)
		}
		p.RawScheme, p.ServiceName = rawScheme.String, serviceName.String
		p.DeeplinkPlay, p.DeeplinkOpen = deeplinkPlay.String, deeplinkOpen.String
		p.HTTPDeeplinkURL, p.PlayableURL = httpURL.String, playableURL.String
		p.VariantLabel, p.ContentID, p.Locale = variant.String, contentID.String, locale.String
		p.ESPNGraphID = graphID.String
		if t, err := parseTime(createdAt); err == nil {
			p.CreatedAt = t
		}
		if i, ok := index[p.EventID]; ok {
			events[i].Playables = append(events[i].Playables, p)
		}
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	irows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT event_id, img_type, url FROM event_images WHERE event_id IN (%s)`, string(placeholders)), ids...)
	if err != nil {
		return nil, fmt.Errorf("catalog: query images: %w", err)
	}
	defer irows.Close()
	for irows.Next() {
		var img EventImage
		if err := irows.Scan(&img.EventID, &img.ImgType, &img.URL); err != nil {
			return nil, fmt.Errorf("catalog: scan image: %w", err)
		}
		if i, ok := index[img.EventID]; ok {
			events[i].Images = append(events[i].Images, img)
		}
	}
	return events, irows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
