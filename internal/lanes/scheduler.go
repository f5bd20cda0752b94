// Package lanes implements the lane scheduler: offline-greedy interval
// packing of eligible events onto a fixed set of virtual channels, both the
// generic pool and the per-provider (ADB) variant.
package lanes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/deeplink"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

// maxEventDuration is the sentinel cutoff above which an event's duration
// is treated as bad data and ignored by the scheduler.
const maxEventDuration = 12 * time.Hour

// Options configures one generic-pool rebuild.
type Options struct {
	LaneCount               int
	LaneStartCh             int
	DaysAhead               int
	PaddingMinutes          int
	PlaceholderBlockMinutes int
	PlaceholderExtraDays    int
	DisplayPrefix           string
	// FakeChannelDenyList excludes events whose ChannelLabel matches one of
	// these labels verbatim.
	FakeChannelDenyList []string
}

// DefaultOptions returns the stock tuning: 10 lanes from channel 9000, a
// 7-day window, 45m padding, 60m placeholder blocks, 5 extra days.
func DefaultOptions() Options {
	return Options{
		LaneCount:               10,
		LaneStartCh:             9000,
		DaysAhead:               7,
		PaddingMinutes:          45,
		PlaceholderBlockMinutes: 60,
		PlaceholderExtraDays:    5,
		DisplayPrefix:           "Fieldguide Lane",
	}
}

// Stats summarizes one rebuild, surfaced in the refresh run summary.
type Stats struct {
	Considered int
	Scheduled  int
	Dropped    int // oversubscribed: no lane free before the event's start
	Filtered   int // dropped by preference filtering (no surviving playable)
}

// BuildGeneric rebuilds the entire generic lane pool: truncate, recreate
// lane rows, pack eligible events first-fit, then fill idle placeholder
// blocks. Lane plans are always fully regenerated, never
// incrementally reconciled.
func BuildGeneric(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, opts Options, now time.Time) (Stats, error) {
	var stats Stats

	if err := store.ResetLanes(ctx, opts.LaneCount, opts.LaneStartCh, opts.DisplayPrefix); err != nil {
		return stats, fmt.Errorf("lanes: reset: %w", err)
	}

	events, err := store.WindowEvents(ctx, now, 0, opts.DaysAhead)
	if err != nil {
		return stats, fmt.Errorf("lanes: window query: %w", err)
	}

	deny := make(map[string]bool, len(opts.FakeChannelDenyList))
	for _, label := range opts.FakeChannelDenyList {
		deny[label] = true
	}

	type candidate struct {
		event     catalog.Event
		playable  catalog.Playable
		deeplink  deeplink.Corrected
		provider  string
	}

	var candidates []candidate
	for _, ev := range events {
		stats.Considered++
		if ev.PVID == "" {
			continue
		}
		if deny[ev.ChannelLabel] {
			continue
		}
		if !ev.StopUTC.After(now) {
			continue
		}
		if ev.StopUTC.Sub(ev.StartUTC) > maxEventDuration {
			continue
		}
		if !deeplink.EventAllowed(ev, prefs) {
			stats.Filtered++
			continue
		}

		filtered := deeplink.Filter(ev.Playables, prefs)
		if len(filtered) == 0 {
			stats.Filtered++
			continue
		}

		sel := deeplink.Select(filtered, prefs, mapper.DefaultPriority)
		if sel.Playable == nil {
			stats.Filtered++
			continue
		}
		corrected := deeplink.Correct(*sel.Playable, ev, prefs.LanguagePreference)
		providerCode, _ := mapper.AdbProvider(sel.Playable.LogicalService)

		candidates = append(candidates, candidate{event: ev, playable: *sel.Playable, deeplink: corrected, provider: providerCode})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].event.StartUTC.Before(candidates[j].event.StartUTC)
	})

	placeholderStart := floorHour(now.Add(-1 * time.Hour))
	laneEnd := make([]time.Time, opts.LaneCount)
	for i := range laneEnd {
		laneEnd[i] = placeholderStart
	}
	scheduled := make([][]catalog.LaneEvent, opts.LaneCount)
	latestEnd := placeholderStart

	padding := time.Duration(opts.PaddingMinutes) * time.Minute
	for _, c := range candidates {
		laneIdx := -1
		for i := 0; i < opts.LaneCount; i++ {
			if !laneEnd[i].After(c.event.StartUTC) {
				laneIdx = i
				break
			}
		}
		if laneIdx == -1 {
			stats.Dropped++
			continue
		}

		// The stored slot keeps the event's real end; the padded end only
		// spaces packing and holds the following placeholder back, so the
		// resolver owns the post-event window as its fallback grace.
		endPadded := c.event.StopUTC.Add(padding)
		le := catalog.LaneEvent{
			LaneID:               opts.LaneStartCh + laneIdx,
			EventID:              c.event.ID,
			StartUTC:             c.event.StartUTC,
			EndUTC:               c.event.StopUTC,
			Title:                c.event.Title,
			ChosenPlayableID:     c.playable.PlayableID,
			ChosenProvider:       c.provider,
			ChosenLogicalService: c.playable.LogicalService,
			ChosenDeeplink:       firstNonEmpty(c.deeplink.SchemeURL, c.deeplink.HTTPURL),
		}
		scheduled[laneIdx] = append(scheduled[laneIdx], le)
		laneEnd[laneIdx] = endPadded
		if endPadded.After(latestEnd) {
			latestEnd = endPadded
		}
		stats.Scheduled++
	}

	placeholderEnd := ceilHour(latestEnd.Add(time.Duration(opts.PlaceholderExtraDays) * 24 * time.Hour))
	blockDur := time.Duration(opts.PlaceholderBlockMinutes) * time.Minute

	for i := 0; i < opts.LaneCount; i++ {
		laneID := opts.LaneStartCh + i
		rows := withPlaceholders(scheduled[i], placeholderStart, placeholderEnd, blockDur, padding, laneID)
		for _, row := range rows {
			if err := store.InsertLaneEvent(ctx, row); err != nil {
				return stats, fmt.Errorf("lanes: insert lane_event lane=%d: %w", laneID, err)
			}
		}
	}

	return stats, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func floorHour(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

func ceilHour(t time.Time) time.Time {
	floored := t.Truncate(time.Hour)
	if floored.Equal(t) {
		return floored
	}
	return floored.Add(time.Hour)
}
