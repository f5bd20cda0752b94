package lanes

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/deeplink"
)

// AdbOptions configures one per-provider rebuild.
type AdbOptions struct {
	DaysAhead           int
	FakeChannelDenyList []string
}

// AdbStats summarizes one provider's rebuild.
type AdbStats struct {
	ProviderCode string
	Considered   int
	Scheduled    int
	Dropped      int
}

// BuildAdb rebuilds per-provider lanes for every provider with
// adb_enabled=1 AND adb_lane_count>0. Providers whose
// logical-service set is empty after intersecting with the user's
// enabled_services allowlist are skipped entirely.
func BuildAdb(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, opts AdbOptions, now time.Time, servicesForProvider func(string) []string, defaultPriority func(string) int) ([]AdbStats, error) {
	providers, err := store.EnabledProviderLanes(ctx)
	if err != nil {
		return nil, fmt.Errorf("lanes: list provider lanes: %w", err)
	}

	events, err := store.WindowEvents(ctx, now, 0, opts.DaysAhead)
	if err != nil {
		return nil, fmt.Errorf("lanes: window query: %w", err)
	}

	deny := make(map[string]bool, len(opts.FakeChannelDenyList))
	for _, label := range opts.FakeChannelDenyList {
		deny[label] = true
	}

	var allStats []AdbStats
	for _, provider := range providers {
		stats := AdbStats{ProviderCode: provider.ProviderCode}

		services := servicesForProvider(provider.ProviderCode)
		if len(prefs.EnabledServices) > 0 {
			services = intersect(services, prefs.EnabledServices)
		}
		serviceSet := toSet(services)
		if len(serviceSet) == 0 {
			allStats = append(allStats, stats)
			continue
		}

		if err := store.ResetAdbLanes(ctx, provider.ProviderCode); err != nil {
			return allStats, fmt.Errorf("lanes: reset adb lanes %s: %w", provider.ProviderCode, err)
		}

		type candidate struct {
			event    catalog.Event
			playable catalog.Playable
		}
		var candidates []candidate
		for _, ev := range events {
			if ev.PVID == "" || deny[ev.ChannelLabel] {
				continue
			}
			if !ev.StopUTC.After(now) || ev.StopUTC.Sub(ev.StartUTC) > maxEventDuration {
				continue
			}
			if !deeplink.EventAllowed(ev, prefs) {
				continue
			}
			var inService []catalog.Playable
			for _, p := range ev.Playables {
				if serviceSet[p.LogicalService] {
					inService = append(inService, p)
				}
			}
			if len(inService) == 0 {
				continue
			}
			filtered := deeplink.Filter(inService, prefs)
			if len(filtered) == 0 {
				continue
			}
			stats.Considered++
			sel := deeplink.Select(filtered, prefs, defaultPriority)
			if sel.Playable == nil {
				continue
			}
			snapped := ev
			snapped.StartUTC = snapTo15(ev.StartUTC)
			snapped.StopUTC = snapTo15(ev.StopUTC)
			candidates = append(candidates, candidate{event: snapped, playable: *sel.Playable})
		}

		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].event.StartUTC.Before(candidates[j].event.StartUTC)
		})

		laneEnd := make([]time.Time, provider.AdbLaneCount)
		for _, c := range candidates {
			laneIdx := -1
			for i := 0; i < provider.AdbLaneCount; i++ {
				if !laneEnd[i].After(c.event.StartUTC) {
					laneIdx = i
					break
				}
			}
			if laneIdx == -1 {
				stats.Dropped++
				continue
			}
			laneNumber := laneIdx + 1
			al := catalog.AdbLane{
				ProviderCode: provider.ProviderCode,
				LaneNumber:   laneNumber,
				ChannelID:    fmt.Sprintf("%s%02d", provider.ProviderCode, laneNumber),
				EventID:      c.event.ID,
				StartUTC:     c.event.StartUTC,
				StopUTC:      c.event.StopUTC,
			}
			if err := store.InsertAdbLane(ctx, al); err != nil {
				return allStats, fmt.Errorf("lanes: insert adb_lane %s: %w", provider.ProviderCode, err)
			}
			laneEnd[laneIdx] = c.event.StopUTC
			stats.Scheduled++
		}

		allStats = append(allStats, stats)
	}
	return allStats, nil
}

func snapTo15(t time.Time) time.Time {
	rounded := t.Truncate(15 * time.Minute)
	return rounded
}

func intersect(a, b []string) []string {
	bs := toSet(b)
	var out []string
	for _, v := range a {
		if bs[v] {
			out = append(out, v)
		}
	}
	return out
}

func toSet(vals []string) map[string]bool {
	out := make(map[string]bool, len(vals))
	for _, v := range vals {
		out[v] = true
	}
	return out
}
