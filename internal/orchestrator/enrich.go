package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// EnrichStats summarizes one ESPN Graph ID backfill pass.
type EnrichStats struct {
	Scanned    int
	Backfilled int
}

// EnrichESPNGraphIDs is the pipeline stage inserted after ingest and
// before lane rebuild: it scans ESPN
// playables still missing espn_graph_id and backfills them from the
// espn_graph_map lookup, keyed on the owning event's external id and the
// playable's locale. Playables the lookup doesn't cover yet are left alone;
// deeplink.Correct falls back to its own URL-derived correction at request
// time regardless.
func EnrichESPNGraphIDs(ctx context.Context, store *catalog.Store, now time.Time, daysAhead int, log *logrus.Entry) (EnrichStats, error) {
	var stats EnrichStats

	events, err := store.WindowEvents(ctx, now, 1, daysAhead)
	if err != nil {
		return stats, fmt.Errorf("orchestrator: enrich window query: %w", err)
	}

	for _, ev := range events {
		for _, p := range ev.Playables {
			if !strings.HasPrefix(p.LogicalService, "espn") {
				continue
			}
			if p.ESPNGraphID != "" {
				continue
			}
			stats.Scanned++

			graphID, err := store.ESPNGraphLookup(ctx, ev.ExternalID, p.Locale)
			if err != nil {
				return stats, fmt.Errorf("orchestrator: espn graph lookup %s: %w", ev.ExternalID, err)
			}
			if graphID == "" {
				continue
			}
			if err := store.UpdatePlayableESPNGraphID(ctx, ev.ID, p.PlayableID, graphID); err != nil {
				return stats, fmt.Errorf("orchestrator: backfill espn graph id %s/%s: %w", ev.ID, p.PlayableID, err)
			}
			stats.Backfilled++
		}
	}

	log.WithFields(logrus.Fields{
		"scanned":    stats.Scanned,
		"backfilled": stats.Backfilled,
	}).Info("espn graph id enrichment complete")
	return stats, nil
}
