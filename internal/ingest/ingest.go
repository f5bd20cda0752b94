// Package ingest defines the external contract every provider ingester
// satisfies: a standalone unit, invoked by the refresh
// orchestrator, that turns one upstream's raw schedule into catalog rows.
//
// Credentials flow in as the catalog.AuthBlob stored for the provider's
// upstream, exactly as the catalog returns it (this path does no
// decryption), and are never logged; ingesters build provider requests from
// them and discard them as soon as the request is built.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

// Source is everything one ingester run is given: optional persisted
// credentials, an optional raw snapshot file to replay instead of hitting
// the network (used for fixture-driven debugging), and a wall-clock time
// window.
type Source struct {
	Auth         *catalog.AuthBlob
	SnapshotPath string
	Now          time.Time
	DaysAhead    int
}

// Ingester is the interface every provider scraper satisfies. FetchEvents
// returns raw, not-yet-normalized events: logical_service on each playable
// may be empty or a raw provider string, and is never trusted; Run always
// recomputes it after normalization.
type Ingester interface {
	// Code is the provider code used as a key throughout the catalog
	// (e.g. "espn", "peacock", "amazon").
	Code() string
	// FetchEvents retrieves the provider's current schedule window.
	FetchEvents(ctx context.Context, src Source) ([]catalog.Event, error)
}

// Factory constructs an Ingester, one per provider code.
type Factory func() Ingester

// Registry holds the known ingester factories, keyed by provider code.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds (or replaces) the factory for a provider code.
func (r *Registry) Register(code string, f Factory) {
	r.factories[code] = f
}

// Codes returns every registered provider code.
func (r *Registry) Codes() []string {
	out := make([]string, 0, len(r.factories))
	for code := range r.factories {
		out = append(out, code)
	}
	return out
}

// Build constructs the named ingester, or an error if the code is unknown.
func (r *Registry) Build(code string) (Ingester, error) {
	f, ok := r.factories[code]
	if !ok {
		return nil, fmt.Errorf("ingest: unknown provider code %q", code)
	}
	return f(), nil
}

// Result summarizes one ingester run for logging and the orchestrator's
// status surface.
type Result struct {
	ProviderCode   string
	Fetched        int
	DroppedNoSport int
	DroppedReplay  int
	Deduplicated   int
	Upserted       int
}

// Run fetches, normalizes, deduplicates, and upserts one provider's events
// into the catalog store: the full ingest pipeline the orchestrator
// invokes per enabled ingester.
func Run(ctx context.Context, store *catalog.Store, ing Ingester, src Source, log *logrus.Entry) (Result, error) {
	res := Result{ProviderCode: ing.Code()}
	log = log.WithField("provider", ing.Code())

	raw, err := ing.FetchEvents(ctx, src)
	if err != nil {
		return res, fmt.Errorf("ingest: %s: fetch events: %w", ing.Code(), err)
	}
	res.Fetched = len(raw)

	normalized := make([]catalog.Event, 0, len(raw))
	for _, ev := range raw {
		norm, keep := Normalize(ev, src.Now)
		if !keep {
			if norm.Sport() == "" {
				res.DroppedNoSport++
			} else {
				res.DroppedReplay++
			}
			continue
		}
		normalized = append(normalized, norm)
	}

	kept, discarded := catalog.DedupeFreshest(normalized)
	res.Deduplicated = discarded

	// logical_service is never trusted from upstream: it is recomputed here
	// from the raw scheme and URLs, then Amazon GTIs are remapped to their
	// aiv sub-service via the persisted channel table.
	gtiMap, err := store.AllAmazonGTIs(ctx)
	if err != nil {
		return res, fmt.Errorf("ingest: %s: load amazon gti map: %w", ing.Code(), err)
	}
	for i := range kept {
		ev := &kept[i]
		for j := range ev.Playables {
			p := &ev.Playables[j]
			p.LogicalService = mapper.Resolve(p.RawScheme, p.DeeplinkPlay, p.DeeplinkOpen, p.PlayableURL, ev.Classification)
			p.LogicalService = mapper.ResolveAmazonSubService(p.LogicalService, gtiMap, p.DeeplinkPlay, p.DeeplinkOpen, p.PlayableURL)
		}
	}

	for _, ev := range kept {
		if err := store.UpsertEvent(ctx, ev); err != nil {
			log.WithError(err).WithField("external_id", ev.ExternalID).Warn("upsert failed, skipping event")
			continue
		}
		res.Upserted++
	}

	log.WithFields(logrus.Fields{
		"fetched":          res.Fetched,
		"dropped_no_sport": res.DroppedNoSport,
		"dropped_replay":   res.DroppedReplay,
		"deduplicated":     res.Deduplicated,
		"upserted":         res.Upserted,
	}).Info("ingest run complete")

	return res, nil
}
