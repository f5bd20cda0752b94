// Package resolver implements the "what's on" resolver: mapping
// "lane L at time T" (or "provider P lane N at time T") to the concrete
// deeplink currently scheduled there, including the fallback window that
// covers the padding after a real event ends.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/deeplink"
)

// WhatsOn is the answer to "what's playing on this lane right now", shared
// by every resolver HTTP surface.
type WhatsOn struct {
	OK              bool   `json:"ok"`
	Lane            string `json:"lane"`
	EventUID        string `json:"event_uid,omitempty"`
	Title           string `json:"title,omitempty"`
	DeeplinkURL     string `json:"deeplink_url,omitempty"`
	DeeplinkURLFull string `json:"deeplink_url_full,omitempty"`
	IsFallback      bool   `json:"is_fallback"`
}

// Resolve answers "what's on lane `laneID` at `at`" against the generic
// lane pool. Lane slots carry the event's real end; when `at` lands past
// that (in the uncovered padding gap or on a placeholder) and a real event
// ended within paddingMinutes, its deeplink is returned instead with
// is_fallback=true.
func Resolve(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, laneID int, at time.Time, paddingMinutes int, defaultPriority func(string) int) (WhatsOn, error) {
	laneLabel := fmt.Sprintf("%d", laneID)

	current, err := store.CurrentLaneEvent(ctx, laneID, at)
	if err != nil {
		return WhatsOn{}, fmt.Errorf("resolver: current lane event: %w", err)
	}

	if current != nil && !current.IsPlaceholder {
		return resolveFromLaneEvent(ctx, store, prefs, laneLabel, *current, false, defaultPriority)
	}

	ended, err := store.MostRecentEndedLaneEvent(ctx, laneID, at)
	if err != nil {
		return WhatsOn{}, fmt.Errorf("resolver: most recent ended lane event: %w", err)
	}
	if ended != nil && at.Sub(ended.EndUTC) <= time.Duration(paddingMinutes)*time.Minute {
		return resolveFromLaneEvent(ctx, store, prefs, laneLabel, *ended, true, defaultPriority)
	}

	return WhatsOn{OK: false, Lane: laneLabel}, nil
}

func resolveFromLaneEvent(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, laneLabel string, le catalog.LaneEvent, isFallback bool, defaultPriority func(string) int) (WhatsOn, error) {
	if le.EventID == "" {
		return WhatsOn{OK: false, Lane: laneLabel}, nil
	}
	ev, err := store.EventByID(ctx, le.EventID)
	if err != nil {
		return WhatsOn{}, fmt.Errorf("resolver: event by id %s: %w", le.EventID, err)
	}
	if ev == nil {
		return WhatsOn{OK: false, Lane: laneLabel}, nil
	}

	filtered := deeplink.Filter(ev.Playables, prefs)
	sel := deeplink.Select(filtered, prefs, defaultPriority)
	if sel.Playable == nil {
		return WhatsOn{OK: false, Lane: laneLabel}, nil
	}
	corrected := deeplink.Correct(*sel.Playable, *ev, prefs.LanguagePreference)

	return WhatsOn{
		OK:              true,
		Lane:            laneLabel,
		EventUID:        ev.ID,
		Title:           ev.Title,
		DeeplinkURL:     corrected.SchemeURL,
		DeeplinkURLFull: corrected.HTTPURL,
		IsFallback:      isFallback,
	}, nil
}

// ResolveAdb answers the provider-scoped equivalent of Resolve. The
// fallback-during-padding window only applies to generic lanes; an ended
// ADB slot simply answers ok:false once its window closes.
func ResolveAdb(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, providerCode string, laneNumber int, at time.Time, serviceSet map[string]bool, defaultPriority func(string) int) (WhatsOn, error) {
	laneLabel := fmt.Sprintf("%s/%d", providerCode, laneNumber)

	if len(prefs.EnabledServices) > 0 {
		anyEnabled := false
		for svc := range serviceSet {
			for _, enabled := range prefs.EnabledServices {
				if svc == enabled {
					anyEnabled = true
					break
				}
			}
		}
		if !anyEnabled {
			return WhatsOn{OK: false, Lane: laneLabel}, nil
		}
	}

	slot, err := store.CurrentAdbLane(ctx, providerCode, laneNumber, at)
	if err != nil {
		return WhatsOn{}, fmt.Errorf("resolver: current adb lane %s: %w", laneLabel, err)
	}
	if slot == nil {
		return WhatsOn{OK: false, Lane: laneLabel}, nil
	}

	ev, err := store.EventByID(ctx, slot.EventID)
	if err != nil {
		return WhatsOn{}, fmt.Errorf("resolver: event by id %s: %w", slot.EventID, err)
	}
	if ev == nil {
		return WhatsOn{OK: false, Lane: laneLabel}, nil
	}

	var inService []catalog.Playable
	for _, p := range ev.Playables {
		if serviceSet[p.LogicalService] {
			inService = append(inService, p)
		}
	}
	filtered := deeplink.Filter(inService, prefs)
	sel := deeplink.Select(filtered, prefs, defaultPriority)
	if sel.Playable == nil {
		return WhatsOn{OK: false, Lane: laneLabel}, nil
	}
	corrected := deeplink.Correct(*sel.Playable, *ev, prefs.LanguagePreference)

	return WhatsOn{
		OK: true, Lane: laneLabel, EventUID: ev.ID, Title: ev.Title,
		DeeplinkURL: corrected.SchemeURL, DeeplinkURLFull: corrected.HTTPURL,
	}, nil
}
