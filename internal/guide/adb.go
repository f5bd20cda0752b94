package guide

import (
	"context"
	"fmt"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/deeplink"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

// AdbResult is the output of BuildAdbGuide: the combined artifacts covering
// every enabled provider, plus the per-provider M3U bodies, which the
// orchestrator writes out individually as adb_lanes_{provider_code}.m3u.
type AdbResult struct {
	M3U            string
	XMLTV          []byte
	PerProviderM3U map[string]string
}

// BuildAdbGuide emits the combined and per-provider ADB lane artifacts. Each
// provider-scoped lane is a fixed virtual channel numbered within that
// provider's own namespace. Like the generic pool, the
// M3U stream URL points at the resolver's stub HLS rather than at a
// deeplink directly, so a fixed channel list survives the rebuild that
// changes what's playing inside it.
func BuildAdbGuide(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, resolverBaseURL string) (AdbResult, error) {
	var result AdbResult
	result.PerProviderM3U = map[string]string{}

	providers, err := store.EnabledProviderLanes(ctx)
	if err != nil {
		return result, fmt.Errorf("guide: list provider lanes: %w", err)
	}

	var channels []Channel
	var programmes []Programme
	var allEntries []ChannelEntry

	for _, provider := range providers {
		services := mapper.ServicesForAdbProvider(provider.ProviderCode)
		serviceSet := make(map[string]bool, len(services))
		for _, s := range services {
			serviceSet[s] = true
		}

		slots, err := store.AdbLanesForProvider(ctx, provider.ProviderCode)
		if err != nil {
			return result, fmt.Errorf("guide: adb lanes for %s: %w", provider.ProviderCode, err)
		}

		var providerEntries []ChannelEntry
		seenChannels := map[string]bool{}

		for _, slot := range slots {
			chID := AdbChannelID(slot.ChannelID)
			displayName := fmt.Sprintf("%s %d", mapper.DisplayName(provider.ProviderCode), slot.LaneNumber)

			if !seenChannels[chID] {
				seenChannels[chID] = true
				channels = append(channels, Channel{ID: chID, DisplayName: displayName})

				streamURL := fmt.Sprintf("%s/adb/%s/%d/stream.m3u8", resolverBaseURL, provider.ProviderCode, slot.LaneNumber)
				providerEntries = append(providerEntries, ChannelEntry{
					TvgID:      chID,
					TvgChno:    fmt.Sprintf("%d", slot.LaneNumber),
					GroupTitle: mapper.DisplayName(provider.ProviderCode),
					Name:       displayName,
					StreamURL:  streamURL,
				})
			}

			ev, err := store.EventByID(ctx, slot.EventID)
			if err != nil {
				return result, fmt.Errorf("guide: event %s: %w", slot.EventID, err)
			}
			if ev == nil {
				continue
			}

			var inService []catalog.Playable
			for _, p := range ev.Playables {
				if serviceSet[p.LogicalService] {
					inService = append(inService, p)
				}
			}
			filtered := deeplink.Filter(inService, prefs)
			sel := deeplink.Select(filtered, prefs, mapper.DefaultPriority)

			desc := ""
			if sel.Playable != nil {
				desc = fmt.Sprintf("Available on %s", mapper.DisplayName(sel.Playable.LogicalService))
			}

			programmes = append(programmes, Programme{
				ChannelID: chID, Start: slot.StartUTC, Stop: slot.StopUTC,
				Title: ev.Title, Desc: desc,
				Categories: []string{mapper.DisplayName(provider.ProviderCode), "Sports"},
				Live:       true,
			})
		}

		result.PerProviderM3U[provider.ProviderCode] = BuildM3U(providerEntries)
		allEntries = append(allEntries, providerEntries...)
	}

	xmltvBody, err := BuildXMLTV(channels, programmes)
	if err != nil {
		return result, err
	}
	result.XMLTV = xmltvBody
	result.M3U = BuildM3U(allEntries)
	return result, nil
}
