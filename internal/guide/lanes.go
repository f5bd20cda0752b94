package guide

import (
	"context"
	"fmt"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// LaneResult is the output of BuildLanes: the three generic-lane artifacts
// (multisource_lanes.m3u/.xml and the Chrome M3U variant, which carries the
// same entries because every lane stream URL is the resolver's HTTP(S) HLS,
// never an app scheme).
type LaneResult struct {
	M3U       string
	XMLTV     []byte
	ChromeM3U string
}

// BuildLanes emits the generic lane pool's M3U + XMLTV, where each lane is
// a fixed virtual channel whose stream URL points at the resolver/stub HLS
// on the resolver rather than at a deeplink directly.
func BuildLanes(ctx context.Context, store *catalog.Store, resolverBaseURL string) (LaneResult, error) {
	var result LaneResult

	lanesList, err := store.ListLanes(ctx)
	if err != nil {
		return result, fmt.Errorf("guide: list lanes: %w", err)
	}

	var channels []Channel
	var programmes []Programme
	var entries, chromeEntries []ChannelEntry

	for _, lane := range lanesList {
		chID := LaneChannelID(lane.LaneID)
		channels = append(channels, Channel{ID: chID, DisplayName: lane.DisplayName})

		slots, err := store.LaneEventsForLane(ctx, lane.LaneID)
		if err != nil {
			return result, fmt.Errorf("guide: lane events for %d: %w", lane.LaneID, err)
		}
		for _, slot := range slots {
			title := slot.Title
			desc := ""
			categories := []string{"Sports"}
			if slot.IsPlaceholder {
				if title == "" {
					title = "Nothing Scheduled"
				}
			} else {
				if slot.ChosenProvider != "" {
					desc = fmt.Sprintf("Available on %s", slot.ChosenProvider)
				}
				categories = append(categories, "Sports Event")
			}
			programmes = append(programmes, Programme{
				ChannelID: chID, Start: slot.StartUTC, Stop: slot.EndUTC,
				Title: title, Desc: desc, Categories: categories,
				Live: !slot.IsPlaceholder,
			})
		}

		streamURL := fmt.Sprintf("%s/lane/%d/stream.m3u8", resolverBaseURL, lane.LaneID)
		entry := ChannelEntry{
			TvgID: chID, TvgChno: fmt.Sprintf("%d", lane.LogicalNumber),
			GroupTitle: "Sports Lanes", Name: lane.DisplayName, StreamURL: streamURL,
		}
		entries = append(entries, entry)
		// The Chrome variant is identical: the resolver URL is always
		// HTTP(S) HLS, never an app scheme, so nothing needs stripping.
		chromeEntries = append(chromeEntries, entry)
	}

	xmltvBody, err := BuildXMLTV(channels, programmes)
	if err != nil {
		return result, err
	}
	result.XMLTV = xmltvBody
	result.M3U = BuildM3U(entries)
	result.ChromeM3U = BuildM3U(chromeEntries)
	return result, nil
}
