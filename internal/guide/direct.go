package guide

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
	"github.com/fieldguide/dvrguide/internal/deeplink"
	"github.com/fieldguide/dvrguide/internal/mapper"
)

// MissingDeeplink is one row of the missing_direct_deeplinks.json
// diagnostic: an event with a
// pvid but zero playables surviving preference filtering.
type MissingDeeplink struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

// DirectResult is the output of BuildDirect: the two artifact bodies plus
// the diagnostic rows for events that couldn't be emitted.
type DirectResult struct {
	M3U     string
	XMLTV   []byte
	Missing []MissingDeeplink
}

// BuildDirect emits one virtual channel per upcoming event, each carrying
// its selected provider deeplink.
// Events without a pvid are silently skipped.
func BuildDirect(ctx context.Context, store *catalog.Store, prefs catalog.Preferences, daysAhead int, now time.Time, resolverBaseURL string) (DirectResult, error) {
	var result DirectResult

	events, err := store.WindowEvents(ctx, now, 0, daysAhead)
	if err != nil {
		return result, fmt.Errorf("guide: direct window query: %w", err)
	}

	var channels []Channel
	var programmes []Programme
	var entries []ChannelEntry

	for _, ev := range events {
		if ev.PVID == "" {
			continue
		}
		if !deeplink.EventAllowed(ev, prefs) {
			continue
		}

		filtered := deeplink.Filter(ev.Playables, prefs)
		if len(filtered) == 0 {
			result.Missing = append(result.Missing, MissingDeeplink{
				EventID: ev.ID, Title: ev.Title, Reason: "no playable survived preference filtering",
			})
			continue
		}
		sel := deeplink.Select(filtered, prefs, mapper.DefaultPriority)
		if sel.Playable == nil {
			result.Missing = append(result.Missing, MissingDeeplink{
				EventID: ev.ID, Title: ev.Title, Reason: "no candidate selected",
			})
			continue
		}
		corrected := deeplink.Correct(*sel.Playable, ev, prefs.LanguagePreference)

		chID := ChannelID(ev.ID, ev.Title+"."+ev.StartUTC.Format(time.RFC3339))
		provider := mapper.DisplayName(sel.Playable.LogicalService)

		channels = append(channels, Channel{ID: chID, DisplayName: ev.Title, IconURL: ev.HeroImageURL})

		desc := describeEvent(ev, provider, sel.Playable.VariantLabel)
		categories := categoriesFor(ev, provider)

		programmes = append(programmes, Programme{
			ChannelID:  chID,
			Start:      ev.StartUTC,
			Stop:       ev.StopUTC,
			Title:      ev.Title,
			Desc:       desc,
			Categories: categories,
			IconURL:    ev.HeroImageURL,
			Live:       isLive(ev),
			IsReair:    ev.IsReair,
		})
		programmes = append(programmes, continuityProgrammes(chID, ev)...)

		streamURL := corrected.SchemeURL
		if streamURL == "" {
			streamURL = corrected.HTTPURL
		}
		entries = append(entries, ChannelEntry{
			TvgID:      chID,
			TvgChno:    "",
			TvgLogo:    ev.HeroImageURL,
			GroupTitle: provider,
			Name:       ev.Title,
			StreamURL:  streamURL,
		})
	}

	xmltvBody, err := BuildXMLTV(channels, programmes)
	if err != nil {
		return result, err
	}
	result.XMLTV = xmltvBody
	result.M3U = BuildM3U(entries)
	return result, nil
}

// describeEvent builds the "{Sport} - ({LeagueOrDetail}) - {base} -
// Available on {Provider}[ ({feed})]" description string.
func describeEvent(ev catalog.Event, provider, feed string) string {
	sport := ev.Sport()
	league := ev.League()
	if league == "" {
		league = "Event"
	}
	base := ev.SynopsisBrief
	if base == "" {
		base = ev.SynopsisLong
	}
	if base == "" {
		base = ev.Title
	}

	desc := fmt.Sprintf("%s - (%s) - %s - Available on %s", nonEmpty(sport, "Sports"), league, base, provider)
	if feed != "" {
		desc += fmt.Sprintf(" (%s)", feed)
	}
	return desc
}

// continuityBlocks is how many one-hour blocks of "Event Not Started" /
// "Event Ended" placeholder guide data surround each direct channel's
// single programme, so the DVR's continuous guide doesn't show a gap for
// a single-event channel.
const continuityBlocks = 3

// continuityProgrammes builds the pre-event "Event Not Started" and
// post-event "Event Ended" placeholder programmes in one-hour blocks.
func continuityProgrammes(chID string, ev catalog.Event) []Programme {
	var out []Programme
	for i := continuityBlocks; i >= 1; i-- {
		start := ev.StartUTC.Add(-time.Duration(i) * time.Hour)
		stop := start.Add(time.Hour)
		out = append(out, Programme{
			ChannelID: chID, Start: start, Stop: stop,
			Title: "Event Not Started", Desc: fmt.Sprintf("%s begins %s local.", ev.Title, ev.StartUTC.Local().Format("3:04 PM MST")),
		})
	}
	for i := 0; i < continuityBlocks; i++ {
		start := ev.StopUTC.Add(time.Duration(i) * time.Hour)
		stop := start.Add(time.Hour)
		out = append(out, Programme{
			ChannelID: chID, Start: start, Stop: stop,
			Title: "Event Ended", Desc: fmt.Sprintf("%s ended %s local.", ev.Title, ev.StopUTC.Local().Format("3:04 PM MST")),
		})
	}
	return out
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// categoriesFor builds the <category> list: provider display name,
// "Sports", "Sports Event", sport, league, additional genres.
func categoriesFor(ev catalog.Event, provider string) []string {
	cats := []string{provider, "Sports", "Sports Event"}
	if sport := ev.Sport(); sport != "" {
		cats = append(cats, sport)
	}
	if league := ev.League(); league != "" {
		cats = append(cats, league)
	}
	for _, g := range ev.Genres {
		if g != ev.Sport() {
			cats = append(cats, g)
		}
	}
	return cats
}

// isLive applies the live-detection heuristic: the raw payload exposes
// playbackType=LIVE / isLive=true, or default-true for sports.
func isLive(ev catalog.Event) bool {
	payload := strings.ToLower(ev.RawPayload)
	if strings.Contains(payload, `"islive":true`) || strings.Contains(payload, `"playbacktype":"live"`) {
		return true
	}
	// Default true: every event reaching the emitters already carries a
	// sport classification (non-sports events are dropped at ingest).
	return true
}
