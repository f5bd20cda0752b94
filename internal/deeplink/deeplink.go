// Package deeplink implements the deeplink engine: filtering,
// priority ordering, ESPN/Apple correction, and scheme<->HTTP conversion
// for the set of playables on one event.
package deeplink

import (
	"sort"
	"strings"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// amazonPenalty is subtracted from the score of every aiv* candidate when
// the user has enabled the Amazon penalty and at least one non-Amazon
// candidate survives filtering.
const amazonPenalty = 1000

// EventAllowed reports whether an event survives the user's content
// filters: a disabled_sports or disabled_leagues match against the event's
// classification drops the whole event upstream of playable selection.
func EventAllowed(ev catalog.Event, prefs catalog.Preferences) bool {
	for _, c := range ev.Classification {
		switch c.Type {
		case "sport":
			for _, disabled := range prefs.DisabledSports {
				if strings.EqualFold(c.Value, disabled) {
					return false
				}
			}
		case "league":
			for _, disabled := range prefs.DisabledLeagues {
				if strings.EqualFold(c.Value, disabled) {
					return false
				}
			}
		}
	}
	return true
}

// Filter drops playables that don't survive the user's enabled_services
// and language preference. Event-level
// disabled_sports/disabled_leagues filtering happens upstream of this
// engine, against the owning event's classification, not here.
func Filter(playables []catalog.Playable, prefs catalog.Preferences) []catalog.Playable {
	out := playables
	if len(prefs.EnabledServices) > 0 {
		allowed := make(map[string]bool, len(prefs.EnabledServices))
		for _, s := range prefs.EnabledServices {
			allowed[s] = true
		}
		filtered := out[:0:0]
		for _, p := range out {
			if allowed[p.LogicalService] {
				filtered = append(filtered, p)
			}
		}
		out = filtered
	}
	out = filterByLanguage(out, prefs.LanguagePreference)
	return out
}

// filterByLanguage keeps only playables whose locale matches pref ("en" ->
// en_US, "es" -> es_MX; "both" or "" disables the filter). If applying the
// filter would eliminate every candidate, the unfiltered set is returned
// instead: playables are never categorically dropped for locale alone.
func filterByLanguage(playables []catalog.Playable, pref string) []catalog.Playable {
	if pref == "" || pref == "both" {
		return playables
	}
	var matched []catalog.Playable
	for _, p := range playables {
		if p.Locale == "" || localeMatches(p.Locale, pref) {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return playables
	}
	return matched
}

func localeMatches(locale, langPref string) bool {
	switch langPref {
	case "en":
		return strings.HasPrefix(locale, "en")
	case "es":
		return strings.HasPrefix(locale, "es")
	}
	return true
}

// score computes the selection-path score for one playable: higher is
// better (see DESIGN.md). It inverts the legacy lower-is-better
// default/override
// priority so ordering and the Amazon penalty are simple arithmetic.
func score(p catalog.Playable, prefs catalog.Preferences, hasNonAmazon bool, defaultPriority func(string) int) int {
	base, overridden := prefs.ServicePriorities[p.LogicalService]
	if !overridden {
		base = defaultPriority(p.LogicalService)
	}
	s := -base // invert: lower legacy priority -> higher score
	if prefs.AmazonPenalty && hasNonAmazon && strings.HasPrefix(p.LogicalService, "aiv") {
		s -= amazonPenalty
	}
	return s
}

// Selection is the result of Select: the winning playable plus a
// human-readable reason, the debuggability hook consumed by the
// selection-examples endpoint.
type Selection struct {
	Playable *catalog.Playable
	Reason   string
}

// Select orders the filtered candidate set and returns the winner: score,
// then stored priority, then stable insertion order. defaultPriority is
// injected so callers can substitute
// mapper.DefaultPriority without this package importing mapper.
func Select(playables []catalog.Playable, prefs catalog.Preferences, defaultPriority func(string) int) Selection {
	if len(playables) == 0 {
		return Selection{}
	}
	hasNonAmazon := false
	for _, p := range playables {
		if !strings.HasPrefix(p.LogicalService, "aiv") {
			hasNonAmazon = true
			break
		}
	}

	type scored struct {
		p   catalog.Playable
		idx int
		sc  int
	}
	ranked := make([]scored, len(playables))
	for i, p := range playables {
		ranked[i] = scored{p: p, idx: i, sc: score(p, prefs, hasNonAmazon, defaultPriority)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sc != ranked[j].sc {
			return ranked[i].sc > ranked[j].sc
		}
		if ranked[i].p.Priority != ranked[j].p.Priority {
			return ranked[i].p.Priority < ranked[j].p.Priority
		}
		return ranked[i].idx < ranked[j].idx
	})

	winner := ranked[0]
	reason := reasonFor(winner.p, playables, prefs, hasNonAmazon, defaultPriority)
	w := winner.p
	return Selection{Playable: &w, Reason: reason}
}

// reasonFor produces the human-readable explanation string the
// selection-examples endpoint surfaces.
func reasonFor(winner catalog.Playable, all []catalog.Playable, prefs catalog.Preferences, hasNonAmazon bool, defaultPriority func(string) int) string {
	if len(all) == 1 {
		if len(prefs.EnabledServices) > 0 {
			return "only enabled service"
		}
		return "only available service"
	}
	reason := "highest priority among enabled"
	if prefs.AmazonPenalty && hasNonAmazon && !strings.HasPrefix(winner.LogicalService, "aiv") {
		for _, p := range all {
			if strings.HasPrefix(p.LogicalService, "aiv") {
				reason += " (Amazon deprioritized)"
				break
			}
		}
	}
	return reason
}
