// Package mapper implements the logical-service mapper: a pure
// function from (raw provider scheme, URLs, event classification) to a
// stable logical service code, plus the display-name, priority, and ADB
// aggregation tables that code owns.
//
// Resolve never trusts logical_service from upstream; it is always
// recomputed at ingest time from the raw scheme and URLs.
package mapper

import (
	"net/url"
	"strings"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// webSchemes are the schemes that do NOT already uniquely identify a
// logical service, so Resolve falls through to hostname extraction for
// them.
var webSchemes = map[string]bool{"": true, "http": true, "https": true}

// hostnameTable maps a web hostname to its logical service code. Apple TV
// hostnames route through resolveAppleTV instead.
var hostnameTable = map[string]string{
	"peacocktv.com":          "peacock_web",
	"www.peacocktv.com":      "peacock_web",
	"max.com":                "max",
	"www.max.com":            "max",
	"play.max.com":           "max",
	"f1tv.formula1.com":      "f1tv",
	"tv.apple.com":           "apple_tv",
	"www.paramountplus.com":  "pplus_web",
	"www.cbs.com":            "cbs_web",
	"www.cbssports.com":      "cbs_sports_web",
	"www.foxsports.com":      "fox_sports_web",
	"www.nbcsports.com":      "nbc_sports_web",
	"www.nfl.com":            "nfl_plus_web",
	"www.espn.com":           "espn_web",
	"watch.espn.com":         "espn_web",
	"dazn.com":               "dazn_web",
	"www.dazn.com":           "dazn_web",
	"open.dazn.com":          "dazn_web",
	"kayosports.com.au":      "kayo_web",
	"www.kayosports.com.au":  "kayo_web",
	"www.beinsports.com":     "bein_web",
	"www.fanatiz.com":        "fanatiz_web",
	"www.gotham.net":         "gotham_web",
	"gametime.co":            "gametime_web",
	"www.gametime.co":        "gametime_web",
	"www.victoryplus.com":    "victory_plus_web",
	"vix.com":                "vix_web",
	"app.primevideo.com":     "aiv_prime",
}

// appleLeagueTable maps a league classification value to the logical service
// Apple TV uses when it is the home of that league's rights.
var appleLeagueTable = map[string]string{
	"MLS": "apple_mls",
	"MLB": "apple_mlb",
	"NBA": "apple_nba",
	"NHL": "apple_nhl",
}

// Resolve computes the stable logical service code for one playable.
//
// classification is the owning Event's classification list, consulted only
// for the apple_tv league-routing special case.
func Resolve(rawProviderScheme, deeplinkPlay, deeplinkOpen, playableURL string, classification []catalog.Classification) string {
	scheme := strings.ToLower(strings.TrimSpace(rawProviderScheme))
	if !webSchemes[scheme] {
		return rawProviderScheme
	}

	host := firstHostname(deeplinkPlay, deeplinkOpen, playableURL)
	if host == "" {
		return "https"
	}

	code, ok := hostnameTable[host]
	if !ok {
		return "https"
	}

	if code == "apple_tv" {
		return resolveAppleTV(classification)
	}
	return code
}

// resolveAppleTV routes an Apple TV hit to the league-specific logical
// service, or apple_other when no league in the classification is one Apple
// has a dedicated code for.
func resolveAppleTV(classification []catalog.Classification) string {
	for _, c := range classification {
		if c.Type != "league" {
			continue
		}
		if code, ok := appleLeagueTable[strings.ToUpper(c.Value)]; ok {
			return code
		}
	}
	return "apple_other"
}

// firstHostname returns the hostname of the first non-empty, parseable URL
// among candidates.
func firstHostname(candidates ...string) string {
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		return strings.ToLower(u.Hostname())
	}
	return ""
}
