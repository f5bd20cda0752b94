package deeplink

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// graphIDPattern matches an ESPN Graph ID enrichment token:
// "espn-watch:{playID}[:{hash}]".
var graphIDPattern = regexp.MustCompile(`^espn-watch:([^:]+)(?::(.+))?$`)

// tvsUUIDPattern extracts the embedded UUID from an Apple tvs.sbd playable
// id, e.g. "tvs.sbd.30061:{uuid}:...", the fallback when no ESPN graph id
// enrichment is present.
var tvsUUIDPattern = regexp.MustCompile(`^tvs\.sbd\.\d+:([0-9a-fA-F-]{36}):?`)

// playIDFromGraphID extracts the playID (first colon-separated segment)
// from an ESPN Graph ID token, or "" if the token doesn't match.
func playIDFromGraphID(graphID string) string {
	m := graphIDPattern.FindStringSubmatch(graphID)
	if m == nil {
		return ""
	}
	return m[1]
}

// playIDFromTvsUUID extracts the UUID embedded in an Apple tvs.sbd
// playable id, or "" if it doesn't match that pattern.
func playIDFromTvsUUID(playableID string) string {
	m := tvsUUIDPattern.FindStringSubmatch(playableID)
	if m == nil {
		return ""
	}
	return m[1]
}

// Corrected is the result of Correct: the (possibly rewritten) scheme
// deeplink plus its HTTP equivalent, ready for the guide emitters and
// resolver. Callers on both the selection and the emit paths call Correct
// so the ESPN fix lands consistently.
type Corrected struct {
	SchemeURL string
	HTTPURL   string
}

// Correct applies the ESPN Graph ID fix (and its Apple tvs.sbd / locale
// fallbacks) to one playable's deeplink. event supplies the ExternalID used
// as a last-resort playID when the playable's own locale doesn't match the
// caller's language preference. This is the single most important
// correctness fix in the system and must run identically in the direct
// emitter, the lane emitter, and the resolver.
func Correct(p catalog.Playable, event catalog.Event, langPref string) Corrected {
	scheme := firstNonEmpty(p.DeeplinkPlay, p.DeeplinkOpen)
	if !strings.HasPrefix(scheme, "sportscenter://") {
		return Corrected{SchemeURL: scheme, HTTPURL: p.HTTPDeeplinkURL}
	}
	if !strings.Contains(scheme, "playChannel=") && !strings.Contains(scheme, "playID=") {
		return Corrected{SchemeURL: scheme, HTTPURL: p.HTTPDeeplinkURL}
	}

	playID := playIDFromGraphID(p.ESPNGraphID)
	if playID == "" && localeMismatch(p.Locale, langPref) {
		playID = event.ExternalID
	}
	if playID == "" {
		playID = playIDFromTvsUUID(p.PlayableID)
	}
	if playID == "" {
		return Corrected{SchemeURL: scheme, HTTPURL: p.HTTPDeeplinkURL}
	}

	return Corrected{
		SchemeURL: fmt.Sprintf("sportscenter://x-callback-url/showWatchStream?playID=%s", playID),
		HTTPURL:   fmt.Sprintf("https://www.espn.com/watch/player/_/id/%s", playID),
	}
}

func localeMismatch(locale, langPref string) bool {
	if locale == "" || langPref == "" || langPref == "both" {
		return false
	}
	return !localeMatches(locale, langPref)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
