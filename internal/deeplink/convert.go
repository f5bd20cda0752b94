package deeplink

import (
	"net/url"
	"regexp"
	"strings"
)

// leagueSlugs is the small static table for the cbssportsapp conversion;
// unlisted leagues fall back to slugify.
var leagueSlugs = map[string]string{
	"NFL":  "nfl",
	"NBA":  "nba",
	"MLB":  "mlb",
	"NHL":  "nhl",
	"NCAA": "college-football",
	"PGA":  "golf",
}

// genericSchemeHost matches a last-resort "scheme://www.domain/..." URL
// whose host already looks like a normal web host, rewritten to https when
// no provider-specific conversion matched.
var genericSchemeHost = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://(www\.[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}.*)$`)

// ToHTTP converts a scheme deeplink to its HTTP equivalent for
// Android/FireTV clients via per-provider rewrites. league is the event's
// league classification (for the cbssportsapp slug lookup); locale is the
// playable's locale (for the vixapp rewrite).
// Returns ("", false) when no conversion is known; callers keep the
// scheme URL in that case.
func ToHTTP(schemeURL, league, locale string) (string, bool) {
	if schemeURL == "" {
		return "", false
	}
	if strings.HasPrefix(schemeURL, "http://") || strings.HasPrefix(schemeURL, "https://") {
		return schemeURL, true
	}

	u, err := url.Parse(schemeURL)
	if err != nil {
		return "", false
	}

	switch {
	case strings.HasPrefix(schemeURL, "aiv://"):
		gti := u.Query().Get("gti")
		if gti == "" {
			return "", false
		}
		return "https://app.primevideo.com/detail?gti=" + gti, true

	case strings.HasPrefix(schemeURL, "sportscenter://"):
		playID := u.Query().Get("playID")
		if playID == "" {
			return "", false
		}
		return "https://www.espn.com/watch/player/_/id/" + playID, true

	case strings.HasPrefix(schemeURL, "pplus://"):
		return "https://" + u.Host + u.Path, true

	case strings.HasPrefix(schemeURL, "cbstve://"):
		return "https://" + u.Host + u.Path, true

	case strings.HasPrefix(schemeURL, "open.dazn.com://"):
		rest := strings.TrimPrefix(schemeURL, "open.dazn.com://")
		return "https://open.dazn.com/" + rest, true

	case strings.HasPrefix(schemeURL, "vixapp://"):
		loc := locale
		if loc == "" {
			loc = "en-us"
		}
		// url.Parse puts the first path token ("live") in u.Host.
		return "https://vix.com/" + strings.ToLower(loc) + "/" + u.Host + u.Path + queryString(u), true

	case strings.HasPrefix(schemeURL, "fsapp://"):
		channel := lastPathSegment(u)
		return "https://www.foxsports.com/live/" + strings.ToLower(channel) + queryString(u), true

	case strings.HasPrefix(schemeURL, "foxone://"):
		channel := lastPathSegment(u)
		return "https://www.foxsports.com/live/" + strings.ToLower(channel), true

	case strings.HasPrefix(schemeURL, "watchtnt://"):
		rest := strings.TrimPrefix(schemeURL, "watchtnt://play")
		return "https://www.tntdrama.com/watchtnt" + rest, true

	case strings.HasPrefix(schemeURL, "watchtru://"):
		rest := strings.TrimPrefix(schemeURL, "watchtru://play")
		return "https://www.trutv.com/watchtrutv" + rest, true

	case strings.HasPrefix(schemeURL, "gametime://"):
		return stripAppleTracking(schemeURL), true

	case strings.HasPrefix(schemeURL, "nbcsportstve://"):
		return "https://www.nbcsports.com/watch/schedule", true

	case strings.HasPrefix(schemeURL, "cbssportsapp://"):
		slug := leagueSlug(league)
		id := lastPathSegment(u)
		return "https://www.cbssports.com/watch/" + slug + "/" + id, true

	case strings.HasPrefix(schemeURL, "nflctv://"):
		return "https://www.nfl.com/plus/", true
	}

	if m := genericSchemeHost.FindStringSubmatch(schemeURL); m != nil {
		return "https://" + m[1], true
	}

	return "", false
}

func queryString(u *url.URL) string {
	if u.RawQuery == "" {
		return ""
	}
	return "?" + u.RawQuery
}

// lastPathSegment returns the final "/"-separated segment of u's path
// (e.g. the channel id in "fsapp://live/FS1" or the league-event id in
// "cbssportsapp://home/watch/LET-N"). Falls back to the host when the URL
// carries no path of its own.
func lastPathSegment(u *url.URL) string {
	trimmed := strings.Trim(u.Path, "/")
	if trimmed == "" {
		return u.Host
	}
	segs := strings.Split(trimmed, "/")
	return segs[len(segs)-1]
}

// stripAppleTracking drops the entire query string from a gametime://
// deeplink without converting it to HTTP. Apple's punchout appends
// x-source=umc.ums.apple.tvapp and friends, and the NBA app opens to the
// home screen instead of the event when any of it is left on the URL.
func stripAppleTracking(schemeURL string) string {
	if i := strings.Index(schemeURL, "?"); i >= 0 {
		return schemeURL[:i]
	}
	return schemeURL
}

func leagueSlug(league string) string {
	if slug, ok := leagueSlugs[strings.ToUpper(league)]; ok {
		return slug
	}
	return slugify(league)
}

func slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "other"
	}
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
