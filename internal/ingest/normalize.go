package ingest

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

// sportSubstrings consolidates every raw sport/category/genre string into
// a small closed sport set via substring matching. Order matters: entries
// are tried top to bottom and the first substring hit wins, so "American
// Football" is tried before the bare "Football" that would otherwise
// mis-tag it as Soccer. A string matching no entry yields no sport; there
// is no catch-all "Other" entry.
var sportSubstrings = []struct {
	sport      string
	substrings []string
}{
	{"American Football", []string{"american football", "nfl", "ncaaf", "gridiron"}},
	{"Gridiron", []string{"cfl", "gridiron"}},
	{"Soccer", []string{"soccer", "football", "fifa", "uefa", "mls", "premier league", "la liga", "bundesliga", "serie a"}},
	{"Tennis", []string{"tennis", "atp", "wta"}},
	{"Basketball", []string{"basketball", "nba", "ncaab", "wnba"}},
	{"Hockey", []string{"hockey", "nhl"}},
	{"Rugby", []string{"rugby"}},
	{"Handball", []string{"handball"}},
	{"Motorsports", []string{"motorsport", "f1", "formula 1", "formula1", "nascar", "indycar", "motogp", "rally"}},
	{"Combat Sports", []string{"boxing", "mma", "ufc", "wrestling", "combat sport"}},
	{"Equestrian", []string{"equestrian", "horse racing", "show jumping"}},
	{"Cricket", []string{"cricket"}},
	{"Golf", []string{"golf", "pga"}},
	{"Volleyball", []string{"volleyball"}},
	{"Athletics", []string{"athletics", "track and field", "marathon"}},
	{"Baseball", []string{"baseball", "mlb"}},
	{"Table Tennis", []string{"table tennis", "ping pong"}},
	{"Darts", []string{"darts"}},
	{"Lacrosse", []string{"lacrosse"}},
	{"Netball", []string{"netball"}},
	{"Water Sports", []string{"swimming", "water polo", "diving", "rowing", "sailing", "surfing"}},
	{"Winter Sports", []string{"ski", "snowboard", "biathlon", "bobsled", "curling", "figure skating", "speed skating"}},
	{"Cycling", []string{"cycling", "tour de france"}},
	{"Olympic Sports", []string{"olympic", "olympics", "paralympic"}},
}

// replayTokens flags replays, encores, archival re-airs, magazine shows,
// and highlight packages, all dropped at ingest.
var replayTokens = []string{
	"replay", "encore", "rerun", "re-air", "classic game", "classic match",
	"best of", "highlights", "magazine", "flashback", "vintage",
}

var priorYearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// NormalizeSport maps raw sport/category/genre strings onto the closed
// sport set by substring match, or returns ("", false) if none match.
func NormalizeSport(raw ...string) (string, bool) {
	for _, r := range raw {
		lower := strings.ToLower(r)
		if lower == "" {
			continue
		}
		for _, entry := range sportSubstrings {
			for _, sub := range entry.substrings {
				if strings.Contains(lower, sub) {
					return entry.sport, true
				}
			}
		}
	}
	return "", false
}

// IsReplayOrArchival reports whether the title/genre text marks the airing
// as a replay, archival footage, a magazine show, or highlights package,
// including a title containing a year token from before now.
func IsReplayOrArchival(title string, now time.Time) bool {
	lower := strings.ToLower(title)
	for _, tok := range replayTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	for _, match := range priorYearToken.FindAllString(title, -1) {
		year, err := strconv.Atoi(match)
		if err == nil && year < now.Year() {
			return true
		}
	}
	return false
}

// heroImagePriority orders img_type values from best to worst source for
// the guaranteed hero image: versus-style art over live tiles over logos.
var heroImagePriority = []string{"versus", "tile", "live_tile", "poster", "logo"}

// openMojiFallback is the sport-keyed emoji-style PNG used when no upstream
// image survives, so every event still has a guaranteed hero_image_url.
var openMojiFallback = map[string]string{
	"Soccer":             "https://cdn.fieldguide.dev/openmoji/26BD.png",
	"Tennis":             "https://cdn.fieldguide.dev/openmoji/1F3BE.png",
	"Basketball":         "https://cdn.fieldguide.dev/openmoji/1F3C0.png",
	"Hockey":             "https://cdn.fieldguide.dev/openmoji/1F3D2.png",
	"Rugby":              "https://cdn.fieldguide.dev/openmoji/1F3C9.png",
	"Handball":           "https://cdn.fieldguide.dev/openmoji/1F93E.png",
	"Motorsports":        "https://cdn.fieldguide.dev/openmoji/1F3CE.png",
	"Combat Sports":      "https://cdn.fieldguide.dev/openmoji/1F94A.png",
	"Equestrian":         "https://cdn.fieldguide.dev/openmoji/1F3C7.png",
	"Cricket":            "https://cdn.fieldguide.dev/openmoji/1F3CF.png",
	"Golf":               "https://cdn.fieldguide.dev/openmoji/26F3.png",
	"Volleyball":         "https://cdn.fieldguide.dev/openmoji/1F3D0.png",
	"Athletics":          "https://cdn.fieldguide.dev/openmoji/1F3C3.png",
	"Baseball":           "https://cdn.fieldguide.dev/openmoji/26BE.png",
	"American Football":  "https://cdn.fieldguide.dev/openmoji/1F3C8.png",
	"Table Tennis":       "https://cdn.fieldguide.dev/openmoji/1F3D3.png",
	"Darts":              "https://cdn.fieldguide.dev/openmoji/1F3AF.png",
	"Lacrosse":           "https://cdn.fieldguide.dev/openmoji/1F94D.png",
	"Netball":            "https://cdn.fieldguide.dev/openmoji/1F3C0.png",
	"Gridiron":           "https://cdn.fieldguide.dev/openmoji/1F3C8.png",
	"Water Sports":       "https://cdn.fieldguide.dev/openmoji/1F3CA.png",
	"Winter Sports":      "https://cdn.fieldguide.dev/openmoji/26F7.png",
	"Cycling":            "https://cdn.fieldguide.dev/openmoji/1F6B4.png",
	"Olympic Sports":     "https://cdn.fieldguide.dev/openmoji/1F3C5.png",
	"Other":              "https://cdn.fieldguide.dev/openmoji/1F3AB.png",
}

// SelectHeroImage picks the best available image per heroImagePriority.
// When no img_type is recognized it returns the first image's URL; the
// sport-keyed OpenMoji PNG is used only when images is empty or the first
// image has no URL.
func SelectHeroImage(images []catalog.EventImage, sport string) string {
	for _, want := range heroImagePriority {
		for _, img := range images {
			if strings.EqualFold(img.ImgType, want) && img.URL != "" {
				return img.URL
			}
		}
	}
	if len(images) > 0 && images[0].URL != "" {
		return images[0].URL
	}
	if url, ok := openMojiFallback[sport]; ok {
		return url
	}
	return openMojiFallback["Other"]
}

// Normalize applies every ingest normalization sub-rule to one raw event:
// sport consolidation (dropping events with no recognizable sport),
// replay/archival/magazine/highlights filtering, genre-list rewriting to
// contain only the normalized sport, and hero image selection. The second
// return value is false when the event must be dropped at ingest.
func Normalize(ev catalog.Event, now time.Time) (catalog.Event, bool) {
	candidates := append([]string{}, ev.Genres...)
	candidates = append(candidates, ev.ChannelLabel)
	for _, c := range ev.Classification {
		if c.Type == "sport" || c.Type == "category" || c.Type == "genre" {
			candidates = append(candidates, c.Value)
		}
	}

	sport, ok := NormalizeSport(candidates...)
	if !ok {
		return ev, false
	}
	if IsReplayOrArchival(ev.Title, now) {
		return ev, false
	}

	ev.Genres = []string{sport}

	hasSportClassification := false
	for i, c := range ev.Classification {
		if c.Type == "sport" {
			ev.Classification[i].Value = sport
			hasSportClassification = true
		}
	}
	if !hasSportClassification {
		ev.Classification = append(ev.Classification, catalog.Classification{Type: "sport", Value: sport})
	}

	if IsReplayOrArchival(ev.Title, now) {
		return ev, false
	}

	if ev.HeroImageURL == "" {
		ev.HeroImageURL = SelectHeroImage(ev.Images, sport)
	}

	return ev, true
}
