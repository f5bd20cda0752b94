package deeplink

import (
	"testing"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

func defaultPriority(code string) int {
	if code == "apple_mls" {
		return 5
	}
	return 50
}

func TestCorrect_ESPNGraphIDCorrection(t *testing.T) {
	p := catalog.Playable{
		PlayableID:   "p1",
		RawScheme:    "sportscenter",
		DeeplinkPlay: "sportscenter://x-callback-url/showWatchStream?playChannel=espn1",
		ESPNGraphID:  "espn-watch:9eb9b68b-11c6-4da0-9492-df997dbbf897:bb816546",
		Locale:       "en_US",
	}
	ev := catalog.Event{ExternalID: "ext1"}
	got := Correct(p, ev, "en")

	wantScheme := "sportscenter://x-callback-url/showWatchStream?playID=9eb9b68b-11c6-4da0-9492-df997dbbf897"
	wantHTTP := "https://www.espn.com/watch/player/_/id/9eb9b68b-11c6-4da0-9492-df997dbbf897"
	if got.SchemeURL != wantScheme {
		t.Fatalf("scheme = %q, want %q", got.SchemeURL, wantScheme)
	}
	if got.HTTPURL != wantHTTP {
		t.Fatalf("http = %q, want %q", got.HTTPURL, wantHTTP)
	}
}

func TestCorrect_SpanishOnlyESPN(t *testing.T) {
	p := catalog.Playable{
		PlayableID:   "p1",
		RawScheme:    "sportscenter",
		DeeplinkPlay: "sportscenter://x-callback-url/showWatchStream?playID=es-locale-id",
		Locale:       "es_MX",
	}
	ev := catalog.Event{ExternalID: "event-ext-123"}
	got := Correct(p, ev, "en")
	want := "sportscenter://x-callback-url/showWatchStream?playID=event-ext-123"
	if got.SchemeURL != want {
		t.Fatalf("scheme = %q, want %q", got.SchemeURL, want)
	}
}

func TestFilter_EnabledServices(t *testing.T) {
	playables := []catalog.Playable{
		{PlayableID: "a", LogicalService: "peacock_web"},
		{PlayableID: "b", LogicalService: "max"},
	}
	prefs := catalog.Preferences{EnabledServices: []string{"max"}}
	got := Filter(playables, prefs)
	if len(got) != 1 || got[0].LogicalService != "max" {
		t.Fatalf("got %+v", got)
	}
}

func TestFilter_LanguageNeverCategoricallyDrops(t *testing.T) {
	playables := []catalog.Playable{
		{PlayableID: "a", LogicalService: "espn_web", Locale: "es_MX"},
	}
	prefs := catalog.Preferences{LanguagePreference: "en"}
	got := Filter(playables, prefs)
	if len(got) != 1 {
		t.Fatalf("want event's only playable kept despite locale mismatch, got %+v", got)
	}
}

func TestSelect_AmazonPenalty(t *testing.T) {
	playables := []catalog.Playable{
		{PlayableID: "a", LogicalService: "aiv_prime", Priority: 10},
		{PlayableID: "b", LogicalService: "max", Priority: 10},
	}
	prefs := catalog.Preferences{AmazonPenalty: true}
	sel := Select(playables, prefs, defaultPriority)
	if sel.Playable == nil || sel.Playable.LogicalService != "max" {
		t.Fatalf("want max to win over amazon, got %+v", sel)
	}
	if sel.Reason == "" {
		t.Fatalf("want non-empty reason")
	}
}

func TestSelect_SingleCandidateReason(t *testing.T) {
	playables := []catalog.Playable{{PlayableID: "a", LogicalService: "max"}}
	sel := Select(playables, catalog.Preferences{EnabledServices: []string{"max"}}, defaultPriority)
	if sel.Reason != "only enabled service" {
		t.Fatalf("reason = %q", sel.Reason)
	}
}

func TestToHTTP_Table(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"aiv://aiv/detail?gti=amzn1.dv.gti.XXX", "https://app.primevideo.com/detail?gti=amzn1.dv.gti.XXX"},
		{"pplus://host.example.com/path/", "https://host.example.com/path/"},
		{"open.dazn.com://watch/123", "https://open.dazn.com/watch/123"},
		{"foxone://channel/FS1", "https://www.foxsports.com/live/fs1"},
		{"nflctv://livestream/U", "https://www.nfl.com/plus/"},
	}
	for _, c := range cases {
		got, ok := ToHTTP(c.in, "", "")
		if !ok || got != c.want {
			t.Errorf("ToHTTP(%q) = %q, %v; want %q", c.in, got, ok, c.want)
		}
	}
}

func TestToHTTP_GametimeStripsTrackingNotHTTP(t *testing.T) {
	got, ok := ToHTTP("gametime://game/0022500409?x-source=umc.ums.apple.tvapp", "", "")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got != "gametime://game/0022500409" {
		t.Fatalf("got %q", got)
	}

	got, ok = ToHTTP("gametime://game/0022500409", "", "")
	if !ok || got != "gametime://game/0022500409" {
		t.Fatalf("query-less deeplink should pass through, got %q", got)
	}
}

func TestToHTTP_NoConversionAvailable(t *testing.T) {
	_, ok := ToHTTP("unknownscheme://foo", "", "")
	if ok {
		t.Fatalf("expected no conversion")
	}
}

func TestToHTTP_CBSSportsAppLeagueSlug(t *testing.T) {
	got, ok := ToHTTP("cbssportsapp://home/watch/LET-N", "NFL", "")
	if !ok || got != "https://www.cbssports.com/watch/nfl/LET-N" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
}
