package mapper

import (
	"testing"

	"github.com/fieldguide/dvrguide/internal/catalog"
)

func TestResolve_AppSchemePassthrough(t *testing.T) {
	got := Resolve("sportscenter", "sportscenter://x-callback-url/showWatchStream?playChannel=espn1", "", "", nil)
	if got != "sportscenter" {
		t.Fatalf("want sportscenter passthrough, got %q", got)
	}
}

func TestResolve_HostnameTable(t *testing.T) {
	got := Resolve("https", "https://www.peacocktv.com/watch/asset/1", "", "", nil)
	if got != "peacock_web" {
		t.Fatalf("want peacock_web, got %q", got)
	}
}

func TestResolve_AppleTVLeagueRouting(t *testing.T) {
	class := []catalog.Classification{{Type: "sport", Value: "Soccer"}, {Type: "league", Value: "MLS"}}
	got := Resolve("https", "https://tv.apple.com/us/episode/abc", "", "", class)
	if got != "apple_mls" {
		t.Fatalf("want apple_mls, got %q", got)
	}
}

func TestResolve_AppleTVUnknownLeague(t *testing.T) {
	class := []catalog.Classification{{Type: "league", Value: "Serie A"}}
	got := Resolve("https", "https://tv.apple.com/us/episode/abc", "", "", class)
	if got != "apple_other" {
		t.Fatalf("want apple_other, got %q", got)
	}
}

func TestResolve_DefaultsToHTTPS(t *testing.T) {
	got := Resolve("", "https://unknownprovider.example.com/watch", "", "", nil)
	if got != "https" {
		t.Fatalf("want https default, got %q", got)
	}
}

func TestResolve_NullSchemeTreatedAsWeb(t *testing.T) {
	got := Resolve("", "https://max.com/live/x", "", "", nil)
	if got != "max" {
		t.Fatalf("want max, got %q", got)
	}
}

func TestResolveAmazonSubService(t *testing.T) {
	lookup := map[string]string{"amzn1.dv.gti.abc123": "aiv_peacock"}
	got := ResolveAmazonSubService("aiv", lookup, "aiv://aiv/detail?gti=amzn1.dv.gti.abc123")
	if got != "aiv_peacock" {
		t.Fatalf("want aiv_peacock, got %q", got)
	}
}

func TestResolveAmazonSubService_NoGTI(t *testing.T) {
	got := ResolveAmazonSubService("aiv", map[string]string{}, "aiv://aiv/detail?foo=bar")
	if got != "aiv" {
		t.Fatalf("want unchanged aiv, got %q", got)
	}
}

func TestAdbProviderAggregation(t *testing.T) {
	code, ok := AdbProvider("espn_plus")
	if !ok || code != "sportscenter" {
		t.Fatalf("want sportscenter, got %q ok=%v", code, ok)
	}
	services := ServicesForAdbProvider("sportscenter")
	if len(services) < 2 {
		t.Fatalf("want at least 2 aggregated services, got %v", services)
	}
}
