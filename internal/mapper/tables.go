package mapper

// displayNames maps a logical service code to its human-readable label,
// used by the guide emitters' group-title / "Available on {Provider}" text.
var displayNames = map[string]string{
	"https":            "Web — Other",
	"peacock_web":      "Peacock",
	"max":              "Max",
	"f1tv":             "F1 TV",
	"apple_tv":         "Apple TV",
	"apple_mls":        "Apple TV — MLS Season Pass",
	"apple_mlb":        "Apple TV — MLB",
	"apple_nba":        "Apple TV — NBA",
	"apple_nhl":        "Apple TV — NHL",
	"apple_other":      "Apple TV",
	"pplus_web":        "Paramount+",
	"cbs_web":          "CBS",
	"cbs_sports_web":   "CBS Sports",
	"fox_sports_web":   "FOX Sports",
	"nbc_sports_web":   "NBC Sports",
	"nfl_plus_web":     "NFL+",
	"espn_web":         "ESPN",
	"dazn_web":         "DAZN",
	"kayo_web":         "Kayo Sports",
	"bein_web":         "beIN Sports",
	"fanatiz_web":      "Fanatiz",
	"gotham_web":       "Gotham Sports+",
	"gametime_web":     "Gametime",
	"victory_plus_web": "Victory+",
	"vix_web":          "ViX",
	"aiv_prime":        "Prime Video",
	"aiv_peacock":      "Prime Video (Peacock)",
	"aiv_max":          "Prime Video (Max)",
	"aiv_dazn":         "Prime Video (DAZN)",
	"aiv_fanduel":      "Prime Video (FanDuel)",
	"espn_linear":      "ESPN",
	"espn_plus":        "ESPN+",
	"sportscenter":     "ESPN",
	"cbstve":           "CBS Sports",
	"fsapp":            "FOX Sports",
	"foxone":           "FOX One",
	"watchtnt":         "TNT",
	"watchtru":         "truTV",
	"nbcsportstve":     "NBC Sports",
	"cbssportsapp":     "CBS Sports",
	"nflctv":           "NFL+",
	"vixapp":           "ViX",
}

// DisplayName returns the human label for code, or the code itself if it
// has no entry (so a freshly-added upstream still renders something sane).
func DisplayName(code string) string {
	if name, ok := displayNames[code]; ok {
		return name
	}
	return code
}

// defaultPriorities is the lower-is-better legacy priority table, used
// when the user has not overridden a service. Codes absent from the table
// get priority 50. See DESIGN.md for the selection-path inversion
// convention.
var defaultPriorities = map[string]int{
	"apple_mls":        5,
	"apple_mlb":        8,
	"apple_nba":        8,
	"apple_nhl":        8,
	"espn_linear":      10,
	"sportscenter":     10,
	"espn_plus":        12,
	"espn_web":         12,
	"peacock_web":      15,
	"max":              15,
	"pplus_web":        15,
	"cbs_web":          15,
	"cbs_sports_web":   15,
	"fox_sports_web":   18,
	"nbc_sports_web":   18,
	"nfl_plus_web":     18,
	"f1tv":             20,
	"dazn_web":         20,
	"kayo_web":         22,
	"bein_web":         22,
	"fanatiz_web":      25,
	"gotham_web":       25,
	"gametime_web":     25,
	"victory_plus_web": 25,
	"vix_web":          25,
	"aiv_prime":        30,
	"aiv_peacock":      16,
	"aiv_max":          16,
	"aiv_dazn":         21,
	"aiv_fanduel":      30,
	"apple_other":      35,
	"https":            50,
}

const defaultUnknownPriority = 50

// DefaultPriority returns the legacy lower-is-better priority for a
// logical service code.
func DefaultPriority(code string) int {
	if p, ok := defaultPriorities[code]; ok {
		return p
	}
	return defaultUnknownPriority
}

// adbProviderTable aggregates logical services into a single ADB provider
// code for the per-provider lane scheduler. Aggregation is symmetric: the
// same map drives both scheduling and the "/api/adb/..." display grouping.
var adbProviderTable = map[string]string{
	"espn_linear":  "sportscenter",
	"espn_plus":    "sportscenter",
	"espn_web":     "sportscenter",
	"sportscenter": "sportscenter",
	"apple_mls":    "apple_tv",
	"apple_mlb":    "apple_tv",
	"apple_nba":    "apple_tv",
	"apple_nhl":    "apple_tv",
	"apple_other":  "apple_tv",
	"apple_tv":     "apple_tv",
	"peacock_web":  "peacock",
	"aiv_peacock":  "peacock",
	"max":          "max",
	"aiv_max":      "max",
	"pplus_web":    "paramount_plus",
	"cbs_web":      "paramount_plus",
	"cbs_sports_web": "cbs_sports",
	"cbstve":       "cbs_sports",
	"cbssportsapp": "cbs_sports",
	"fox_sports_web": "fox_sports",
	"fsapp":        "fox_sports",
	"foxone":       "fox_sports",
	"nbc_sports_web": "nbc_sports",
	"nbcsportstve": "nbc_sports",
	"nfl_plus_web": "nfl_plus",
	"nflctv":       "nfl_plus",
	"dazn_web":     "dazn",
	"aiv_dazn":     "dazn",
	"kayo_web":     "kayo",
	"bein_web":     "bein",
	"fanatiz_web":  "fanatiz",
	"gotham_web":   "gotham",
	"gametime_web": "gametime",
	"victory_plus_web": "victory_plus",
	"vix_web":      "vix",
	"vixapp":       "vix",
}

// AdbProvider returns the ADB provider code a logical service aggregates
// into, and whether it maps to one at all (codes with no ADB provider are
// never eligible for per-provider lanes).
func AdbProvider(logicalService string) (string, bool) {
	code, ok := adbProviderTable[logicalService]
	return code, ok
}

// ServicesForAdbProvider returns every logical service that aggregates to
// providerCode, the inverse of AdbProvider, used by the per-provider
// scheduler to build its playable filter set.
func ServicesForAdbProvider(providerCode string) []string {
	var out []string
	for svc, p := range adbProviderTable {
		if p == providerCode {
			out = append(out, svc)
		}
	}
	return out
}
