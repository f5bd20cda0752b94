// Package config provides centralized configuration loading for dvrguide.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all dvrguide process configuration, built once at startup
// from environment variables and passed down explicitly.
type Config struct {
	// Core paths
	DBPath  string
	OutDir  string
	BinDir  string
	LogDir  string

	// HTTP server
	ServerHost string
	ServerPort string
	// ResolverBaseURL is the externally-reachable base URL the emitted M3U
	// playlists embed as the stream URL for lane/ADB-lane channels, e.g.
	// "http://192.168.86.50:8730".
	ResolverBaseURL string

	// DVR integration
	DVRHost          string
	DVRPort          int
	DVRAPIPort       int
	DVRImportMountPath string

	// FakeChannelDenyList excludes events carrying these channel_label
	// values from lane scheduling: provider-side placeholder/filler channels
	// upstream sometimes reports as real events.
	FakeChannelDenyList []string

	// Lane scheduler
	LaneCount             int
	LaneStartChannel      int
	PaddingMinutes        int
	PlaceholderBlockMins  int
	PlaceholderExtraDays  int
	DaysAhead             int

	// Refresh orchestrator
	AutoRefreshEnabled bool
	AutoRefreshTime    string // "HH:MM" local

	// Detector
	DetectorDebounceSeconds float64

	TZ string

	// Secrets
	AuthBlobEncryptionKey string // secret of any length; authstore derives the 32-byte session_key at-rest key from it
	SentryDSN             string

	LogLevel string
}

// Load reads configuration from environment variables. Each setting has its
// own list of accepted names (an FDL_ name and/or legacy aliases such as
// PEACOCK_*, unprefixed names like OUT_DIR, or CHANNELS_DVR_IP) so older
// deploys keep working, and falls back to a built-in default.
func Load() (*Config, error) {
	c := &Config{
		DBPath: getenvAny("/app/data/fdl_events.db", "FDL_DB_PATH", "PEACOCK_DB_PATH"),
		OutDir: getenvAny("/app/out", "FDL_OUT_DIR", "OUT_DIR"),
		BinDir: getenvAny("/app/bin", "FDL_BIN_DIR", "BIN_DIR"),
		LogDir: getenvAny("/app/logs", "FDL_LOG_DIR", "LOG_DIR"),

		ServerHost: getenvAny("0.0.0.0", "FDL_SERVER_HOST"),
		ServerPort: getenvAny("8730", "FDL_SERVER_PORT"),
		ResolverBaseURL: getenvAny("http://localhost:8730", "FDL_RESOLVER_BASE_URL"),

		DVRHost:            getenvAny("192.168.86.72", "CHANNELS_DVR_IP", "DVR_HOST"),
		DVRImportMountPath: getenvAny("", "CDVR_DVR_PATH", "DVR_IMPORT_MOUNT_PATH"),

		LaneStartChannel: getenvInt(9000, "FDL_LANE_START_CH", "PEACOCK_LANE_START_CH"),
		LaneCount:        getenvInt(10, "FDL_LANE_COUNT", "PEACOCK_LANE_COUNT"),

		PaddingMinutes:       getenvInt(45, "FDL_PADDING_MINUTES", "PEACOCK_PADDING_MINUTES"),
		PlaceholderBlockMins: getenvInt(60, "FDL_PLACEHOLDER_BLOCK_MINUTES", "PEACOCK_PLACEHOLDER_BLOCK_MINUTES"),
		PlaceholderExtraDays: getenvInt(5, "FDL_PLACEHOLDER_EXTRA_DAYS", "PEACOCK_PLACEHOLDER_EXTRA_DAYS"),
		DaysAhead:            getenvInt(7, "FDL_DAYS_AHEAD", "PEACOCK_DAYS_AHEAD"),

		AutoRefreshEnabled: getenvBool(false, "FDL_AUTO_REFRESH_ENABLED"),
		AutoRefreshTime:    getenvAny("02:30", "FDL_AUTO_REFRESH_TIME"),

		TZ: getenvAny("America/New_York", "TZ"),

		AuthBlobEncryptionKey: os.Getenv("FDL_AUTHBLOB_KEY"),
		SentryDSN:             os.Getenv("SENTRY_DSN"),

		LogLevel: getenvAny("info", "FDL_LOG_LEVEL", "LOG_LEVEL"),
	}

	c.DVRPort = getenvInt(8089, "CDVR_SERVER_PORT", "FDL_DVR_PORT")
	c.DVRAPIPort = getenvInt(57000, "CDVR_API_PORT", "FDL_DVR_API_PORT")

	debounce := getenvAny("3", "DETECT_DEBOUNCE_SECONDS", "FDL_DETECT_DEBOUNCE_SECONDS")
	f, err := strconv.ParseFloat(debounce, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DETECT_DEBOUNCE_SECONDS %q: %w", debounce, err)
	}
	c.DetectorDebounceSeconds = f

	if c.LaneCount <= 0 {
		return nil, fmt.Errorf("lane count must be positive, got %d", c.LaneCount)
	}

	if deny := getenvAny("", "FDL_FAKE_CHANNEL_DENYLIST"); deny != "" {
		c.FakeChannelDenyList = strings.Split(deny, ",")
	}

	return c, nil
}

// DetectorEnabled reports whether the on-demand detector has a DVR import
// mount configured. When false, the detector remains disabled but the
// dummy-segment HLS route still serves.
func (c *Config) DetectorEnabled() bool {
	return c.DVRImportMountPath != ""
}

// DebounceDuration returns DetectorDebounceSeconds as a time.Duration.
func (c *Config) DebounceDuration() time.Duration {
	return time.Duration(c.DetectorDebounceSeconds * float64(time.Second))
}

func getenvAny(fallback string, keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return fallback
}

func getenvInt(fallback int, keys ...string) int {
	s := getenvAny("", keys...)
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(fallback bool, keys ...string) bool {
	s := getenvAny("", keys...)
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}
