// Package catalog implements the catalog store: the single embedded
// relational store of events, playables, images, auth blobs, user
// preferences, and lane plans.
package catalog

import "time"

// Classification is one `{type, value}` pair from an Event's classification
// list, e.g. {"sport", "Soccer"} or {"league", "MLS"}.
type Classification struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Event is an airing of a single title at a single start/stop.
type Event struct {
	ID                string           `json:"id"`
	ExternalID        string           `json:"external_id"`
	PVID              string           `json:"pvid"`
	Title             string           `json:"title"`
	ShortTitle        string           `json:"short_title,omitempty"`
	SynopsisLong      string           `json:"synopsis_long,omitempty"`
	SynopsisBrief     string           `json:"synopsis_brief,omitempty"`
	ChannelLabel      string           `json:"channel_label,omitempty"`
	ChannelProviderID string           `json:"channel_provider_id,omitempty"`
	StartUTC          time.Time        `json:"start_utc"`
	StartMS           int64            `json:"start_ms"`
	StopUTC           time.Time        `json:"stop_utc"`
	StopMS            int64            `json:"stop_ms"`
	DurationSecs      int64            `json:"duration_secs"`
	IsFree            bool             `json:"is_free"`
	IsPremium         bool             `json:"is_premium"`
	HeroImageURL      string           `json:"hero_image_url,omitempty"`
	Genres            []string         `json:"genres"`
	Classification    []Classification `json:"classification"`
	RawPayload        string           `json:"raw_payload,omitempty"`
	LastSeenUTC       time.Time        `json:"last_seen_utc"`
	IsReair           bool             `json:"is_reair"`

	Playables []Playable  `json:"playables,omitempty"`
	Images    []EventImage `json:"images,omitempty"`
}

// League returns the first "league" classification value, or "" if absent.
func (e Event) League() string {
	for _, c := range e.Classification {
		if c.Type == "league" {
			return c.Value
		}
	}
	return ""
}

// Sport returns the first "sport" classification value, or "" if absent.
func (e Event) Sport() string {
	for _, c := range e.Classification {
		if c.Type == "sport" {
			return c.Value
		}
	}
	return ""
}

// Playable is one way to watch an Event. Composite key (event_id, playable_id).
type Playable struct {
	EventID         string    `json:"event_id"`
	PlayableID      string    `json:"playable_id"`
	RawScheme       string    `json:"raw_provider_scheme"`
	ServiceName     string    `json:"service_name,omitempty"`
	LogicalService  string    `json:"logical_service"`
	DeeplinkPlay    string    `json:"deeplink_play,omitempty"`
	DeeplinkOpen    string    `json:"deeplink_open,omitempty"`
	HTTPDeeplinkURL string    `json:"http_deeplink_url,omitempty"`
	PlayableURL     string    `json:"playable_url,omitempty"`
	VariantLabel    string    `json:"variant_label,omitempty"`
	ContentID       string    `json:"content_id,omitempty"`
	Locale          string    `json:"locale,omitempty"`
	Priority        int       `json:"priority"`
	ESPNGraphID     string    `json:"espn_graph_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// EventImage is an (event_id, img_type, url) triple, de-duplicated by the triple.
type EventImage struct {
	EventID string `json:"event_id"`
	ImgType string `json:"img_type"`
	URL     string `json:"url"`
}

// Lane is a virtual channel in the generic pool.
type Lane struct {
	LaneID        int    `json:"lane_id"`
	DisplayName   string `json:"display_name"`
	LogicalNumber int    `json:"logical_number"`
}

// LaneEvent is a scheduled (or placeholder) slot on a Lane.
type LaneEvent struct {
	LaneID               int       `json:"lane_id"`
	EventID              string    `json:"event_id,omitempty"`
	StartUTC             time.Time `json:"start_utc"`
	EndUTC               time.Time `json:"end_utc"`
	IsPlaceholder        bool      `json:"is_placeholder"`
	Title                string    `json:"title,omitempty"`
	ChosenPlayableID     string    `json:"chosen_playable_id,omitempty"`
	ChosenProvider       string    `json:"chosen_provider,omitempty"`
	ChosenLogicalService string    `json:"chosen_logical_service,omitempty"`
	ChosenDeeplink       string    `json:"chosen_deeplink,omitempty"`
}

// AdbLane is a provider-scoped lane row for per-service packing.
type AdbLane struct {
	ProviderCode string    `json:"provider_code"`
	LaneNumber   int       `json:"lane_number"`
	ChannelID    string    `json:"channel_id"`
	EventID      string    `json:"event_id"`
	StartUTC     time.Time `json:"start_utc"`
	StopUTC      time.Time `json:"stop_utc"`
}

// ProviderLane is the admin-configured ADB lane policy for one provider.
type ProviderLane struct {
	ProviderCode string    `json:"provider_code"`
	AdbEnabled   bool      `json:"adb_enabled"`
	AdbLaneCount int       `json:"adb_lane_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AuthBlob is a singleton (per upstream) persisted session credential.
// The store writes SessionKey to the session_key column and returns it
// exactly as given; it does no encryption itself (internal/authstore's
// Seal/Open are the at-rest encryption helpers).
type AuthBlob struct {
	Upstream   string    `json:"upstream"`
	DeviceID   string    `json:"device_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	SessionKey string    `json:"session_key,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// AmazonGTIEntry maps an Amazon GTI to a specific aiv sub-service, per the
// headless-crawler-produced channel table.
type AmazonGTIEntry struct {
	GTI            string    `json:"gti"`
	LogicalService string    `json:"logical_service"`
	UpdatedAt      time.Time `json:"updated_at"`
}
