package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Preference keys recognized by UserPreferences.
const (
	PrefEnabledServices    = "enabled_services"
	PrefDisabledSports     = "disabled_sports"
	PrefDisabledLeagues    = "disabled_leagues"
	PrefServicePriorities  = "service_priorities"
	PrefAmazonPenalty      = "amazon_penalty"
	PrefLanguagePreference = "language_preference"
	PrefAutoRefreshEnabled = "auto_refresh_enabled"
	PrefAutoRefreshTime    = "auto_refresh_time"
)

// SetPreference stores value (marshaled to JSON) under key.
func (s *Store) SetPreference(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("catalog: marshal preference %s: %w", key, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, string(raw))
	if err != nil {
		return fmt.Errorf("catalog: set preference %s: %w", key, err)
	}
	return nil
}

// GetPreference unmarshals the stored value for key into dest. Returns
// (false, nil) if the key has never been set, leaving dest untouched.
func (s *Store) GetPreference(ctx context.Context, key string, dest any) (bool, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT value FROM user_preferences WHERE key = ?`, key)
	if err := row.Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("catalog: get preference %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, fmt.Errorf("catalog: unmarshal preference %s: %w", key, err)
	}
	return true, nil
}

// AllPreferences returns every stored preference key/value as raw JSON strings.
func (s *Store) AllPreferences(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM user_preferences`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list preferences: %w", err)
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// Preferences is the typed snapshot of every recognized UserPreferences key,
// used by the deeplink engine and the filters API.
type Preferences struct {
	EnabledServices    []string       `json:"enabled_services"`
	DisabledSports     []string       `json:"disabled_sports"`
	DisabledLeagues    []string       `json:"disabled_leagues"`
	ServicePriorities  map[string]int `json:"service_priorities"`
	AmazonPenalty      bool           `json:"amazon_penalty"`
	LanguagePreference string         `json:"language_preference"`
	AutoRefreshEnabled bool           `json:"auto_refresh_enabled"`
	AutoRefreshTime    string         `json:"auto_refresh_time"`
}

// LoadPreferences builds the typed Preferences snapshot from the raw
// key/value store, applying defaults for keys never set.
func (s *Store) LoadPreferences(ctx context.Context) (Preferences, error) {
	p := Preferences{
		ServicePriorities:  map[string]int{},
		LanguagePreference: "both",
	}
	if _, err := s.GetPreference(ctx, PrefEnabledServices, &p.EnabledServices); err != nil {
		return p, err
	}
	if _, err := s.GetPreference(ctx, PrefDisabledSports, &p.DisabledSports); err != nil {
		return p, err
	}
	if _, err := s.GetPreference(ctx, PrefDisabledLeagues, &p.DisabledLeagues); err != nil {
		return p, err
	}
	if _, err := s.GetPreference(ctx, PrefServicePriorities, &p.ServicePriorities); err != nil {
		return p, err
	}
	if _, err := s.GetPreference(ctx, PrefAmazonPenalty, &p.AmazonPenalty); err != nil {
		return p, err
	}
	if ok, err := s.GetPreference(ctx, PrefLanguagePreference, &p.LanguagePreference); err != nil {
		return p, err
	} else if !ok {
		p.LanguagePreference = "both"
	}
	if _, err := s.GetPreference(ctx, PrefAutoRefreshEnabled, &p.AutoRefreshEnabled); err != nil {
		return p, err
	}
	if ok, err := s.GetPreference(ctx, PrefAutoRefreshTime, &p.AutoRefreshTime); err != nil {
		return p, err
	} else if !ok {
		p.AutoRefreshTime = "02:30"
	}
	return p, nil
}
