package record

import (
	"encoding/json"
	"fmt"
)

// SettingsKey is the key of the settings singleton.
const SettingsKey = "app_settings"

// Contact is a named phone number notifications can be sent to.
type Contact struct {
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	Phone string `json:"phone"`
}

// Settings is the application configuration blob consumed by alert evaluation.
type Settings struct {
	NearRadiusM          float64   `json:"nearRadiusM"`
	DefaultThreshold     float64   `json:"defaultThreshold"`
	EnableWeather        bool      `json:"enableWeather"`
	EnableNearbyAlert    bool      `json:"enableNearbyAlert"`
	WhatsappNumber       string    `json:"whatsappNumber"`
	Contacts             []Contact `json:"contacts"`
	EnableWhatsappAlerts bool      `json:"enableWhatsappAlerts"`
	EnableWhatsappNearby bool      `json:"enableWhatsappNearby"`
}

// DefaultSettings returns the built-in defaults every load is merged over.
func DefaultSettings() Settings {
	return Settings{
		NearRadiusM:          300,
		DefaultThreshold:     5,
		EnableWeather:        true,
		EnableNearbyAlert:    true,
		WhatsappNumber:       "",
		Contacts:             []Contact{},
		EnableWhatsappAlerts: true,
		EnableWhatsappNearby: false,
	}
}

// SettingsPatch carries the fields a caller wants to change.
// Nil fields are left untouched by a merge.
type SettingsPatch struct {
	NearRadiusM          *float64   `json:"nearRadiusM,omitempty"`
	DefaultThreshold     *float64   `json:"defaultThreshold,omitempty"`
	EnableWeather        *bool      `json:"enableWeather,omitempty"`
	EnableNearbyAlert    *bool      `json:"enableNearbyAlert,omitempty"`
	WhatsappNumber       *string    `json:"whatsappNumber,omitempty"`
	Contacts             *[]Contact `json:"contacts,omitempty"`
	EnableWhatsappAlerts *bool      `json:"enableWhatsappAlerts,omitempty"`
	EnableWhatsappNearby *bool      `json:"enableWhatsappNearby,omitempty"`
}

// Fields returns the patch as a JSON object holding only the set fields.
func (p SettingsPatch) Fields() (map[string]json.RawMessage, error) {
	return toFields(p)
}

// PatchFrom returns a patch that sets every field of s.
func PatchFrom(s Settings) SettingsPatch {
	contacts := s.Contacts
	return SettingsPatch{
		NearRadiusM:          &s.NearRadiusM,
		DefaultThreshold:     &s.DefaultThreshold,
		EnableWeather:        &s.EnableWeather,
		EnableNearbyAlert:    &s.EnableNearbyAlert,
		WhatsappNumber:       &s.WhatsappNumber,
		Contacts:             &contacts,
		EnableWhatsappAlerts: &s.EnableWhatsappAlerts,
		EnableWhatsappNearby: &s.EnableWhatsappNearby,
	}
}

// MergeFields overlays each layer onto base in order, key by key.
// Keys a layer does not mention keep their previous value, including keys
// this build does not know about.
func MergeFields(base map[string]json.RawMessage, layers ...map[string]json.RawMessage) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(base))
	for k, v := range base {
		out[k] = v
	}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}

// SettingsFromFields decodes a merged field set over the built-in defaults.
func SettingsFromFields(fields map[string]json.RawMessage) (Settings, error) {
	defaults, err := toFields(DefaultSettings())
	if err != nil {
		return Settings{}, err
	}
	merged, err := json.Marshal(MergeFields(defaults, fields))
	if err != nil {
		return Settings{}, fmt.Errorf("encode settings: %w", err)
	}
	var s Settings
	if err := json.Unmarshal(merged, &s); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if s.Contacts == nil {
		s.Contacts = []Contact{}
	}
	return s, nil
}

func toFields(v any) (map[string]json.RawMessage, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode settings: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	return fields, nil
}
