package screen

import (
	"time"

	"clubkiosk/internal/scan"
)

// Paint targets. The first five are full screens, the rest are widgets
// shown on top of whichever screen is active.
const (
	ScreenIdle     = "idle"
	ScreenMember   = "member"
	ScreenList     = "list"
	ScreenSettings = "settings"
	ScreenPassword = "password"

	WidgetClock   = "clock"
	WidgetWeather = "weather"
	WidgetTexts   = "texts"
)

type IdleView struct {
	AdsEnabled bool `json:"ads_enabled"`
}

type MemberView struct {
	Event scan.Event `json:"event"`
}

type ListView struct {
	Items []scan.Event `json:"items"`
	Empty bool         `json:"empty"`
}

// Status is the one-line feedback shown on the settings screen.
type Status struct {
	Kind string `json:"kind"` // success | error | info
	Text string `json:"text"`
}

type SettingsView struct {
	Form        SettingsForm      `json:"form"`
	PasswordSet bool              `json:"password_set"`
	Status      *Status           `json:"status,omitempty"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

type PromptView struct {
	Action  string `json:"action"`
	Error   string `json:"error,omitempty"`
	Timeout int64  `json:"timeout_ms"`
}

type ClockView struct {
	Date string    `json:"date"`
	Time string    `json:"time"`
	At   time.Time `json:"at"`
}

// Weather is the current conditions for the configured location.
type Weather struct {
	Temp        float64 `json:"temp"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

// WeatherView is stale when it repeats the last good reading after a failed
// fetch.
type WeatherView struct {
	Available bool      `json:"available"`
	Stale     bool      `json:"stale,omitempty"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	Weather   Weather   `json:"weather"`
	At        time.Time `json:"at,omitempty"`
}

type TextsView struct {
	Language string            `json:"language"`
	Texts    map[string]string `json:"texts"`
}
