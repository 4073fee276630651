// Package config loads the kiosk's JSON or YAML configuration and watches it
// for changes.
package config

// Config is the file layout. Durations are Go duration strings ("1s", "15m").
// Fields omitted from the file keep the values from Default.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	API      APIConfig      `json:"api"`
	Display  DisplayConfig  `json:"display"`
	Kiosk    KioskConfig    `json:"kiosk"`
	Defaults DefaultsConfig `json:"defaults"`
	I18n     I18nConfig     `json:"i18n"`
	Alerts   AlertsConfig   `json:"alerts"`
	Demo     DemoConfig     `json:"demo"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    LoggingFile   `json:"file"`
	Remote  LoggingRemote `json:"remote"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingRemote forwards warn+ records to the alert sender.
type LoggingRemote struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects the preference store.
//
//	"storage": { "driver": "file", "path": "./data/kiosk" }
type StorageConfig struct {
	Driver       string `json:"driver"` // memory | file | sqlite
	Path         string `json:"path"`
	BusyTimeout  string `json:"busy_timeout,omitempty"` // sqlite
	CompactEvery int    `json:"compact_every,omitempty"`
}

type APIConfig struct {
	BaseURL    string   `json:"base_url"`
	Timeout    string   `json:"timeout"`
	RatePerSec int      `json:"rate_per_sec"`
	KioskID    string   `json:"kiosk_id,omitempty"`
	Paths      APIPaths `json:"paths"`
}

type APIPaths struct {
	Scan    string `json:"scan,omitempty"`
	List    string `json:"list,omitempty"`
	Ads     string `json:"ads,omitempty"`
	Weather string `json:"weather,omitempty"`
}

// DisplayConfig controls the websocket display server.
//
// Binding to a non-loopback address requires a token or allow_insecure.
type DisplayConfig struct {
	Addr           string   `json:"addr"`
	Token          string   `json:"token,omitempty"` // do not log
	AllowInsecure  bool     `json:"allow_insecure,omitempty"`
	OriginPatterns []string `json:"origin_patterns,omitempty"`
	Pprof          bool     `json:"pprof,omitempty"`
	ReadTimeout    string   `json:"read_timeout,omitempty"`
	WriteTimeout   string   `json:"write_timeout,omitempty"`
	IdleTimeout    string   `json:"idle_timeout,omitempty"`
}

// KioskConfig holds the screen timings.
type KioskConfig struct {
	ScanPoll          string `json:"scan_poll"`
	MemberScreen      string `json:"member_screen"`
	PasswordTimeout   string `json:"password_timeout"`
	AdsRefresh        string `json:"ads_refresh"`
	DefaultAdDuration string `json:"default_ad_duration"`
	ClockTick         string `json:"clock_tick"`
	// WeatherRefresh accepts a duration or a schedule spec ("cron:*/15 * * * *").
	WeatherRefresh string `json:"weather_refresh"`
	ListItems      int    `json:"list_items"`
	Timezone       string `json:"timezone,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
}

// DefaultsConfig seeds preferences that were never saved.
type DefaultsConfig struct {
	Mode       string `json:"mode"`
	Language   string `json:"language"`
	City       string `json:"city"`
	Country    string `json:"country"`
	AdsEnabled bool   `json:"ads_enabled"`
}

type I18nConfig struct {
	Dir string `json:"dir"`
}

type AlertsConfig struct {
	Telegram TelegramAlerts `json:"telegram"`
}

type TelegramAlerts struct {
	Enabled  bool   `json:"enabled"`
	Token    string `json:"token,omitempty"` // do not log
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// DemoConfig drives the offline demo source.
type DemoConfig struct {
	ScanEvery int `json:"scan_every,omitempty"`
}

// Default mirrors the original kiosk's built-in values.
func Default() Config {
	return Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Remote:  LoggingRemote{MinLevel: "warn", RatePerSec: 1},
		},
		Storage: StorageConfig{Driver: "file", Path: "./data/kiosk", BusyTimeout: "1s"},
		API: APIConfig{
			BaseURL:    "http://127.0.0.1/",
			Timeout:    "10s",
			RatePerSec: 10,
		},
		Display: DisplayConfig{Addr: "127.0.0.1:8088"},
		Kiosk: KioskConfig{
			ScanPoll:          "1s",
			MemberScreen:      "7s",
			PasswordTimeout:   "8s",
			AdsRefresh:        "1m",
			DefaultAdDuration: "10s",
			ClockTick:         "1s",
			WeatherRefresh:    "15m",
			ListItems:         12,
			QueueSize:         256,
		},
		Defaults: DefaultsConfig{
			Mode:       "idle",
			Language:   "fr",
			City:       "Geneva",
			Country:    "CH",
			AdsEnabled: true,
		},
		I18n: I18nConfig{Dir: "./lang"},
		Demo: DemoConfig{ScanEvery: 5},
	}
}
