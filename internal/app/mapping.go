package app

import (
	"fmt"
	"strings"
	"time"

	"clubkiosk/internal/ads"
	"clubkiosk/internal/alerts"
	"clubkiosk/internal/api"
	"clubkiosk/internal/config"
	"clubkiosk/internal/display"
	"clubkiosk/internal/prefs"
	"clubkiosk/internal/scan"
	"clubkiosk/internal/screen"
	"clubkiosk/internal/storage"
	logx "clubkiosk/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Remote: logx.RemoteConfig{
			Enabled:    cfg.Logging.Remote.Enabled && cfg.Alerts.Telegram.Enabled,
			MinLevel:   cfg.Logging.Remote.MinLevel,
			RatePerSec: cfg.Logging.Remote.RatePerSec,
		},
	}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	path := strings.TrimSpace(sc.Path)
	switch driver {
	case "", "file":
		return storage.Config{Driver: "file", Path: path, CompactEvery: sc.CompactEvery}, nil
	case "memory", "mem":
		return storage.Config{Driver: "memory"}, nil
	case "sqlite", "sqlite3":
		if path == "" {
			return storage.Config{}, fmt.Errorf("storage.path is required when storage.driver=sqlite")
		}
		busy, err := config.ParseDurationOrDefault("storage.busy_timeout", sc.BusyTimeout, time.Second)
		if err != nil {
			return storage.Config{}, err
		}
		return storage.Config{Driver: driver, Path: path, BusyTimeout: busy}, nil
	}
	return storage.Config{}, fmt.Errorf("unknown storage.driver: %s", sc.Driver)
}

func mapAPIConfig(cfg *config.Config) (api.Config, error) {
	timeout, err := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, 10*time.Second)
	if err != nil {
		return api.Config{}, err
	}
	p := cfg.API.Paths
	return api.Config{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    timeout,
		RatePerSec: cfg.API.RatePerSec,
		KioskID:    cfg.API.KioskID,
		ListLimit:  cfg.Kiosk.ListItems,
		Paths:      api.Paths{Scan: p.Scan, List: p.List, Ads: p.Ads, Weather: p.Weather},
	}, nil
}

func mapDisplayConfig(cfg *config.Config) (display.Config, error) {
	d := cfg.Display
	out := display.Config{
		Addr:           d.Addr,
		Token:          d.Token,
		AllowInsecure:  d.AllowInsecure,
		OriginPatterns: d.OriginPatterns,
		Pprof:          d.Pprof,
	}
	var err error
	if out.ReadTimeout, err = config.ParseDurationField("display.read_timeout", d.ReadTimeout); err != nil {
		return display.Config{}, err
	}
	if out.WriteTimeout, err = config.ParseDurationField("display.write_timeout", d.WriteTimeout); err != nil {
		return display.Config{}, err
	}
	if out.IdleTimeout, err = config.ParseDurationField("display.idle_timeout", d.IdleTimeout); err != nil {
		return display.Config{}, err
	}
	return out, nil
}

// kioskConfigs holds the per-component settings derived from the kiosk section.
type kioskConfigs struct {
	timings  config.Timings
	location *time.Location
	scan     scan.Config
	ads      ads.Config
	screen   screen.Config
	defaults prefs.Defaults
}

func mapKioskConfig(cfg *config.Config) (kioskConfigs, error) {
	t, err := cfg.Kiosk.Timings()
	if err != nil {
		return kioskConfigs{}, err
	}
	loc := time.Local
	if tz := strings.TrimSpace(cfg.Kiosk.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return kioskConfigs{}, fmt.Errorf("kiosk.timezone: invalid %q: %w", tz, err)
		}
	}
	d := cfg.Defaults
	return kioskConfigs{
		timings:  t,
		location: loc,
		scan:     scan.Config{Interval: t.ScanPoll, Location: loc},
		ads:      ads.Config{RefreshInterval: t.AdsRefresh, DefaultDuration: t.DefaultAdDuration},
		screen: screen.Config{
			MemberTimeout:   t.MemberScreen,
			PasswordTimeout: t.PasswordTimeout,
			ClockTick:       t.ClockTick,
			WeatherSpec:     cfg.Kiosk.WeatherRefresh,
			MaxListItems:    cfg.Kiosk.ListItems,
		},
		defaults: prefs.Defaults{
			Mode:       d.Mode,
			Language:   d.Language,
			City:       d.City,
			Country:    d.Country,
			AdsEnabled: d.AdsEnabled,
		},
	}, nil
}

// mapAlerts returns a nil sender when alerts are disabled.
func mapAlerts(cfg *config.Config, prefix string) (*alerts.Telegram, error) {
	t := cfg.Alerts.Telegram
	if !t.Enabled {
		return nil, nil
	}
	return alerts.NewTelegram(alerts.Config{
		Token:    t.Token,
		ChatID:   t.ChatID,
		ThreadID: t.ThreadID,
		Prefix:   prefix,
	})
}
