package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"clubkiosk/internal/scheduler"
	logx "clubkiosk/pkg/logx"
)

var (
	reLanguage = regexp.MustCompile(`^[a-z]{2}$`)
	reCountry  = regexp.MustCompile(`^[A-Z]{2}$`)
)

// Validate rejects values the app cannot run with. It never mutates cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if lv := strings.TrimSpace(cfg.Logging.Level); lv != "" && !logx.ValidLevel(lv) {
		add(fmt.Errorf("logging.level: unknown level %q", lv))
	}
	if lv := strings.TrimSpace(cfg.Logging.Remote.MinLevel); lv != "" && !logx.ValidLevel(lv) {
		add(fmt.Errorf("logging.remote.min_level: unknown level %q", lv))
	}
	if cfg.Logging.Remote.RatePerSec < 0 {
		add(errors.New("logging.remote.rate_per_sec must be >= 0"))
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "memory", "mem", "file":
	case "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			add(errors.New("storage.path is required when storage.driver=sqlite"))
		}
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	_, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)
	if cfg.Storage.CompactEvery < 0 {
		add(errors.New("storage.compact_every must be >= 0"))
	}

	if u, err := url.Parse(strings.TrimSpace(cfg.API.BaseURL)); err != nil || u.Scheme == "" || u.Host == "" {
		add(fmt.Errorf("api.base_url: invalid url %q", cfg.API.BaseURL))
	}
	_, err = ParseDurationField("api.timeout", cfg.API.Timeout)
	add(err)
	if cfg.API.RatePerSec < 0 {
		add(errors.New("api.rate_per_sec must be >= 0"))
	}

	for _, f := range []struct{ path, raw string }{
		{"display.read_timeout", cfg.Display.ReadTimeout},
		{"display.write_timeout", cfg.Display.WriteTimeout},
		{"display.idle_timeout", cfg.Display.IdleTimeout},
	} {
		_, err := ParseDurationField(f.path, f.raw)
		add(err)
	}

	_, err = cfg.Kiosk.Timings()
	add(err)
	if spec := strings.TrimSpace(cfg.Kiosk.WeatherRefresh); spec != "" {
		if _, err := scheduler.ParseSchedule(spec); err != nil {
			add(fmt.Errorf("kiosk.weather_refresh: %w", err))
		}
	}
	if cfg.Kiosk.ListItems < 0 {
		add(errors.New("kiosk.list_items must be >= 0"))
	}
	if cfg.Kiosk.QueueSize < 0 {
		add(errors.New("kiosk.queue_size must be >= 0"))
	}
	if tz := strings.TrimSpace(cfg.Kiosk.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("kiosk.timezone: invalid %q: %w", tz, err))
		}
	}

	switch cfg.Defaults.Mode {
	case "", "idle", "list":
	default:
		add(fmt.Errorf("defaults.mode: must be idle or list, got %q", cfg.Defaults.Mode))
	}
	if l := cfg.Defaults.Language; l != "" && !reLanguage.MatchString(l) {
		add(fmt.Errorf("defaults.language: invalid %q", l))
	}
	if c := cfg.Defaults.Country; c != "" && !reCountry.MatchString(c) {
		add(fmt.Errorf("defaults.country: must be two uppercase letters, got %q", c))
	}

	if t := cfg.Alerts.Telegram; t.Enabled {
		if strings.TrimSpace(t.Token) == "" {
			add(errors.New("alerts.telegram.token is required when enabled"))
		}
		if t.ChatID == 0 {
			add(errors.New("alerts.telegram.chat_id is required when enabled"))
		}
	}
	if cfg.Demo.ScanEvery < 0 {
		add(errors.New("demo.scan_every must be >= 0"))
	}
	return errors.Join(errs...)
}
