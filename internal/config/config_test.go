package config

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
)

func writeFile(t *testing.T, fs afero.Fs, path, body string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	t.Parallel()
	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Validate(Default()) = %v", err)
	}
}

func TestDecodeJSONKeepsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Decode("kiosk.json", []byte(`{"api":{"base_url":"https://club.example/"},"kiosk":{"member_screen":"5s"}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.API.BaseURL != "https://club.example/" {
		t.Fatalf("base_url = %q", cfg.API.BaseURL)
	}
	if cfg.Kiosk.MemberScreen != "5s" || cfg.Kiosk.PasswordTimeout != "8s" {
		t.Fatalf("kiosk = %+v", cfg.Kiosk)
	}
	if !cfg.Defaults.AdsEnabled || cfg.Defaults.Language != "fr" {
		t.Fatalf("defaults lost: %+v", cfg.Defaults)
	}
}

func TestDecodeYAML(t *testing.T) {
	t.Parallel()

	body := `
logging:
  level: debug
defaults:
  ads_enabled: false
  city: Lausanne
display:
  origin_patterns: ["kiosk.local"]
`
	cfg, err := Decode("kiosk.yaml", []byte(body))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Defaults.AdsEnabled || cfg.Defaults.City != "Lausanne" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.Display.OriginPatterns) != 1 || cfg.Display.OriginPatterns[0] != "kiosk.local" {
		t.Fatalf("origin patterns = %v", cfg.Display.OriginPatterns)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"unknown field": `{"bogus": 1}`,
		"trailing data": `{} {}`,
		"bad json":      `{"logging":`,
	}
	for name, body := range cases {
		if _, err := Decode("kiosk.json", []byte(body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := Decode("kiosk.yml", []byte("logging: [unclosed")); err == nil {
		t.Fatalf("bad yaml: expected error")
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Storage.Driver = "sqlite"
	cfg.Storage.Path = ""
	cfg.API.BaseURL = "nope"
	cfg.Kiosk.ScanPoll = "fast"
	cfg.Kiosk.WeatherRefresh = "cron:not a spec"
	cfg.Defaults.Mode = "member"
	cfg.Defaults.Country = "ch"
	cfg.Alerts.Telegram.Enabled = true

	err := Validate(&cfg)
	if err == nil {
		t.Fatalf("expected errors")
	}
	for _, want := range []string{
		"logging.level", "storage.path", "api.base_url", "kiosk.scan_poll",
		"kiosk.weather_refresh", "defaults.mode", "defaults.country",
		"alerts.telegram.token", "alerts.telegram.chat_id",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestTimingsFallBack(t *testing.T) {
	t.Parallel()

	k := KioskConfig{ScanPoll: "2s", MemberScreen: "0s"}
	tm, err := k.Timings()
	if err != nil {
		t.Fatalf("Timings: %v", err)
	}
	if tm.ScanPoll != 2*time.Second || tm.MemberScreen != 7*time.Second || tm.AdsRefresh != time.Minute {
		t.Fatalf("timings = %+v", tm)
	}
	if _, err := (KioskConfig{ClockTick: "-1s"}).Timings(); err == nil {
		t.Fatalf("negative duration should fail")
	}
}

func TestManagerLoadAndReload(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/etc/kiosk.json", `{"logging":{"level":"info"}}`)
	m := NewConfigManager("/etc/kiosk.json", fs)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx := context.Background()
	if changed, err := m.Reload(ctx); err != nil || changed {
		t.Fatalf("unchanged reload = %v, %v", changed, err)
	}

	writeFile(t, fs, "/etc/kiosk.json", `{"logging":{"level":"debug"}}`)
	if changed, err := m.Reload(ctx); err != nil || !changed {
		t.Fatalf("changed reload = %v, %v", changed, err)
	}
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	default:
		t.Fatalf("no config published")
	}

	writeFile(t, fs, "/etc/kiosk.json", `{"defaults":{"mode":"member"}}`)
	if _, err := m.Reload(ctx); err == nil {
		t.Fatalf("invalid reload should be rejected")
	}
	if m.Get().Logging.Level != "debug" {
		t.Fatalf("rejected config was committed")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()

	oldCfg := Default()
	newCfg := Default()
	newCfg.Logging.Level = "debug"
	newCfg.Display.Token = "secret"

	sections, attrs := SummarizeConfigChange(&oldCfg, &newCfg)
	if strings.Join(sections, ",") != "logging,display" {
		t.Fatalf("sections = %v", sections)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}
	if !RequiresRestart("display") || RequiresRestart("logging") {
		t.Fatalf("restart classification wrong")
	}

	if s, _ := SummarizeConfigChange(&oldCfg, &oldCfg); len(s) != 0 {
		t.Fatalf("identical configs reported %v", s)
	}
}
