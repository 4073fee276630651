package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses raw as a non-negative duration. Empty is zero.
// path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Timings is KioskConfig with every duration parsed.
type Timings struct {
	ScanPoll          time.Duration
	MemberScreen      time.Duration
	PasswordTimeout   time.Duration
	AdsRefresh        time.Duration
	DefaultAdDuration time.Duration
	ClockTick         time.Duration
}

// Timings parses every kiosk duration. Empty or zero fields fall back to
// Default.
func (k KioskConfig) Timings() (Timings, error) {
	def := Default().Kiosk
	var t Timings
	fields := []struct {
		path     string
		raw, def string
		out      *time.Duration
	}{
		{"kiosk.scan_poll", k.ScanPoll, def.ScanPoll, &t.ScanPoll},
		{"kiosk.member_screen", k.MemberScreen, def.MemberScreen, &t.MemberScreen},
		{"kiosk.password_timeout", k.PasswordTimeout, def.PasswordTimeout, &t.PasswordTimeout},
		{"kiosk.ads_refresh", k.AdsRefresh, def.AdsRefresh, &t.AdsRefresh},
		{"kiosk.default_ad_duration", k.DefaultAdDuration, def.DefaultAdDuration, &t.DefaultAdDuration},
		{"kiosk.clock_tick", k.ClockTick, def.ClockTick, &t.ClockTick},
	}
	for _, f := range fields {
		fallback, _ := time.ParseDuration(f.def)
		d, err := ParseDurationOrDefault(f.path, f.raw, fallback)
		if err != nil {
			return Timings{}, err
		}
		*f.out = d
	}
	return t, nil
}
