package config

import (
	"reflect"
	"strings"

	logx "clubkiosk/pkg/logx"
)

// Sections that only take effect after a restart.
var restartSections = map[string]bool{
	"storage": true,
	"api":     true,
	"display": true,
	"kiosk":   true,
	"i18n":    true,
	"demo":    true,
}

// RequiresRestart reports whether a changed section is read only at startup.
func RequiresRestart(section string) bool { return restartSections[section] }

// SummarizeConfigChange lists the changed sections and safe log fields for
// them. Tokens are never included, only whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		attrs   []logx.Field
	)
	section := func(name string, differs bool, fields ...logx.Field) {
		if differs {
			changed = append(changed, name)
			attrs = append(attrs, fields...)
		}
	}

	section("logging", !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging),
		logx.String("logging.level", newCfg.Logging.Level),
		logx.Bool("logging.console", newCfg.Logging.Console),
		logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		logx.Bool("logging.remote_enabled", newCfg.Logging.Remote.Enabled),
	)
	section("storage", !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage),
		logx.String("storage.driver", newCfg.Storage.Driver),
	)
	section("api", !reflect.DeepEqual(oldCfg.API, newCfg.API),
		logx.String("api.base_url", strings.TrimSpace(newCfg.API.BaseURL)),
		logx.String("api.timeout", newCfg.API.Timeout),
	)

	section("display", !reflect.DeepEqual(oldCfg.Display, newCfg.Display),
		logx.String("display.addr", newCfg.Display.Addr),
		logx.Bool("display.token_set", strings.TrimSpace(newCfg.Display.Token) != ""),
		logx.Bool("display.pprof", newCfg.Display.Pprof),
	)
	section("kiosk", !reflect.DeepEqual(oldCfg.Kiosk, newCfg.Kiosk),
		logx.String("kiosk.scan_poll", newCfg.Kiosk.ScanPoll),
		logx.String("kiosk.weather_refresh", newCfg.Kiosk.WeatherRefresh),
	)
	section("defaults", oldCfg.Defaults != newCfg.Defaults,
		logx.String("defaults.language", newCfg.Defaults.Language),
		logx.String("defaults.mode", newCfg.Defaults.Mode),
	)
	section("i18n", oldCfg.I18n != newCfg.I18n, logx.String("i18n.dir", newCfg.I18n.Dir))

	ot, nt := oldCfg.Alerts.Telegram, newCfg.Alerts.Telegram
	section("alerts", ot != nt,
		logx.Bool("alerts.telegram_enabled", nt.Enabled),
		logx.Bool("alerts.telegram_token_set", strings.TrimSpace(nt.Token) != ""),
		logx.Int64("alerts.telegram_chat_id", nt.ChatID),
	)
	section("demo", oldCfg.Demo != newCfg.Demo, logx.Int("demo.scan_every", newCfg.Demo.ScanEvery))
	return changed, attrs
}
