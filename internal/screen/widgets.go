package screen

import (
	"context"
	"encoding/json"
	"time"

	"clubkiosk/internal/prefs"
	logx "clubkiosk/pkg/logx"
)

func (c *Controller) tickClock() {
	now := c.now()
	c.paint(WidgetClock, ClockView{
		Date: now.Format("02.01.2006"),
		Time: now.Format("15:04"),
		At:   now,
	})
}

func (c *Controller) refreshWeather() {
	if c.weather == nil {
		return
	}
	q := WeatherQuery{Language: c.prefs.Language(), City: c.prefs.City(), Country: c.prefs.Country()}
	c.weatherGen++
	gen := c.weatherGen
	c.disp.Go("weather", func(ctx context.Context) func() {
		w, err := c.weather.Weather(ctx, q)
		return func() { c.weatherFetched(gen, q, w, err) }
	})
}

func (c *Controller) weatherFetched(gen uint64, q WeatherQuery, w Weather, err error) {
	if gen != c.weatherGen {
		return
	}
	view := WeatherView{City: q.City, Country: q.Country}
	if err != nil {
		c.log.Warn("weather fetch failed", logx.String("city", q.City), logx.Err(err))
		if snap, ok := c.weatherSnapshot(); ok && snap.City == q.City && snap.Country == q.Country {
			view.Available = true
			view.Stale = true
			view.Weather = snap.Weather
			view.At = snap.At
		}
	} else {
		view.Available = true
		view.Weather = w
		view.At = c.now()
		c.keepWeather(weatherSnapshot{City: q.City, Country: q.Country, Weather: w, At: view.At})
	}
	c.paint(WidgetWeather, view)
}

// weatherSnapshot is the last successful reading, shown as stale when a
// later fetch fails for the same location.
type weatherSnapshot struct {
	City    string    `json:"city"`
	Country string    `json:"country"`
	Weather Weather   `json:"weather"`
	At      time.Time `json:"at"`
}

func (c *Controller) keepWeather(s weatherSnapshot) {
	b, err := json.Marshal(s)
	if err == nil {
		err = c.prefs.Set(prefs.KeyWeatherSnapshot, string(b))
	}
	if err != nil {
		c.log.Debug("weather snapshot not kept", logx.Err(err))
	}
}

func (c *Controller) weatherSnapshot() (weatherSnapshot, bool) {
	raw, ok := c.prefs.Lookup(prefs.KeyWeatherSnapshot)
	if !ok || raw == "" {
		return weatherSnapshot{}, false
	}
	var s weatherSnapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return weatherSnapshot{}, false
	}
	return s, true
}

func (c *Controller) loadTexts(lang string) {
	if c.texts == nil {
		return
	}
	c.catalog = c.texts.Load(lang)
	c.paint(WidgetTexts, TextsView{Language: lang, Texts: c.catalog})
}

// text looks key up in the loaded catalog.
func (c *Controller) text(key, fallback string) string {
	if v, ok := c.catalog[key]; ok && v != "" {
		return v
	}
	return fallback
}
