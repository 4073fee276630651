package api

import (
	"context"
	"net/url"
	"strings"

	"clubkiosk/internal/screen"
)

// Weather implements screen.WeatherSource.
func (c *Client) Weather(ctx context.Context, q screen.WeatherQuery) (screen.Weather, error) {
	v := url.Values{}
	if q.Language != "" {
		v.Set("lang", q.Language)
	}
	if q.City != "" {
		v.Set("city", q.City)
	}
	if q.Country != "" {
		v.Set("country", q.Country)
	}

	var env envelope
	if err := c.getJSON(ctx, "get_weather", c.cfg.Paths.Weather, v, &env); err != nil {
		return screen.Weather{}, err
	}
	if msg, failed := env.failed(); failed {
		return screen.Weather{}, &Error{Op: "get_weather", Err: backendError(msg)}
	}

	var w wireWeather
	if err := decodeData(env.Data, &w); err != nil {
		return screen.Weather{}, &Error{Op: "get_weather", Err: err}
	}
	temp, err := w.Temp.Float64()
	if err != nil {
		return screen.Weather{}, &Error{Op: "get_weather", Err: err}
	}
	out := screen.Weather{Temp: temp, Description: strings.TrimSpace(w.Description)}
	if w.Icon != nil {
		out.Icon = *w.Icon
	}
	return out, nil
}
