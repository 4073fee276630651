package api

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"clubkiosk/internal/ads"
	logx "clubkiosk/pkg/logx"
)

// ListActiveAds implements ads.Source. Durations arrive in milliseconds;
// entries with an unknown type or no source are skipped.
func (c *Client) ListActiveAds(ctx context.Context) ([]ads.Item, error) {
	var env envelope
	err := c.getJSON(ctx, "get_ads", c.cfg.Paths.Ads, nil, &env)
	if isDecodeError(err) {
		c.log.Warn("ad list unreadable", logx.Err(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if msg, failed := env.failed(); failed {
		return nil, &Error{Op: "get_ads", Err: backendError(msg)}
	}

	var rows []wireAd
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			c.log.Warn("ad entries unreadable", logx.Err(err))
			return nil, nil
		}
	}
	out := make([]ads.Item, 0, len(rows))
	for _, row := range rows {
		kind := ads.Kind(strings.ToLower(strings.TrimSpace(row.Type)))
		switch kind {
		case ads.KindImage, ads.KindVideo, ads.KindPDF:
		default:
			c.log.Debug("ad skipped", logx.String("type", row.Type))
			continue
		}
		src := strings.TrimSpace(row.Src)
		if src == "" {
			continue
		}
		item := ads.Item{Type: kind, Src: src}
		if row.Duration.ok && row.Duration.v > 0 {
			item.Duration = time.Duration(row.Duration.v) * time.Millisecond
		}
		out = append(out, item)
	}
	return out, nil
}
