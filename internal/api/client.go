// Package api talks to the club's check-in backend over JSON/HTTP.
//
// Client implements every source the screen controller consumes: scan
// polling, the recent-scan list, the ad inventory and weather.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	logx "clubkiosk/pkg/logx"
)

const maxBody = 1 << 20

// Paths are resolved against Config.BaseURL.
type Paths struct {
	Scan    string
	List    string
	Ads     string
	Weather string
}

type Config struct {
	BaseURL    string
	Paths      Paths
	Timeout    time.Duration
	RatePerSec int
	KioskID    string
	ListLimit  int
}

// Error is a transport or HTTP-level failure.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("api %s: http %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("api %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrBackend marks an envelope whose status is "error".
var ErrBackend = errors.New("backend reported error")

type Client struct {
	cfg     Config
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.KioskID == "" {
		cfg.KioskID = uuid.NewString()
	}
	p := &cfg.Paths
	p.Scan = orDefault(p.Scan, "api/check_scan.php")
	p.List = orDefault(p.List, "api/get_scan_list.php")
	p.Ads = orDefault(p.Ads, "api/get_ads.php")
	p.Weather = orDefault(p.Weather, "api/get_weather.php")

	return &Client{
		cfg:     cfg,
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		log:     log.With(logx.String("comp", "api")),
	}, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimLeft(v, "/")
}

// getJSON fetches path and decodes the body into out. A non-2xx response is
// an *Error; an undecodable body is returned as a plain decode error so
// callers can degrade it to "no data".
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Err: err}
	}

	u := c.base.ResolveReference(&url.URL{Path: path})
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Request-ID", reqID)
	req.Header.Set("X-Kiosk-ID", c.cfg.KioskID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: err}
	}
	c.log.Trace("api request",
		logx.String("op", op),
		logx.String("request_id", reqID),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, Status: resp.StatusCode, Err: errors.New(envelopeMessage(body, resp.Status))}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("api %s: decode: %w", op, err)
	}
	return nil
}

// envelopeMessage pulls error.message or message out of an error body.
func envelopeMessage(body []byte, def string) string {
	var env struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil {
		if env.Error != nil && env.Error.Message != "" {
			return env.Error.Message
		}
		if env.Message != "" {
			return env.Message
		}
	}
	return def
}

func decodeData(raw []byte, out any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return errors.New("empty data")
	}
	return json.Unmarshal(raw, out)
}

func isDecodeError(err error) bool {
	var apiErr *Error
	return err != nil && !errors.As(err, &apiErr)
}
