package api

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"clubkiosk/internal/scan"
	logx "clubkiosk/pkg/logx"
)

// PollScan implements scan.Source.
//
// Transport failures are returned as errors. A body that cannot be decoded
// degrades to no_update.
func (c *Client) PollScan(ctx context.Context) (scan.Result, error) {
	var w wireScan
	err := c.getJSON(ctx, "check_scan", c.cfg.Paths.Scan, nil, &w)
	if isDecodeError(err) {
		c.log.Warn("scan response unreadable", logx.Err(err))
		return scan.Result{Status: scan.StatusNoUpdate}, nil
	}
	if err != nil {
		return scan.Result{}, err
	}
	return w.result(), nil
}

// RecentScans implements the screen's list source.
func (c *Client) RecentScans(ctx context.Context) ([]scan.Event, error) {
	q := url.Values{}
	if c.cfg.ListLimit > 0 {
		q.Set("limit", strconv.Itoa(c.cfg.ListLimit))
	}
	var env envelope
	err := c.getJSON(ctx, "get_scan_list", c.cfg.Paths.List, q, &env)
	if isDecodeError(err) {
		c.log.Warn("scan list unreadable", logx.Err(err))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if msg, failed := env.failed(); failed {
		return nil, &Error{Op: "get_scan_list", Err: backendError(msg)}
	}

	var rows []wireScan
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &rows); err != nil {
			c.log.Warn("scan list entries unreadable", logx.Err(err))
			return nil, nil
		}
	}
	now := time.Now()
	out := make([]scan.Event, 0, len(rows))
	for _, row := range rows {
		r := row.result()
		if r.ScanID == "" && r.Name == "" {
			continue
		}
		out = append(out, scan.EventFromResult(r, time.Local, now))
	}
	return out, nil
}

func (w wireScan) result() scan.Result {
	r := scan.Result{
		Status:       scan.Status(strings.TrimSpace(w.Status)),
		ScanID:       string(w.LastScanID),
		Name:         strings.TrimSpace(w.Name),
		MemberStatus: scan.MemberStatus(strings.ToLower(strings.TrimSpace(w.MemberStatus))),
		Message:      w.Message,
	}
	// A poll without a status carries nothing to act on. List rows have no
	// status and are read regardless.
	if r.Status == "" {
		r.Status = scan.StatusNoUpdate
	}
	for _, m := range w.CustomMessage {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		msg := scan.Message{Text: m.Text}
		if m.IconName != nil {
			msg.Icon = *m.IconName
		}
		r.Messages = append(r.Messages, msg)
	}
	if w.Stats != nil {
		r.Stats = scan.Stats{
			DaysSinceLastMeasure: w.Stats.DaysSinceLastMeasure.ptr(),
			RemainingSessions:    w.Stats.RemainingSessions.ptr(),
			TrainingsThisMonth:   w.Stats.TrainingsThisMonth.ptr(),
			TrainingsTotal:       w.Stats.TrainingsTotal.ptr(),
		}
		r.CheckIn = string(w.Stats.CheckIn)
	}
	// An update without an id cannot be deduplicated.
	if r.Status == scan.StatusUpdateFound && r.ScanID == "" {
		r.Status = scan.StatusNoUpdate
	}
	return r
}

type backendError string

func (e backendError) Error() string        { return string(e) }
func (e backendError) Is(target error) bool { return target == ErrBackend }
