// Package ads rotates promotional content on the idle screen.
//
// Two timers are involved: RefreshTimer periodically reloads the active ad
// list, RotationTimer shows one ad for its duration and then advances. Every
// advance re-checks that ads are enabled, the screen is idle and the list is
// non-empty; if any check fails the rotation halts and the surface is hidden.
package ads

import (
	"context"
	"strings"
	"time"

	"clubkiosk/internal/loop"
	"clubkiosk/internal/scheduler"
	logx "clubkiosk/pkg/logx"
)

const (
	RotationTimer = "adInterval"
	RefreshTimer  = "adListRefresh"

	fallbackDuration = 10 * time.Second
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindPDF   Kind = "pdf"
)

// Item is one ad. Duration zero means the configured default.
type Item struct {
	Type     Kind          `json:"type"`
	Src      string        `json:"src"`
	Duration time.Duration `json:"-"`
}

func (it Item) valid() bool {
	switch it.Type {
	case KindImage, KindVideo, KindPDF:
		return strings.TrimSpace(it.Src) != ""
	}
	return false
}

// Source lists the currently active ads.
type Source interface {
	ListActiveAds(ctx context.Context) ([]Item, error)
}

// Surface shows and hides ads on the display. ShowAd receives the item with
// the duration it will actually stay up.
type Surface interface {
	ShowAd(Item)
	HideAds()
}

// Conditions is consulted before every fetch and every advance.
type Conditions interface {
	AdsEnabled() bool
	ScreenIdle() bool
}

type Config struct {
	RefreshInterval time.Duration
	DefaultDuration time.Duration
}

// Cycle runs on the loop goroutine.
type Cycle struct {
	cfg     Config
	sched   *scheduler.Scheduler
	disp    loop.Dispatcher
	src     Source
	surface Surface
	cond    Conditions
	log     logx.Logger

	items   []Item
	index   int
	running bool
	gen     uint64
}

func NewCycle(cfg Config, sched *scheduler.Scheduler, disp loop.Dispatcher, src Source, surface Surface, log logx.Logger) *Cycle {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = time.Minute
	}
	if cfg.DefaultDuration <= 0 {
		cfg.DefaultDuration = fallbackDuration
	}
	return &Cycle{
		cfg:     cfg,
		sched:   sched,
		disp:    disp,
		src:     src,
		surface: surface,
		log:     log.With(logx.String("comp", "ads")),
		index:   -1,
	}
}

// SetConditions must be called before the cycle is started.
func (c *Cycle) SetConditions(cond Conditions) { c.cond = cond }

func (c *Cycle) enabled() bool { return c.cond != nil && c.cond.AdsEnabled() }
func (c *Cycle) idle() bool    { return c.cond != nil && c.cond.ScreenIdle() }

// StartRefresh (re)arms the refresh timer, fetching at once when immediate.
func (c *Cycle) StartRefresh(immediate bool) {
	c.sched.StartEvery(RefreshTimer, c.cfg.RefreshInterval, c.Refresh)
	if immediate {
		c.Refresh()
	}
}

// EnsureRefresh arms the refresh timer unless it is already running, so the
// refresh cadence survives short screen changes.
func (c *Cycle) EnsureRefresh() {
	if !c.sched.Active(RefreshTimer) {
		c.StartRefresh(false)
	}
}

// Refresh fetches the active list. With ads disabled it halts instead.
func (c *Cycle) Refresh() {
	if !c.enabled() {
		c.log.Debug("ads disabled, skipping fetch")
		c.Halt()
		return
	}
	gen := c.gen
	c.disp.Go("ads.refresh", func(ctx context.Context) func() {
		items, err := c.src.ListActiveAds(ctx)
		return func() { c.refreshed(gen, items, err) }
	})
}

func (c *Cycle) refreshed(gen uint64, items []Item, err error) {
	if gen != c.gen {
		c.log.Debug("late ad list dropped")
		return
	}
	if err != nil {
		c.log.Warn("ad list fetch failed", logx.Err(err))
		c.items = nil
		c.Halt()
		return
	}

	kept := make([]Item, 0, len(items))
	for _, it := range items {
		if it.valid() {
			kept = append(kept, it)
		} else {
			c.log.Debug("skipping invalid ad", logx.String("type", string(it.Type)), logx.String("src", it.Src))
		}
	}
	c.items = kept
	c.index = -1
	c.log.Debug("ad list refreshed", logx.Int("count", len(kept)))
	if c.idle() {
		c.Advance()
	}
}

// Advance shows the next ad and schedules the one after it.
func (c *Cycle) Advance() {
	if len(c.items) == 0 || !c.enabled() || !c.idle() {
		c.Halt()
		return
	}
	c.index = (c.index + 1) % len(c.items)
	item := c.items[c.index]
	if item.Duration <= 0 {
		item.Duration = c.cfg.DefaultDuration
	}
	c.running = true
	c.surface.ShowAd(item)
	c.sched.StartOnce(RotationTimer, item.Duration, c.Advance)
}

// Resume advances unless the rotation is already running.
func (c *Cycle) Resume() {
	if !c.running {
		c.Advance()
	}
}

// Halt stops the rotation and hides the surface. The list is kept.
func (c *Cycle) Halt() {
	c.sched.Clear(RotationTimer)
	c.running = false
	c.surface.HideAds()
}

// Stop halts the rotation, clears the refresh timer and drops any fetch in
// flight.
func (c *Cycle) Stop() {
	c.sched.Clear(RefreshTimer)
	c.gen++
	c.Halt()
}

func (c *Cycle) Running() bool { return c.running }

func (c *Cycle) Index() int { return c.index }

func (c *Cycle) Items() []Item { return append([]Item(nil), c.items...) }
