package ads

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubkiosk/internal/loop"
	"clubkiosk/internal/scheduler"
	logx "clubkiosk/pkg/logx"
)

var epoch = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

type fakeSource struct {
	items []Item
	err   error
	calls int
}

func (f *fakeSource) ListActiveAds(context.Context) ([]Item, error) {
	f.calls++
	return f.items, f.err
}

type shown struct {
	at  time.Time
	src string
	dur time.Duration
}

type fakeSurface struct {
	clock *scheduler.ManualClock
	shown []shown
	hides int
}

func (f *fakeSurface) ShowAd(it Item) { f.shown = append(f.shown, shown{f.clock.Now(), it.Src, it.Duration}) }
func (f *fakeSurface) HideAds()       { f.hides++ }

type conds struct{ enabled, idle bool }

func (c *conds) AdsEnabled() bool { return c.enabled }
func (c *conds) ScreenIdle() bool { return c.idle }

type harness struct {
	clock   *scheduler.ManualClock
	sched   *scheduler.Scheduler
	src     *fakeSource
	surface *fakeSurface
	cond    *conds
	cycle   *Cycle
}

func newHarness(disp loop.Dispatcher, items ...Item) *harness {
	clock := scheduler.NewManualClock(epoch)
	h := &harness{
		clock:   clock,
		sched:   scheduler.New(clock, nil, logx.Nop()),
		src:     &fakeSource{items: items},
		surface: &fakeSurface{clock: clock},
		cond:    &conds{enabled: true, idle: true},
	}
	h.cycle = NewCycle(Config{RefreshInterval: time.Minute, DefaultDuration: 10 * time.Second}, h.sched, disp, h.src, h.surface, logx.Nop())
	h.cycle.SetConditions(h.cond)
	return h
}

func (h *harness) rotationDelay(t *testing.T) time.Duration {
	t.Helper()
	for _, ti := range h.sched.Snapshot() {
		if ti.Name == RotationTimer {
			return ti.Interval
		}
	}
	t.Fatalf("no %s timer", RotationTimer)
	return 0
}

func TestRotationWrapsWithPerItemDelays(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{},
		Item{Type: KindImage, Src: "a.jpg", Duration: 5000 * time.Millisecond},
		Item{Type: KindVideo, Src: "b.mp4", Duration: 3000 * time.Millisecond},
	)
	h.cycle.StartRefresh(true)

	var delays []time.Duration
	var indexes []int
	for i := 0; i < 3; i++ {
		indexes = append(indexes, h.cycle.Index())
		d := h.rotationDelay(t)
		delays = append(delays, d)
		h.clock.Advance(d)
	}

	wantIdx := []int{0, 1, 0}
	wantDelays := []time.Duration{5 * time.Second, 3 * time.Second, 5 * time.Second}
	for i := range wantIdx {
		if indexes[i] != wantIdx[i] || delays[i] != wantDelays[i] {
			t.Fatalf("indexes=%v delays=%v, want %v %v", indexes, delays, wantIdx, wantDelays)
		}
	}
	if got := h.surface.shown[1].at.Sub(h.surface.shown[0].at); got != 5*time.Second {
		t.Fatalf("second ad shown after %v", got)
	}
}

func TestZeroDurationUsesDefault(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{}, Item{Type: KindImage, Src: "a.jpg"})
	h.cycle.StartRefresh(true)
	if d := h.rotationDelay(t); d != 10*time.Second {
		t.Fatalf("delay = %v, want default", d)
	}
	if len(h.surface.shown) != 1 || h.surface.shown[0].dur != 10*time.Second {
		t.Fatalf("shown = %+v, want the default duration on the surface", h.surface.shown)
	}
}

func TestAdvanceHaltsWhenNotIdle(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{}, Item{Type: KindImage, Src: "a.jpg", Duration: time.Second})
	h.cycle.StartRefresh(true)
	h.cond.idle = false
	hides := h.surface.hides
	h.clock.Advance(time.Second)

	if h.cycle.Running() || h.sched.Active(RotationTimer) {
		t.Fatalf("rotation should halt when the screen leaves idle")
	}
	if h.surface.hides != hides+1 {
		t.Fatalf("surface not hidden")
	}
}

func TestRefreshSkippedWhenDisabled(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{}, Item{Type: KindImage, Src: "a.jpg"})
	h.cond.enabled = false
	h.cycle.StartRefresh(true)
	if h.src.calls != 0 {
		t.Fatalf("disabled ads must not fetch")
	}
	if !h.sched.Active(RefreshTimer) {
		t.Fatalf("refresh timer keeps running so a later enable is picked up")
	}
}

func TestFetchFailureClearsList(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{}, Item{Type: KindImage, Src: "a.jpg"})
	h.cycle.StartRefresh(true)
	if len(h.cycle.Items()) != 1 {
		t.Fatalf("items = %v", h.cycle.Items())
	}
	h.src.err = errors.New("502")
	h.cycle.Refresh()
	if len(h.cycle.Items()) != 0 || h.cycle.Running() {
		t.Fatalf("failure should clear and halt")
	}
	h.clock.Advance(30 * time.Second)
	if h.src.calls != 2 {
		t.Fatalf("no retry expected before the next refresh, calls=%d", h.src.calls)
	}
}

func TestInvalidItemsDropped(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{},
		Item{Type: "gif", Src: "x.gif"},
		Item{Type: KindPDF, Src: ""},
		Item{Type: KindPDF, Src: "menu.pdf"},
	)
	h.cycle.StartRefresh(true)
	if items := h.cycle.Items(); len(items) != 1 || items[0].Src != "menu.pdf" {
		t.Fatalf("items = %v", items)
	}
}

func TestRefreshNotIdleKeepsListWithoutShowing(t *testing.T) {
	t.Parallel()

	h := newHarness(loop.Inline{}, Item{Type: KindImage, Src: "a.jpg"})
	h.cond.idle = false
	h.cycle.StartRefresh(true)
	if len(h.surface.shown) != 0 || len(h.cycle.Items()) != 1 || h.cycle.Index() != -1 {
		t.Fatalf("shown=%v items=%v index=%d", h.surface.shown, h.cycle.Items(), h.cycle.Index())
	}
}

func TestStopDropsLateList(t *testing.T) {
	t.Parallel()

	var d loop.Deferred
	h := newHarness(&d, Item{Type: KindImage, Src: "a.jpg"})
	h.cycle.StartRefresh(true)
	h.cycle.Stop()
	d.Flush()
	if len(h.cycle.Items()) != 0 || len(h.surface.shown) != 0 {
		t.Fatalf("late list applied after Stop")
	}
	if h.sched.Active(RefreshTimer) {
		t.Fatalf("Stop should clear the refresh timer")
	}
}
