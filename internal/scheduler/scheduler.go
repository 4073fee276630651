package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	logx "clubkiosk/pkg/logx"
)

// Kind selects how an entry re-arms after firing.
type Kind int

const (
	OneShot Kind = iota
	Repeating
	Scheduled // next delay computed from a cron.Schedule
)

func (k Kind) String() string {
	switch k {
	case OneShot:
		return "oneshot"
	case Repeating:
		return "repeating"
	case Scheduled:
		return "scheduled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Poster runs fn on the owning execution context.
type Poster func(fn func())

type entry struct {
	name   string
	kind   Kind
	every  time.Duration
	sched  cron.Schedule
	fn     func()
	id     uint64
	next   time.Time
	handle Stopper
	fires  uint64
}

// Scheduler is not safe for concurrent use: every method must be called from
// the goroutine that Poster delivers to.
type Scheduler struct {
	clock Clock
	post  Poster
	log   logx.Logger

	seq     uint64
	entries map[string]*entry
	dropped uint64
}

// New returns a Scheduler. A nil clock means RealClock; a nil post runs
// callbacks directly on the clock's goroutine.
func New(clock Clock, post Poster, log logx.Logger) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	if post == nil {
		post = func(fn func()) { fn() }
	}
	return &Scheduler{
		clock:   clock,
		post:    post,
		log:     log.With(logx.String("comp", "scheduler")),
		entries: make(map[string]*entry),
	}
}

// Clock returns the time source timers are armed on.
func (s *Scheduler) Clock() Clock { return s.clock }

// Start installs fn under name, replacing any live timer with that name.
// A Repeating timer with a non-positive interval is rejected.
func (s *Scheduler) Start(name string, fn func(), interval time.Duration, kind Kind) {
	if kind == Repeating && interval <= 0 {
		s.log.Warn("repeating timer needs a positive interval", logx.String("timer", name), logx.Duration("interval", interval))
		s.Clear(name)
		return
	}
	if interval < 0 {
		interval = 0
	}
	s.install(&entry{name: name, kind: kind, every: interval, fn: fn})
}

// StartOnce is Start(name, fn, delay, OneShot).
func (s *Scheduler) StartOnce(name string, delay time.Duration, fn func()) {
	s.Start(name, fn, delay, OneShot)
}

// StartEvery is Start(name, fn, every, Repeating).
func (s *Scheduler) StartEvery(name string, every time.Duration, fn func()) {
	s.Start(name, fn, every, Repeating)
}

// StartSpec installs a repeating timer from a schedule string (see ParseSchedule).
func (s *Scheduler) StartSpec(name, spec string, fn func()) error {
	parsed, err := ParseSchedule(spec)
	if err != nil {
		return fmt.Errorf("timer %s: %w", name, err)
	}
	if parsed.Kind == SpecInterval {
		s.Start(name, fn, parsed.Every, Repeating)
		return nil
	}
	s.install(&entry{name: name, kind: Scheduled, sched: parsed.Schedule, fn: fn})
	return nil
}

func (s *Scheduler) install(e *entry) {
	s.Clear(e.name)
	s.seq++
	e.id = s.seq
	s.entries[e.name] = e
	s.arm(e, s.delay(e))
}

func (s *Scheduler) delay(e *entry) time.Duration {
	if e.kind != Scheduled {
		return e.every
	}
	now := s.clock.Now()
	d := e.sched.Next(now).Sub(now)
	if d < 0 {
		d = 0
	}
	return d
}

func (s *Scheduler) arm(e *entry, d time.Duration) {
	name, id := e.name, e.id
	e.next = s.clock.Now().Add(d)
	e.handle = s.clock.AfterFunc(d, func() {
		s.post(func() { s.fire(name, id) })
	})
}

func (s *Scheduler) fire(name string, id uint64) {
	e, ok := s.entries[name]
	if !ok || e.id != id {
		s.dropped++
		s.log.Trace("stale timer callback dropped", logx.String("timer", name), logx.Uint64("gen", id))
		return
	}
	e.fires++
	if e.kind == OneShot {
		delete(s.entries, name)
	} else {
		s.arm(e, s.delay(e))
	}
	e.fn()
}

// Clear cancels the named timers. Unknown names are ignored.
func (s *Scheduler) Clear(names ...string) {
	for _, name := range names {
		e, ok := s.entries[name]
		if !ok {
			continue
		}
		if e.handle != nil {
			e.handle.Stop()
		}
		delete(s.entries, name)
	}
}

// ClearAll cancels every timer.
func (s *Scheduler) ClearAll() {
	for name := range s.entries {
		s.Clear(name)
	}
}

// Active reports whether name has a live timer.
func (s *Scheduler) Active(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Len returns the number of live timers.
func (s *Scheduler) Len() int { return len(s.entries) }

// Names returns live timer names, sorted.
func (s *Scheduler) Names() []string {
	out := make([]string, 0, len(s.entries))
	for name := range s.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// TimerInfo is a diagnostic view of one live timer.
type TimerInfo struct {
	Name     string        `json:"name"`
	Kind     string        `json:"kind"`
	Interval time.Duration `json:"interval,omitempty"`
	Next     time.Time     `json:"next"`
	Fires    uint64        `json:"fires"`
}

// Snapshot lists live timers sorted by name.
func (s *Scheduler) Snapshot() []TimerInfo {
	out := make([]TimerInfo, 0, len(s.entries))
	for _, name := range s.Names() {
		e := s.entries[name]
		out = append(out, TimerInfo{
			Name:     e.name,
			Kind:     e.kind.String(),
			Interval: e.every,
			Next:     e.next,
			Fires:    e.fires,
		})
	}
	return out
}

// Dropped counts stale callbacks discarded so far.
func (s *Scheduler) Dropped() uint64 { return s.dropped }
