package scan

import (
	"context"
	"time"

	"clubkiosk/internal/loop"
	"clubkiosk/internal/scheduler"
	logx "clubkiosk/pkg/logx"
)

// TimerName is the scheduler entry driving the poll.
const TimerName = "scanPoll"

type Config struct {
	Interval time.Duration
	// Location reads check-ins without a zone. Nil means time.Local.
	Location *time.Location
}

// Poller runs on the loop goroutine. Start and Stop follow the screen state;
// the poller never decides on its own whether it should run.
type Poller struct {
	cfg    Config
	sched  *scheduler.Scheduler
	disp   loop.Dispatcher
	src    Source
	cursor Cursor
	log    logx.Logger

	onScan func(Event)

	gen      uint64
	inflight bool

	polls   uint64
	adopted uint64
	failed  uint64
}

func NewPoller(cfg Config, sched *scheduler.Scheduler, disp loop.Dispatcher, src Source, cursor Cursor, log logx.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	return &Poller{
		cfg:    cfg,
		sched:  sched,
		disp:   disp,
		src:    src,
		cursor: cursor,
		log:    log.With(logx.String("comp", "scan")),
	}
}

// OnScan sets the receiver for adopted scans.
func (p *Poller) OnScan(fn func(Event)) { p.onScan = fn }

// Start (re)arms the poll timer.
func (p *Poller) Start() {
	p.sched.StartEvery(TimerName, p.cfg.Interval, p.Poll)
}

// Resume starts the poll timer unless it is already running.
func (p *Poller) Resume() {
	if !p.Running() {
		p.Start()
	}
}

// Stop clears the timer and invalidates any poll in flight.
func (p *Poller) Stop() {
	p.sched.Clear(TimerName)
	p.gen++
	p.inflight = false
}

func (p *Poller) Running() bool { return p.sched.Active(TimerName) }

// Poll issues one fetch. A tick that lands while a fetch is still in flight
// is skipped.
func (p *Poller) Poll() {
	if p.inflight {
		p.log.Trace("poll skipped, previous request in flight")
		return
	}
	p.inflight = true
	p.polls++
	gen := p.gen

	p.disp.Go("scan.poll", func(ctx context.Context) func() {
		res, err := p.src.PollScan(ctx)
		return func() { p.complete(gen, res, err) }
	})
}

func (p *Poller) complete(gen uint64, res Result, err error) {
	if gen != p.gen {
		p.log.Debug("late poll response dropped")
		return
	}
	p.inflight = false

	if err != nil {
		p.failed++
		p.log.Warn("scan poll failed", logx.Err(err))
		return
	}

	switch res.Status {
	case StatusNoUpdate:
	case StatusError:
		p.log.Warn("scan backend reported error", logx.String("message", res.Message), logx.String("scan_id", res.ScanID))
		// Adopting the id keeps one broken record from alarming every tick.
		if res.ScanID != "" {
			_, lastCheckIn := p.cursor.LastScan()
			if err := p.cursor.SetLastScan(res.ScanID, lastCheckIn); err != nil {
				p.log.Warn("scan cursor save failed", logx.Err(err))
			}
		}
	case StatusUpdateFound:
		p.handleUpdate(res)
	default:
		p.log.Warn("unknown scan status treated as no_update", logx.String("status", string(res.Status)))
	}
}

func (p *Poller) handleUpdate(res Result) {
	now := p.sched.Clock().Now()
	lastID, lastCheckIn := p.cursor.LastScan()
	if !IsNew(res, lastID, lastCheckIn, now, p.cfg.Location) {
		return
	}

	if err := p.cursor.SetLastScan(res.ScanID, res.CheckIn); err != nil {
		// Still emit: the scan happened. A restart may show it once more.
		p.log.Warn("scan cursor save failed", logx.Err(err))
	}
	p.adopted++
	ev := EventFromResult(res, p.cfg.Location, now)
	p.log.Info("scan detected",
		logx.String("scan_id", ev.ScanID),
		logx.String("member_status", string(ev.MemberStatus)),
		logx.String("check_in", ev.CheckIn),
	)
	if p.onScan != nil {
		p.onScan(ev)
	}
}

// PollerStats is a diagnostic view of poller counters.
type PollerStats struct {
	Running  bool   `json:"running"`
	InFlight bool   `json:"in_flight"`
	Polls    uint64 `json:"polls"`
	Adopted  uint64 `json:"adopted"`
	Failed   uint64 `json:"failed"`
}

func (p *Poller) Stats() PollerStats {
	return PollerStats{Running: p.Running(), InFlight: p.inflight, Polls: p.polls, Adopted: p.adopted, Failed: p.failed}
}
