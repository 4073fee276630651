package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"clubkiosk/internal/loop"
	"clubkiosk/internal/scheduler"
	logx "clubkiosk/pkg/logx"
)

var now = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func updateFound(id, checkIn string) Result {
	return Result{Status: StatusUpdateFound, ScanID: id, Name: "Ada", MemberStatus: MemberAllowed, CheckIn: checkIn}
}

func TestIsNew(t *testing.T) {
	t.Parallel()

	const lastID, lastAt = "100", "2025-01-01T10:00:00"
	cases := []struct {
		name string
		res  Result
		want bool
	}{
		{"later check-in same id", updateFound("100", "2025-01-01T10:05:00"), true},
		{"earlier check-in same id", updateFound("100", "2025-01-01T09:00:00"), false},
		{"same check-in same id", updateFound("100", "2025-01-01T10:00:00"), false},
		{"same instant other layout", updateFound("100", "2025-01-01 10:00:00"), false},
		{"future check-in same id", updateFound("100", "2025-01-01T12:30:00"), false},
		{"unreadable check-in same id", updateFound("100", "soon"), false},
		{"different id", updateFound("101", "2025-01-01T09:00:00"), true},
		{"different id future", updateFound("101", "2025-01-02T09:00:00"), true},
		{"no_update", Result{Status: StatusNoUpdate, ScanID: "101"}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := IsNew(tc.res, lastID, lastAt, now, time.UTC); got != tc.want {
				t.Fatalf("IsNew = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsNewWithoutRecordedCheckIn(t *testing.T) {
	t.Parallel()

	if !IsNew(updateFound("7", "2025-01-01 11:00:00"), "7", "", now, time.UTC) {
		t.Fatalf("readable check-in should be new when none was recorded")
	}
}

type fakeSource struct {
	results []Result
	err     error
	calls   int
}

func (f *fakeSource) PollScan(context.Context) (Result, error) {
	f.calls++
	if f.err != nil {
		return Result{}, f.err
	}
	if len(f.results) == 0 {
		return Result{Status: StatusNoUpdate}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

type memCursor struct{ id, at string }

func (m *memCursor) LastScan() (string, string)      { return m.id, m.at }
func (m *memCursor) SetLastScan(id, at string) error { m.id, m.at = id, at; return nil }

func newPoller(disp loop.Dispatcher, src Source, cur Cursor) (*Poller, *scheduler.ManualClock, *[]Event) {
	clock := scheduler.NewManualClock(now)
	sched := scheduler.New(clock, nil, logx.Nop())
	p := NewPoller(Config{Interval: time.Second, Location: time.UTC}, sched, disp, src, cur, logx.Nop())
	var got []Event
	p.OnScan(func(ev Event) { got = append(got, ev) })
	return p, clock, &got
}

func TestPollerAdoptsAndDedups(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: []Result{
		updateFound("100", "2025-01-01 10:00:00"),
		updateFound("100", "2025-01-01 10:00:00"),
		{Status: StatusNoUpdate},
		updateFound("100", "2025-01-01 10:05:00"),
	}}
	cur := &memCursor{}
	p, clock, got := newPoller(loop.Inline{}, src, cur)
	p.Start()
	clock.Advance(4 * time.Second)

	if src.calls != 4 {
		t.Fatalf("calls = %d, want 4", src.calls)
	}
	if len(*got) != 2 {
		t.Fatalf("events = %d, want 2", len(*got))
	}
	if cur.id != "100" || cur.at != "2025-01-01 10:05:00" {
		t.Fatalf("cursor = %+v", cur)
	}
	if (*got)[1].CheckInAt.IsZero() {
		t.Fatalf("CheckInAt not parsed")
	}
}

func TestPollerErrorAdoptsID(t *testing.T) {
	t.Parallel()

	src := &fakeSource{results: []Result{{Status: StatusError, ScanID: "55", Message: "db down"}}}
	cur := &memCursor{id: "50", at: "2025-01-01 09:00:00"}
	p, _, got := newPoller(loop.Inline{}, src, cur)
	p.Poll()
	if len(*got) != 0 {
		t.Fatalf("error status must not emit")
	}
	if cur.id != "55" || cur.at != "2025-01-01 09:00:00" {
		t.Fatalf("cursor = %+v", cur)
	}
}

func TestPollerNetworkErrorKeepsCursor(t *testing.T) {
	t.Parallel()

	src := &fakeSource{err: errors.New("timeout")}
	cur := &memCursor{id: "1"}
	p, _, _ := newPoller(loop.Inline{}, src, cur)
	p.Poll()
	want := PollerStats{Running: false, Polls: 1, Failed: 1}
	if st := p.Stats(); cur.id != "1" || st != want {
		t.Fatalf("cursor=%+v stats=%+v, want %+v", cur, st, want)
	}
	p.Poll()
	if src.calls != 2 {
		t.Fatalf("failed poll must not block the next one")
	}
}

func TestPollerSkipsWhileInFlight(t *testing.T) {
	t.Parallel()

	var d loop.Deferred
	src := &fakeSource{}
	p, clock, _ := newPoller(&d, src, &memCursor{})
	p.Start()
	clock.Advance(3 * time.Second)
	if d.Len() != 1 {
		t.Fatalf("queued polls = %d, want 1", d.Len())
	}
	d.Flush()
	clock.Advance(time.Second)
	if d.Len() != 1 {
		t.Fatalf("poll after completion not issued")
	}
}

func TestPollerDropsLateResponseAfterStop(t *testing.T) {
	t.Parallel()

	var d loop.Deferred
	src := &fakeSource{results: []Result{updateFound("9", "2025-01-01 11:00:00")}}
	cur := &memCursor{}
	p, _, got := newPoller(&d, src, cur)
	p.Start()
	p.Poll()
	p.Stop()
	d.Flush()
	if len(*got) != 0 || cur.id != "" {
		t.Fatalf("late response applied: events=%d cursor=%+v", len(*got), cur)
	}
	if p.Running() {
		t.Fatalf("Stop should clear the timer")
	}
}
