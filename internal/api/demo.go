package api

import (
	"context"
	"strconv"
	"sync"
	"time"

	"clubkiosk/internal/ads"
	"clubkiosk/internal/scan"
	"clubkiosk/internal/screen"
)

// Demo is an offline stand-in for the backend. Every Every-th poll reports a
// new check-in, cycling through a fixed set of members.
type Demo struct {
	Every int
	Now   func() time.Time

	mu     sync.Mutex
	polls  int
	seq    int
	recent []scan.Event
}

func NewDemo(every int) *Demo {
	if every <= 0 {
		every = 5
	}
	return &Demo{Every: every, Now: time.Now}
}

type demoMember struct {
	name     string
	status   scan.MemberStatus
	messages []scan.Message
	sessions int
}

var demoMembers = []demoMember{
	{name: "Anna Keller", status: scan.MemberAllowed, sessions: 8,
		messages: []scan.Message{{Icon: "check", Text: "Have a great workout!"}}},
	{name: "Marco Rossi", status: scan.MemberWarning, sessions: 1,
		messages: []scan.Message{{Icon: "alert", Text: "Last session on your card"}}},
	{name: "Lena Vogt", status: scan.MemberDenied, sessions: 0,
		messages: []scan.Message{{Icon: "x", Text: "Membership expired"}, {Text: "Please see the front desk"}}},
}

func (d *Demo) PollScan(ctx context.Context) (scan.Result, error) {
	if err := ctx.Err(); err != nil {
		return scan.Result{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	d.polls++
	if d.polls%d.Every != 0 {
		return scan.Result{Status: scan.StatusNoUpdate}, nil
	}
	m := demoMembers[d.seq%len(demoMembers)]
	d.seq++
	now := d.Now()
	month, total, sessions := d.seq%12, 40+d.seq, m.sessions
	r := scan.Result{
		Status:       scan.StatusUpdateFound,
		ScanID:       strconv.Itoa(1000 + d.seq),
		Name:         m.name,
		MemberStatus: m.status,
		Messages:     m.messages,
		Stats: scan.Stats{
			RemainingSessions:  &sessions,
			TrainingsThisMonth: &month,
			TrainingsTotal:     &total,
		},
		CheckIn: now.Format("2006-01-02 15:04:05"),
	}
	d.recent = append([]scan.Event{scan.EventFromResult(r, now.Location(), now)}, d.recent...)
	if len(d.recent) > 20 {
		d.recent = d.recent[:20]
	}
	return r, nil
}

func (d *Demo) RecentScans(ctx context.Context) ([]scan.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]scan.Event(nil), d.recent...), nil
}

func (d *Demo) ListActiveAds(ctx context.Context) ([]ads.Item, error) {
	return []ads.Item{
		{Type: ads.KindImage, Src: "/ads/summer-offer.jpg", Duration: 8 * time.Second},
		{Type: ads.KindVideo, Src: "/ads/new-classes.mp4", Duration: 15 * time.Second},
		{Type: ads.KindImage, Src: "/ads/bring-a-friend.png"},
	}, ctx.Err()
}

func (d *Demo) Weather(ctx context.Context, q screen.WeatherQuery) (screen.Weather, error) {
	if err := ctx.Err(); err != nil {
		return screen.Weather{}, err
	}
	desc := "partly cloudy"
	if q.Language == "de" {
		desc = "teilweise bewölkt"
	}
	return screen.Weather{Temp: 18.5, Description: desc, Icon: "02d"}, nil
}
