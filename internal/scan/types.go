// Package scan polls the check-in backend and turns new scan records into
// events for the screen controller.
package scan

import (
	"context"
	"time"
)

// Status is the kind of a poll response.
type Status string

const (
	StatusNoUpdate    Status = "no_update"
	StatusUpdateFound Status = "update_found"
	StatusError       Status = "error"
)

// MemberStatus drives the greeting colour on the member screen.
type MemberStatus string

const (
	MemberAllowed MemberStatus = "allowed"
	MemberWarning MemberStatus = "warning"
	MemberDenied  MemberStatus = "denied"
)

// Valid reports whether s is one of the known statuses.
func (s MemberStatus) Valid() bool {
	switch s {
	case MemberAllowed, MemberWarning, MemberDenied:
		return true
	}
	return false
}

// Message is one line shown under the member's name.
type Message struct {
	Icon string `json:"iconName,omitempty"`
	Text string `json:"text"`
}

// Stats is the member's training summary. Nil fields were absent.
type Stats struct {
	DaysSinceLastMeasure *int `json:"daysSinceLastMeasure,omitempty"`
	RemainingSessions    *int `json:"remainingSessions,omitempty"`
	TrainingsThisMonth   *int `json:"trainingsThisMonth,omitempty"`
	TrainingsTotal       *int `json:"trainingsTotal,omitempty"`
}

// Result is one ScanSource response, already decoded.
type Result struct {
	Status       Status
	ScanID       string
	Name         string
	MemberStatus MemberStatus
	Messages     []Message
	Stats        Stats
	CheckIn      string
	// Message carries the backend's explanation for StatusError.
	Message string
}

// Event is an adopted scan.
type Event struct {
	ScanID       string       `json:"scan_id"`
	Name         string       `json:"name"`
	MemberStatus MemberStatus `json:"member_status"`
	Messages     []Message    `json:"messages,omitempty"`
	Stats        Stats        `json:"stats"`
	CheckIn      string       `json:"check_in,omitempty"`
	CheckInAt    time.Time    `json:"check_in_at,omitempty"`
	DetectedAt   time.Time    `json:"detected_at"`
}

// Source fetches the latest scan record.
type Source interface {
	PollScan(ctx context.Context) (Result, error)
}

// Cursor persists the dedup position. prefs.State implements it.
type Cursor interface {
	LastScan() (id, checkIn string)
	SetLastScan(id, checkIn string) error
}

// EventFromResult builds the event for an adopted record.
func EventFromResult(r Result, loc *time.Location, now time.Time) Event {
	ev := Event{
		ScanID:       r.ScanID,
		Name:         r.Name,
		MemberStatus: r.MemberStatus,
		Messages:     append([]Message(nil), r.Messages...),
		Stats:        r.Stats,
		CheckIn:      r.CheckIn,
		DetectedAt:   now,
	}
	if !ev.MemberStatus.Valid() {
		ev.MemberStatus = MemberAllowed
	}
	if at, ok := ParseCheckIn(r.CheckIn, loc); ok {
		ev.CheckInAt = at
	}
	return ev
}
