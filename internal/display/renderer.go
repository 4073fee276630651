// Package display carries the controller's paint calls to the kiosk browser
// over a websocket and carries operator commands back.
package display

import (
	"time"

	"clubkiosk/internal/ads"
	"clubkiosk/internal/eventbus"
	"clubkiosk/internal/scheduler"
	"clubkiosk/internal/screen"
)

// Frame kinds.
const (
	KindScreen = "screen"
	KindWidget = "widget"
	KindAd     = "ad"
	KindReply  = "reply"
	KindError  = "error"
)

const eventPaint = "paint"

// Frame is one server-to-client message.
type Frame struct {
	Kind    string    `json:"kind"`
	Screen  string    `json:"screen,omitempty"`
	Payload any       `json:"payload,omitempty"`
	At      time.Time `json:"at"`
}

// AdFrame is the payload of a KindAd frame. Visible is false when the ad
// surface is hidden.
type AdFrame struct {
	Visible    bool   `json:"visible"`
	Type       string `json:"type,omitempty"`
	Src        string `json:"src,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Renderer implements screen.Renderer by publishing frames on a bus. The
// latest frame per slot is retained for clients that connect later: one slot
// for the active screen, one per widget, one for the ad surface.
type Renderer struct {
	bus   eventbus.Bus
	clock scheduler.Clock
}

func NewRenderer(bus eventbus.Bus, clock scheduler.Clock) *Renderer {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	return &Renderer{bus: bus, clock: clock}
}

func (r *Renderer) Paint(name string, payload any) {
	kind, slot := KindScreen, KindScreen
	switch name {
	case screen.WidgetClock, screen.WidgetWeather, screen.WidgetTexts:
		kind, slot = KindWidget, "widget:"+name
	}
	r.publish(slot, Frame{Kind: kind, Screen: name, Payload: payload})
}

func (r *Renderer) ShowAd(item ads.Item) {
	r.publish(KindAd, Frame{Kind: KindAd, Payload: AdFrame{
		Visible:    true,
		Type:       string(item.Type),
		Src:        item.Src,
		DurationMs: item.Duration.Milliseconds(),
	}})
}

func (r *Renderer) HideAds() {
	r.publish(KindAd, Frame{Kind: KindAd, Payload: AdFrame{}})
}

func (r *Renderer) publish(slot string, f Frame) {
	f.At = r.clock.Now()
	r.bus.Publish(eventbus.Event{Type: eventPaint, Key: slot, Time: f.At, Data: f})
}
