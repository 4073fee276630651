package display

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	cws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"clubkiosk/internal/ads"
	"clubkiosk/internal/eventbus"
	"clubkiosk/internal/scheduler"
	"clubkiosk/internal/screen"
	logx "clubkiosk/pkg/logx"
)

type recordedCommands struct {
	mu   sync.Mutex
	cmds []Command
}

func (r *recordedCommands) handle(ctx context.Context, cmd Command) (any, error) {
	r.mu.Lock()
	r.cmds = append(r.cmds, cmd)
	r.mu.Unlock()
	switch cmd.Type {
	case CmdSaveSettings:
		return screen.SaveOutcome{OK: true, Message: "saved"}, nil
	case CmdCloseSettings:
		return nil, errors.New("not in settings")
	}
	return nil, nil
}

func (r *recordedCommands) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.cmds))
	for _, c := range r.cmds {
		out = append(out, c.Type)
	}
	return out
}

type wireFrame struct {
	Kind    string          `json:"kind"`
	Screen  string          `json:"screen"`
	Payload json.RawMessage `json:"payload"`
}

func startServer(t *testing.T, cfg Config) (*httptest.Server, eventbus.Bus, *recordedCommands) {
	t.Helper()
	bus := eventbus.New()
	rec := &recordedCommands{}
	s := NewServer(cfg, bus, rec.handle, func() any { return map[string]string{"mode": "idle"} }, logx.Nop())
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, bus, rec
}

func dial(t *testing.T, srv *httptest.Server, path string) *cws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := cws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+path, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

func readFrame(t *testing.T, conn *cws.Conn) wireFrame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var f wireFrame
	if err := wsjson.Read(ctx, conn, &f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func send(t *testing.T, conn *cws.Conn, raw string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := conn.Write(ctx, cws.MessageText, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestRendererSlots(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	clock := scheduler.NewManualClock(time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC))
	r := NewRenderer(bus, clock)

	r.Paint(screen.ScreenIdle, screen.IdleView{AdsEnabled: true})
	r.Paint(screen.WidgetClock, screen.ClockView{Time: "10:00"})
	r.ShowAd(ads.Item{Type: ads.KindImage, Src: "/a.jpg", Duration: 5 * time.Second})
	r.Paint(screen.ScreenMember, screen.MemberView{})
	r.HideAds()

	ret := bus.Retained()
	if len(ret) != 3 {
		t.Fatalf("retained %d slots, want 3: %+v", len(ret), ret)
	}
	byKey := map[string]Frame{}
	for _, e := range ret {
		byKey[e.Key] = e.Data.(Frame)
	}
	if f := byKey[KindScreen]; f.Screen != screen.ScreenMember || f.Kind != KindScreen {
		t.Fatalf("screen slot = %+v", f)
	}
	if f := byKey["widget:"+screen.WidgetClock]; f.Kind != KindWidget {
		t.Fatalf("clock slot = %+v", f)
	}
	if f := byKey[KindAd]; f.Payload.(AdFrame).Visible {
		t.Fatalf("ad slot should be hidden: %+v", f)
	}
	if at := byKey[KindScreen].At; !at.Equal(clock.Now()) {
		t.Fatalf("frame time = %v", at)
	}
}

func TestCommandValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		cmd     Command
		wantErr bool
	}{
		{Command{Type: " Toggle "}, false},
		{Command{Type: CmdPasswordConfirm, Value: "1234"}, false},
		{Command{Type: CmdSaveSettings}, true},
		{Command{Type: CmdSaveSettings, Settings: &screen.SettingsForm{}}, false},
		{Command{Type: ""}, true},
		{Command{Type: "reboot"}, true},
	}
	for _, tc := range cases {
		c := tc.cmd
		err := c.Validate()
		if (err != nil) != tc.wantErr {
			t.Fatalf("Validate(%+v) = %v, wantErr %v", tc.cmd, err, tc.wantErr)
		}
	}
	c := Command{Type: "reboot"}
	if err := c.Validate(); !errors.Is(err, ErrUnknownCommand) {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

type fakeController struct{ calls []string }

func (f *fakeController) Toggle()                 { f.calls = append(f.calls, "toggle") }
func (f *fakeController) OpenSettings()           { f.calls = append(f.calls, "open") }
func (f *fakeController) CloseSettings()          { f.calls = append(f.calls, "close") }
func (f *fakeController) RequestPasswordRemoval() { f.calls = append(f.calls, "remove") }
func (f *fakeController) CancelPassword()         { f.calls = append(f.calls, "cancel") }
func (f *fakeController) PasswordActivity()       { f.calls = append(f.calls, "input") }
func (f *fakeController) ConfirmPassword(v string) {
	f.calls = append(f.calls, "confirm:"+v)
}
func (f *fakeController) SaveSettings(form screen.SettingsForm) screen.SaveOutcome {
	f.calls = append(f.calls, "save:"+form.City)
	return screen.SaveOutcome{OK: true}
}

func TestApplyDispatches(t *testing.T) {
	t.Parallel()

	fc := &fakeController{}
	cmds := []Command{
		{Type: CmdToggle},
		{Type: CmdOpenSettings},
		{Type: CmdSaveSettings, Settings: &screen.SettingsForm{City: "Geneva"}},
		{Type: CmdCloseSettings},
		{Type: CmdRemovePassword},
		{Type: CmdPasswordInput},
		{Type: CmdPasswordConfirm, Value: "x"},
		{Type: CmdPasswordCancel},
	}
	var replies int
	for _, c := range cmds {
		if out := Apply(fc, c); out != nil {
			replies++
		}
	}
	want := "toggle,open,save:Geneva,close,remove,input,confirm:x,cancel"
	if got := strings.Join(fc.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
	if replies != 1 {
		t.Fatalf("replies = %d, want 1", replies)
	}
}

func TestWebsocketReplaysAndStreams(t *testing.T) {
	t.Parallel()

	srv, bus, _ := startServer(t, Config{})
	r := NewRenderer(bus, nil)
	r.Paint(screen.ScreenIdle, screen.IdleView{})

	conn := dial(t, srv, "/ws")
	if f := readFrame(t, conn); f.Kind != KindScreen || f.Screen != screen.ScreenIdle {
		t.Fatalf("replayed frame = %+v", f)
	}

	r.Paint(screen.ScreenList, screen.ListView{Empty: true})
	if f := readFrame(t, conn); f.Screen != screen.ScreenList {
		t.Fatalf("streamed frame = %+v", f)
	}
}

func TestWebsocketCommands(t *testing.T) {
	t.Parallel()

	srv, _, rec := startServer(t, Config{})
	conn := dial(t, srv, "/ws")

	send(t, conn, `{"type":"toggle"}`)
	send(t, conn, `not json`)
	if f := readFrame(t, conn); f.Kind != KindError {
		t.Fatalf("malformed command frame = %+v", f)
	}

	send(t, conn, `{"type":"save_settings","settings":{"language":"fr","city":"Geneva","country":"CH","ads_enabled":true}}`)
	f := readFrame(t, conn)
	if f.Kind != KindReply || f.Screen != CmdSaveSettings {
		t.Fatalf("save reply = %+v", f)
	}
	var out screen.SaveOutcome
	if err := json.Unmarshal(f.Payload, &out); err != nil || !out.OK {
		t.Fatalf("save outcome = %s (%v)", f.Payload, err)
	}

	send(t, conn, `{"type":"close_settings"}`)
	if f := readFrame(t, conn); f.Kind != KindError || f.Screen != CmdCloseSettings {
		t.Fatalf("failed command frame = %+v", f)
	}

	send(t, conn, `{"type":"reboot"}`)
	if f := readFrame(t, conn); f.Kind != KindError {
		t.Fatalf("unknown command frame = %+v", f)
	}

	want := "toggle,save_settings,close_settings"
	if got := strings.Join(rec.types(), ","); got != want {
		t.Fatalf("handled = %s, want %s", got, want)
	}
}

func TestTokenRequired(t *testing.T) {
	t.Parallel()

	srv, _, _ := startServer(t, Config{Token: "s3cret"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := cws.Dial(ctx, wsURL, nil)
	if err == nil {
		t.Fatalf("expected unauthorized dial to fail")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}

	conn, _, err := cws.Dial(ctx, wsURL, &cws.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer s3cret"}},
	})
	if err != nil {
		t.Fatalf("authorized dial: %v", err)
	}
	conn.CloseNow()
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := startServer(t, Config{})
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		OK    bool              `json:"ok"`
		Kiosk map[string]string `json:"kiosk"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Kiosk["mode"] != "idle" {
		t.Fatalf("health = %+v", body)
	}
}

func TestRunRefusesInsecureBind(t *testing.T) {
	t.Parallel()

	s := NewServer(Config{Addr: "0.0.0.0:0"}, eventbus.New(), nil, nil, logx.Nop())
	if err := s.Run(context.Background()); !errors.Is(err, ErrInsecureBind) {
		t.Fatalf("Run = %v, want ErrInsecureBind", err)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"127.0.0.1:8088": true,
		"localhost:80":   true,
		"[::1]:9000":     true,
		":8088":          false,
		"10.0.0.5:8088":  false,
		"garbage":        false,
	}
	for addr, want := range cases {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
