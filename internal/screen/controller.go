package screen

import (
	"context"
	"errors"
	"time"

	"clubkiosk/internal/ads"
	"clubkiosk/internal/lock"
	"clubkiosk/internal/loop"
	"clubkiosk/internal/prefs"
	"clubkiosk/internal/scan"
	"clubkiosk/internal/scheduler"
	logx "clubkiosk/pkg/logx"
)

// Timers owned by the controller. scan.TimerName, ads.RotationTimer and
// ads.RefreshTimer are owned by the poller and the ad cycle.
const (
	TimerMemberScreen    = "memberScreen"
	TimerPasswordTimeout = "passwordTimeout"
	TimerClock           = "dateTime"
	TimerWeather         = "weather"
)

// Renderer paints screens and widgets, and shows ads.
type Renderer interface {
	Paint(screen string, payload any)
	ads.Surface
}

// ListSource returns the most recent scans, newest first.
type ListSource interface {
	RecentScans(ctx context.Context) ([]scan.Event, error)
}

// WeatherQuery selects the location and language of a weather lookup.
type WeatherQuery struct {
	Language string
	City     string
	Country  string
}

type WeatherSource interface {
	Weather(ctx context.Context, q WeatherQuery) (Weather, error)
}

// Translator returns the text catalog for a language. It never fails; an
// unknown language yields built-in fallback texts.
type Translator interface {
	Load(lang string) map[string]string
}

type Config struct {
	MemberTimeout   time.Duration
	PasswordTimeout time.Duration
	ClockTick       time.Duration
	WeatherSpec     string
	MaxListItems    int
}

func (c *Config) defaults() {
	if c.MemberTimeout <= 0 {
		c.MemberTimeout = 7 * time.Second
	}
	if c.PasswordTimeout <= 0 {
		c.PasswordTimeout = 8 * time.Second
	}
	if c.ClockTick <= 0 {
		c.ClockTick = time.Second
	}
	if c.WeatherSpec == "" {
		c.WeatherSpec = "15m"
	}
	if c.MaxListItems <= 0 {
		c.MaxListItems = 12
	}
}

// Deps are the collaborators of a Controller. List, Weather and Texts are
// optional.
type Deps struct {
	Sched    *scheduler.Scheduler
	Disp     loop.Dispatcher
	Prefs    *prefs.State
	Gate     *lock.Gate
	Poller   *scan.Poller
	Ads      *ads.Cycle
	Renderer Renderer
	List     ListSource
	Weather  WeatherSource
	Texts    Translator
	Log      logx.Logger
}

type Controller struct {
	cfg      Config
	sched    *scheduler.Scheduler
	disp     loop.Dispatcher
	prefs    *prefs.State
	gate     *lock.Gate
	poller   *scan.Poller
	ads      *ads.Cycle
	renderer Renderer
	list     ListSource
	weather  WeatherSource
	texts    Translator
	log      logx.Logger

	state  State
	booted bool

	member       scan.Event
	recent       []scan.Event
	listGen      uint64
	listPending  bool
	listLive     []scan.Event
	form         SettingsForm
	status       *Status
	promptReturn Mode
	promptError  string
	catalog      map[string]string
	weatherGen   uint64

	transitions uint64
	ignored     uint64
}

// New wires c into the poller and the ad cycle.
func New(cfg Config, d Deps) *Controller {
	cfg.defaults()
	c := &Controller{
		cfg:      cfg,
		sched:    d.Sched,
		disp:     d.Disp,
		prefs:    d.Prefs,
		gate:     d.Gate,
		poller:   d.Poller,
		ads:      d.Ads,
		renderer: d.Renderer,
		list:     d.List,
		weather:  d.Weather,
		texts:    d.Texts,
		log:      d.Log.With(logx.String("comp", "screen")),
		catalog:  map[string]string{},
	}
	c.poller.OnScan(c.onScan)
	c.ads.SetConditions(c)
	return c
}

// AdsEnabled implements ads.Conditions.
func (c *Controller) AdsEnabled() bool { return c.prefs.AdsEnabled() }

// ScreenIdle implements ads.Conditions.
func (c *Controller) ScreenIdle() bool { return c.booted && c.state.Mode == Idle }

func (c *Controller) now() time.Time { return c.sched.Clock().Now() }

// State returns the current mode.
func (c *Controller) State() State { return c.state }

// Boot clears every timer, starts the header widgets and enters the
// persisted mode. It must run once, before any other event.
func (c *Controller) Boot() {
	c.sched.ClearAll()
	c.loadTexts(c.prefs.Language())

	c.tickClock()
	c.sched.StartEvery(TimerClock, c.cfg.ClockTick, c.tickClock)
	c.refreshWeather()
	if err := c.sched.StartSpec(TimerWeather, c.cfg.WeatherSpec, c.refreshWeather); err != nil {
		c.log.Warn("invalid weather schedule, using 15m", logx.String("spec", c.cfg.WeatherSpec), logx.Err(err))
		c.sched.StartEvery(TimerWeather, 15*time.Minute, c.refreshWeather)
	}

	initial := modeFromPref(c.prefs.Mode())
	c.state = State{Mode: initial, Name: initial.String(), Since: c.now()}
	c.booted = true
	c.log.Info("kiosk booted", logx.String("mode", initial.String()), logx.Bool("ads", c.prefs.AdsEnabled()))
	c.enter(initial)
	if c.prefs.AdsEnabled() {
		c.ads.StartRefresh(true)
	}
}

// Shutdown cancels every timer and drops pending I/O results.
func (c *Controller) Shutdown() {
	c.poller.Stop()
	c.ads.Stop()
	c.sched.ClearAll()
	c.listGen++
	c.listPending = false
	c.listLive = nil
	c.weatherGen++
	c.booted = false
}

func (c *Controller) persistedMode() Mode { return modeFromPref(c.prefs.Mode()) }

// Toggle flips between Idle and List, through the password prompt when a
// password is set.
func (c *Controller) Toggle() {
	if !c.accept(TriggerToggle) {
		return
	}
	if c.gate.IsSet() {
		c.gate.Request(lock.ActionToggle)
		c.openPrompt(c.state.Mode)
		return
	}
	c.performToggle(c.state.Mode)
}

func (c *Controller) performToggle(from Mode) {
	next := List
	if from == List {
		next = Idle
	}
	// The Member and Settings exits return to the persisted mode, so a mode
	// that cannot be stored is not entered.
	if err := c.prefs.SetMode(next.pref()); err != nil {
		c.log.Error("screen mode not persisted; staying", logx.String("mode", from.String()), logx.Err(err))
		if c.state.Mode != from {
			c.transition(from)
		}
		return
	}
	c.transition(next)
}

func (c *Controller) onScan(ev scan.Event) {
	if !c.accept(TriggerScan) {
		return
	}
	switch c.state.Mode {
	case Idle, Member:
		c.member = ev
		c.transition(Member)
	case List:
		c.prependRecent(ev)
		if c.listPending {
			c.listLive = append(c.listLive, ev)
		}
		c.paintList()
	}
}

func (c *Controller) onMemberTimeout() {
	if !c.accept(TriggerMemberTimeout) {
		return
	}
	c.transition(c.persistedMode())
}

func (c *Controller) OpenSettings() {
	if !c.accept(TriggerOpenSettings) {
		return
	}
	c.status = nil
	c.transition(Settings)
}

func (c *Controller) CloseSettings() {
	if !c.accept(TriggerCloseSettings) {
		return
	}
	c.status = nil
	c.transition(c.persistedMode())
}

// RequestPasswordRemoval asks for the current password before removing it.
func (c *Controller) RequestPasswordRemoval() {
	if !c.accept(TriggerRemovePassword) {
		return
	}
	if !c.gate.IsSet() {
		c.status = &Status{Kind: "info", Text: c.text("no_password_set", "No password is set.")}
		c.paintSettings(nil)
		return
	}
	c.gate.Request(lock.ActionRemove)
	c.openPrompt(Settings)
}

func (c *Controller) openPrompt(returnTo Mode) {
	c.promptReturn = returnTo
	c.promptError = ""
	c.transition(PasswordPrompt)
}

// ConfirmPassword resolves the pending action when candidate matches.
func (c *Controller) ConfirmPassword(candidate string) {
	if !c.accept(TriggerPasswordConfirm) {
		return
	}
	action, err := c.gate.Confirm(candidate)
	if errors.Is(err, lock.ErrMismatch) {
		c.promptError = c.text("password_incorrect", "Incorrect password.")
		c.paintPrompt()
		c.startPasswordTimeout()
		return
	}

	back := c.promptReturn
	switch action {
	case lock.ActionToggle:
		c.performToggle(back)
	case lock.ActionRemove:
		c.status = c.outcomeStatus(err, "password_removed_success", "Password removed.", "password_remove_error", "Password could not be removed.")
		c.transition(back)
	case lock.ActionChangePassword:
		c.status = c.outcomeStatus(err, "password_changed_success", "Password changed.", "password_change_error", "Password could not be changed.")
		c.transition(back)
	default:
		c.transition(back)
	}
}

// CancelPassword leaves the prompt and discards the pending action.
func (c *Controller) CancelPassword() {
	if !c.accept(TriggerPasswordCancel) {
		return
	}
	c.abandonPrompt()
}

func (c *Controller) onPasswordTimeout() {
	if !c.accept(TriggerPasswordTimeout) {
		return
	}
	c.log.Debug("password prompt expired", logx.String("action", c.gate.Pending().String()))
	c.abandonPrompt()
}

func (c *Controller) abandonPrompt() {
	if c.gate.Pending() == lock.ActionChangePassword {
		c.status = &Status{Kind: "info", Text: c.text("password_unchanged", "Password unchanged.")}
	}
	c.gate.Cancel()
	c.transition(c.promptReturn)
}

// PasswordActivity extends the prompt while the operator is typing.
func (c *Controller) PasswordActivity() {
	if !c.accept(TriggerPasswordActivity) {
		return
	}
	c.startPasswordTimeout()
}

func (c *Controller) startPasswordTimeout() {
	c.sched.StartOnce(TimerPasswordTimeout, c.cfg.PasswordTimeout, c.onPasswordTimeout)
}

func (c *Controller) outcomeStatus(err error, okKey, okText, failKey, failText string) *Status {
	if err != nil {
		c.log.Warn("password update failed", logx.Err(err))
		return &Status{Kind: "error", Text: c.text(failKey, failText)}
	}
	return &Status{Kind: "success", Text: c.text(okKey, okText)}
}

func (c *Controller) prependRecent(ev scan.Event) {
	c.recent = append([]scan.Event{ev}, c.recent...)
	if len(c.recent) > c.cfg.MaxListItems {
		c.recent = c.recent[:c.cfg.MaxListItems]
	}
}

func (c *Controller) fetchList() {
	if c.list == nil {
		return
	}
	c.listGen++
	c.listPending = true
	c.listLive = nil
	gen := c.listGen
	c.disp.Go("scan.list", func(ctx context.Context) func() {
		items, err := c.list.RecentScans(ctx)
		return func() { c.listFetched(gen, items, err) }
	})
}

func (c *Controller) listFetched(gen uint64, items []scan.Event, err error) {
	if c.state.Mode != List || gen != c.listGen {
		c.log.Debug("late scan list dropped")
		return
	}
	live := c.listLive
	c.listPending = false
	c.listLive = nil
	if err != nil {
		c.log.Warn("scan list fetch failed", logx.Err(err))
		return
	}

	// Scans adopted while the fetch was out stay on top.
	seen := make(map[string]bool, len(live))
	merged := make([]scan.Event, 0, len(live)+len(items))
	for i := len(live) - 1; i >= 0; i-- {
		seen[live[i].ScanID] = true
		merged = append(merged, live[i])
	}
	for _, ev := range items {
		if ev.ScanID != "" && seen[ev.ScanID] {
			continue
		}
		merged = append(merged, ev)
	}
	if len(merged) > c.cfg.MaxListItems {
		merged = merged[:c.cfg.MaxListItems]
	}
	c.recent = merged
	c.paintList()
}

func (c *Controller) paint(screen string, payload any) {
	c.renderer.Paint(screen, payload)
}

func (c *Controller) paintList() {
	items := append([]scan.Event(nil), c.recent...)
	c.paint(ScreenList, ListView{Items: items, Empty: len(items) == 0})
}

func (c *Controller) paintPrompt() {
	c.paint(ScreenPassword, PromptView{
		Action:  c.gate.Pending().String(),
		Error:   c.promptError,
		Timeout: c.cfg.PasswordTimeout.Milliseconds(),
	})
}

// Diagnostics is a read-only view for the health endpoint.
type Diagnostics struct {
	State       State                 `json:"state"`
	Timers      []scheduler.TimerInfo `json:"timers"`
	Poller      scan.PollerStats      `json:"poller"`
	AdsRunning  bool                  `json:"ads_running"`
	AdIndex     int                   `json:"ad_index"`
	AdCount     int                   `json:"ad_count"`
	Recent      int                   `json:"recent"`
	Transitions uint64                `json:"transitions"`
	Ignored     uint64                `json:"ignored_triggers"`
}

func (c *Controller) Diagnostics() Diagnostics {
	return Diagnostics{
		State:       c.state,
		Timers:      c.sched.Snapshot(),
		Poller:      c.poller.Stats(),
		AdsRunning:  c.ads.Running(),
		AdIndex:     c.ads.Index(),
		AdCount:     len(c.ads.Items()),
		Recent:      len(c.recent),
		Transitions: c.transitions,
		Ignored:     c.ignored,
	}
}
