// Package app wires the kiosk together and runs it until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"clubkiosk/internal/ads"
	"clubkiosk/internal/api"
	"clubkiosk/internal/config"
	"clubkiosk/internal/display"
	"clubkiosk/internal/eventbus"
	"clubkiosk/internal/i18n"
	"clubkiosk/internal/lock"
	"clubkiosk/internal/loop"
	"clubkiosk/internal/prefs"
	"clubkiosk/internal/runtime/supervisor"
	"clubkiosk/internal/scan"
	"clubkiosk/internal/scheduler"
	"clubkiosk/internal/screen"
	"clubkiosk/internal/storage"
	logx "clubkiosk/pkg/logx"
)

// Options adjust how New builds the app.
type Options struct {
	// Demo replaces the backend with the built-in demo source.
	Demo bool
	// Fs backs config, storage and translations. Nil means the OS filesystem.
	Fs afero.Fs
}

// backend is everything the kiosk fetches from the club server.
type backend interface {
	scan.Source
	ads.Source
	screen.ListSource
	screen.WeatherSource
}

type App struct {
	id   string
	cfgm *config.ConfigManager
	logs *logx.Service
	log  logx.Logger

	store  storage.Store
	loop   *loop.Loop
	sched  *scheduler.Scheduler
	prefs  *prefs.State
	ctrl   *screen.Controller
	bus    eventbus.Bus
	server *display.Server
	notify *notifier

	sup        *supervisor.Supervisor
	loopCancel context.CancelFunc
}

func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath, opts.Fs)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	id := strings.TrimSpace(cfg.API.KioskID)
	if id == "" {
		id = uuid.NewString()
	}

	alertSender, err := mapAlerts(cfg, id)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}
	var sender logx.Sender
	if alertSender != nil {
		sender = alertSender
	}
	logs, root := logx.New(mapLogConfig(cfg), sender)
	log := root.With(logx.String("comp", "app"), logx.String("kiosk", id))

	a := &App{id: id, cfgm: cfgm, logs: logs, log: log, notify: newNotifier(log)}
	if err := a.build(cfg, opts, root); err != nil {
		_ = logs.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config, opts Options, root logx.Logger) error {
	kc, err := mapKioskConfig(cfg)
	if err != nil {
		return err
	}

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return err
	}
	sc.Fs = opts.Fs
	store, err := storage.Open(sc, root)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	a.store = store

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := prefs.Open(ctx, store, kc.defaults, root)
	if err != nil {
		_ = store.Close()
		return err
	}
	a.prefs = st

	var src backend
	if opts.Demo {
		src = api.NewDemo(cfg.Demo.ScanEvery)
		a.log.Info("demo source enabled", logx.Int("scan_every", cfg.Demo.ScanEvery))
	} else {
		ac, err := mapAPIConfig(cfg)
		if err != nil {
			_ = store.Close()
			return err
		}
		ac.KioskID = a.id
		client, err := api.New(ac, root)
		if err != nil {
			_ = store.Close()
			return err
		}
		src = client
	}

	apiTimeout, _ := config.ParseDurationOrDefault("api.timeout", cfg.API.Timeout, loop.DefaultTimeout)
	a.loop = loop.New(root, cfg.Kiosk.QueueSize, apiTimeout)
	a.sched = scheduler.New(scheduler.RealClock{}, func(fn func()) { a.loop.Post(fn) }, root)

	a.bus = eventbus.New()
	renderer := display.NewRenderer(a.bus, a.sched.Clock())

	poller := scan.NewPoller(kc.scan, a.sched, a.loop, src, st, root)
	cycle := ads.NewCycle(kc.ads, a.sched, a.loop, src, renderer, root)
	a.ctrl = screen.New(kc.screen, screen.Deps{
		Sched:    a.sched,
		Disp:     a.loop,
		Prefs:    st,
		Gate:     lock.New(st, root),
		Poller:   poller,
		Ads:      cycle,
		Renderer: renderer,
		List:     src,
		Weather:  src,
		Texts:    i18n.NewCatalog(opts.Fs, cfg.I18n.Dir, root),
		Log:      root,
	})

	dc, err := mapDisplayConfig(cfg)
	if err != nil {
		_ = store.Close()
		return err
	}
	a.server = display.NewServer(dc, a.bus, a.command, a.health, root)
	return nil
}

// command runs a display command on the loop.
func (a *App) command(ctx context.Context, cmd display.Command) (any, error) {
	var out any
	err := a.loop.Call(ctx, func() { out = display.Apply(a.ctrl, cmd) })
	return out, err
}

// Health is the /healthz body.
type Health struct {
	Kiosk      string              `json:"kiosk"`
	Screen     *screen.Diagnostics `json:"screen,omitempty"`
	Loop       loop.Stats          `json:"loop"`
	Supervisor supervisor.Snapshot `json:"supervisor"`
	BusDropped uint64              `json:"bus_dropped"`
	Error      string              `json:"error,omitempty"`
}

func (a *App) health() any {
	h := Health{Kiosk: a.id, Loop: a.loop.Stats(), BusDropped: a.bus.Dropped()}
	if a.sup != nil {
		h.Supervisor = a.sup.Snapshot()
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var d screen.Diagnostics
	if err := a.loop.Call(ctx, func() { d = a.ctrl.Diagnostics() }); err != nil {
		h.Error = err.Error()
	} else {
		h.Screen = &d
	}
	return h
}

// Run boots the screen and blocks until ctx is cancelled or a component
// fails.
func (a *App) Run(ctx context.Context) error {
	a.sup = supervisor.New(ctx,
		supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))),
		supervisor.WithCancelOnError(true),
	)
	sctx := a.sup.Context()

	// The loop outlives the supervisor context so Stop can still run the
	// controller's shutdown on it.
	loopCtx, loopCancel := context.WithCancel(context.Background())
	a.loopCancel = loopCancel
	a.sup.Go("loop", func(context.Context) error { return a.loop.Run(loopCtx) })
	a.loop.Post(a.ctrl.Boot)

	a.sup.GoRestart("display.serve", func(c context.Context) error {
		err := a.server.Run(c)
		if errors.Is(err, display.ErrInsecureBind) {
			a.log.Error("display server refused to start", logx.Err(err))
			return nil
		}
		return err
	}, supervisor.WithRestartBackoff(500*time.Millisecond, 10*time.Second))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("config.reload", a.reloadLoop)

	if iv := a.notify.watchdogInterval(); iv > 0 {
		a.sup.Go("systemd.watchdog", func(c context.Context) error {
			a.notify.watchdog(c, iv, a.probe)
			return nil
		})
	}
	a.notify.ready()
	a.log.Info("kiosk started", logx.String("config", a.cfgm.Path()))

	<-sctx.Done()
	return a.Stop(context.Background())
}

// probe reports whether the loop is still turning.
func (a *App) probe(ctx context.Context) bool {
	return a.loop.Call(ctx, func() {}) == nil
}

// Stop shuts the controller down on the loop, then stops every goroutine and
// closes the store.
func (a *App) Stop(ctx context.Context) error {
	a.notify.stopping()
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	if err := a.loop.Call(cctx, a.ctrl.Shutdown); err != nil {
		a.log.Debug("controller shutdown skipped", logx.Err(err))
	}
	cancel()
	if a.loopCancel != nil {
		a.loopCancel()
	}

	var supErr error
	if a.sup != nil {
		sctx, scancel := context.WithTimeout(ctx, 5*time.Second)
		supErr = a.sup.Stop(sctx)
		scancel()
	}
	if errors.Is(supErr, context.Canceled) {
		supErr = nil
	}
	storeErr := a.store.Close()
	a.log.Info("kiosk stopped")
	_ = a.logs.Close()
	return errors.Join(supErr, storeErr)
}

// reloadLoop applies live-reloadable config changes.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyConfig(last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	sections, attrs := config.SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change summary", fields...)

	for _, s := range sections {
		switch {
		case s == "logging":
			a.logs.Apply(mapLogConfig(next))
		case s == "alerts":
			a.log.Warn("alerts config changed; restart required for the new target")
		case config.RequiresRestart(s):
			a.log.Warn("config section changed; restart required", logx.String("section", s))
		}
	}
}
