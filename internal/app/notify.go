package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "clubkiosk/pkg/logx"
)

// notifier reports lifecycle state to systemd. Outside a unit every call is a
// no-op.
type notifier struct {
	log  logx.Logger
	send func(state string) (bool, error)
}

func newNotifier(log logx.Logger) *notifier {
	return &notifier{
		log:  log,
		send: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
	}
}

func (n *notifier) notify(state string) bool {
	ok, err := n.send(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return false
	}
	return ok
}

func (n *notifier) ready() {
	if n.notify(daemon.SdNotifyReady) {
		n.log.Debug("systemd notified ready")
	}
}

func (n *notifier) stopping() { n.notify(daemon.SdNotifyStopping) }

// watchdogInterval is zero unless systemd expects keep-alives.
func (n *notifier) watchdogInterval() time.Duration {
	iv, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.log.Warn("systemd watchdog config invalid", logx.Err(err))
		return 0
	}
	return iv
}

// watchdog pings systemd at half the interval for as long as probe succeeds.
// A stuck probe means the loop is wedged, and withholding the ping lets
// systemd restart the unit.
func (n *notifier) watchdog(ctx context.Context, interval time.Duration, probe func(context.Context) bool) {
	every := interval / 2
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			pctx, cancel := context.WithTimeout(ctx, every/2)
			alive := probe(pctx)
			cancel()
			if !alive {
				n.log.Warn("event loop unresponsive; skipping watchdog ping")
				continue
			}
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
