package screen

import (
	"fmt"
	"time"

	"clubkiosk/internal/prefs"
	logx "clubkiosk/pkg/logx"
)

// Mode is the active screen.
type Mode int

const (
	Idle Mode = iota
	Member
	List
	Settings
	PasswordPrompt
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Member:
		return "member"
	case List:
		return "list"
	case Settings:
		return "settings"
	case PasswordPrompt:
		return "password_prompt"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func modeFromPref(v string) Mode {
	if v == prefs.ModeList {
		return List
	}
	return Idle
}

func (m Mode) pref() string {
	if m == List {
		return prefs.ModeList
	}
	return prefs.ModeIdle
}

// State is the current mode and when it was entered.
type State struct {
	Mode  Mode      `json:"-"`
	Name  string    `json:"mode"`
	Since time.Time `json:"since"`
}

// Trigger is an input to the state machine.
type Trigger int

const (
	TriggerToggle Trigger = iota
	TriggerScan
	TriggerMemberTimeout
	TriggerOpenSettings
	TriggerCloseSettings
	TriggerSaveSettings
	TriggerRemovePassword
	TriggerPasswordConfirm
	TriggerPasswordCancel
	TriggerPasswordTimeout
	TriggerPasswordActivity
)

var triggerNames = map[Trigger]string{
	TriggerToggle:           "toggle",
	TriggerScan:             "scan",
	TriggerMemberTimeout:    "member_timeout",
	TriggerOpenSettings:     "open_settings",
	TriggerCloseSettings:    "close_settings",
	TriggerSaveSettings:     "save_settings",
	TriggerRemovePassword:   "remove_password",
	TriggerPasswordConfirm:  "password_confirm",
	TriggerPasswordCancel:   "password_cancel",
	TriggerPasswordTimeout:  "password_timeout",
	TriggerPasswordActivity: "password_activity",
}

func (t Trigger) String() string {
	if s, ok := triggerNames[t]; ok {
		return s
	}
	return fmt.Sprintf("trigger(%d)", int(t))
}

// allowedFrom lists the modes each trigger is accepted in. Anything else is
// dropped, which also covers timer callbacks that lost a race with a
// transition.
var allowedFrom = map[Trigger][]Mode{
	TriggerToggle:           {Idle, List},
	TriggerScan:             {Idle, Member, List},
	TriggerMemberTimeout:    {Member},
	TriggerOpenSettings:     {Idle, List},
	TriggerCloseSettings:    {Settings},
	TriggerSaveSettings:     {Settings},
	TriggerRemovePassword:   {Settings},
	TriggerPasswordConfirm:  {PasswordPrompt},
	TriggerPasswordCancel:   {PasswordPrompt},
	TriggerPasswordTimeout:  {PasswordPrompt},
	TriggerPasswordActivity: {PasswordPrompt},
}

// Allowed reports whether t is accepted in mode m.
func Allowed(t Trigger, m Mode) bool {
	for _, from := range allowedFrom[t] {
		if from == m {
			return true
		}
	}
	return false
}

func (c *Controller) accept(t Trigger) bool {
	if Allowed(t, c.state.Mode) {
		return true
	}
	c.ignored++
	c.log.Debug("trigger ignored", logx.String("trigger", t.String()), logx.String("mode", c.state.Mode.String()))
	return false
}

func (c *Controller) transition(to Mode) {
	from := c.state.Mode
	c.exit(from)
	c.state = State{Mode: to, Name: to.String(), Since: c.now()}
	c.transitions++
	c.log.Debug("screen transition", logx.String("from", from.String()), logx.String("to", to.String()))
	c.enter(to)
}

func (c *Controller) exit(from Mode) {
	switch from {
	case Member:
		c.sched.Clear(TimerMemberScreen)
	case List:
		c.listGen++
		c.listPending = false
		c.listLive = nil
	case PasswordPrompt:
		c.sched.Clear(TimerPasswordTimeout)
	}
}

func (c *Controller) enter(to Mode) {
	switch to {
	case Idle:
		c.paint(ScreenIdle, IdleView{AdsEnabled: c.prefs.AdsEnabled()})
		c.poller.Resume()
		if c.prefs.AdsEnabled() {
			c.ads.EnsureRefresh()
			c.ads.Resume()
		} else {
			c.ads.Stop()
		}

	case List:
		c.ads.Halt()
		if c.prefs.AdsEnabled() {
			c.ads.EnsureRefresh()
		} else {
			c.ads.Stop()
		}
		c.poller.Resume()
		c.paintList()
		c.fetchList()

	case Member:
		c.ads.Halt()
		c.paint(ScreenMember, MemberView{Event: c.member})
		c.sched.StartOnce(TimerMemberScreen, c.cfg.MemberTimeout, c.onMemberTimeout)

	case Settings:
		c.poller.Stop()
		c.ads.Stop()
		c.sched.Clear(TimerMemberScreen, TimerPasswordTimeout)
		c.form = c.loadForm()
		c.paintSettings(nil)

	case PasswordPrompt:
		c.poller.Stop()
		c.ads.Halt()
		c.paintPrompt()
		c.startPasswordTimeout()
	}
}
