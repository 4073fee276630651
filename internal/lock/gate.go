// Package lock gates operator actions behind the kiosk password.
//
// The stored secret is base64 of the password. That keeps it from being read
// at a glance on the kiosk's storage; it is not encryption and must not be
// treated as a security boundary.
package lock

import (
	"encoding/base64"
	"errors"
	"fmt"

	logx "clubkiosk/pkg/logx"
)

var (
	ErrMismatch = errors.New("lock: password mismatch")
	ErrNoStaged = errors.New("lock: no staged password")
)

// Action is the operation waiting on a password confirmation.
type Action int

const (
	ActionNone Action = iota
	ActionToggle
	ActionRemove
	ActionChangePassword
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionToggle:
		return "toggle"
	case ActionRemove:
		return "remove"
	case ActionChangePassword:
		return "change_password"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// SecretStore holds the obfuscated secret. prefs.State implements it.
type SecretStore interface {
	Secret() (string, bool)
	PutSecret(v string) error
	DeleteSecret() error
}

// Obfuscate returns the stored form of password.
func Obfuscate(password string) string {
	return base64.StdEncoding.EncodeToString([]byte(password))
}

// Gate is not safe for concurrent use; it lives on the loop goroutine.
type Gate struct {
	store SecretStore
	log   logx.Logger

	pending   Action
	staged    string
	hasStaged bool
}

func New(store SecretStore, log logx.Logger) *Gate {
	return &Gate{store: store, log: log.With(logx.String("comp", "lock"))}
}

func (g *Gate) IsSet() bool {
	_, ok := g.store.Secret()
	return ok
}

// Verify reports whether candidate matches the stored secret. With no secret
// set nothing verifies.
func (g *Gate) Verify(candidate string) bool {
	stored, ok := g.store.Secret()
	if !ok {
		return false
	}
	return Obfuscate(candidate) == stored
}

// SetPassword replaces the secret directly. An empty password removes it.
func (g *Gate) SetPassword(password string) error {
	if password == "" {
		return g.RemovePassword()
	}
	if err := g.store.PutSecret(Obfuscate(password)); err != nil {
		return fmt.Errorf("lock: set: %w", err)
	}
	g.log.Info("password set")
	return nil
}

func (g *Gate) RemovePassword() error {
	if err := g.store.DeleteSecret(); err != nil {
		return fmt.Errorf("lock: remove: %w", err)
	}
	g.log.Info("password removed")
	return nil
}

// Request records the action a following Confirm will authorize.
func (g *Gate) Request(a Action) {
	g.pending = a
	if a != ActionChangePassword {
		g.staged, g.hasStaged = "", false
	}
}

// Stage holds candidate until the current secret is confirmed and sets the
// pending action to ActionChangePassword.
func (g *Gate) Stage(candidate string) {
	g.staged, g.hasStaged = candidate, true
	g.pending = ActionChangePassword
}

func (g *Gate) Pending() Action { return g.pending }

func (g *Gate) HasStaged() bool { return g.hasStaged }

// Confirm verifies candidate against the current secret. On mismatch it
// returns ErrMismatch and keeps the pending action. On success it clears the
// pending state, performs remove and change-password itself, and returns the
// action that was authorized.
func (g *Gate) Confirm(candidate string) (Action, error) {
	if !g.Verify(candidate) {
		g.log.Warn("password confirmation failed", logx.String("action", g.pending.String()))
		return g.pending, ErrMismatch
	}

	a := g.pending
	staged, hasStaged := g.staged, g.hasStaged
	g.Cancel()

	switch a {
	case ActionRemove:
		return a, g.RemovePassword()
	case ActionChangePassword:
		if !hasStaged {
			return a, ErrNoStaged
		}
		return a, g.SetPassword(staged)
	}
	return a, nil
}

// Cancel discards the pending action and any staged secret.
func (g *Gate) Cancel() {
	g.pending = ActionNone
	g.staged, g.hasStaged = "", false
}
