package display

import (
	"errors"
	"fmt"
	"strings"

	"clubkiosk/internal/screen"
)

// Command types sent by the kiosk browser.
const (
	CmdToggle          = "toggle"
	CmdOpenSettings    = "open_settings"
	CmdCloseSettings   = "close_settings"
	CmdSaveSettings    = "save_settings"
	CmdRemovePassword  = "remove_password"
	CmdPasswordConfirm = "password_confirm"
	CmdPasswordCancel  = "password_cancel"
	CmdPasswordInput   = "password_input"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one client-to-server message. Value carries the typed password
// for password_confirm; Settings carries the form for save_settings.
type Command struct {
	Type     string               `json:"type"`
	Value    string               `json:"value,omitempty"`
	Settings *screen.SettingsForm `json:"settings,omitempty"`
}

// Validate normalizes Type and rejects unknown or incomplete commands.
func (c *Command) Validate() error {
	c.Type = strings.ToLower(strings.TrimSpace(c.Type))
	switch c.Type {
	case CmdToggle, CmdOpenSettings, CmdCloseSettings, CmdRemovePassword,
		CmdPasswordConfirm, CmdPasswordCancel, CmdPasswordInput:
		return nil
	case CmdSaveSettings:
		if c.Settings == nil {
			return fmt.Errorf("%s: missing settings", c.Type)
		}
		return nil
	case "":
		return fmt.Errorf("%w: empty type", ErrUnknownCommand)
	}
	return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Type)
}

// CommandController is the subset of the screen controller commands drive.
type CommandController interface {
	Toggle()
	OpenSettings()
	CloseSettings()
	SaveSettings(form screen.SettingsForm) screen.SaveOutcome
	RequestPasswordRemoval()
	ConfirmPassword(candidate string)
	CancelPassword()
	PasswordActivity()
}

// Apply runs a validated command against c and returns the reply payload, if
// the command has one. It must be called on the controller's loop.
func Apply(c CommandController, cmd Command) any {
	switch cmd.Type {
	case CmdToggle:
		c.Toggle()
	case CmdOpenSettings:
		c.OpenSettings()
	case CmdCloseSettings:
		c.CloseSettings()
	case CmdSaveSettings:
		return c.SaveSettings(*cmd.Settings)
	case CmdRemovePassword:
		c.RequestPasswordRemoval()
	case CmdPasswordConfirm:
		c.ConfirmPassword(cmd.Value)
	case CmdPasswordCancel:
		c.CancelPassword()
	case CmdPasswordInput:
		c.PasswordActivity()
	}
	return nil
}
