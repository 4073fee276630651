package screen

import (
	"regexp"
	"strings"

	"clubkiosk/internal/lock"
	"clubkiosk/internal/prefs"
	logx "clubkiosk/pkg/logx"
)

// SettingsForm is the settings screen's edit buffer.
type SettingsForm struct {
	Language    string `json:"language"`
	City        string `json:"city"`
	Country     string `json:"country"`
	AdsEnabled  bool   `json:"ads_enabled"`
	NewPassword string `json:"new_password,omitempty"`
}

// SaveOutcome is the single result of a save.
type SaveOutcome struct {
	OK              bool              `json:"ok"`
	Message         string            `json:"message"`
	FieldErrors     map[string]string `json:"field_errors,omitempty"`
	PasswordPending bool              `json:"password_pending,omitempty"`
}

var reCountry = regexp.MustCompile(`^[A-Z]{2}$`)

func (c *Controller) loadForm() SettingsForm {
	return SettingsForm{
		Language:   c.prefs.Language(),
		City:       c.prefs.City(),
		Country:    c.prefs.Country(),
		AdsEnabled: c.prefs.AdsEnabled(),
	}
}

func (c *Controller) validateForm(f SettingsForm) map[string]string {
	errs := map[string]string{}
	if f.City == "" {
		errs["city"] = c.text("city_required", "City is required.")
	}
	if !reCountry.MatchString(f.Country) {
		errs["country"] = c.text("country_invalid", "Country must be a two-letter code.")
	}
	return errs
}

// SaveSettings validates form and commits it as one batch: language,
// location, ads flag and, when no password exists yet, the new password.
// With a password already set, a typed password is staged and the old one
// is asked for before it takes effect.
func (c *Controller) SaveSettings(form SettingsForm) SaveOutcome {
	if !c.accept(TriggerSaveSettings) {
		return SaveOutcome{Message: c.text("settings_not_open", "Settings are not open.")}
	}

	form.Language = strings.TrimSpace(form.Language)
	if form.Language == "" {
		form.Language = c.prefs.Language()
	}
	form.City = strings.TrimSpace(form.City)
	form.Country = strings.ToUpper(strings.TrimSpace(form.Country))
	password := form.NewPassword
	form.NewPassword = ""
	c.form = form

	if errs := c.validateForm(form); len(errs) > 0 {
		c.status = &Status{Kind: "error", Text: c.text("settings_validation_error", "Please correct the highlighted fields.")}
		c.paintSettings(errs)
		return SaveOutcome{Message: c.status.Text, FieldErrors: errs}
	}

	var changes prefs.Changes
	changes.Set(prefs.KeyLanguage, form.Language)
	changes.Set(prefs.KeyCity, form.City)
	changes.Set(prefs.KeyCountry, form.Country)
	changes.Set(prefs.KeyAdsEnabled, prefs.FormatBool(form.AdsEnabled))

	stage := false
	passwordSet := false
	if password != "" {
		if c.gate.IsSet() {
			stage = true
		} else {
			changes.Set(prefs.KeyPassword, lock.Obfuscate(password))
			passwordSet = true
		}
	}

	langChanged := form.Language != c.prefs.Language()
	if err := c.prefs.Update(changes); err != nil {
		c.log.Error("settings save failed", logx.Err(err))
		c.status = &Status{Kind: "error", Text: c.text("settings_save_error", "Settings could not be saved.")}
		c.paintSettings(nil)
		return SaveOutcome{Message: c.status.Text}
	}
	c.log.Info("settings saved",
		logx.String("language", form.Language),
		logx.String("city", form.City),
		logx.String("country", form.Country),
		logx.Bool("ads", form.AdsEnabled),
		logx.Bool("password_set", passwordSet),
		logx.Bool("password_staged", stage),
	)

	if langChanged {
		c.loadTexts(form.Language)
	}
	c.refreshWeather()

	if stage {
		c.gate.Stage(password)
		c.openPrompt(Settings)
		return SaveOutcome{
			OK:              true,
			Message:         c.text("confirm_current_password", "Enter the current password to change it."),
			PasswordPending: true,
		}
	}

	msg := c.text("settings_saved", "Settings saved.")
	if passwordSet {
		msg += " " + c.text("password_set_success", "Password set.")
	}
	c.status = &Status{Kind: "success", Text: msg}
	c.paintSettings(nil)
	return SaveOutcome{OK: true, Message: msg}
}

func (c *Controller) paintSettings(fieldErrors map[string]string) {
	c.paint(ScreenSettings, SettingsView{
		Form:        c.form,
		PasswordSet: c.gate.IsSet(),
		Status:      c.status,
		FieldErrors: fieldErrors,
	})
}
