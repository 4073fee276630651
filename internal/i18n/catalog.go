// Package i18n loads the kiosk's text catalogs from <dir>/<lang>.json.
package i18n

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/spf13/afero"

	logx "clubkiosk/pkg/logx"
)

var reLang = regexp.MustCompile(`^[a-z]{2}(-[A-Za-z]{2})?$`)

// fallback covers the texts the screens cannot do without.
var fallback = map[string]string{
	"scan_prompt":          "Please scan your card",
	"welcome":              "Welcome",
	"no_scans":             "No scans yet",
	"settings_saved":       "Settings saved.",
	"password_incorrect":   "Incorrect password.",
	"password_set_success": "Password set.",
	"weather_unavailable":  "Weather unavailable",
}

// Fallback returns a copy of the built-in texts.
func Fallback() map[string]string {
	out := make(map[string]string, len(fallback))
	for k, v := range fallback {
		out[k] = v
	}
	return out
}

type Catalog struct {
	fs  afero.Fs
	dir string
	log logx.Logger

	mu    sync.Mutex
	cache map[string]map[string]string
}

// NewCatalog reads from dir on fs. A nil fs means the OS filesystem.
func NewCatalog(fs afero.Fs, dir string, log logx.Logger) *Catalog {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Catalog{
		fs:    fs,
		dir:   dir,
		log:   log.With(logx.String("comp", "i18n")),
		cache: map[string]map[string]string{},
	}
}

// Read loads one language file. Keys missing from the file are filled from
// the fallback set.
func (c *Catalog) Read(lang string) (map[string]string, error) {
	if !reLang.MatchString(lang) {
		return nil, fmt.Errorf("i18n: invalid language %q", lang)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.cache[lang]; ok {
		return m, nil
	}

	b, err := afero.ReadFile(c.fs, filepath.Join(c.dir, lang+".json"))
	if err != nil {
		return nil, fmt.Errorf("i18n: read %s: %w", lang, err)
	}
	texts := map[string]string{}
	if err := json.Unmarshal(b, &texts); err != nil {
		return nil, fmt.Errorf("i18n: decode %s: %w", lang, err)
	}
	for k, v := range fallback {
		if _, ok := texts[k]; !ok {
			texts[k] = v
		}
	}
	c.cache[lang] = texts
	return texts, nil
}

// Load is Read with the fallback set on error.
func (c *Catalog) Load(lang string) map[string]string {
	texts, err := c.Read(lang)
	if err != nil {
		c.log.Warn("translations unavailable, using fallback", logx.String("lang", lang), logx.Err(err))
		return Fallback()
	}
	return texts
}

// Invalidate drops cached catalogs so edited files are read again.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.cache = map[string]map[string]string{}
	c.mu.Unlock()
}
