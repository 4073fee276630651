// Package prefs is the kiosk's persisted state: a registry of named keys,
// some of them durable, layered over a storage.Store.
package prefs

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"clubkiosk/internal/storage"
	logx "clubkiosk/pkg/logx"
)

// Keys keep the names the kiosk's browser front-end used for local storage,
// so an exported browser profile can be imported as-is.
const (
	KeyMode            = "setting_screen"
	KeyCity            = "setting_city"
	KeyCountry         = "setting_country"
	KeyLanguage        = "setting_language"
	KeyLastScanID      = "setting_last_processed_scan_id"
	KeyLastCheckIn     = "setting_last_processed_checkin"
	KeyPassword        = "setting_lock_password"
	KeyAdsEnabled      = "setting_ads_enabled"
	KeyWeatherSnapshot = "weather_snapshot"
)

// Display modes stored under KeyMode.
const (
	ModeIdle = "idle"
	ModeList = "list"
)

var durableKeys = map[string]bool{
	KeyMode:        true,
	KeyCity:        true,
	KeyCountry:     true,
	KeyLanguage:    true,
	KeyLastScanID:  true,
	KeyLastCheckIn: true,
	KeyPassword:    true,
	KeyAdsEnabled:  true,
}

// Durable reports whether key is written through to the store.
func Durable(key string) bool { return durableKeys[key] }

// Defaults seeds keys that have never been stored.
type Defaults struct {
	Mode       string
	Language   string
	City       string
	Country    string
	AdsEnabled bool
}

// State holds every key in memory. Durable keys are written through to the
// store; a failed write leaves memory unchanged. Safe for concurrent use.
type State struct {
	store   storage.Store
	log     logx.Logger
	timeout time.Duration

	mu     sync.RWMutex
	values map[string]string
	def    Defaults
}

// Open loads durable keys from store.
func Open(ctx context.Context, store storage.Store, def Defaults, log logx.Logger) (*State, error) {
	if store == nil {
		store = storage.NewMemory()
	}
	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("prefs: load: %w", err)
	}
	s := &State{
		store:   store,
		log:     log.With(logx.String("comp", "prefs")),
		timeout: 5 * time.Second,
		values:  map[string]string{},
		def:     def,
	}
	for k, v := range loaded {
		if durableKeys[k] {
			s.values[k] = v
		}
	}
	s.log.Debug("prefs loaded", logx.Int("keys", len(s.values)))
	return s, nil
}

// Get returns the value for key, or "" when unset.
func (s *State) Get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

func (s *State) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores one key.
func (s *State) Set(key, value string) error {
	var c Changes
	c.Set(key, value)
	return s.Update(c)
}

// Delete removes one key.
func (s *State) Delete(key string) error {
	var c Changes
	c.Delete(key)
	return s.Update(c)
}

// Changes is a batch of sets and deletes. The zero value is ready to use.
type Changes struct {
	set map[string]string
	del map[string]bool
}

func (c *Changes) Set(key, value string) {
	if c.set == nil {
		c.set = map[string]string{}
	}
	delete(c.del, key)
	c.set[key] = value
}

func (c *Changes) Delete(key string) {
	if c.del == nil {
		c.del = map[string]bool{}
	}
	delete(c.set, key)
	c.del[key] = true
}

func (c Changes) Empty() bool { return len(c.set) == 0 && len(c.del) == 0 }

// Update applies c all or nothing: durable keys go to the store in one batch
// first, and memory changes only if that batch lands.
func (s *State) Update(c Changes) error {
	if c.Empty() {
		return nil
	}

	durSet := map[string]string{}
	var durDel []string
	for k, v := range c.set {
		if durableKeys[k] {
			durSet[k] = v
		}
	}
	for k := range c.del {
		if durableKeys[k] {
			durDel = append(durDel, k)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(durSet) > 0 || len(durDel) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.store.Apply(ctx, durSet, durDel); err != nil {
			return fmt.Errorf("prefs: save: %w", err)
		}
	}
	for k, v := range c.set {
		s.values[k] = v
	}
	for k := range c.del {
		delete(s.values, k)
	}
	return nil
}

// Mode returns the persisted display mode, falling back to the default.
func (s *State) Mode() string {
	switch v := s.Get(KeyMode); v {
	case ModeIdle, ModeList:
		return v
	}
	if s.def.Mode == ModeList {
		return ModeList
	}
	return ModeIdle
}

func (s *State) SetMode(mode string) error {
	if mode != ModeIdle && mode != ModeList {
		return fmt.Errorf("prefs: invalid mode %q", mode)
	}
	return s.Set(KeyMode, mode)
}

func (s *State) Language() string { return s.getOr(KeyLanguage, s.def.Language) }
func (s *State) City() string     { return s.getOr(KeyCity, s.def.City) }
func (s *State) Country() string  { return s.getOr(KeyCountry, s.def.Country) }

// AdsEnabled parses the stored flag; anything unreadable means the default.
func (s *State) AdsEnabled() bool {
	v, ok := s.Lookup(KeyAdsEnabled)
	if !ok {
		return s.def.AdsEnabled
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return s.def.AdsEnabled
	}
	return b
}

// FormatBool is the stored form of a boolean key.
func FormatBool(b bool) string { return strconv.FormatBool(b) }

func (s *State) getOr(key, def string) string {
	if v, ok := s.Lookup(key); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// LastScan returns the dedup cursor.
func (s *State) LastScan() (id, checkIn string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[KeyLastScanID], s.values[KeyLastCheckIn]
}

// SetLastScan moves the dedup cursor in one batch.
func (s *State) SetLastScan(id, checkIn string) error {
	var c Changes
	c.Set(KeyLastScanID, id)
	c.Set(KeyLastCheckIn, checkIn)
	return s.Update(c)
}

// Secret returns the obfuscated password; ok is false when none is set.
func (s *State) Secret() (string, bool) {
	v, ok := s.Lookup(KeyPassword)
	return v, ok && v != ""
}

func (s *State) PutSecret(v string) error { return s.Set(KeyPassword, v) }

func (s *State) DeleteSecret() error { return s.Delete(KeyPassword) }

// Snapshot copies every key.
func (s *State) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
