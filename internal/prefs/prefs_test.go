package prefs

import (
	"context"
	"errors"
	"testing"

	"clubkiosk/internal/storage"
	logx "clubkiosk/pkg/logx"
)

var defaults = Defaults{Mode: ModeIdle, Language: "fr", City: "Geneva", Country: "CH", AdsEnabled: true}

type failingStore struct {
	storage.Store
	fail bool
}

func (f *failingStore) Apply(ctx context.Context, set map[string]string, del []string) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.Store.Apply(ctx, set, del)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	s, err := Open(context.Background(), storage.NewMemory(), defaults, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Mode() != ModeIdle || s.Language() != "fr" || s.City() != "Geneva" || s.Country() != "CH" || !s.AdsEnabled() {
		t.Fatalf("defaults not applied: %v", s.Snapshot())
	}
	if _, ok := s.Secret(); ok {
		t.Fatalf("no secret expected")
	}
}

func TestDurableKeysSurviveReopen(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	s, _ := Open(context.Background(), store, defaults, logx.Nop())
	if err := s.SetMode(ModeList); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if err := s.SetLastScan("100", "2024-03-01 10:00:00"); err != nil {
		t.Fatalf("SetLastScan: %v", err)
	}
	if err := s.Set(KeyWeatherSnapshot, `{"temp":12}`); err != nil {
		t.Fatalf("Set: %v", err)
	}

	s2, _ := Open(context.Background(), store, defaults, logx.Nop())
	if s2.Mode() != ModeList {
		t.Fatalf("Mode = %q after reopen", s2.Mode())
	}
	if id, at := s2.LastScan(); id != "100" || at != "2024-03-01 10:00:00" {
		t.Fatalf("LastScan = %q %q", id, at)
	}
	if _, ok := s2.Lookup(KeyWeatherSnapshot); ok {
		t.Fatalf("ephemeral key should not be persisted")
	}
}

func TestUpdateIsAllOrNothing(t *testing.T) {
	t.Parallel()

	store := &failingStore{Store: storage.NewMemory()}
	s, _ := Open(context.Background(), store, defaults, logx.Nop())

	store.fail = true
	var c Changes
	c.Set(KeyCity, "Bern")
	c.Set(KeyCountry, "CH")
	c.Set(KeyAdsEnabled, FormatBool(false))
	if err := s.Update(c); err == nil {
		t.Fatalf("expected error from failing store")
	}
	if s.City() != "Geneva" || !s.AdsEnabled() {
		t.Fatalf("failed batch leaked into memory: %v", s.Snapshot())
	}

	store.fail = false
	if err := s.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if s.City() != "Bern" || s.AdsEnabled() {
		t.Fatalf("batch not applied: %v", s.Snapshot())
	}
}

func TestChangesLastOpWins(t *testing.T) {
	t.Parallel()

	s, _ := Open(context.Background(), storage.NewMemory(), defaults, logx.Nop())
	_ = s.PutSecret("c2VjcmV0")

	var c Changes
	c.Set(KeyPassword, "eA==")
	c.Delete(KeyPassword)
	if err := s.Update(c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok := s.Secret(); ok {
		t.Fatalf("delete after set should win")
	}
}

func TestInvalidStoredValuesFallBack(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	_ = store.Apply(context.Background(), map[string]string{KeyMode: "member", KeyAdsEnabled: "maybe"}, nil)
	s, _ := Open(context.Background(), store, defaults, logx.Nop())
	if s.Mode() != ModeIdle {
		t.Fatalf("Mode = %q, want idle", s.Mode())
	}
	if !s.AdsEnabled() {
		t.Fatalf("unparsable flag should use default")
	}
	if err := s.SetMode("settings"); err == nil {
		t.Fatalf("SetMode should reject non-persistable modes")
	}
}
