package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	logx "clubkiosk/pkg/logx"
)

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	if err := st.Apply(ctx, map[string]string{"setting_city": "Geneva", "setting_country": "CH"}, nil); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := st.Apply(ctx, map[string]string{"setting_city": "Lausanne"}, []string{"setting_country", "missing"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 || got["setting_city"] != "Lausanne" {
		t.Fatalf("Load = %v", got)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	st := NewMemory()
	exerciseStore(t, st)
	_ = st.Close()
	if _, err := st.Load(context.Background()); err != ErrClosed {
		t.Fatalf("Load after Close err = %v, want ErrClosed", err)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	cfg := Config{Driver: "file", Path: "/data/kiosk.json", Fs: fs, CompactEvery: 3}

	st, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exerciseStore(t, st)
	for i := 0; i < 4; i++ {
		if err := st.Apply(context.Background(), map[string]string{"n": strings.Repeat("x", i+1)}, nil); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}
	_ = st.Close()

	st2, err := Open(cfg, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, _ := st2.Load(context.Background())
	if got["setting_city"] != "Lausanne" || got["n"] != "xxxx" || len(got) != 2 {
		t.Fatalf("after reopen Load = %v", got)
	}
}

func TestFileStoreSkipsTornBatch(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	_ = fs.MkdirAll("/data", 0o755)
	journal := `{"at":1,"set":{"a":"1","b":"2"}}` + "\n" + `{"at":2,"set":{"a":"9","c":` + "\n"
	if err := afero.WriteFile(fs, "/data/kiosk.journal.jsonl", []byte(journal), 0o644); err != nil {
		t.Fatal(err)
	}

	st, err := Open(Config{Path: "/data/kiosk.json", Fs: fs}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	got, _ := st.Load(context.Background())
	if got["a"] != "1" || got["b"] != "2" || len(got) != 2 {
		t.Fatalf("Load = %v, want only the first batch", got)
	}
	if ok, _ := afero.Exists(fs, "/data/kiosk.snapshot.json"); !ok {
		t.Fatalf("replayed journal should be compacted into a snapshot")
	}
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kiosk.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	exerciseStore(t, st)
	_ = st.Close()

	st2, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	got, _ := st2.Load(context.Background())
	if got["setting_city"] != "Lausanne" {
		t.Fatalf("after reopen Load = %v", got)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatalf("expected error for missing path")
	}
}
