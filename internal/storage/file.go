package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	logx "clubkiosk/pkg/logx"
)

// fileStore keeps the full map in memory and persists it as:
//   - <prefix>.snapshot.json (compacted state, replaced via tmp+rename)
//   - <prefix>.journal.jsonl (one line per Apply batch)
//
// A batch is one journal line. A torn trailing line left by a crash is
// skipped on replay, so a batch is either fully visible or not at all.
type fileStore struct {
	fs  afero.Fs
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journalPath  string
	journal      afero.File

	data         map[string]string
	writes       int
	compactEvery int
	closed       bool
}

type batchRecord struct {
	At  int64             `json:"at"`
	Set map[string]string `json:"set,omitempty"`
	Del []string          `json:"del,omitempty"`
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	fs := cfg.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	dir := filepath.Dir(path)
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	prefix := filepath.Join(dir, base)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
	}

	st := &fileStore{
		fs:           fs,
		log:          log,
		snapshotPath: prefix + ".snapshot.json",
		journalPath:  prefix + ".journal.jsonl",
		data:         map[string]string{},
		compactEvery: cfg.CompactEvery,
	}
	if st.compactEvery <= 0 {
		st.compactEvery = 64
	}

	if err := st.loadSnapshot(); err != nil {
		return nil, err
	}
	replayed, err := st.replayJournal()
	if err != nil {
		return nil, err
	}
	if err := st.openJournal(false); err != nil {
		return nil, err
	}
	if replayed > 0 {
		if err := st.compactLocked(); err != nil {
			log.Warn("storage compaction on open failed", logx.Err(err))
		}
	}
	log.Debug("file store opened", logx.String("path", st.snapshotPath), logx.Int("keys", len(st.data)), logx.Int("replayed", replayed))
	return st, nil
}

func (s *fileStore) loadSnapshot() error {
	b, err := afero.ReadFile(s.fs, s.snapshotPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read snapshot: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return fmt.Errorf("storage: decode snapshot: %w", err)
	}
	if s.data == nil {
		s.data = map[string]string{}
	}
	return nil
}

func (s *fileStore) replayJournal() (int, error) {
	f, err := s.fs.Open(s.journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage: open journal: %w", err)
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var rec batchRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			s.log.Warn("skipping torn journal record", logx.Int("after", n), logx.Err(err))
			continue
		}
		s.applyRecord(rec)
		n++
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("storage: scan journal: %w", err)
	}
	return n, nil
}

func (s *fileStore) openJournal(truncate bool) error {
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if truncate {
		flags |= os.O_TRUNC
	}
	f, err := s.fs.OpenFile(s.journalPath, flags, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open journal: %w", err)
	}
	s.journal = f
	return nil
}

func (s *fileStore) applyRecord(rec batchRecord) {
	for k, v := range rec.Set {
		s.data[k] = v
	}
	for _, k := range rec.Del {
		delete(s.data, k)
	}
}

func (s *fileStore) Load(context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return copyMap(s.data), nil
}

func (s *fileStore) Apply(ctx context.Context, set map[string]string, del []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(set) == 0 && len(del) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	rec := batchRecord{At: time.Now().UnixMilli(), Set: set, Del: del}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode batch: %w", err)
	}
	line = append(line, '\n')
	if _, err := s.journal.Write(line); err != nil {
		return fmt.Errorf("storage: append journal: %w", err)
	}
	if err := s.journal.Sync(); err != nil {
		return fmt.Errorf("storage: sync journal: %w", err)
	}
	s.applyRecord(rec)

	s.writes++
	if s.writes >= s.compactEvery {
		if err := s.compactLocked(); err != nil {
			// The journal still holds every batch; retry on the next write.
			s.log.Warn("storage compaction failed", logx.Err(err))
		}
	}
	return nil
}

// compactLocked writes the snapshot and truncates the journal. Caller holds mu.
func (s *fileStore) compactLocked() error {
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.snapshotPath + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, b, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := s.fs.Rename(tmp, s.snapshotPath); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	if s.journal != nil {
		_ = s.journal.Close()
	}
	if err := s.openJournal(true); err != nil {
		return err
	}
	s.writes = 0
	return nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.journal != nil {
		return s.journal.Close()
	}
	return nil
}
