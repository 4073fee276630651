package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	remoteMaxLen   = 3500
	remoteFieldMax = 600
	remoteSendWait = 10 * time.Second
)

func (s *Service) startQueue() {
	ctx, cancel := context.WithCancel(context.Background())
	s.queueCancel = cancel
	s.queueWG.Add(1)
	go func() {
		defer s.queueWG.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-s.queue:
				sctx, scancel := context.WithTimeout(ctx, remoteSendWait)
				if err := s.sender.SendAlert(sctx, msg); err != nil {
					// The remote sink must never log through itself.
					fmt.Fprintf(Stderr(), "logx: remote alert failed: %v\n", err)
				}
				scancel()
			}
		}
	}()
}

func (s *Service) enqueueRemote(msg string) {
	select {
	case s.queue <- msg:
	default:
		// queue full: drop
	}
}

type remoteWriter struct{ svc *Service }

func (w *remoteWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *remoteWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	s := w.svc
	s.mu.Lock()
	lim := s.limiter
	minLevel := s.minLevel
	s.mu.Unlock()

	if level < minLevel || lim == nil || !lim.Allow() {
		return len(p), nil
	}
	if msg := formatAlert(p); msg != "" {
		s.enqueueRemote(msg)
	}
	return len(p), nil
}

// formatAlert renders one zerolog JSON line as a short multi-line text.
// Extra fields are sorted so repeated alerts read the same.
func formatAlert(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(p))), &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), remoteMaxLen)
	}

	lvl, _ := m["level"].(string)
	msg, _ := m["message"].(string)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[" + strings.ToUpper(lvl) + "] ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n- " + k + "=")
		b.WriteString(truncate(fmt.Sprint(m[k]), remoteFieldMax))
	}
	return truncate(b.String(), remoteMaxLen)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
