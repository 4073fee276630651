// Package alerts delivers warn and error log records to the club's Telegram
// group.
package alerts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Telegram caps a message at 4096 characters.
const textLimit = 4096

// sender is the part of *tele.Bot used here.
type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// Prefix is prepended to every alert, usually the kiosk id.
	Prefix string
	// DedupWindow suppresses an identical alert repeated within the window.
	DedupWindow time.Duration
}

// Telegram implements logx.Sender.
type Telegram struct {
	cfg  Config
	bot  sender
	now  func() time.Time
	mu   sync.Mutex
	seen map[string]time.Time
}

func NewTelegram(cfg Config) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token, Offline: true})
	if err != nil {
		return nil, err
	}
	return newTelegram(cfg, b), nil
}

func newTelegram(cfg Config, bot sender) *Telegram {
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = time.Minute
	}
	return &Telegram{cfg: cfg, bot: bot, now: time.Now, seen: map[string]time.Time{}}
}

// SendAlert posts text to the configured chat and thread.
func (t *Telegram) SendAlert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if t.cfg.Prefix != "" {
		text = "[" + t.cfg.Prefix + "] " + text
	}
	if t.duplicate(text) {
		return nil
	}
	if r := []rune(text); len(r) > textLimit {
		text = string(r[:textLimit-1]) + "…"
	}
	_, err := t.bot.Send(&tele.Chat{ID: t.cfg.ChatID}, text, &tele.SendOptions{
		ThreadID:              t.cfg.ThreadID,
		DisableWebPagePreview: true,
	})
	return err
}

func (t *Telegram) duplicate(text string) bool {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, at := range t.seen {
		if now.Sub(at) >= t.cfg.DedupWindow {
			delete(t.seen, k)
		}
	}
	if _, ok := t.seen[text]; ok {
		return true
	}
	t.seen[text] = now
	return false
}
