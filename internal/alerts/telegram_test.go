package alerts

import (
	"context"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"
)

type fakeBot struct {
	chats   []int64
	texts   []string
	threads []int
}

func (f *fakeBot) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	chat := to.(*tele.Chat)
	f.chats = append(f.chats, chat.ID)
	f.texts = append(f.texts, what.(string))
	for _, o := range opts {
		if so, ok := o.(*tele.SendOptions); ok {
			f.threads = append(f.threads, so.ThreadID)
		}
	}
	return &tele.Message{ID: len(f.texts)}, nil
}

func TestNewTelegramRequiresTarget(t *testing.T) {
	t.Parallel()
	if _, err := NewTelegram(Config{ChatID: 1}); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := NewTelegram(Config{Token: "123:abc"}); err == nil {
		t.Fatalf("expected error for empty chat id")
	}
}

func TestSendAlertTargetsChatAndThread(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg := newTelegram(Config{ChatID: -100, ThreadID: 7, Prefix: "front-desk"}, bot)
	if err := tg.SendAlert(context.Background(), "  scan poll failed  "); err != nil {
		t.Fatalf("SendAlert: %v", err)
	}
	if len(bot.texts) != 1 || bot.chats[0] != -100 || bot.threads[0] != 7 {
		t.Fatalf("sent %+v", bot)
	}
	if bot.texts[0] != "[front-desk] scan poll failed" {
		t.Fatalf("text = %q", bot.texts[0])
	}
}

func TestSendAlertDedupAndTruncate(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg := newTelegram(Config{ChatID: 1, DedupWindow: time.Minute}, bot)
	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	tg.now = func() time.Time { return now }

	ctx := context.Background()
	_ = tg.SendAlert(ctx, "same")
	_ = tg.SendAlert(ctx, "same")
	now = now.Add(2 * time.Minute)
	_ = tg.SendAlert(ctx, "same")
	_ = tg.SendAlert(ctx, "")
	_ = tg.SendAlert(ctx, strings.Repeat("x", textLimit+50))

	if len(bot.texts) != 3 {
		t.Fatalf("sent %d alerts, want 3", len(bot.texts))
	}
	if n := len([]rune(bot.texts[2])); n != textLimit {
		t.Fatalf("long alert has %d runes, want %d", n, textLimit)
	}
}

func TestSendAlertHonoursContext(t *testing.T) {
	t.Parallel()

	bot := &fakeBot{}
	tg := newTelegram(Config{ChatID: 1}, bot)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := tg.SendAlert(ctx, "late"); err == nil || len(bot.texts) != 0 {
		t.Fatalf("cancelled send went through: %v %d", err, len(bot.texts))
	}
}
