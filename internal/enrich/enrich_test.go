package enrich

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/retry"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/telegram"
	"github.com/matheus3301/tgtriage/internal/tg"
	"github.com/matheus3301/tgtriage/internal/tg/tgtest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeProvider struct {
	mu    sync.Mutex
	calls []ai.Request
	reply func(req ai.Request) (string, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(ctx context.Context, req ai.Request) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	fn := p.reply
	p.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fn(req)
}

func (p *fakeProvider) Calls() []ai.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ai.Request, len(p.calls))
	copy(out, p.calls)
	return out
}

func replyWith(text string) *fakeProvider {
	return &fakeProvider{reply: func(ai.Request) (string, error) { return text, nil }}
}

type chatList []tg.Chat

func (l chatList) Visible() []tg.Chat {
	out := make([]tg.Chat, len(l))
	copy(out, l)
	return out
}

func (l chatList) Direct() []tg.Chat {
	var out []tg.Chat
	for _, c := range l {
		if c.IsDirect() {
			out = append(out, c)
		}
	}
	return out
}

func newTestOrchestrator(t *testing.T, client *tgtest.Client, chats []tg.Chat, p ai.Provider) *Orchestrator {
	t.Helper()
	svc := telegram.New(telegram.Options{
		Client:  client,
		State:   state.New(state.DefaultLimits(), nil),
		Limiter: ratelimit.New(1000, 1000),
		Retry:   retry.Policy{MaxAttempts: 1},
	})
	return New(Options{
		Source:   svc,
		Chats:    chatList(chats),
		Provider: p,
		Retry:    retry.Policy{MaxAttempts: 1},
		Config:   DefaultConfig(),
		Now:      func() time.Time { return testNow },
	})
}

func msg(chatID, id int64, ago time.Duration, text string) tg.Message {
	return tg.Message{
		ID:         id,
		ChatID:     chatID,
		Sender:     tg.Sender{Kind: tg.SenderUser, ID: 100 + chatID},
		Date:       testNow.Add(-ago),
		Text:       text,
		SenderName: "Contact",
	}
}

func directChat(id int64, title string, unread int, last tg.Message) tg.Chat {
	last.ChatTitle = title
	return tg.Chat{
		ID:           id,
		Title:        title,
		Type:         tg.ChatPrivate,
		UnreadCount:  unread,
		LastMessage:  &last,
		IsInMainList: true,
	}
}
