package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/status"
	"github.com/matheus3301/tgtriage/internal/store"
	"github.com/matheus3301/tgtriage/internal/tg"
	"github.com/matheus3301/tgtriage/internal/tg/tgtest"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	client  *tgtest.Client
	state   *state.Store
	machine *status.Machine
	db      *store.DB
	bus     *bus.Bus
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		client: tgtest.New(),
		state:  state.New(state.DefaultLimits(), nil),
		db:     testDB(t),
		bus:    bus.New(),
	}
	f.machine = status.NewMachine(f.bus)
	f.engine = NewEngine(f.client, f.state, f.machine, f.db, f.bus, nil)
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestEngineAppliesAndArchives(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.bus.Subscribe("chats.", 10)
	defer unsub()

	f.engine.Start(context.Background())
	defer f.engine.Stop()

	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	m := &tg.Message{ID: 3, ChatID: 1, Sender: tg.Sender{Kind: tg.SenderUser, ID: 7}, Date: at, Text: "ship it"}
	f.client.Push(tg.NewChat{Chat: tg.Chat{ID: 1, Title: "Ops", Type: tg.ChatBasicGroup}})
	f.client.Push(tg.UserUpdated{User: tg.User{ID: 7, FirstName: "Ana"}})
	f.client.Push(tg.ChatLastMessage{ChatID: 1, LastMessage: m, Positions: []tg.Position{{List: tg.ListMain, Order: 50}}})

	waitFor(t, "last message applied", func() bool {
		c, ok := f.state.Chat(1)
		return ok && c.LastMessage != nil
	})
	c, _ := f.state.Chat(1)
	if c.LastMessage.SenderName != "Ana" || c.Order != 50 {
		t.Errorf("chat = %+v last = %+v", c, c.LastMessage)
	}

	waitFor(t, "message archived", func() bool {
		n, _ := f.db.CountMessages()
		return n == 1
	})
	if u, _ := f.db.GetUser(7); u == nil || u.FirstName != "Ana" {
		t.Errorf("archived user = %+v", u)
	}

	select {
	case evt := <-ch:
		p, ok := evt.Payload.(bus.ChatsChanged)
		if evt.Kind != bus.KindChatsChanged || !ok || p.ChatID != 1 {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for chats.changed")
	}
}

func TestEngineDrivesStatus(t *testing.T) {
	f := newFixture(t)
	ch, unsub := f.bus.Subscribe("session.", 10)
	defer unsub()

	f.engine.Start(context.Background())
	defer f.engine.Stop()

	f.client.Push(tg.AuthorizationState{State: tg.AuthReady})
	waitFor(t, "ready", f.machine.IsReady)

	select {
	case evt := <-ch:
		if sc, ok := evt.Payload.(status.StatusChange); !ok || sc.To != status.Ready {
			t.Errorf("event = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for status event")
	}

	// Invalid transitions are logged and ignored.
	f.client.Push(tg.AuthorizationState{State: tg.AuthWaitCode})
	f.client.Push(tg.NewChat{Chat: tg.Chat{ID: 2}})
	waitFor(t, "chat after bad transition", func() bool { _, ok := f.state.Chat(2); return ok })
	if f.machine.Current() != status.Ready {
		t.Errorf("state = %s, want READY", f.machine.Current())
	}
}

func TestEngineInjectSharesWriter(t *testing.T) {
	f := newFixture(t)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	f.engine.Inject(tg.UserUpdated{User: tg.User{ID: 9, FirstName: "Bo"}})
	waitFor(t, "injected user", func() bool { _, ok := f.state.User(9); return ok })
}

func TestEngineStopsWhenStreamCloses(t *testing.T) {
	f := newFixture(t)
	f.engine.Start(context.Background())

	f.client.Close()
	select {
	case <-f.engine.Done():
	case <-time.After(time.Second):
		t.Fatal("engine did not exit after stream closed")
	}
	f.engine.Stop()
}

func TestEngineReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.engine.Start(context.Background())
	defer f.engine.Stop()

	m := tg.Message{ID: 1, ChatID: 1, Date: time.Unix(1000, 0), Text: "hi"}
	for i := 0; i < 3; i++ {
		f.client.Push(tg.NewChat{Chat: tg.Chat{ID: 1, Title: "Ops", LastMessage: &m}})
	}
	f.client.Push(tg.MessageEdited{Message: tg.Message{ID: 1, ChatID: 1, Date: time.Unix(1000, 0), Text: "hi all"}})

	waitFor(t, "edit archived", func() bool {
		msgs, _ := f.db.ListMessages(1, time.Time{}, 10)
		return len(msgs) == 1 && msgs[0].Text == "hi all"
	})
	if n, _ := f.db.CountMessages(); n != 1 {
		t.Errorf("archived %d messages, want 1", n)
	}
}

func TestEngineStopArchivesPending(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f.client.Push(tg.NewChat{Chat: tg.Chat{ID: 1, Title: "Ops", Type: tg.ChatBasicGroup}})
	for i := int64(1); i <= 3; i++ {
		m := &tg.Message{ID: i, ChatID: 1, Date: at.Add(time.Duration(i) * time.Minute), Text: "queued"}
		f.client.Push(tg.ChatLastMessage{ChatID: 1, LastMessage: m})
	}

	// The engine is told to stop before it has looked at the stream.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.engine.Start(ctx)
	f.engine.Stop()

	n, err := f.db.CountMessages()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("archived %d messages, want all 3 pending", n)
	}
	if got := f.state.Stats().Chats; got != 1 {
		t.Errorf("state chats = %d, want 1", got)
	}
}
