package api

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/tgtriage/internal/ai"
	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/config"
	"github.com/matheus3301/tgtriage/internal/enrich"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/retry"
	"github.com/matheus3301/tgtriage/internal/router"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/status"
	"github.com/matheus3301/tgtriage/internal/store"
	"github.com/matheus3301/tgtriage/internal/telegram"
	"github.com/matheus3301/tgtriage/internal/tg"
	"github.com/matheus3301/tgtriage/internal/tg/tgtest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type fakeProvider struct {
	mu    sync.Mutex
	reply func(req ai.Request) (string, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Complete(_ context.Context, req ai.Request) (string, error) {
	p.mu.Lock()
	fn := p.reply
	p.mu.Unlock()
	return fn(req)
}

type fixture struct {
	client  *Client
	tg      *tgtest.Client
	state   *state.Store
	machine *status.Machine
	bus     *bus.Bus
	db      *store.DB
}

func newFixture(t *testing.T, provider ai.Provider) *fixture {
	t.Helper()

	// Short path for the unix socket length limit.
	dir, err := os.MkdirTemp("/tmp", "tgt-api-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	db, err := store.Open(filepath.Join(dir, "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	machine := status.NewMachine(b)
	if err := machine.Transition(status.Ready); err != nil {
		t.Fatal(err)
	}
	st := state.New(state.DefaultLimits(), nil)
	fake := tgtest.New()
	policy := retry.Policy{MaxAttempts: 1}
	limiter := ratelimit.New(100, 1000)

	svc := telegram.New(telegram.Options{
		Client:  fake,
		State:   st,
		Limiter: limiter,
		Retry:   policy,
		Ready:   machine,
	})
	orch := enrich.New(enrich.Options{
		Source:   svc,
		Chats:    st,
		Provider: provider,
		Retry:    policy,
		Config:   enrich.DefaultConfig(),
	})

	s := NewService(Deps{
		SessionName: "test",
		Machine:     machine,
		State:       st,
		Telegram:    svc,
		Archive:     db,
		Router:      router.New(provider, nil),
		Enrich:      orch,
		Limiter:     limiter,
		Bus:         b,
		Fetch:       config.Default().Fetch,
	})

	socketPath := filepath.Join(dir, "d.sock")
	lis, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatal(err)
	}
	srv := grpc.NewServer()
	Register(srv, s)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := Dial(socketPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return &fixture{client: client, tg: fake, state: st, machine: machine, bus: b, db: db}
}

var testNow = time.Now().Truncate(time.Second)

func (f *fixture) addChat(c tg.Chat, order int64) {
	f.state.Apply(tg.NewChat{Chat: c, Positions: []tg.Position{{List: tg.ListMain, Order: order}}})
}

func seedChats(f *fixture) {
	last := &tg.Message{ID: 5, ChatID: 1, Date: testNow.Add(-time.Hour), Text: "did you send the invoice?", SenderName: "Ana"}
	f.addChat(tg.Chat{ID: 1, Title: "Ana", Type: tg.ChatPrivate, UnreadCount: 1, LastMessage: last}, 20)
	f.addChat(tg.Chat{ID: 2, Title: "Team", Type: tg.ChatSupergroup, MemberCount: 8}, 10)
	f.tg.SetHistory(1, []tg.Message{*last})
}

func codeOfErr(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) { return "OK", nil }})
	seedChats(f)

	resp, err := f.client.GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if resp.Session != "test" || resp.State != string(status.Ready) {
		t.Errorf("status = %+v", resp)
	}
	if resp.Chats != 2 || resp.VisibleChats != 2 {
		t.Errorf("chats = %d visible = %d, want 2/2", resp.Chats, resp.VisibleChats)
	}
	if !resp.AIConfigured || resp.AIProvider != "fake" {
		t.Errorf("ai = %s configured %v", resp.AIProvider, resp.AIConfigured)
	}
	if resp.NeedsUserAction {
		t.Error("ready session should not need user action")
	}
}

func TestTestConnection(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) { return "OK", nil }})
	resp, err := f.client.TestConnection(context.Background())
	if err != nil {
		t.Fatalf("TestConnection() error = %v", err)
	}
	if !resp.OK {
		t.Error("TestConnection() ok = false")
	}
}

func TestListChatsFilters(t *testing.T) {
	f := newFixture(t, ai.None{})
	seedChats(f)

	tests := []struct {
		filter string
		want   []int64
	}{
		{"", []int64{1, 2}},
		{FilterGroups, []int64{2}},
		{FilterDirect, []int64{1}},
	}
	for _, tt := range tests {
		resp, err := f.client.ListChats(context.Background(), ListChatsRequest{Filter: tt.filter})
		if err != nil {
			t.Fatalf("ListChats(%q) error = %v", tt.filter, err)
		}
		var got []int64
		for _, c := range resp.Chats {
			got = append(got, c.ID)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("ListChats(%q) = %v, want %v", tt.filter, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ListChats(%q) = %v, want %v", tt.filter, got, tt.want)
			}
		}
	}

	resp, _ := f.client.ListChats(context.Background(), ListChatsRequest{})
	if resp.Chats[0].LastMessage == nil || resp.Chats[0].LastMessage.Text != "did you send the invoice?" {
		t.Errorf("last message = %+v", resp.Chats[0].LastMessage)
	}

	_, err := f.client.ListChats(context.Background(), ListChatsRequest{Filter: "bogus"})
	if codeOfErr(err) != codes.InvalidArgument {
		t.Errorf("bogus filter code = %v, want InvalidArgument", codeOfErr(err))
	}
}

func TestRoute(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) { return "semantic_search", nil }})

	resp, err := f.client.Route(context.Background(), "search: pending invoice")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Intent != string(router.MessageSearch) || resp.ByAI || resp.Query != "pending invoice" {
		t.Errorf("prefix route = %+v", resp)
	}

	resp, err = f.client.Route(context.Background(), "anyone planning the offsite")
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if resp.Intent != string(router.SemanticSearch) || !resp.ByAI {
		t.Errorf("ai route = %+v", resp)
	}

	if _, err := f.client.Route(context.Background(), "  "); codeOfErr(err) != codes.InvalidArgument {
		t.Errorf("empty query code = %v", codeOfErr(err))
	}
}

func TestSearchMessages(t *testing.T) {
	f := newFixture(t, ai.None{})
	seedChats(f)

	resp, err := f.client.SearchMessages(context.Background(), SearchRequest{Query: "invoice"})
	if err != nil {
		t.Fatalf("SearchMessages() error = %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].ChatTitle != "Ana" {
		t.Errorf("messages = %+v", resp.Messages)
	}
}

func TestSearchNotReady(t *testing.T) {
	f := newFixture(t, ai.None{})
	if err := f.machine.Transition(status.LoggingOut); err != nil {
		t.Fatal(err)
	}
	_, err := f.client.SearchMessages(context.Background(), SearchRequest{Query: "x"})
	if codeOfErr(err) != codes.Unavailable {
		t.Errorf("code = %v, want Unavailable", codeOfErr(err))
	}
}

func TestPriorityNotConfigured(t *testing.T) {
	f := newFixture(t, ai.None{})
	seedChats(f)

	_, err := f.client.Priority(context.Background())
	if codeOfErr(err) != codes.FailedPrecondition {
		t.Fatalf("code = %v, want FailedPrecondition (err = %v)", codeOfErr(err), err)
	}
	if msg := grpcstatus.Convert(err).Message(); !strings.Contains(msg, "not configured") {
		t.Errorf("message = %q", msg)
	}
}

func TestPriority(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) {
		return `[{"chatName":"Ana","senderName":"Ana","summary":"invoice","suggestedAction":"send it","urgency":"high"}]`, nil
	}})
	seedChats(f)

	resp, err := f.client.Priority(context.Background())
	if err != nil {
		t.Fatalf("Priority() error = %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Urgency != "high" {
		t.Errorf("items = %+v", resp.Items)
	}
}

func TestWatchPipeline(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) {
		return `{"relevant": true, "suggestedAction": "Send the invoice"}`, nil
	}})
	seedChats(f)

	events, unsub := f.bus.Subscribe("enrich.", 16)
	defer unsub()

	var snaps []PipelineSnapshot
	err := f.client.WatchPipeline(context.Background(), func(s PipelineSnapshot) error {
		snaps = append(snaps, s)
		return nil
	})
	if err != nil {
		t.Fatalf("WatchPipeline() error = %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("got %d snapshots, want initial, suggestion and final", len(snaps))
	}
	final := snaps[2]
	if !final.Done || len(final.Items) != 1 {
		t.Fatalf("final = %+v", final)
	}
	it := final.Items[0]
	if it.Chat.ID != 1 || it.Category != string(enrich.CategoryReply) || it.SuggestedAction != "Send the invoice" {
		t.Errorf("item = %+v", it)
	}
	if it.AgeSeconds < 3600 {
		t.Errorf("age = %ds, want at least an hour", it.AgeSeconds)
	}

	select {
	case evt := <-events:
		if evt.Kind != bus.KindPipelineItem {
			t.Errorf("event kind = %s", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Error("no pipeline event published")
	}
}

func TestSemanticSearch(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) {
		return `[{"chatName":"Ana","reason":"talks about the invoice","relevance":"high","matchingMessages":["did you send the invoice?"]}]`, nil
	}})
	seedChats(f)
	f.tg.SetHistory(2, []tg.Message{{ID: 1, ChatID: 2, Date: testNow, Text: "standup at 10"}})

	page, err := f.client.StartSemanticSearch(context.Background(), "invoices")
	if err != nil {
		t.Fatalf("StartSemanticSearch() error = %v", err)
	}
	if page.HasMore || page.Total != 2 || len(page.Results) != 1 {
		t.Fatalf("page = %+v", page)
	}
	if r := page.Results[0]; r.ChatID != 1 || r.Relevance != "high" {
		t.Errorf("result = %+v", r)
	}

	_, err = f.client.NextSemanticPage(context.Background(), "nope")
	if codeOfErr(err) != codes.NotFound {
		t.Errorf("unknown search code = %v, want NotFound", codeOfErr(err))
	}
}

func TestSummarizeAndDigestArguments(t *testing.T) {
	f := newFixture(t, &fakeProvider{reply: func(ai.Request) (string, error) { return "Sorting out an invoice.", nil }})
	seedChats(f)

	resp, err := f.client.SummarizeChat(context.Background(), 1)
	if err != nil {
		t.Fatalf("SummarizeChat() error = %v", err)
	}
	if resp.Summary != "Sorting out an invoice." {
		t.Errorf("summary = %q", resp.Summary)
	}
	if _, err := f.client.SummarizeChat(context.Background(), 99); codeOfErr(err) != codes.NotFound {
		t.Errorf("unknown chat code = %v", codeOfErr(err))
	}
	if _, err := f.client.Digest(context.Background(), "monthly"); codeOfErr(err) != codes.InvalidArgument {
		t.Errorf("bad period code = %v", codeOfErr(err))
	}
}
