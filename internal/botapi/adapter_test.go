package botapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/store"
	"github.com/matheus3301/tgtriage/internal/tg"
)

const owner = 42

type mockBot struct {
	mu          sync.Mutex
	updatesChan chan tgbotapi.Update
	files       map[string]tgbotapi.File
	chats       map[int64]tgbotapi.Chat
	members     map[int64]int
	self        tgbotapi.User
	stopped     bool
	lastConfig  tgbotapi.UpdateConfig
	memberCalls int
}

func newMockBot() *mockBot {
	return &mockBot{
		updatesChan: make(chan tgbotapi.Update, 10),
		files:       make(map[string]tgbotapi.File),
		chats:       make(map[int64]tgbotapi.Chat),
		members:     make(map[int64]int),
		self:        tgbotapi.User{ID: 1, UserName: "triagebot", IsBot: true},
	}
}

func (m *mockBot) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastConfig = config
	return m.updatesChan
}

func (m *mockBot) StopReceivingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *mockBot) GetSelf() tgbotapi.User { return m.self }

func (m *mockBot) GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error) {
	file, ok := m.files[config.FileID]
	if !ok {
		return tgbotapi.File{}, &tgbotapi.Error{Code: 400, Message: "file not found"}
	}
	return file, nil
}

func (m *mockBot) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	c, ok := m.chats[config.ChatID]
	if !ok {
		return tgbotapi.Chat{}, &tgbotapi.Error{Code: 400, Message: "chat not found"}
	}
	return c, nil
}

func (m *mockBot) GetChatMembersCount(config tgbotapi.ChatMemberCountConfig) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.memberCalls++
	n, ok := m.members[config.ChatID]
	if !ok {
		return 0, errors.New("no count")
	}
	return n, nil
}

func testArchive(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestAdapter(t *testing.T, bot *mockBot) (*Adapter, *store.DB) {
	t.Helper()
	archive := testArchive(t)
	a := New(Options{
		Bot:         bot,
		Archive:     archive,
		Token:       "TOKEN",
		OwnerUserID: owner,
		FilesDir:    filepath.Join(t.TempDir(), "files"),
	})
	t.Cleanup(a.Stop)
	return a, archive
}

var group = &tgbotapi.Chat{ID: -100, Type: "supergroup", Title: "Ops"}

func groupMessage(id int, from int64, date int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: id,
		From:      &tgbotapi.User{ID: from, FirstName: "U"},
		Chat:      group,
		Date:      date,
		Text:      text,
	}
}

func kinds(us []tg.Update) []string {
	out := make([]string, len(us))
	for i, u := range us {
		out[i] = u.UpdateKind()
	}
	return out
}

func TestTranslateMessageSequence(t *testing.T) {
	bot := newMockBot()
	bot.members[-100] = 12
	a, _ := newTestAdapter(t, bot)

	first := a.translate(context.Background(), tgbotapi.Update{UpdateID: 1, Message: groupMessage(1, 7, 1000, "hi")})
	want := []string{"new_chat", "user_updated", "chat_last_message", "chat_read_inbox"}
	if got := kinds(first); len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("kinds = %v, want %v", got, want)
			}
		}
	}

	nc := first[0].(tg.NewChat)
	if nc.Chat.MemberCount != 12 || nc.Chat.Type != tg.ChatSupergroup || nc.Chat.Title != "Ops" {
		t.Errorf("new chat = %+v", nc.Chat)
	}
	lm := first[2].(tg.ChatLastMessage)
	if pos, ok := tg.MainPosition(lm.Positions); !ok || pos.Order != 1000 {
		t.Errorf("positions = %+v, want main order 1000", lm.Positions)
	}
	if ri := first[3].(tg.ChatReadInbox); ri.UnreadCount != 1 {
		t.Errorf("unread = %d, want 1", ri.UnreadCount)
	}

	second := a.translate(context.Background(), tgbotapi.Update{UpdateID: 2, Message: groupMessage(2, 7, 1010, "again")})
	if len(second) != 3 {
		t.Fatalf("second message kinds = %v, want no new_chat", kinds(second))
	}
	if ri := second[2].(tg.ChatReadInbox); ri.UnreadCount != 2 {
		t.Errorf("unread = %d, want 2", ri.UnreadCount)
	}

	reply := a.translate(context.Background(), tgbotapi.Update{UpdateID: 3, Message: groupMessage(3, owner, 1020, "on it")})
	if lm := reply[1].(tg.ChatLastMessage); !lm.LastMessage.Outgoing {
		t.Error("owner message should be outgoing")
	}
	if ri := reply[2].(tg.ChatReadInbox); ri.UnreadCount != 0 {
		t.Errorf("unread after owner reply = %d, want 0", ri.UnreadCount)
	}
}

func TestTranslateMembershipAndEdits(t *testing.T) {
	bot := newMockBot()
	a, _ := newTestAdapter(t, bot)

	kicked := a.translate(context.Background(), tgbotapi.Update{MyChatMember: &tgbotapi.ChatMemberUpdated{
		Chat:          *group,
		Date:          2000,
		NewChatMember: tgbotapi.ChatMember{Status: "kicked"},
	}})
	if len(kicked) != 1 {
		t.Fatalf("kicked = %v", kinds(kicked))
	}
	if r, ok := kicked[0].(tg.ChatRemovedFromList); !ok || r.List != tg.ListMain || r.ChatID != -100 {
		t.Errorf("kicked = %+v", kicked[0])
	}

	edited := a.translate(context.Background(), tgbotapi.Update{EditedMessage: groupMessage(1, 7, 1000, "fixed")})
	if e, ok := edited[0].(tg.MessageEdited); !ok || e.Message.Text != "fixed" {
		t.Errorf("edit = %+v", edited)
	}

	post := a.translate(context.Background(), tgbotapi.Update{ChannelPost: &tgbotapi.Message{
		MessageID: 9,
		Chat:      &tgbotapi.Chat{ID: -200, Type: "channel", Title: "News"},
		Date:      3000,
		Photo:     []tgbotapi.PhotoSize{{FileID: "p"}},
	}})
	nc := post[0].(tg.NewChat)
	if !nc.Chat.IsChannelChat() {
		t.Errorf("channel chat = %+v", nc.Chat)
	}
	lm := post[1].(tg.ChatLastMessage)
	if lm.LastMessage.Media != tg.MediaPhoto || lm.LastMessage.Sender.Kind != tg.SenderChat {
		t.Errorf("channel post = %+v", lm.LastMessage)
	}
}

func TestPollCheckpointsAndStops(t *testing.T) {
	bot := newMockBot()
	a, archive := newTestAdapter(t, bot)
	if err := archive.SetCheckpoint(store.KeyUpdateOffset, 5); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := a.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if bot.lastConfig.Offset != 5 {
		t.Errorf("offset = %d, want 5", bot.lastConfig.Offset)
	}

	first := <-a.Updates()
	if s, ok := first.(tg.AuthorizationState); !ok || s.State != tg.AuthReady {
		t.Fatalf("first update = %+v, want ready", first)
	}

	bot.updatesChan <- tgbotapi.Update{UpdateID: 5, Message: groupMessage(1, 7, 1000, "hi")}
	for i := 0; i < 4; i++ {
		select {
		case <-a.Updates():
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for updates")
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, _ := archive.Checkpoint(store.KeyUpdateOffset)
		if n == 6 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("checkpoint = %d, want 6", n)
		}
		time.Sleep(5 * time.Millisecond)
	}

	a.Stop()
	if _, ok := <-a.Updates(); ok {
		t.Error("update stream still open after Stop")
	}
	if !bot.stopped {
		t.Error("bot polling not stopped")
	}
}

func TestLoadChatsReplaysArchive(t *testing.T) {
	bot := newMockBot()
	a, archive := newTestAdapter(t, bot)
	if err := archive.UpsertChat(tg.Chat{ID: -100, Title: "Ops", Type: tg.ChatSupergroup}); err != nil {
		t.Fatal(err)
	}
	m := toMessage(groupMessage(1, 7, 1000, "hi"), owner)
	if err := archive.UpsertMessage(m); err != nil {
		t.Fatal(err)
	}

	if err := a.LoadChats(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	nc := (<-a.Updates()).(tg.NewChat)
	if nc.Chat.LastMessage == nil || nc.Chat.LastMessage.Text != "hi" {
		t.Errorf("replayed chat = %+v", nc.Chat)
	}
	if pos, _ := tg.MainPosition(nc.Positions); pos.Order != 1000 {
		t.Errorf("order = %d, want 1000", pos.Order)
	}

	// A replayed chat is not announced again by the next live message.
	if got := a.translate(context.Background(), tgbotapi.Update{Message: groupMessage(2, 7, 1001, "x")}); got[0].UpdateKind() == "new_chat" {
		t.Error("replayed chat announced twice")
	}
}

func TestHistoryAndSearchFromArchive(t *testing.T) {
	a, archive := newTestAdapter(t, newMockBot())
	for i, text := range []string{"invoice sent", "lunch?", "invoice paid"} {
		if err := archive.UpsertMessage(toMessage(groupMessage(i+1, 7, 1000+i, text), owner)); err != nil {
			t.Fatal(err)
		}
	}

	hist, err := a.ChatHistory(context.Background(), -100, 2)
	if err != nil || len(hist) != 2 || hist[0].Text != "invoice paid" {
		t.Errorf("ChatHistory() = %+v, %v", hist, err)
	}
	found, err := a.SearchChatMessages(context.Background(), -100, "invoice", 10)
	if err != nil || len(found) != 2 {
		t.Errorf("SearchChatMessages() = %+v, %v", found, err)
	}
}

type rewriteTransport struct {
	target *url.URL
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = rt.target.Scheme
	req.URL.Host = rt.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestDownloadFile(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.URL.Path != "/file/botTOKEN/photos/a.jpg" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, "jpegdata")
	}))
	defer srv.Close()
	target, _ := url.Parse(srv.URL)

	bot := newMockBot()
	bot.files["f1"] = tgbotapi.File{FileID: "f1", FileUniqueID: "u1", FilePath: "photos/a.jpg"}
	a := New(Options{
		Bot:        bot,
		Archive:    testArchive(t),
		Token:      "TOKEN",
		FilesDir:   filepath.Join(t.TempDir(), "files"),
		HTTPClient: &http.Client{Transport: rewriteTransport{target: target}},
	})

	path, err := a.DownloadFile(context.Background(), "f1")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "u1.jpg" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "jpegdata" {
		t.Errorf("file = %q, %v", data, err)
	}

	if _, err := a.DownloadFile(context.Background(), "f1"); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Errorf("downloads = %d, want 1 (cached)", hits)
	}

	_, err = a.DownloadFile(context.Background(), "missing")
	if apperr.StatusCode(err) != 400 {
		t.Errorf("missing file error = %v, want http 400", err)
	}
}

func TestUserLookup(t *testing.T) {
	bot := newMockBot()
	bot.chats[9] = tgbotapi.Chat{ID: 9, Type: "private", FirstName: "Dee"}
	a, archive := newTestAdapter(t, bot)
	if err := archive.UpsertUser(tg.User{ID: 8, FirstName: "Cy"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id      int64
		want    string
		wantErr error
	}{
		{8, "Cy", nil},
		{9, "Dee", nil},
		{10, "", ErrUnknownUser},
	}
	for _, tt := range tests {
		u, err := a.User(context.Background(), tt.id)
		if !errors.Is(err, tt.wantErr) || u.FirstName != tt.want {
			t.Errorf("User(%d) = %+v, %v", tt.id, u, err)
		}
		if tt.wantErr != nil && !apperr.IsTerminal(err) {
			t.Errorf("User(%d) miss should not be retried: %v", tt.id, err)
		}
	}
}

func TestMapError(t *testing.T) {
	err := mapError("op", &tgbotapi.Error{Code: 401, Message: "Unauthorized"})
	if !apperr.IsTerminal(err) {
		t.Errorf("401 should be terminal: %v", err)
	}
	err = mapError("op", &tgbotapi.Error{Code: 429, Message: "Too Many Requests"})
	if apperr.IsTerminal(err) || apperr.StatusCode(err) != 429 {
		t.Errorf("429 should be retryable http error: %v", err)
	}
	plain := errors.New("dial tcp")
	if got := mapError("op", plain); got != plain {
		t.Errorf("network errors pass through, got %v", got)
	}
}

func TestMemberCountIsRateLimited(t *testing.T) {
	bot := newMockBot()
	bot.members[-100] = 12
	bot.members[-200] = 30
	limiter := ratelimit.New(1, 0.001)
	a := New(Options{Bot: bot, Archive: testArchive(t), Limiter: limiter, OwnerUserID: owner})
	t.Cleanup(a.Stop)

	first := a.translate(context.Background(), tgbotapi.Update{Message: groupMessage(1, 7, 1000, "hi")})
	if nc := first[0].(tg.NewChat); nc.Chat.MemberCount != 12 {
		t.Errorf("member count = %d, want 12", nc.Chat.MemberCount)
	}
	if limiter.Available() >= 1 {
		t.Error("member count lookup did not take a token")
	}

	// The bucket is empty, so the second group is announced without a count.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	other := &tgbotapi.Message{MessageID: 1, From: &tgbotapi.User{ID: 7}, Chat: &tgbotapi.Chat{ID: -200, Type: "group", Title: "Dev"}, Date: 1001, Text: "yo"}
	second := a.translate(ctx, tgbotapi.Update{Message: other})
	if nc := second[0].(tg.NewChat); nc.Chat.MemberCount != 0 {
		t.Errorf("member count = %d, want unknown", nc.Chat.MemberCount)
	}
	bot.mu.Lock()
	calls := bot.memberCalls
	bot.mu.Unlock()
	if calls != 1 {
		t.Errorf("GetChatMembersCount calls = %d, want 1", calls)
	}
}
