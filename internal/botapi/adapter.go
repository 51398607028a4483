package botapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/ratelimit"
	"github.com/matheus3301/tgtriage/internal/store"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
)

// ErrUnknownUser is returned when a user was never seen by the bot. It is
// a definitive answer, so callers do not retry it.
var ErrUnknownUser = apperr.New(apperr.NotFound, "botapi.user", errors.New("unknown user"))

var allowedUpdates = []string{"message", "edited_message", "channel_post", "edited_channel_post", "my_chat_member"}

// Options configures an Adapter. Bot and Archive are required. Limiter
// gates the requests the poll loop makes on its own.
type Options struct {
	Bot         Bot
	Archive     *store.DB
	Limiter     *ratelimit.Limiter
	Token       string // for file download links
	OwnerUserID int64
	PollTimeout int // seconds
	FilesDir    string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Adapter turns Bot API long polling into an ordered tg.Update stream.
type Adapter struct {
	bot        Bot
	archive    *store.DB
	limiter    *ratelimit.Limiter
	token      string
	owner      int64
	timeout    int
	filesDir   string
	httpClient *http.Client
	logger     *zap.Logger

	out      chan tg.Update
	stopping chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once

	sendMu sync.RWMutex
	closed bool

	mu     sync.Mutex
	seen   map[int64]bool
	unread map[int64]int
}

var _ tg.Client = (*Adapter)(nil)

func New(opts Options) *Adapter {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := opts.PollTimeout
	if timeout <= 0 {
		timeout = 30
	}
	return &Adapter{
		bot:        opts.Bot,
		archive:    opts.Archive,
		limiter:    opts.Limiter,
		token:      opts.Token,
		owner:      opts.OwnerUserID,
		timeout:    timeout,
		filesDir:   opts.FilesDir,
		httpClient: client,
		logger:     logger.Named("botapi"),
		out:        make(chan tg.Update, 256),
		stopping:   make(chan struct{}),
		done:       make(chan struct{}),
		seen:       make(map[int64]bool),
		unread:     make(map[int64]int),
	}
}

// Start announces the authorized session and begins polling from the
// checkpointed offset.
func (a *Adapter) Start(ctx context.Context) error {
	offset, err := a.archive.Checkpoint(store.KeyUpdateOffset)
	if err != nil {
		return fmt.Errorf("read update offset: %w", err)
	}

	self := a.bot.GetSelf()
	a.logger.Info("authorized", zap.String("bot", self.UserName), zap.Int64("offset", offset))
	a.emit(ctx, tg.AuthorizationState{State: tg.AuthReady})

	cfg := tgbotapi.NewUpdate(int(offset))
	cfg.Timeout = a.timeout
	cfg.AllowedUpdates = allowedUpdates
	updates := a.bot.GetUpdatesChan(cfg)

	a.started.Store(true)
	go a.poll(ctx, updates)
	return nil
}

func (a *Adapter) poll(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stopping:
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			for _, u := range a.translate(ctx, upd) {
				if !a.emit(ctx, u) {
					return
				}
			}
			if err := a.archive.SetCheckpoint(store.KeyUpdateOffset, int64(upd.UpdateID)+1); err != nil {
				a.logger.Warn("checkpoint failed", zap.Int("update_id", upd.UpdateID), zap.Error(err))
			}
		}
	}
}

// Stop ends polling and closes the update stream. It is safe to call more
// than once and before Start.
func (a *Adapter) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopping)
		a.bot.StopReceivingUpdates()

		if a.started.Load() {
			select {
			case <-a.done:
			case <-time.After(5 * time.Second):
				a.logger.Warn("poll loop did not stop in time")
			}
		}

		a.sendMu.Lock()
		a.closed = true
		close(a.out)
		a.sendMu.Unlock()
	})
}

func (a *Adapter) emit(ctx context.Context, u tg.Update) bool {
	a.sendMu.RLock()
	defer a.sendMu.RUnlock()
	if a.closed {
		return false
	}
	select {
	case a.out <- u:
		return true
	case <-ctx.Done():
		return false
	case <-a.stopping:
		return false
	}
}

// translate maps one Bot API update onto the ordered tg updates it implies.
func (a *Adapter) translate(ctx context.Context, upd tgbotapi.Update) []tg.Update {
	switch {
	case upd.Message != nil:
		return a.onMessage(ctx, upd.Message)
	case upd.ChannelPost != nil:
		return a.onMessage(ctx, upd.ChannelPost)
	case upd.EditedMessage != nil:
		return a.onEdit(upd.EditedMessage)
	case upd.EditedChannelPost != nil:
		return a.onEdit(upd.EditedChannelPost)
	case upd.MyChatMember != nil:
		return a.onMembership(ctx, upd.MyChatMember)
	}
	return nil
}

func (a *Adapter) onMessage(ctx context.Context, m *tgbotapi.Message) []tg.Update {
	if m.Chat == nil {
		return nil
	}
	msg := toMessage(m, a.owner)

	var out []tg.Update
	if u, ok := a.announce(ctx, m.Chat, msg.Date); ok {
		out = append(out, u)
	}
	if m.From != nil {
		out = append(out, tg.UserUpdated{User: toUser(m.From)})
	}

	a.mu.Lock()
	if msg.Outgoing {
		a.unread[msg.ChatID] = 0
	} else {
		a.unread[msg.ChatID]++
	}
	unread := a.unread[msg.ChatID]
	a.mu.Unlock()

	return append(out,
		tg.ChatLastMessage{ChatID: msg.ChatID, LastMessage: &msg, Positions: mainAt(msg.Date)},
		tg.ChatReadInbox{ChatID: msg.ChatID, UnreadCount: unread},
	)
}

func (a *Adapter) onEdit(m *tgbotapi.Message) []tg.Update {
	if m.Chat == nil {
		return nil
	}
	return []tg.Update{tg.MessageEdited{Message: toMessage(m, a.owner)}}
}

func (a *Adapter) onMembership(ctx context.Context, cm *tgbotapi.ChatMemberUpdated) []tg.Update {
	at := time.Unix(int64(cm.Date), 0).UTC()
	switch cm.NewChatMember.Status {
	case "left", "kicked":
		return []tg.Update{tg.ChatRemovedFromList{ChatID: cm.Chat.ID, List: tg.ListMain}}
	case "member", "administrator", "creator", "restricted":
		if u, ok := a.announce(ctx, &cm.Chat, at); ok {
			return []tg.Update{u}
		}
		return []tg.Update{tg.ChatPosition{ChatID: cm.Chat.ID, Position: mainAt(at)[0]}}
	}
	return nil
}

// announce returns NewChat the first time a chat is seen. A group's member
// count is fetched once; it stays unknown when no token can be had.
func (a *Adapter) announce(ctx context.Context, c *tgbotapi.Chat, at time.Time) (tg.Update, bool) {
	a.mu.Lock()
	seen := a.seen[c.ID]
	a.seen[c.ID] = true
	a.mu.Unlock()
	if seen {
		return nil, false
	}

	chat := toChat(c)
	if chat.IsGroup() {
		n, err := a.memberCount(ctx, c.ID)
		if err != nil {
			a.logger.Debug("member count unavailable", zap.Int64("chat_id", c.ID), zap.Error(err))
		} else {
			chat.MemberCount = n
		}
	}
	return tg.NewChat{Chat: chat, Positions: mainAt(at)}, true
}

func (a *Adapter) memberCount(ctx context.Context, chatID int64) (int, error) {
	if a.limiter != nil {
		if err := a.limiter.Acquire(ctx); err != nil {
			return 0, err
		}
	}
	return a.bot.GetChatMembersCount(tgbotapi.ChatMemberCountConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
}

func (a *Adapter) Updates() <-chan tg.Update { return a.out }

// LoadChats replays up to limit archived chats with their latest message,
// so a restarted daemon shows the list before new updates arrive.
func (a *Adapter) LoadChats(ctx context.Context, limit int) error {
	records, err := a.archive.ListChats(limit)
	if err != nil {
		return fmt.Errorf("list archived chats: %w", err)
	}
	for _, r := range records {
		a.mu.Lock()
		a.seen[r.Chat.ID] = true
		a.mu.Unlock()

		update := tg.NewChat{Chat: r.Chat}
		if r.LastMessageAt > 0 {
			update.Positions = mainAt(time.Unix(r.LastMessageAt, 0))
			latest, err := a.archive.ListMessages(r.Chat.ID, time.Time{}, 1)
			if err != nil {
				return fmt.Errorf("latest message of %d: %w", r.Chat.ID, err)
			}
			if len(latest) == 1 {
				update.Chat.LastMessage = &latest[0]
			}
		}
		if !a.emit(ctx, update) {
			return ctx.Err()
		}
	}
	return nil
}

func (a *Adapter) ChatHistory(ctx context.Context, chatID int64, limit int) ([]tg.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return a.archive.ListMessages(chatID, time.Time{}, limit)
}

func (a *Adapter) SearchMessages(ctx context.Context, query string, limit int) ([]tg.Message, error) {
	return a.search(ctx, 0, query, limit)
}

func (a *Adapter) SearchChatMessages(ctx context.Context, chatID int64, query string, limit int) ([]tg.Message, error) {
	return a.search(ctx, chatID, query, limit)
}

func (a *Adapter) search(ctx context.Context, chatID int64, query string, limit int) ([]tg.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results, err := a.archive.SearchMessages(query, chatID, limit)
	if err != nil {
		return nil, err
	}
	return store.Messages(results), nil
}

// DownloadFile resolves fileID through the Bot API and stores it under the
// session's files directory. Already downloaded files are not fetched again.
func (a *Adapter) DownloadFile(ctx context.Context, fileID string) (string, error) {
	file, err := a.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", mapError("botapi.get_file", err)
	}

	name := file.FileUniqueID
	if name == "" {
		name = strings.NewReplacer("/", "_", "\\", "_").Replace(fileID)
	}
	path := filepath.Join(a.filesDir, name+filepath.Ext(file.FilePath))
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(a.token), nil)
	if err != nil {
		return "", err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", mapError("botapi.download", &tgbotapi.Error{Code: resp.StatusCode, Message: resp.Status})
	}

	if err := os.MkdirAll(a.filesDir, 0700); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(a.filesDir, ".download-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}

// User serves archived users, falling back to the private chat with the
// bot, which exists only if the user has talked to it.
func (a *Adapter) User(ctx context.Context, userID int64) (tg.User, error) {
	if err := ctx.Err(); err != nil {
		return tg.User{}, err
	}
	u, err := a.archive.GetUser(userID)
	if err != nil {
		return tg.User{}, err
	}
	if u != nil {
		return *u, nil
	}
	chat, err := a.bot.GetChat(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: userID}})
	if err != nil || chat.Type != "private" {
		return tg.User{}, ErrUnknownUser
	}
	return tg.User{ID: chat.ID, FirstName: chat.FirstName, LastName: chat.LastName, Username: chat.UserName}, nil
}

// Me returns the owner when known, else the bot account.
func (a *Adapter) Me(ctx context.Context) (tg.User, error) {
	if a.owner != 0 {
		if u, err := a.User(ctx, a.owner); err == nil {
			return u, nil
		}
	}
	self := a.bot.GetSelf()
	return toUser(&self), nil
}
