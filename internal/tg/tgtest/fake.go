// Package tgtest provides an in-memory tg.Client for tests.
package tgtest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/tg"
)

// ErrNotFound is returned for unknown users.
var ErrNotFound = apperr.New(apperr.NotFound, "tgtest", errors.New("not found"))

// Client is a scripted, concurrency-safe fake platform.
type Client struct {
	mu          sync.Mutex
	updates     chan tg.Update
	histories   map[int64][]tg.Message
	historyErrs map[int64]error
	users       map[int64]tg.User
	me          tg.User
	files       map[string]string
	delay       time.Duration
	calls       map[string]int
	loadChats   func(limit int) []tg.Update
}

// New creates an empty fake with a buffered update stream.
func New() *Client {
	return &Client{
		updates:     make(chan tg.Update, 256),
		histories:   make(map[int64][]tg.Message),
		historyErrs: make(map[int64]error),
		users:       make(map[int64]tg.User),
		files:       make(map[string]string),
		calls:       make(map[string]int),
	}
}

// Push enqueues an update on the stream.
func (c *Client) Push(u tg.Update) { c.updates <- u }

// Close ends the update stream.
func (c *Client) Close() { close(c.updates) }

// SetHistory sets the messages returned for chatID, newest first.
func (c *Client) SetHistory(chatID int64, msgs []tg.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histories[chatID] = msgs
}

// FailHistory makes ChatHistory for chatID return err.
func (c *Client) FailHistory(chatID int64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyErrs[chatID] = err
}

// SetUser registers a user for User lookups.
func (c *Client) SetUser(u tg.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = u
}

// SetMe sets the local account.
func (c *Client) SetMe(u tg.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.me = u
}

// SetFile registers a downloadable file.
func (c *Client) SetFile(fileID, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[fileID] = path
}

// SetDelay makes every request block for d (or until ctx ends).
func (c *Client) SetDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delay = d
}

// OnLoadChats sets the updates pushed by LoadChats.
func (c *Client) OnLoadChats(fn func(limit int) []tg.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadChats = fn
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

func (c *Client) enter(ctx context.Context, op string) error {
	c.mu.Lock()
	c.calls[op]++
	d := c.delay
	c.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) Updates() <-chan tg.Update { return c.updates }

func (c *Client) LoadChats(ctx context.Context, limit int) error {
	if err := c.enter(ctx, "LoadChats"); err != nil {
		return err
	}
	c.mu.Lock()
	fn := c.loadChats
	c.mu.Unlock()
	if fn == nil {
		return nil
	}
	for _, u := range fn(limit) {
		c.updates <- u
	}
	return nil
}

func (c *Client) ChatHistory(ctx context.Context, chatID int64, limit int) ([]tg.Message, error) {
	if err := c.enter(ctx, "ChatHistory"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.historyErrs[chatID]; err != nil {
		return nil, err
	}
	msgs := c.histories[chatID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	out := make([]tg.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (c *Client) SearchMessages(ctx context.Context, query string, limit int) ([]tg.Message, error) {
	if err := c.enter(ctx, "SearchMessages"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []tg.Message
	for _, msgs := range c.histories {
		out = append(out, matching(msgs, query)...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) SearchChatMessages(ctx context.Context, chatID int64, query string, limit int) ([]tg.Message, error) {
	if err := c.enter(ctx, "SearchChatMessages"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := matching(c.histories[chatID], query)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) DownloadFile(ctx context.Context, fileID string) (string, error) {
	if err := c.enter(ctx, "DownloadFile"); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	path, ok := c.files[fileID]
	if !ok {
		return "", ErrNotFound
	}
	return path, nil
}

func (c *Client) User(ctx context.Context, userID int64) (tg.User, error) {
	if err := c.enter(ctx, "User"); err != nil {
		return tg.User{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	u, ok := c.users[userID]
	if !ok {
		return tg.User{}, ErrNotFound
	}
	return u, nil
}

func (c *Client) Me(ctx context.Context) (tg.User, error) {
	if err := c.enter(ctx, "Me"); err != nil {
		return tg.User{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.me, nil
}

func matching(msgs []tg.Message, query string) []tg.Message {
	q := strings.ToLower(query)
	var out []tg.Message
	for _, m := range msgs {
		if strings.Contains(strings.ToLower(m.Text), q) {
			out = append(out, m)
		}
	}
	return out
}
