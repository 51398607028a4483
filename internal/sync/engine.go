// Package sync is the single writer of the chat state: it drains the
// platform update stream in order, applies each update, archives what it
// carries and announces coarse changes on the bus.
package sync

import (
	"context"
	"fmt"

	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/state"
	"github.com/matheus3301/tgtriage/internal/status"
	"github.com/matheus3301/tgtriage/internal/store"
	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
)

const injectBuffer = 64

// Engine applies updates on one goroutine. Updates from the platform and
// injected updates share that goroutine, so Apply never runs concurrently.
type Engine struct {
	client tg.Client
	state  *state.Store
	status *status.Machine
	db     *store.DB // nil disables archiving
	bus    *bus.Bus
	logger *zap.Logger

	inject chan tg.Update
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new sync engine.
func NewEngine(client tg.Client, st *state.Store, machine *status.Machine, db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		client: client,
		state:  st,
		status: machine,
		db:     db,
		bus:    b,
		logger: logger.Named("sync"),
		inject: make(chan tg.Update, injectBuffer),
		done:   make(chan struct{}),
	}
}

// Start begins draining the update stream.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	updates := e.client.Updates()

	go func() {
		defer close(e.done)
		for {
			select {
			case u, ok := <-updates:
				if !ok {
					e.logger.Info("update stream closed")
					return
				}
				e.handle(u)
			case u := <-e.inject:
				e.handle(u)
			case <-ctx.Done():
				e.drain(updates)
				return
			}
		}
	}()
}

// drain applies what is already buffered. The adapter commits its offset
// once an update is queued, so anything dropped here would never return.
func (e *Engine) drain(updates <-chan tg.Update) {
	n := 0
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			e.handle(u)
			n++
		case u := <-e.inject:
			e.handle(u)
			n++
		default:
			if n > 0 {
				e.logger.Info("drained pending updates", zap.Int("count", n))
			}
			return
		}
	}
}

// Stop stops the engine and waits for the writer goroutine to exit. Updates
// already buffered are applied first; stop the producer before calling it.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.done
}

// Done is closed when the writer goroutine exits.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Inject queues a synthetic update behind the ones already pending. It
// never blocks; when the queue is full the update is dropped.
func (e *Engine) Inject(u tg.Update) {
	select {
	case e.inject <- u:
	default:
		e.logger.Debug("inject queue full, dropping update", zap.String("kind", u.UpdateKind()))
	}
}

func (e *Engine) handle(u tg.Update) {
	if auth, ok := u.(tg.AuthorizationState); ok {
		if err := e.status.Transition(auth.State); err != nil {
			e.logger.Warn("ignoring authorization update", zap.Error(err))
		}
		return
	}

	changed := e.state.Apply(u)
	if err := e.archive(u); err != nil {
		e.logger.Error("failed to archive update", zap.String("kind", u.UpdateKind()), zap.Error(err))
	}

	switch u := u.(type) {
	case tg.UserUpdated:
		e.bus.Emit(bus.KindUsersChanged, u.User.ID)
	default:
		if changed {
			e.bus.Emit(bus.KindChatsChanged, bus.ChatsChanged{
				ChatID:  chatIDOf(u),
				Update:  u.UpdateKind(),
				Version: e.state.Stats().Version,
			})
		}
	}
}

// archive persists what an update carries. It is idempotent, so replayed
// updates are harmless.
func (e *Engine) archive(u tg.Update) error {
	if e.db == nil {
		return nil
	}
	switch u := u.(type) {
	case tg.NewChat:
		if err := e.db.UpsertChat(u.Chat); err != nil {
			return fmt.Errorf("upsert chat: %w", err)
		}
		if u.Chat.LastMessage != nil {
			return e.archiveMessage(*u.Chat.LastMessage)
		}
	case tg.ChatLastMessage:
		if u.LastMessage != nil {
			return e.archiveMessage(*u.LastMessage)
		}
	case tg.MessageEdited:
		return e.archiveMessage(u.Message)
	case tg.UserUpdated:
		if err := e.db.UpsertUser(u.User); err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}
	}
	return nil
}

func (e *Engine) archiveMessage(m tg.Message) error {
	if err := e.db.UpsertMessage(m); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	e.bus.Emit(bus.KindMessageStored, bus.MessageArchived{ChatID: m.ChatID, MessageID: m.ID})
	return nil
}

func chatIDOf(u tg.Update) int64 {
	switch u := u.(type) {
	case tg.NewChat:
		return u.Chat.ID
	case tg.ChatLastMessage:
		return u.ChatID
	case tg.ChatPosition:
		return u.ChatID
	case tg.ChatRemovedFromList:
		return u.ChatID
	case tg.ChatReadInbox:
		return u.ChatID
	case tg.MessageEdited:
		return u.Message.ChatID
	}
	return 0
}
