// Package archive persists the chat state to the local store and loads it
// back on startup.
package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/store"
)

const (
	activeContactKey = "active_contact"
	// historyPerContact bounds how much of each conversation is loaded.
	historyPerContact = 500
)

// Engine mirrors chat.* events into the store. It subscribes on the bus and
// processes events on its own goroutine.
type Engine struct {
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// NewEngine creates a new archive engine.
func NewEngine(db *store.DB, b *bus.Bus, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{db: db, bus: b, logger: logger}
}

// Start subscribes to chat events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	e.done = make(chan struct{})
	ch, unsub := e.bus.Subscribe("chat.", 1024)

	go func() {
		defer close(e.done)
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				unsub()
				e.drain(ch)
				return
			}
		}
	}()
}

// Stop stops the engine once every event already delivered to it is
// written.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
	}
}

func (e *Engine) drain(ch <-chan bus.Event) {
	for {
		select {
		case evt := <-ch:
			e.handleEvent(evt)
		default:
			return
		}
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	var err error
	switch p := evt.Payload.(type) {
	case chat.ContactUpdated:
		err = e.db.UpsertContact(contactToStore(p.Contact))
	case chat.MessageAppended:
		err = e.db.UpsertMessage(messageToStore(p.Message))
	case chat.MessageUpdated:
		err = e.IngestUpdate(p)
	case chat.MessageRemoved:
		err = e.db.DeleteMessage(p.ID)
	case chat.ActiveChanged:
		err = e.db.SetValue(activeContactKey, p.ContactID)
	default:
		return
	}
	if err != nil {
		e.logger.Error("archive write failed", zap.String("kind", evt.Kind), zap.Error(err))
	}
}

// IngestUpdate stores an updated message, renaming the provisional row when
// the update carries the server id.
func (e *Engine) IngestUpdate(u chat.MessageUpdated) error {
	m := messageToStore(u.Message)
	if u.PrevID != "" && u.PrevID != m.ID {
		if err := e.db.ReconcileMessage(u.PrevID, m.ID, m.Status); err != nil {
			return fmt.Errorf("reconcile %s: %w", u.PrevID, err)
		}
	}
	if err := e.db.UpsertMessage(m); err != nil {
		return fmt.Errorf("upsert message: %w", err)
	}
	return nil
}

// Load reads the archive back as a seed for the chat state.
func (e *Engine) Load(ctx context.Context) (chat.Seed, error) {
	var seed chat.Seed
	contacts, err := e.db.ListContacts(0, 0)
	if err != nil {
		return seed, fmt.Errorf("list contacts: %w", err)
	}
	for _, c := range contacts {
		if err := ctx.Err(); err != nil {
			return seed, err
		}
		seed.Contacts = append(seed.Contacts, contactFromStore(c))
		msgs, err := e.db.RecentMessages(c.ID, historyPerContact)
		if err != nil {
			return seed, fmt.Errorf("list messages of %s: %w", c.ID, err)
		}
		for _, m := range msgs {
			seed.Messages = append(seed.Messages, messageFromStore(m))
		}
	}
	active, ok, err := e.db.GetValue(activeContactKey)
	if err != nil {
		return seed, fmt.Errorf("read active contact: %w", err)
	}
	if ok {
		seed.Active = active
	}
	e.logger.Info("archive loaded",
		zap.Int("contacts", len(seed.Contacts)),
		zap.Int("messages", len(seed.Messages)),
		zap.String("active", seed.Active),
	)
	return seed, nil
}
