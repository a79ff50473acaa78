// Package messenger wires the realtime connection, the chat state loop and
// the composer into one client.
package messenger

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/realtime"
	"github.com/matheus3301/gigchat/internal/status"
	"github.com/matheus3301/gigchat/internal/wire"
)

// Options configures a Client.
type Options struct {
	// Self is the local user's server-side id.
	Self               string
	TypingDebounce     time.Duration
	MaxAttachmentBytes int64
}

// Client is the messaging core used by the daemon.
type Client struct {
	mgr      *realtime.Manager
	loop     *chat.Loop
	bus      *bus.Bus
	ids      *chat.TempIDs
	composer *Composer
	logger   *zap.Logger
	now      func() time.Time
}

// New builds a client on top of mgr. Inbound handlers are registered here,
// so mgr must not be connected yet.
func New(mgr *realtime.Manager, b *bus.Bus, opts Options, logger *zap.Logger) *Client {
	c := &Client{
		mgr:    mgr,
		bus:    b,
		ids:    chat.NewTempIDs(),
		logger: logger,
		now:    time.Now,
	}
	c.loop = chat.NewLoop(chat.NewState(opts.Self), c.execute, logger.Named("chat"))
	c.composer = newComposer(mgr, c.SendContent, b, opts.TypingDebounce, opts.MaxAttachmentBytes, logger.Named("composer"))
	c.registerHandlers()
	return c
}

// Start runs the state loop and starts connecting.
func (c *Client) Start(ctx context.Context) error {
	c.loop.Start(ctx)
	return c.mgr.Connect(ctx)
}

// Stop withdraws typing, closes the link and stops the loop.
func (c *Client) Stop() {
	c.composer.Reset()
	if err := c.mgr.Close(); err != nil {
		c.logger.Warn("close realtime", zap.Error(err))
	}
	// Let the disconnect and ack failures raised by Close land in the state.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	_ = c.loop.View(ctx, func(*chat.State) {})
	cancel()
	c.loop.Stop()
}

// Composer returns the draft and typing controller.
func (c *Client) Composer() *Composer { return c.composer }

// IsConnected reports whether the realtime link is up.
func (c *Client) IsConnected() bool { return c.mgr.IsConnected() }

// LinkState returns the realtime link state.
func (c *Client) LinkState() status.State { return c.mgr.State() }

// QueuedFrames returns how many frames wait for the link.
func (c *Client) QueuedFrames() int { return c.mgr.Queued() }

// Seed loads contacts and history, typically from the local archive.
func (c *Client) Seed(ctx context.Context, seed chat.Seed) error {
	if err := c.loop.Do(ctx, seed); err != nil {
		return err
	}
	active, err := c.Active(ctx)
	if err != nil {
		return err
	}
	if active != "" {
		c.composer.SetTarget(active)
	}
	return nil
}

// SelectContact opens the conversation with id.
func (c *Client) SelectContact(ctx context.Context, id string) error {
	if err := c.loop.Do(ctx, chat.SelectContact{ID: id}); err != nil {
		return err
	}
	c.composer.SetTarget(id)
	return nil
}

// SendText sends text to the active contact and returns the temp id.
func (c *Client) SendText(ctx context.Context, text string) (string, error) {
	return c.SendContent(ctx, chat.Text(text))
}

// SendContent sends content to the active contact and returns the temp id
// of the optimistic message.
func (c *Client) SendContent(ctx context.Context, content chat.Content) (string, error) {
	id := c.ids.Next()
	if err := c.loop.Do(ctx, chat.SendLocal{TempID: id, Content: content, Now: c.now()}); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteMessage removes a message by server or temp id.
func (c *Client) DeleteMessage(ctx context.Context, id string) error {
	return c.loop.Do(ctx, chat.DeleteLocal{MessageID: id})
}

// ReplyTo quotes a message of the active conversation in the next send.
func (c *Client) ReplyTo(ctx context.Context, id string) error {
	return c.loop.Do(ctx, chat.SetReplyTarget{MessageID: id})
}

// ClearReply drops the reply target.
func (c *Client) ClearReply(ctx context.Context) error {
	return c.loop.Do(ctx, chat.ClearReply{})
}

// Snapshot is a consistent read of the client state.
type Snapshot struct {
	Active    string
	Connected bool
	Contacts  []chat.Contact
	Online    []string
	Reply     *chat.ReplyRef
}

// Snapshot reads everything but timelines in one pass.
func (c *Client) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.loop.View(ctx, func(s *chat.State) {
		snap = Snapshot{
			Active:    s.Active,
			Connected: s.Connected,
			Contacts:  s.Contacts(),
			Online:    s.OnlineIDs(),
			Reply:     s.ReplyTarget(),
		}
	})
	return snap, err
}

// Contacts lists contacts, most recent conversation first.
func (c *Client) Contacts(ctx context.Context) ([]chat.Contact, error) {
	var out []chat.Contact
	err := c.loop.View(ctx, func(s *chat.State) { out = s.Contacts() })
	return out, err
}

// Active returns the active contact id, or "".
func (c *Client) Active(ctx context.Context) (string, error) {
	var id string
	err := c.loop.View(ctx, func(s *chat.State) { id = s.Active })
	return id, err
}

// Timeline returns the messages with contactID; "" means the active contact.
func (c *Client) Timeline(ctx context.Context, contactID string) ([]chat.Message, error) {
	var out []chat.Message
	err := c.loop.View(ctx, func(s *chat.State) {
		if contactID == "" {
			out = s.VisibleTimeline()
			return
		}
		out = s.Timeline(contactID)
	})
	return out, err
}

// Online returns the online set.
func (c *Client) Online(ctx context.Context) ([]string, error) {
	var out []string
	err := c.loop.View(ctx, func(s *chat.State) { out = s.OnlineIDs() })
	return out, err
}

func (c *Client) registerHandlers() {
	c.mgr.On(wire.EventConnect, func(wire.Frame) {
		c.loop.Dispatch(chat.ConnectionChanged{Connected: true})
	})
	c.mgr.On(wire.EventDisconnect, func(f wire.Frame) {
		var r wire.Reason
		_ = f.Decode(&r)
		c.logger.Info("disconnected", zap.String("reason", r.Reason))
		c.loop.Dispatch(chat.ConnectionChanged{Connected: false})
	})
	c.mgr.On(wire.EventConnectError, func(f wire.Frame) {
		var r wire.Reason
		_ = f.Decode(&r)
		c.logger.Warn("connect error", zap.String("reason", r.Reason))
	})
	c.mgr.On(wire.EventAuthenticated, func(wire.Frame) {
		c.logger.Info("authenticated")
	})
	c.mgr.On(wire.EventError, func(f wire.Frame) {
		var e wire.ServerError
		if err := f.Decode(&e); err != nil {
			e.Message = string(f.Data)
		}
		c.logger.Warn("server error", zap.String("message", e.Message))
		c.bus.Emit(bus.KindServerError, e.Message)
	})

	c.mgr.On(wire.EventNewMessage, func(f wire.Frame) {
		var m wire.NewMessage
		if !c.decode(f, &m) {
			return
		}
		c.loop.Dispatch(chat.Incoming{Msg: m, Received: c.now()})
	})
	c.mgr.On(wire.EventMessageDelivered, func(f wire.Frame) {
		var r wire.Receipt
		if !c.decode(f, &r) {
			return
		}
		c.loop.Dispatch(chat.Receipt{MessageID: r.MessageID, Status: chat.Delivered})
	})
	c.mgr.On(wire.EventMessageRead, func(f wire.Frame) {
		var r wire.Receipt
		if !c.decode(f, &r) {
			return
		}
		c.loop.Dispatch(chat.Receipt{MessageID: r.MessageID, Status: chat.Read})
	})
	c.mgr.On(wire.EventTyping, func(f wire.Frame) {
		var t wire.TypingIn
		if !c.decode(f, &t) {
			return
		}
		c.loop.Dispatch(chat.Typing{SenderID: t.SenderID, IsTyping: t.IsTyping})
	})
	c.mgr.On(wire.EventOnlineUsers, func(f wire.Frame) {
		var o wire.OnlineUsers
		if !c.decode(f, &o) {
			return
		}
		c.loop.Dispatch(chat.OnlineSnapshot{IDs: o.IDs})
	})
	c.mgr.On(wire.EventUserOnline, func(f wire.Frame) {
		var p wire.UserPresence
		if !c.decode(f, &p) {
			return
		}
		c.loop.Dispatch(chat.UserOnline{ID: p.UserID})
	})
	c.mgr.On(wire.EventUserOffline, func(f wire.Frame) {
		var p wire.UserPresence
		if !c.decode(f, &p) {
			return
		}
		c.loop.Dispatch(chat.UserOffline{ID: p.UserID})
	})
}

func (c *Client) decode(f wire.Frame, v any) bool {
	if err := f.Decode(v); err != nil {
		c.logger.Warn("ignoring malformed event", zap.String("event", f.Event), zap.Error(err))
		return false
	}
	return true
}

// execute runs on the loop goroutine. Ack callbacks come back as actions.
func (c *Client) execute(fx chat.Effects) {
	for _, e := range fx.Emits {
		var err error
		if e.Volatile {
			err = c.mgr.EmitVolatile(e.Event, e.Payload)
		} else {
			err = c.mgr.Emit(e.Event, e.Payload)
		}
		if err != nil {
			c.logger.Debug("emit skipped", zap.String("event", e.Event), zap.Error(err))
			if e.OnFail != nil {
				c.loop.Dispatch(e.OnFail)
			}
		}
	}
	for _, req := range fx.Sends {
		tempID := req.TempID
		err := c.mgr.EmitWithAck(wire.EventSendMessage, req.Payload, func(ack wire.Ack, err error) {
			c.loop.Dispatch(sendAcked(tempID, ack, err))
		})
		if err != nil {
			c.logger.Warn("send not queued", zap.String("temp_id", tempID), zap.Error(err))
			c.loop.Dispatch(chat.SendAcked{TempID: tempID, Failed: true, Reason: err.Error()})
		}
	}
	for _, req := range fx.Deletes {
		id := req.MessageID
		err := c.mgr.EmitWithAck(wire.EventDeleteMessage, wire.DeleteMessage{MessageID: id}, func(_ wire.Ack, err error) {
			c.loop.Dispatch(deleteSettled(id, err))
		})
		if err != nil {
			c.logger.Warn("delete not queued", zap.String("message_id", id), zap.Error(err))
			c.loop.Dispatch(chat.DeleteSettled{MessageID: id, Rejected: true, Reason: err.Error()})
		}
	}
	for _, n := range fx.Notices {
		c.bus.Publish(n)
	}
}

func sendAcked(tempID string, ack wire.Ack, err error) chat.SendAcked {
	if err != nil {
		return chat.SendAcked{TempID: tempID, Failed: true, Reason: err.Error()}
	}
	return chat.SendAcked{TempID: tempID, ServerID: ack.MessageID}
}

// deleteSettled restores the message only when the server said no. A lost
// ack is taken as success.
func deleteSettled(id string, err error) chat.DeleteSettled {
	var rej *realtime.RejectedError
	if errors.As(err, &rej) {
		return chat.DeleteSettled{MessageID: id, Rejected: true, Reason: rej.Reason}
	}
	return chat.DeleteSettled{MessageID: id}
}
