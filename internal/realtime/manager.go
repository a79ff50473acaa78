// Package realtime owns the single realtime link to the chat server: it dials,
// authenticates, keeps the link alive, reconnects after drops, and routes
// inbound events and acknowledgements.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/status"
	"github.com/matheus3301/gigchat/internal/wire"
)

// HandlerFunc receives an inbound or locally raised event. Handlers run on
// the link's read goroutine and must not block.
type HandlerFunc func(wire.Frame)

// AckFunc receives the outcome of EmitWithAck. err is nil, a *RejectedError,
// ErrAckTimeout or ErrClosed.
type AckFunc func(ack wire.Ack, err error)

type outbound struct {
	frame    wire.Frame
	volatile bool
}

type pendingAck struct {
	event string
	fn    AckFunc
	timer *time.Timer
}

type link struct {
	conn   socket.Conn
	send   chan outbound
	done   chan struct{}
	once   sync.Once
	failed *outbound
}

// Manager is the connection manager. It is safe for concurrent use.
type Manager struct {
	cfg     Config
	dialer  socket.Dialer
	machine *status.Machine
	logger  *zap.Logger

	mu       sync.Mutex
	handlers map[string][]HandlerFunc
	link     *link
	queue    []outbound
	acks     map[uint64]*pendingAck
	nextID   uint64
	retry    *time.Timer
	started  bool
	closed   bool
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewManager creates a manager. Nothing is dialed until Connect.
func NewManager(cfg Config, dialer socket.Dialer, machine *status.Machine, logger *zap.Logger) *Manager {
	if machine == nil {
		machine = status.NewMachine(nil)
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		dialer:   dialer,
		machine:  machine,
		logger:   logger,
		handlers: make(map[string][]HandlerFunc),
		acks:     make(map[uint64]*pendingAck),
	}
}

// On registers fn for event. Register handlers before Connect.
func (m *Manager) On(event string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], fn)
}

// Connect starts the dial loop. It returns immediately; progress is reported
// through the connect, connect_error and disconnect handlers.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	m.mu.Unlock()

	m.transition(status.Connecting)
	go m.dial()
	return nil
}

// Close disconnects with reason "io client disconnect", stops reconnecting
// and fails every pending ack with ErrClosed. It must not be called from a
// handler.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	l := m.link
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	pending := m.acks
	m.acks = make(map[uint64]*pendingAck)
	m.queue = nil
	cancel := m.cancel
	m.mu.Unlock()

	m.transition(status.Closed)
	if cancel != nil {
		cancel()
	}
	if l != nil {
		m.teardown(l, socket.ReasonClientDisconnect)
	}
	for _, p := range pending {
		p.timer.Stop()
		p.fn(wire.Ack{}, ErrClosed)
	}
	m.wg.Wait()
	m.logger.Info("realtime manager closed")
	return nil
}

// IsConnected reports whether a link is currently attached.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.link != nil
}

// State returns the link state.
func (m *Manager) State() status.State {
	return m.machine.Current()
}

// Queued returns how many frames wait for the next link.
func (m *Manager) Queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// ReconnectScheduled reports whether a reconnect timer is armed.
func (m *Manager) ReconnectScheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.retry != nil
}

// Emit sends event. While offline the frame is queued and replayed, in order,
// right after the next authenticate.
func (m *Manager) Emit(event string, payload any) error {
	f, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueueLocked(outbound{frame: f})
}

// EmitVolatile sends event only if a link is up. Nothing is queued.
func (m *Manager) EmitVolatile(event string, payload any) error {
	f, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueueLocked(outbound{frame: f, volatile: true})
}

// EmitWithAck sends event and calls fn exactly once with the server's ack,
// or with ErrAckTimeout after the configured timeout. The timeout starts now,
// so time spent queued offline counts. If EmitWithAck returns an error fn is
// never called.
func (m *Manager) EmitWithAck(event string, payload any, fn AckFunc) error {
	f, err := wire.NewFrame(event, payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	f.ID = id
	if err := m.enqueueLocked(outbound{frame: f}); err != nil {
		return err
	}
	m.acks[id] = &pendingAck{
		event: event,
		fn:    fn,
		timer: time.AfterFunc(m.cfg.AckTimeout, func() { m.expireAck(id) }),
	}
	return nil
}

func (m *Manager) enqueueLocked(ob outbound) error {
	if m.closed {
		return ErrClosed
	}
	if m.link != nil {
		select {
		case m.link.send <- ob:
			return nil
		default:
			return ErrQueueFull
		}
	}
	if ob.volatile {
		return ErrNotConnected
	}
	if len(m.queue) >= m.cfg.QueueSize {
		return ErrQueueFull
	}
	m.queue = append(m.queue, ob)
	return nil
}

func (m *Manager) requeueLocked(ob outbound) {
	if m.link != nil {
		select {
		case m.link.send <- ob:
		default:
			m.logger.Warn("dropping frame, link buffer full", zap.String("event", ob.frame.Event))
		}
		return
	}
	m.queue = append([]outbound{ob}, m.queue...)
}

func (m *Manager) dial() {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
	conn, err := m.dialer.Dial(ctx, m.cfg.Endpoint)
	cancel()
	if err != nil {
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Warn("realtime dial failed", zap.String("endpoint", m.cfg.Endpoint), zap.Error(err))
		m.transition(status.Reconnecting)
		m.fire(wire.EventConnectError, wire.Reason{Reason: err.Error()})
		m.scheduleReconnect()
		return
	}
	m.attach(conn)
}

func (m *Manager) attach(conn socket.Conn) {
	auth, err := wire.NewFrame(wire.EventAuthenticate, wire.Authenticate{UserID: m.cfg.UserID})
	if err != nil {
		m.logger.Error("encode authenticate", zap.Error(err))
		conn.Close()
		return
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		conn.Close()
		return
	}
	l := &link{
		conn: conn,
		send: make(chan outbound, m.cfg.QueueSize+len(m.queue)+1),
		done: make(chan struct{}),
	}
	// authenticate goes out before anything queued while offline.
	l.send <- outbound{frame: auth, volatile: true}
	for _, ob := range m.queue {
		l.send <- ob
	}
	replayed := len(m.queue)
	m.queue = nil
	m.link = l
	m.wg.Add(2)
	m.mu.Unlock()

	m.transition(status.Authenticating)
	m.logger.Info("realtime connected",
		zap.String("endpoint", m.cfg.Endpoint),
		zap.Int("replayed", replayed),
	)
	go m.writePump(l)
	go m.readPump(l)
	m.fire(wire.EventConnect, nil)
}

func (m *Manager) writePump(l *link) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ob := <-l.send:
			if err := l.conn.WriteFrame(ob.frame); err != nil {
				m.logger.Warn("realtime write failed", zap.String("event", ob.frame.Event), zap.Error(err))
				m.mu.Lock()
				select {
				case <-l.done:
					// Already torn down by the reader; teardown's drain missed ob.
					if !ob.volatile && !m.closed {
						m.requeueLocked(ob)
					}
				default:
					l.failed = &ob
				}
				m.mu.Unlock()
				m.teardown(l, socket.DisconnectReason(err))
				return
			}
		case <-ticker.C:
			if err := l.conn.Ping(); err != nil {
				m.teardown(l, socket.DisconnectReason(err))
				return
			}
		case <-l.done:
			return
		}
	}
}

func (m *Manager) readPump(l *link) {
	defer m.wg.Done()
	for {
		f, err := l.conn.ReadFrame()
		if err != nil {
			var pe *socket.ParseError
			if errors.As(err, &pe) {
				m.logger.Warn("ignoring malformed frame", zap.Error(err))
				continue
			}
			m.teardown(l, socket.DisconnectReason(err))
			return
		}
		switch f.Event {
		case wire.EventAck:
			m.resolveAck(f)
		case wire.EventAuthenticated:
			m.transition(status.Online)
			m.dispatch(f)
		default:
			m.dispatch(f)
		}
	}
}

// teardown detaches l once. Unsent non-volatile frames go back to the front
// of the offline queue.
func (m *Manager) teardown(l *link, reason string) {
	l.once.Do(func() {
		m.mu.Lock()
		close(l.done)
		if m.link == l {
			m.link = nil
		}
		var requeue []outbound
		if l.failed != nil && !l.failed.volatile {
			requeue = append(requeue, *l.failed)
		}
	drain:
		for {
			select {
			case ob := <-l.send:
				if !ob.volatile {
					requeue = append(requeue, ob)
				}
			default:
				break drain
			}
		}
		closed := m.closed
		if !closed {
			m.queue = append(requeue, m.queue...)
		}
		m.mu.Unlock()

		_ = l.conn.Close()
		if !closed {
			m.transition(status.Reconnecting)
		}
		m.logger.Info("realtime disconnected",
			zap.String("reason", reason),
			zap.Int("requeued", len(requeue)),
		)
		m.fire(wire.EventDisconnect, wire.Reason{Reason: reason})
		if reason != socket.ReasonClientDisconnect {
			m.scheduleReconnect()
		}
	})
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.retry != nil {
		return
	}
	m.retry = time.AfterFunc(m.cfg.ReconnectDelay, func() {
		m.mu.Lock()
		m.retry = nil
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.wg.Add(1)
		m.mu.Unlock()
		m.transition(status.Connecting)
		go m.dial()
	})
	m.logger.Debug("reconnect scheduled", zap.Duration("delay", m.cfg.ReconnectDelay))
}

func (m *Manager) resolveAck(f wire.Frame) {
	m.mu.Lock()
	p, ok := m.acks[f.ID]
	delete(m.acks, f.ID)
	m.mu.Unlock()
	if !ok {
		m.logger.Debug("ack for unknown or expired id", zap.Uint64("id", f.ID))
		return
	}
	p.timer.Stop()

	var ack wire.Ack
	if len(f.Data) > 0 {
		if err := f.Decode(&ack); err != nil {
			p.fn(wire.Ack{}, err)
			return
		}
	}
	if ack.Error != "" {
		p.fn(ack, &RejectedError{Event: p.event, Reason: ack.Error})
		return
	}
	p.fn(ack, nil)
}

func (m *Manager) expireAck(id uint64) {
	m.mu.Lock()
	p, ok := m.acks[id]
	delete(m.acks, id)
	// A frame still waiting offline is withdrawn so it cannot be delivered
	// after its sender has been told it failed.
	for i, ob := range m.queue {
		if ob.frame.ID == id {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	m.logger.Warn("ack timed out", zap.String("event", p.event), zap.Uint64("id", id))
	p.fn(wire.Ack{}, ErrAckTimeout)
}

func (m *Manager) fire(event string, payload any) {
	f, err := wire.NewFrame(event, payload)
	if err != nil {
		m.logger.Error("encode local event", zap.String("event", event), zap.Error(err))
		return
	}
	m.dispatch(f)
}

func (m *Manager) dispatch(f wire.Frame) {
	m.mu.Lock()
	hs := append([]HandlerFunc(nil), m.handlers[f.Event]...)
	m.mu.Unlock()
	if len(hs) == 0 {
		m.logger.Debug("no handler for event", zap.String("event", f.Event))
		return
	}
	for _, h := range hs {
		h(f)
	}
}

func (m *Manager) transition(to status.State) {
	if err := m.machine.Transition(to); err != nil {
		m.logger.Debug("link state unchanged", zap.Error(err))
	}
}
