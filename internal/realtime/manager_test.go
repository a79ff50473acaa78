package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/status"
	"github.com/matheus3301/gigchat/internal/wire"
)

type fakeConn struct {
	toClient   chan wire.Frame
	fromClient chan wire.Frame
	errs       chan error
	closed     chan struct{}
	once       sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		toClient:   make(chan wire.Frame, 16),
		fromClient: make(chan wire.Frame, 64),
		errs:       make(chan error, 1),
		closed:     make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrame() (wire.Frame, error) {
	select {
	case f := <-c.toClient:
		return f, nil
	case err := <-c.errs:
		return wire.Frame{}, err
	case <-c.closed:
		return wire.Frame{}, socket.ErrClosed
	}
}

func (c *fakeConn) WriteFrame(f wire.Frame) error {
	select {
	case <-c.closed:
		return socket.ErrClosed
	default:
	}
	c.fromClient <- f
	return nil
}

func (c *fakeConn) Ping() error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// next returns the next frame the client wrote.
func (c *fakeConn) next(t *testing.T) wire.Frame {
	t.Helper()
	select {
	case f := <-c.fromClient:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for client frame")
		return wire.Frame{}
	}
}

func (c *fakeConn) ack(t *testing.T, id uint64, ack wire.Ack) {
	t.Helper()
	data, err := json.Marshal(ack)
	require.NoError(t, err)
	c.toClient <- wire.Frame{Event: wire.EventAck, ID: id, Data: data}
}

type fakeDialer struct {
	mu    sync.Mutex
	fail  int
	dials int
	conns chan *fakeConn
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan *fakeConn, 8)}
}

func (d *fakeDialer) Dial(ctx context.Context, endpoint string) (socket.Conn, error) {
	d.mu.Lock()
	d.dials++
	if d.fail > 0 {
		d.fail--
		d.mu.Unlock()
		return nil, errors.New("connection refused")
	}
	d.mu.Unlock()
	c := newFakeConn()
	d.conns <- c
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-d.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for dial")
		return nil
	}
}

func newTestManager(t *testing.T, d socket.Dialer, mutate func(*Config)) *Manager {
	t.Helper()
	cfg := Config{
		Endpoint:       "ws://test/ws",
		UserID:         "me-1",
		ReconnectDelay: 20 * time.Millisecond,
		AckTimeout:     time.Second,
		PingPeriod:     time.Hour,
		QueueSize:      4,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	m := NewManager(cfg, d, status.NewMachine(nil), zap.NewNop())
	t.Cleanup(func() { m.Close() })
	return m
}

func reasons(m *Manager) func() []string {
	var mu sync.Mutex
	var got []string
	m.On(wire.EventDisconnect, func(f wire.Frame) {
		var r wire.Reason
		_ = f.Decode(&r)
		mu.Lock()
		got = append(got, r.Reason)
		mu.Unlock()
	})
	return func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}
}

func TestAuthenticateThenReplayQueue(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, nil)

	require.NoError(t, m.Emit(wire.EventSendMessage, wire.SendMessage{ReceiverID: "u2", TempID: "t1"}))
	require.NoError(t, m.Emit(wire.EventSendMessage, wire.SendMessage{ReceiverID: "u2", TempID: "t2"}))
	assert.Equal(t, 2, m.Queued())

	connected := make(chan struct{}, 1)
	m.On(wire.EventConnect, func(wire.Frame) { connected <- struct{}{} })
	require.NoError(t, m.Connect(context.Background()))

	c := d.nextConn(t)
	first := c.next(t)
	assert.Equal(t, wire.EventAuthenticate, first.Event)
	var auth wire.Authenticate
	require.NoError(t, first.Decode(&auth))
	assert.Equal(t, "me-1", auth.UserID)

	for _, want := range []string{"t1", "t2"} {
		f := c.next(t)
		var p wire.SendMessage
		require.NoError(t, f.Decode(&p))
		assert.Equal(t, want, p.TempID)
	}
	<-connected
	assert.True(t, m.IsConnected())
	assert.Equal(t, 0, m.Queued())
	assert.Equal(t, status.Authenticating, m.State())

	c.toClient <- wire.Frame{Event: wire.EventAuthenticated}
	require.Eventually(t, func() bool { return m.State() == status.Online }, time.Second, 5*time.Millisecond)
}

func TestTransportCloseSchedulesReconnect(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, func(c *Config) { c.ReconnectDelay = 200 * time.Millisecond })
	got := reasons(m)
	require.NoError(t, m.Connect(context.Background()))
	c := d.nextConn(t)
	c.next(t)

	c.errs <- errors.New("read: connection reset by peer")

	require.Eventually(t, func() bool { return len(got()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{socket.ReasonTransportClose}, got())
	assert.False(t, m.IsConnected())
	require.Eventually(t, m.ReconnectScheduled, time.Second, 5*time.Millisecond)

	c2 := d.nextConn(t)
	assert.Equal(t, wire.EventAuthenticate, c2.next(t).Event)
	require.Eventually(t, m.IsConnected, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, d.dialCount())
}

func TestClientDisconnectDoesNotReconnect(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, nil)
	got := reasons(m)
	require.NoError(t, m.Connect(context.Background()))
	d.nextConn(t).next(t)

	require.NoError(t, m.Close())

	assert.Equal(t, []string{socket.ReasonClientDisconnect}, got())
	assert.False(t, m.ReconnectScheduled())
	assert.Equal(t, status.Closed, m.State())
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, d.dialCount())
	assert.ErrorIs(t, m.Emit(wire.EventTyping, nil), ErrClosed)
	assert.ErrorIs(t, m.Connect(context.Background()), ErrClosed)
}

func TestServerDisconnectReconnects(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, nil)
	got := reasons(m)
	require.NoError(t, m.Connect(context.Background()))
	c := d.nextConn(t)
	c.next(t)

	c.errs <- &websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "kicked"}

	c2 := d.nextConn(t)
	assert.Equal(t, wire.EventAuthenticate, c2.next(t).Event)
	assert.Equal(t, []string{socket.ReasonServerDisconnect}, got())
}

func TestDialFailureRetriesForever(t *testing.T) {
	d := newFakeDialer()
	d.fail = 3
	m := newTestManager(t, d, nil)

	var connectErrors atomic.Int32
	m.On(wire.EventConnectError, func(wire.Frame) { connectErrors.Add(1) })
	require.NoError(t, m.Connect(context.Background()))

	c := d.nextConn(t)
	assert.Equal(t, wire.EventAuthenticate, c.next(t).Event)
	assert.Equal(t, int32(3), connectErrors.Load())
	assert.Equal(t, 4, d.dialCount())
}

func TestEmitWithAck(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, nil)
	require.NoError(t, m.Connect(context.Background()))
	c := d.nextConn(t)
	c.next(t)

	type result struct {
		ack wire.Ack
		err error
	}
	results := make(chan result, 2)
	fn := func(ack wire.Ack, err error) { results <- result{ack, err} }

	require.NoError(t, m.EmitWithAck(wire.EventSendMessage, wire.SendMessage{TempID: "t1"}, fn))
	f := c.next(t)
	require.NotZero(t, f.ID)
	c.ack(t, f.ID, wire.Ack{MessageID: "s1"})
	r := <-results
	require.NoError(t, r.err)
	assert.Equal(t, "s1", r.ack.MessageID)

	require.NoError(t, m.EmitWithAck(wire.EventDeleteMessage, wire.DeleteMessage{MessageID: "s1"}, fn))
	f = c.next(t)
	c.ack(t, f.ID, wire.Ack{Error: "not allowed"})
	r = <-results
	var rej *RejectedError
	require.ErrorAs(t, r.err, &rej)
	assert.Equal(t, "not allowed", rej.Reason)
	assert.Equal(t, wire.EventDeleteMessage, rej.Event)
}

// TestAckTimeoutFiresOnce verifies a late ack after the timeout is ignored
// and the callback is invoked a single time.
func TestAckTimeoutFiresOnce(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, func(c *Config) { c.AckTimeout = 30 * time.Millisecond })
	require.NoError(t, m.Connect(context.Background()))
	c := d.nextConn(t)
	c.next(t)

	var calls atomic.Int32
	errs := make(chan error, 4)
	require.NoError(t, m.EmitWithAck(wire.EventSendMessage, wire.SendMessage{TempID: "t1"}, func(_ wire.Ack, err error) {
		calls.Add(1)
		errs <- err
	}))
	f := c.next(t)

	assert.ErrorIs(t, <-errs, ErrAckTimeout)
	c.ack(t, f.ID, wire.Ack{MessageID: "s1"})
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAckTimeoutWithdrawsQueuedFrame(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, func(c *Config) { c.AckTimeout = 20 * time.Millisecond })

	errs := make(chan error, 1)
	require.NoError(t, m.EmitWithAck(wire.EventSendMessage, wire.SendMessage{TempID: "t1"}, func(_ wire.Ack, err error) {
		errs <- err
	}))
	assert.Equal(t, 1, m.Queued())
	assert.ErrorIs(t, <-errs, ErrAckTimeout)
	assert.Equal(t, 0, m.Queued())
}

func TestCloseFailsPendingAcks(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, nil)
	errs := make(chan error, 1)
	require.NoError(t, m.EmitWithAck(wire.EventSendMessage, wire.SendMessage{TempID: "t1"}, func(_ wire.Ack, err error) {
		errs <- err
	}))
	require.NoError(t, m.Close())
	assert.ErrorIs(t, <-errs, ErrClosed)
}

func TestVolatileOfflineRejected(t *testing.T) {
	m := newTestManager(t, newFakeDialer(), nil)
	err := m.EmitVolatile(wire.EventTyping, wire.TypingOut{ReceiverID: "u2", IsTyping: true})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Equal(t, 0, m.Queued())
}

func TestOfflineQueueBounded(t *testing.T) {
	m := newTestManager(t, newFakeDialer(), nil)
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Emit(wire.EventSendMessage, wire.SendMessage{}))
	}
	assert.ErrorIs(t, m.Emit(wire.EventSendMessage, wire.SendMessage{}), ErrQueueFull)
}

func TestInboundEventsRouted(t *testing.T) {
	d := newFakeDialer()
	m := newTestManager(t, d, nil)
	got := make(chan wire.Frame, 1)
	m.On(wire.EventUserOnline, func(f wire.Frame) { got <- f })
	require.NoError(t, m.Connect(context.Background()))
	c := d.nextConn(t)
	c.next(t)

	f, err := wire.NewFrame(wire.EventUserOnline, wire.UserPresence{UserID: "u9"})
	require.NoError(t, err)
	c.toClient <- f

	select {
	case in := <-got:
		var p wire.UserPresence
		require.NoError(t, in.Decode(&p))
		assert.Equal(t, "u9", p.UserID)
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}
}
