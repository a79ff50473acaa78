package relay

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/wire"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClient struct {
	conn   socket.Conn
	frames chan wire.Frame
}

func newRelay(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := NewHub(zap.NewNop())
	srv := httptest.NewServer(NewEngine(h))
	t.Cleanup(srv.Close)
	return h, srv
}

func connect(t *testing.T, srv *httptest.Server, user string) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, err := socket.WebSocketDialer{}.Dial(context.Background(), url)
	require.NoError(t, err)
	c := &testClient{conn: conn, frames: make(chan wire.Frame, 64)}
	go func() {
		for {
			f, err := conn.ReadFrame()
			if err != nil {
				close(c.frames)
				return
			}
			c.frames <- f
		}
	}()
	t.Cleanup(func() { conn.Close() })
	if user != "" {
		c.send(t, wire.EventAuthenticate, 0, wire.Authenticate{UserID: user})
		c.expect(t, wire.EventAuthenticated)
	}
	return c
}

func (c *testClient) send(t *testing.T, event string, id uint64, payload any) {
	t.Helper()
	f, err := wire.NewFrame(event, payload)
	require.NoError(t, err)
	f.ID = id
	require.NoError(t, c.conn.WriteFrame(f))
}

// expect skips frames until one with event arrives.
func (c *testClient) expect(t *testing.T, event string) wire.Frame {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case f, ok := <-c.frames:
			require.True(t, ok, "connection closed waiting for %s", event)
			if f.Event == event {
				return f
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", event)
			return wire.Frame{}
		}
	}
}

func (c *testClient) expectAck(t *testing.T, id uint64) wire.Ack {
	t.Helper()
	for {
		f := c.expect(t, wire.EventAck)
		if f.ID != id {
			continue
		}
		var a wire.Ack
		require.NoError(t, f.Decode(&a))
		return a
	}
}

func text(s string) wire.Content {
	return wire.Content{Type: wire.KindText, Text: s}
}

func TestHealthz(t *testing.T) {
	_, srv := newRelay(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestPresenceOnAuthenticate(t *testing.T) {
	h, srv := newRelay(t)
	alice := connect(t, srv, "")
	alice.send(t, wire.EventAuthenticate, 0, wire.Authenticate{UserID: "alice"})
	f := alice.expect(t, wire.EventOnlineUsers)
	var snap wire.OnlineUsers
	require.NoError(t, f.Decode(&snap))
	assert.Empty(t, snap.IDs)

	bob := connect(t, srv, "")
	bob.send(t, wire.EventAuthenticate, 0, wire.Authenticate{UserID: "bob"})
	f = bob.expect(t, wire.EventOnlineUsers)
	require.NoError(t, f.Decode(&snap))
	assert.Equal(t, []string{"alice"}, snap.IDs)

	f = alice.expect(t, wire.EventUserOnline)
	var p wire.UserPresence
	require.NoError(t, f.Decode(&p))
	assert.Equal(t, "bob", p.UserID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, h.Online())

	bob.conn.Close()
	f = alice.expect(t, wire.EventUserOffline)
	require.NoError(t, f.Decode(&p))
	assert.Equal(t, "bob", p.UserID)

	resp, err := http.Get(srv.URL + "/v1/online")
	require.NoError(t, err)
	defer resp.Body.Close()
	var online struct {
		IDs []string `json:"ids"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&online))
	assert.Equal(t, []string{"alice"}, online.IDs)
}

func TestSendDeliverRead(t *testing.T) {
	_, srv := newRelay(t)
	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	alice.send(t, wire.EventSendMessage, 1, wire.SendMessage{ReceiverID: "bob", Content: text("hi"), TempID: "local:a:1"})
	ack := alice.expectAck(t, 1)
	require.Empty(t, ack.Error)
	require.NotEmpty(t, ack.MessageID)

	var in wire.NewMessage
	require.NoError(t, bob.expect(t, wire.EventNewMessage).Decode(&in))
	assert.Equal(t, ack.MessageID, in.ID)
	assert.Equal(t, "alice", in.SenderID)
	assert.Equal(t, "hi", in.Content.Text)

	var r wire.Receipt
	require.NoError(t, alice.expect(t, wire.EventMessageDelivered).Decode(&r))
	assert.Equal(t, ack.MessageID, r.MessageID)

	bob.send(t, wire.EventMarkRead, 0, wire.MarkRead{MessageID: in.ID, SenderID: "alice"})
	require.NoError(t, alice.expect(t, wire.EventMessageRead).Decode(&r))
	assert.Equal(t, ack.MessageID, r.MessageID)
}

func TestTypingForwarded(t *testing.T) {
	_, srv := newRelay(t)
	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	alice.send(t, wire.EventTyping, 0, wire.TypingOut{ReceiverID: "bob", IsTyping: true})
	var in wire.TypingIn
	require.NoError(t, bob.expect(t, wire.EventTyping).Decode(&in))
	assert.Equal(t, "alice", in.SenderID)
	assert.True(t, in.IsTyping)
}

func TestStoreAndForward(t *testing.T) {
	h, srv := newRelay(t)
	alice := connect(t, srv, "alice")

	alice.send(t, wire.EventSendMessage, 1, wire.SendMessage{ReceiverID: "carol", Content: text("later"), TempID: "local:a:1"})
	ack := alice.expectAck(t, 1)
	require.NotEmpty(t, ack.MessageID)
	assert.Equal(t, 1, h.Pending("carol"))

	carol := connect(t, srv, "carol")
	var in wire.NewMessage
	require.NoError(t, carol.expect(t, wire.EventNewMessage).Decode(&in))
	assert.Equal(t, "later", in.Content.Text)
	alice.expect(t, wire.EventMessageDelivered)
	assert.Equal(t, 0, h.Pending("carol"))
}

func TestDeleteOnlyBySender(t *testing.T) {
	_, srv := newRelay(t)
	alice := connect(t, srv, "alice")
	bob := connect(t, srv, "bob")

	alice.send(t, wire.EventSendMessage, 1, wire.SendMessage{ReceiverID: "bob", Content: text("x"), TempID: "local:a:1"})
	id := alice.expectAck(t, 1).MessageID

	bob.send(t, wire.EventDeleteMessage, 7, wire.DeleteMessage{MessageID: id})
	assert.NotEmpty(t, bob.expectAck(t, 7).Error)

	alice.send(t, wire.EventDeleteMessage, 2, wire.DeleteMessage{MessageID: id})
	assert.Empty(t, alice.expectAck(t, 2).Error)

	alice.send(t, wire.EventDeleteMessage, 3, wire.DeleteMessage{MessageID: id})
	assert.Equal(t, "message not found", alice.expectAck(t, 3).Error)
}

func TestInvalidPayloadRejected(t *testing.T) {
	_, srv := newRelay(t)
	alice := connect(t, srv, "alice")

	alice.send(t, wire.EventSendMessage, 1, wire.SendMessage{Content: text("no receiver"), TempID: "local:a:1"})
	assert.Equal(t, "invalid payload", alice.expectAck(t, 1).Error)

	alice.send(t, wire.EventSendMessage, 2, wire.SendMessage{ReceiverID: "bob", Content: wire.Content{Type: wire.KindText}, TempID: "local:a:2"})
	assert.NotEmpty(t, alice.expectAck(t, 2).Error)
}

func TestMustAuthenticateFirst(t *testing.T) {
	_, srv := newRelay(t)
	c := connect(t, srv, "")
	c.send(t, wire.EventSendMessage, 1, wire.SendMessage{ReceiverID: "bob", Content: text("x"), TempID: "local:a:1"})
	assert.Equal(t, "unauthenticated", c.expectAck(t, 1).Error)
}
