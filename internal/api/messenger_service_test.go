package api

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/matheus3301/gigchat/internal/archive"
	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/messenger"
	"github.com/matheus3301/gigchat/internal/realtime"
	"github.com/matheus3301/gigchat/internal/relay"
	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/socket"
	"github.com/matheus3301/gigchat/internal/status"
	"github.com/matheus3301/gigchat/internal/store"
)

const waitFor = 3 * time.Second

type fixture struct {
	svc    *MessengerService
	client *messenger.Client
	db     *store.DB
	bus    *bus.Bus
}

func newFixture(t *testing.T, self string, contacts ...string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	srv := httptest.NewServer(relay.NewEngine(relay.NewHub(zap.NewNop())))
	t.Cleanup(srv.Close)
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	db, err := store.Open(":memory:")
	require.NoError(t, err)
	_, err = db.Migrate()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := bus.New()
	machine := status.NewMachine(b)
	mgr := realtime.NewManager(realtime.Config{
		Endpoint:       endpoint,
		UserID:         self,
		ReconnectDelay: 50 * time.Millisecond,
		AckTimeout:     2 * time.Second,
	}, socket.WebSocketDialer{}, machine, zap.NewNop())
	client := messenger.New(mgr, b, messenger.Options{Self: self, TypingDebounce: 20 * time.Millisecond, MaxAttachmentBytes: 64}, zap.NewNop())

	engine := archive.NewEngine(db, b, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	require.NoError(t, client.Start(ctx))

	svc := NewMessengerService(Identity{Profile: "test", UserID: self, Endpoint: endpoint}, client, machine, db, b)
	t.Cleanup(func() {
		svc.Close()
		client.Stop()
		engine.Stop()
		cancel()
	})

	var seed chat.Seed
	for _, id := range contacts {
		seed.Contacts = append(seed.Contacts, chat.Contact{ID: id, DisplayName: strings.ToUpper(id)})
	}
	require.NoError(t, client.Seed(ctx, seed))
	require.Eventually(t, client.IsConnected, waitFor, 10*time.Millisecond)
	return &fixture{svc: svc, client: client, db: db, bus: b}
}

func code(err error) codes.Code {
	return grpcstatus.Code(err)
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{chat.ErrNoActiveContact, codes.FailedPrecondition},
		{fmt.Errorf("select %q: %w", "x", chat.ErrUnknownContact), codes.NotFound},
		{chat.ErrUnknownMessage, codes.NotFound},
		{chat.ErrEmptyContent, codes.InvalidArgument},
		{messenger.ErrEmptyDraft, codes.InvalidArgument},
		{messenger.ErrAttachmentStaged, codes.InvalidArgument},
		{messenger.ErrAttachmentTooLarge, codes.ResourceExhausted},
		{chat.ErrLoopStopped, codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("boom"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, code(toStatus(tt.err)), "%v", tt.err)
	}
}

func TestStatusAndContacts(t *testing.T) {
	f := newFixture(t, "alice", "bob", "carol")
	ctx := context.Background()

	st, err := f.svc.GetStatus(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "test", st.Profile)
	assert.Equal(t, "alice", st.UserID)
	assert.True(t, st.Connected)
	assert.Equal(t, string(status.Online), st.State)
	assert.Equal(t, int64(2), st.ContactCount)

	_, err = f.svc.SelectContact(ctx, &rpc.ContactRef{ContactID: "zed"})
	assert.Equal(t, codes.NotFound, code(err))
	_, err = f.svc.SelectContact(ctx, &rpc.ContactRef{})
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = f.svc.SelectContact(ctx, &rpc.ContactRef{ContactID: "carol"})
	require.NoError(t, err)
	list, err := f.svc.ListContacts(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	require.Len(t, list.Contacts, 2)
	for _, c := range list.Contacts {
		assert.Equal(t, c.ID == "carol", c.Active, c.ID)
	}
}

func TestSendTextAndTimeline(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()

	_, err := f.svc.SendText(ctx, &rpc.SendTextRequest{Text: "hi"})
	assert.Equal(t, codes.FailedPrecondition, code(err))

	_, err = f.svc.SelectContact(ctx, &rpc.ContactRef{ContactID: "bob"})
	require.NoError(t, err)
	_, err = f.svc.SendText(ctx, &rpc.SendTextRequest{Text: "  "})
	assert.Equal(t, codes.InvalidArgument, code(err))

	res, err := f.svc.SendText(ctx, &rpc.SendTextRequest{Text: "logo draft is ready"})
	require.NoError(t, err)
	assert.True(t, chat.IsTempID(res.TempID))

	// Bob is offline, so the relay acks without delivery.
	require.Eventually(t, func() bool {
		list, err := f.svc.ListMessages(ctx, &rpc.ListMessagesRequest{})
		return err == nil && len(list.Messages) == 1 && list.Messages[0].Status == string(chat.Sent)
	}, waitFor, 10*time.Millisecond)

	list, err := f.svc.ListMessages(ctx, &rpc.ListMessagesRequest{ContactID: "bob"})
	require.NoError(t, err)
	m := list.Messages[0]
	assert.True(t, m.FromMe)
	assert.Equal(t, "logo draft is ready", m.Text)
	assert.Equal(t, res.TempID, m.TempID)
	assert.NotNil(t, m.Timestamp)

	require.Eventually(t, func() bool {
		archived, err := f.svc.ListMessages(ctx, &rpc.ListMessagesRequest{ContactID: "bob", Archived: true})
		return err == nil && len(archived.Messages) == 1 && archived.Messages[0].ID == m.ID
	}, waitFor, 10*time.Millisecond)

	found, err := f.svc.SearchMessages(ctx, &rpc.SearchRequest{Query: "draft"})
	require.NoError(t, err)
	require.Len(t, found.Results, 1)
	assert.Contains(t, found.Results[0].Snippet, "<<draft>>")

	_, err = f.svc.SearchMessages(ctx, &rpc.SearchRequest{Query: " "})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.svc.ListMessages(ctx, &rpc.ListMessagesRequest{Archived: true})
	assert.Equal(t, codes.InvalidArgument, code(err))
}

func TestDraftFlow(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	_, err := f.svc.SelectContact(ctx, &rpc.ContactRef{ContactID: "bob"})
	require.NoError(t, err)

	d, err := f.svc.UpdateDraft(ctx, &rpc.UpdateDraftRequest{Text: "quote attached"})
	require.NoError(t, err)
	assert.Equal(t, "quote attached", d.Text)

	d, err = f.svc.StageAttachment(ctx, &rpc.StageAttachmentRequest{Name: "quote.txt", Data: []byte("100 USD")})
	require.NoError(t, err)
	require.NotNil(t, d.Staged)
	assert.Equal(t, "quote.txt", d.Staged.Name)
	assert.Equal(t, string(chat.KindFile), d.Staged.Kind)
	assert.Empty(t, d.Text)

	_, err = f.svc.UpdateDraft(ctx, &rpc.UpdateDraftRequest{Text: "more"})
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = f.svc.StageAttachment(ctx, &rpc.StageAttachmentRequest{Name: "big.bin", Data: make([]byte, 65)})
	assert.Equal(t, codes.ResourceExhausted, code(err))
	_, err = f.svc.StageAttachment(ctx, &rpc.StageAttachmentRequest{})
	assert.Equal(t, codes.InvalidArgument, code(err))

	res, err := f.svc.Submit(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.TempID)

	_, err = f.svc.Submit(ctx, &emptypb.Empty{})
	assert.Equal(t, codes.InvalidArgument, code(err))

	d, err = f.svc.ClearAttachment(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Nil(t, d.Staged)
}

func TestReplyAndDelete(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx := context.Background()
	_, err := f.svc.SelectContact(ctx, &rpc.ContactRef{ContactID: "bob"})
	require.NoError(t, err)
	res, err := f.svc.SendText(ctx, &rpc.SendTextRequest{Text: "first"})
	require.NoError(t, err)

	r, err := f.svc.SetReplyTarget(ctx, &rpc.MessageRef{MessageID: res.TempID})
	require.NoError(t, err)
	require.NotNil(t, r.Reply)
	assert.Equal(t, "first", r.Reply.Preview)

	r, err = f.svc.SetReplyTarget(ctx, &rpc.MessageRef{})
	require.NoError(t, err)
	assert.Nil(t, r.Reply)

	_, err = f.svc.SetReplyTarget(ctx, &rpc.MessageRef{MessageID: "nope"})
	assert.Equal(t, codes.NotFound, code(err))
	_, err = f.svc.DeleteMessage(ctx, &rpc.MessageRef{MessageID: "nope"})
	assert.Equal(t, codes.NotFound, code(err))
	_, err = f.svc.DeleteMessage(ctx, &rpc.MessageRef{})
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = f.svc.DeleteMessage(ctx, &rpc.MessageRef{MessageID: res.TempID})
	require.NoError(t, err)
	list, err := f.svc.ListMessages(ctx, &rpc.ListMessagesRequest{ContactID: "bob"})
	require.NoError(t, err)
	assert.Empty(t, list.Messages)
}

type fakeStream struct {
	grpc.ServerStream
	ctx    context.Context
	events chan *rpc.Event
}

func (s *fakeStream) Context() context.Context { return s.ctx }

func (s *fakeStream) Send(e *rpc.Event) error {
	s.events <- e
	return nil
}

func TestWatchEvents(t *testing.T) {
	f := newFixture(t, "alice", "bob")
	ctx, cancel := context.WithCancel(context.Background())
	stream := &fakeStream{ctx: ctx, events: make(chan *rpc.Event, 64)}

	done := make(chan error, 1)
	go func() { done <- f.svc.WatchEvents(&rpc.WatchRequest{Namespace: "chat"}, stream) }()

	// Give the subscription a moment before publishing.
	time.Sleep(20 * time.Millisecond)
	_, err := f.svc.SelectContact(context.Background(), &rpc.ContactRef{ContactID: "bob"})
	require.NoError(t, err)

	var got *rpc.Event
	require.Eventually(t, func() bool {
		select {
		case e := <-stream.events:
			if e.Kind == bus.KindActiveChanged {
				got = e
				return true
			}
		default:
		}
		return false
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, "test", got.Profile)
	assert.NotEmpty(t, got.ID)
	assert.JSONEq(t, `{"ContactID":"bob"}`, string(got.Payload))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not end")
	}
}
