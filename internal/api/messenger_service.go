// Package api implements the gigchat.v1.Messenger control service on top of
// the messaging client and the local archive.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/matheus3301/gigchat/internal/bus"
	"github.com/matheus3301/gigchat/internal/chat"
	"github.com/matheus3301/gigchat/internal/messenger"
	"github.com/matheus3301/gigchat/internal/rpc"
	"github.com/matheus3301/gigchat/internal/status"
	"github.com/matheus3301/gigchat/internal/store"
)

// Identity describes the profile the daemon runs for.
type Identity struct {
	Profile  string
	UserID   string
	Endpoint string
}

// MessengerService implements rpc.MessengerServer.
type MessengerService struct {
	id        Identity
	startedAt time.Time
	client    *messenger.Client
	machine   *status.Machine
	db        *store.DB
	bus       *bus.Bus
	done      chan struct{}
	closeOnce sync.Once
}

var _ rpc.MessengerServer = (*MessengerService)(nil)

// NewMessengerService creates the control service. db may be nil, which
// disables archive reads and search.
func NewMessengerService(id Identity, client *messenger.Client, machine *status.Machine, db *store.DB, b *bus.Bus) *MessengerService {
	return &MessengerService{
		id:        id,
		startedAt: time.Now(),
		client:    client,
		machine:   machine,
		db:        db,
		bus:       b,
		done:      make(chan struct{}),
	}
}

// Close ends open WatchEvents streams.
func (s *MessengerService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *MessengerService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*rpc.Status, error) {
	snap, err := s.client.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := &rpc.Status{
		Profile:      s.id.Profile,
		UserID:       s.id.UserID,
		Endpoint:     s.id.Endpoint,
		State:        string(s.machine.Current()),
		StateSince:   timestamppb.New(s.machine.Since()),
		Connected:    snap.Connected,
		UptimeMs:     time.Since(s.startedAt).Milliseconds(),
		Active:       snap.Active,
		Online:       snap.Online,
		QueuedFrames: s.client.QueuedFrames(),
		ContactCount: int64(len(snap.Contacts)),
	}
	if s.db != nil {
		if n, err := s.db.MessageCount(); err == nil {
			resp.MessageCount = n
		}
	}
	return resp, nil
}

func (s *MessengerService) ListContacts(ctx context.Context, _ *emptypb.Empty) (*rpc.ContactList, error) {
	snap, err := s.client.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	out := &rpc.ContactList{Contacts: make([]*rpc.Contact, 0, len(snap.Contacts))}
	for _, c := range snap.Contacts {
		out.Contacts = append(out.Contacts, rpc.ContactFromChat(c, snap.Active))
	}
	return out, nil
}

func (s *MessengerService) SelectContact(ctx context.Context, req *rpc.ContactRef) (*emptypb.Empty, error) {
	if req.ContactID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "contact_id is required")
	}
	if err := s.client.SelectContact(ctx, req.ContactID); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *MessengerService) ListMessages(ctx context.Context, req *rpc.ListMessagesRequest) (*rpc.MessageList, error) {
	if req.Archived {
		return s.listArchived(req)
	}
	msgs, err := s.client.Timeline(ctx, req.ContactID)
	if err != nil {
		return nil, toStatus(err)
	}
	if req.Limit > 0 && len(msgs) > req.Limit {
		msgs = msgs[len(msgs)-req.Limit:]
	}
	out := &rpc.MessageList{Messages: make([]*rpc.Message, 0, len(msgs))}
	for _, m := range msgs {
		out.Messages = append(out.Messages, rpc.MessageFromChat(m))
	}
	return out, nil
}

func (s *MessengerService) listArchived(req *rpc.ListMessagesRequest) (*rpc.MessageList, error) {
	if s.db == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "archive disabled")
	}
	if req.ContactID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "contact_id is required for archived reads")
	}
	msgs, err := s.db.ListMessages(req.ContactID, req.BeforeMs, req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "list messages: %v", err)
	}
	out := &rpc.MessageList{Messages: make([]*rpc.Message, 0, len(msgs))}
	// Stored newest first; answer oldest first like the live timeline.
	for i := len(msgs) - 1; i >= 0; i-- {
		out.Messages = append(out.Messages, storedToRPC(msgs[i]))
	}
	return out, nil
}

func (s *MessengerService) SendText(ctx context.Context, req *rpc.SendTextRequest) (*rpc.SendResult, error) {
	id, err := s.client.SendText(ctx, req.Text)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.SendResult{TempID: id}, nil
}

func (s *MessengerService) StageAttachment(_ context.Context, req *rpc.StageAttachmentRequest) (*rpc.Draft, error) {
	comp := s.client.Composer()
	var err error
	switch {
	case req.Path != "":
		err = comp.StageFile(req.Path)
	case len(req.Data) > 0:
		name := req.Name
		if name == "" {
			name = "attachment"
		}
		err = comp.StageData(name, req.Data)
	default:
		return nil, grpcstatus.Error(codes.InvalidArgument, "path or data is required")
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return s.draft(), nil
}

func (s *MessengerService) ClearAttachment(context.Context, *emptypb.Empty) (*rpc.Draft, error) {
	s.client.Composer().ClearAttachment()
	return s.draft(), nil
}

func (s *MessengerService) UpdateDraft(_ context.Context, req *rpc.UpdateDraftRequest) (*rpc.Draft, error) {
	if err := s.client.Composer().SetText(req.Text); err != nil {
		return nil, toStatus(err)
	}
	return s.draft(), nil
}

func (s *MessengerService) Submit(ctx context.Context, _ *emptypb.Empty) (*rpc.SendResult, error) {
	id, err := s.client.Composer().Submit(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.SendResult{TempID: id}, nil
}

func (s *MessengerService) SetReplyTarget(ctx context.Context, req *rpc.MessageRef) (*rpc.Reply, error) {
	var err error
	if req.MessageID == "" {
		err = s.client.ClearReply(ctx)
	} else {
		err = s.client.ReplyTo(ctx, req.MessageID)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	snap, err := s.client.Snapshot(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Reply{Reply: rpc.ReplyFromChat(snap.Reply)}, nil
}

func (s *MessengerService) DeleteMessage(ctx context.Context, req *rpc.MessageRef) (*emptypb.Empty, error) {
	if req.MessageID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "message_id is required")
	}
	if err := s.client.DeleteMessage(ctx, req.MessageID); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *MessengerService) SearchMessages(_ context.Context, req *rpc.SearchRequest) (*rpc.SearchResults, error) {
	if s.db == nil {
		return nil, grpcstatus.Error(codes.Unavailable, "archive disabled")
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "query is required")
	}
	results, err := s.db.SearchMessages(req.Query, req.ContactID, req.Limit)
	if err != nil {
		return nil, grpcstatus.Errorf(codes.Internal, "search messages: %v", err)
	}
	out := &rpc.SearchResults{Results: make([]*rpc.SearchResult, 0, len(results))}
	for _, r := range results {
		out.Results = append(out.Results, &rpc.SearchResult{Message: storedToRPC(r.Message), Snippet: r.Snippet})
	}
	return out, nil
}

func (s *MessengerService) WatchEvents(req *rpc.WatchRequest, stream rpc.Messenger_WatchEventsServer) error {
	ch, unsub := s.bus.Subscribe(req.Namespace, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				payload = nil
			}
			if err := stream.Send(&rpc.Event{
				ID:         uuid.NewString(),
				Profile:    s.id.Profile,
				Kind:       evt.Kind,
				OccurredAt: timestamppb.New(evt.Timestamp),
				Payload:    payload,
			}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}

func (s *MessengerService) draft() *rpc.Draft {
	comp := s.client.Composer()
	d := comp.Draft()
	out := &rpc.Draft{Text: d.Text, IsTyping: comp.IsTyping()}
	if st := d.Staged; st != nil {
		out.Staged = &rpc.StagedAttachment{Kind: string(st.Kind), Name: st.Name, Size: st.Size, MimeType: st.MimeType}
	}
	return out
}

// toStatus maps domain errors to gRPC codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, chat.ErrNoActiveContact):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, chat.ErrUnknownContact), errors.Is(err, chat.ErrUnknownMessage):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, chat.ErrEmptyContent), errors.Is(err, messenger.ErrEmptyDraft),
		errors.Is(err, messenger.ErrAttachmentStaged):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, messenger.ErrAttachmentTooLarge):
		return grpcstatus.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, chat.ErrLoopStopped):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.FromContextError(err).Err()
	}
	return grpcstatus.Errorf(codes.Internal, "%v", err)
}
