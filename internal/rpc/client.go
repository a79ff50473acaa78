package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Client is a typed client of the control API.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket. The connection is lazy:
// errors surface on the first call.
func Dial(socketPath string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	}, opts...)
	conn, err := grpc.NewClient("unix://"+socketPath, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	return invoke[Status](ctx, c, "GetStatus", &emptypb.Empty{})
}

func (c *Client) ListContacts(ctx context.Context) (*ContactList, error) {
	return invoke[ContactList](ctx, c, "ListContacts", &emptypb.Empty{})
}

func (c *Client) SelectContact(ctx context.Context, id string) error {
	_, err := invoke[emptypb.Empty](ctx, c, "SelectContact", &ContactRef{ContactID: id})
	return err
}

func (c *Client) ListMessages(ctx context.Context, req *ListMessagesRequest) (*MessageList, error) {
	return invoke[MessageList](ctx, c, "ListMessages", req)
}

func (c *Client) SendText(ctx context.Context, text string) (*SendResult, error) {
	return invoke[SendResult](ctx, c, "SendText", &SendTextRequest{Text: text})
}

func (c *Client) StageAttachment(ctx context.Context, req *StageAttachmentRequest) (*Draft, error) {
	return invoke[Draft](ctx, c, "StageAttachment", req)
}

func (c *Client) ClearAttachment(ctx context.Context) (*Draft, error) {
	return invoke[Draft](ctx, c, "ClearAttachment", &emptypb.Empty{})
}

func (c *Client) UpdateDraft(ctx context.Context, text string) (*Draft, error) {
	return invoke[Draft](ctx, c, "UpdateDraft", &UpdateDraftRequest{Text: text})
}

func (c *Client) Submit(ctx context.Context) (*SendResult, error) {
	return invoke[SendResult](ctx, c, "Submit", &emptypb.Empty{})
}

// SetReplyTarget quotes messageID in the next send; "" clears it.
func (c *Client) SetReplyTarget(ctx context.Context, messageID string) (*Reply, error) {
	return invoke[Reply](ctx, c, "SetReplyTarget", &MessageRef{MessageID: messageID})
}

func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := invoke[emptypb.Empty](ctx, c, "DeleteMessage", &MessageRef{MessageID: messageID})
	return err
}

func (c *Client) SearchMessages(ctx context.Context, req *SearchRequest) (*SearchResults, error) {
	return invoke[SearchResults](ctx, c, "SearchMessages", req)
}

// EventStream receives events from WatchEvents.
type EventStream interface {
	Recv() (*Event, error)
}

type eventStream struct {
	grpc.ClientStream
}

func (s *eventStream) Recv() (*Event, error) {
	e := new(Event)
	if err := s.ClientStream.RecvMsg(e); err != nil {
		return nil, err
	}
	return e, nil
}

// WatchEvents streams daemon events whose kind starts with namespace.
func (c *Client) WatchEvents(ctx context.Context, namespace string) (EventStream, error) {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], "/"+ServiceName+"/WatchEvents")
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{Namespace: namespace}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &eventStream{stream}, nil
}
