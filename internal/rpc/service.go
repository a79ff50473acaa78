package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "gigchat.v1.Messenger"

// MessengerServer is the daemon side of the control API.
type MessengerServer interface {
	GetStatus(context.Context, *emptypb.Empty) (*Status, error)
	ListContacts(context.Context, *emptypb.Empty) (*ContactList, error)
	SelectContact(context.Context, *ContactRef) (*emptypb.Empty, error)
	ListMessages(context.Context, *ListMessagesRequest) (*MessageList, error)
	SendText(context.Context, *SendTextRequest) (*SendResult, error)
	StageAttachment(context.Context, *StageAttachmentRequest) (*Draft, error)
	ClearAttachment(context.Context, *emptypb.Empty) (*Draft, error)
	UpdateDraft(context.Context, *UpdateDraftRequest) (*Draft, error)
	Submit(context.Context, *emptypb.Empty) (*SendResult, error)
	SetReplyTarget(context.Context, *MessageRef) (*Reply, error)
	DeleteMessage(context.Context, *MessageRef) (*emptypb.Empty, error)
	SearchMessages(context.Context, *SearchRequest) (*SearchResults, error)
	WatchEvents(*WatchRequest, Messenger_WatchEventsServer) error
}

// Messenger_WatchEventsServer is the server side of the event stream.
type Messenger_WatchEventsServer interface {
	Send(*Event) error
	grpc.ServerStream
}

type watchEventsServer struct {
	grpc.ServerStream
}

func (s *watchEventsServer) Send(e *Event) error {
	return s.ServerStream.SendMsg(e)
}

// RegisterMessengerServer registers srv on s.
func RegisterMessengerServer(s grpc.ServiceRegistrar, srv MessengerServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed method to a grpc.MethodDesc.
func unary[Req any, Resp any](name string, call func(MessengerServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MessengerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MessengerServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(MessengerServer).WatchEvents(in, &watchEventsServer{stream})
}

// ServiceDesc describes gigchat.v1.Messenger.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MessengerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetStatus", MessengerServer.GetStatus),
		unary("ListContacts", MessengerServer.ListContacts),
		unary("SelectContact", MessengerServer.SelectContact),
		unary("ListMessages", MessengerServer.ListMessages),
		unary("SendText", MessengerServer.SendText),
		unary("StageAttachment", MessengerServer.StageAttachment),
		unary("ClearAttachment", MessengerServer.ClearAttachment),
		unary("UpdateDraft", MessengerServer.UpdateDraft),
		unary("Submit", MessengerServer.Submit),
		unary("SetReplyTarget", MessengerServer.SetReplyTarget),
		unary("DeleteMessage", MessengerServer.DeleteMessage),
		unary("SearchMessages", MessengerServer.SearchMessages),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "gigchat/v1/messenger",
}
