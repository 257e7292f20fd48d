// Package wire defines the convo.v1.Channel gRPC service spoken between the
// convod daemon and its clients. Messages are google.protobuf.Struct values
// built by the codecs in this package; timestamps travel as unix milliseconds.
package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "convo.v1.Channel"

// Method names.
const (
	MethodFetchPage          = "FetchPage"
	MethodInsertMessage      = "InsertMessage"
	MethodUpdateMessage      = "UpdateMessage"
	MethodDeleteMessage      = "DeleteMessage"
	MethodPublishTyping      = "PublishTyping"
	MethodFetchTyping        = "FetchTyping"
	MethodListConversations  = "ListConversations"
	MethodEnsureConversation = "EnsureConversation"
	MethodStatus             = "Status"
	MethodSubscribe          = "Subscribe"
)

// FullMethod returns the "/service/method" path of a method.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// ChannelServer is the server API for convo.v1.Channel.
type ChannelServer interface {
	FetchPage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	InsertMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateMessage(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	DeleteMessage(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	PublishTyping(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	FetchTyping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConversations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnsureConversation(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Status(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Subscribe(*structpb.Struct, SubscribeServer) error
}

// SubscribeServer is the server side of the Subscribe stream.
type SubscribeServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type subscribeServer struct {
	grpc.ServerStream
}

func (s *subscribeServer) Send(m *structpb.Struct) error {
	return s.ServerStream.SendMsg(m)
}

type unaryCall func(ChannelServer, context.Context, *structpb.Struct) (proto.Message, error)

func method(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChannelServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChannelServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChannelServer).Subscribe(in, &subscribeServer{stream})
}

// ServiceDesc describes convo.v1.Channel for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChannelServer)(nil),
	Methods: []grpc.MethodDesc{
		method(MethodFetchPage, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.FetchPage(ctx, in)
		}),
		method(MethodInsertMessage, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.InsertMessage(ctx, in)
		}),
		method(MethodUpdateMessage, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.UpdateMessage(ctx, in)
		}),
		method(MethodDeleteMessage, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.DeleteMessage(ctx, in)
		}),
		method(MethodPublishTyping, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.PublishTyping(ctx, in)
		}),
		method(MethodFetchTyping, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.FetchTyping(ctx, in)
		}),
		method(MethodListConversations, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.ListConversations(ctx, in)
		}),
		method(MethodEnsureConversation, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.EnsureConversation(ctx, in)
		}),
		method(MethodStatus, func(s ChannelServer, ctx context.Context, in *structpb.Struct) (proto.Message, error) {
			return s.Status(ctx, in)
		}),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodSubscribe,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "convo/v1/channel.proto",
}

// RegisterChannelServer registers srv on s.
func RegisterChannelServer(s grpc.ServiceRegistrar, srv ChannelServer) {
	s.RegisterService(&ServiceDesc, srv)
}
