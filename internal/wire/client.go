package wire

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ChannelClient is the client stub for convo.v1.Channel.
type ChannelClient struct {
	cc grpc.ClientConnInterface
}

// NewChannelClient wraps a connection.
func NewChannelClient(cc grpc.ClientConnInterface) *ChannelClient {
	return &ChannelClient{cc: cc}
}

func (c *ChannelClient) structCall(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ChannelClient) emptyCall(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.cc.Invoke(ctx, FullMethod(name), in, new(emptypb.Empty), opts...)
}

func (c *ChannelClient) FetchPage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, MethodFetchPage, in, opts...)
}

func (c *ChannelClient) InsertMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, MethodInsertMessage, in, opts...)
}

func (c *ChannelClient) UpdateMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.emptyCall(ctx, MethodUpdateMessage, in, opts...)
}

func (c *ChannelClient) DeleteMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.emptyCall(ctx, MethodDeleteMessage, in, opts...)
}

func (c *ChannelClient) PublishTyping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.emptyCall(ctx, MethodPublishTyping, in, opts...)
}

func (c *ChannelClient) FetchTyping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, MethodFetchTyping, in, opts...)
}

func (c *ChannelClient) ListConversations(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, MethodListConversations, in, opts...)
}

func (c *ChannelClient) EnsureConversation(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) error {
	return c.emptyCall(ctx, MethodEnsureConversation, in, opts...)
}

func (c *ChannelClient) Status(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.structCall(ctx, MethodStatus, &structpb.Struct{}, opts...)
}

// SubscribeClient is the client side of the Subscribe stream.
type SubscribeClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type subscribeClient struct {
	grpc.ClientStream
}

func (x *subscribeClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Subscribe opens a server stream of events. in carries conversation_id and topic.
func (c *ChannelClient) Subscribe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (SubscribeClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodSubscribe), opts...)
	if err != nil {
		return nil, err
	}
	x := &subscribeClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
