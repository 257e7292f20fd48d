// Package api serves a conversation backend over the convo.v1.Channel gRPC service.
package api

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/matheus3301/convo/internal/chat"
	"github.com/matheus3301/convo/internal/metrics"
	"github.com/matheus3301/convo/internal/remote"
	"github.com/matheus3301/convo/internal/status"
	"github.com/matheus3301/convo/internal/wire"
)

// ChannelService implements wire.ChannelServer on top of a remote.Channel.
type ChannelService struct {
	profile   string
	backend   string
	startedAt time.Time
	ch        remote.Channel
	machine   *status.Machine
	logger    *zap.Logger
	streams   atomic.Int64
}

var _ wire.ChannelServer = (*ChannelService)(nil)

// NewChannelService creates a service for the named profile and backend.
func NewChannelService(profile, backend string, ch remote.Channel, machine *status.Machine, logger *zap.Logger) *ChannelService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChannelService{
		profile:   profile,
		backend:   backend,
		startedAt: time.Now(),
		ch:        ch,
		machine:   machine,
		logger:    logger,
	}
}

// toStatus maps domain errors onto gRPC codes.
func toStatus(op string, err error) error {
	switch {
	case errors.Is(err, chat.ErrNotFound):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.Is(err, chat.ErrEmptyContent):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.Is(err, context.Canceled):
		return grpcstatus.Errorf(codes.Canceled, "%s: %v", op, err)
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Errorf(codes.DeadlineExceeded, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}

func require(req *structpb.Struct, keys ...string) error {
	for _, k := range keys {
		if wire.String(req, k) == "" {
			return grpcstatus.Errorf(codes.InvalidArgument, "missing %s", k)
		}
	}
	return nil
}

func (s *ChannelService) FetchPage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := require(req, wire.FieldConversationID); err != nil {
		return nil, err
	}
	var before *time.Time
	if wire.Has(req, wire.FieldBefore) {
		t := chat.FromMillis(wire.Int(req, wire.FieldBefore))
		before = &t
	}
	msgs, err := s.ch.FetchPage(ctx, wire.String(req, wire.FieldConversationID), before, int(wire.Int(req, wire.FieldLimit)))
	if err != nil {
		return nil, toStatus("fetch page", err)
	}
	return wire.EncodeMessages(msgs), nil
}

func (s *ChannelService) InsertMessage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := require(req, wire.FieldConversationID, wire.FieldSenderID); err != nil {
		return nil, err
	}
	content := wire.String(req, wire.FieldContent)
	if strings.TrimSpace(content) == "" {
		return nil, toStatus("insert message", chat.ErrEmptyContent)
	}
	m, err := s.ch.InsertMessage(ctx, wire.String(req, wire.FieldConversationID), wire.String(req, wire.FieldSenderID), content)
	if err != nil {
		return nil, toStatus("insert message", err)
	}
	return wire.EncodeMessage(m), nil
}

func (s *ChannelService) UpdateMessage(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	id, patch := wire.DecodePatch(req)
	if id == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "missing %s", wire.FieldID)
	}
	if patch.Empty() {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "update %s carries no fields", id)
	}
	if err := s.ch.UpdateMessage(ctx, id, patch); err != nil {
		return nil, toStatus("update message", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *ChannelService) DeleteMessage(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if err := require(req, wire.FieldID); err != nil {
		return nil, err
	}
	if err := s.ch.DeleteMessage(ctx, wire.String(req, wire.FieldID)); err != nil {
		return nil, toStatus("delete message", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *ChannelService) PublishTyping(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	rec := wire.DecodeTyping(req)
	if rec.ConversationID == "" || rec.UserID == "" || rec.UpdatedAt.IsZero() {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "typing record needs conversation, user and timestamp")
	}
	if err := s.ch.PublishTyping(ctx, rec); err != nil {
		return nil, toStatus("publish typing", err)
	}
	return &emptypb.Empty{}, nil
}

func (s *ChannelService) FetchTyping(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := require(req, wire.FieldConversationID); err != nil {
		return nil, err
	}
	recs, err := s.ch.FetchTyping(ctx, wire.String(req, wire.FieldConversationID))
	if err != nil {
		return nil, toStatus("fetch typing", err)
	}
	return wire.EncodeTypingRecords(recs), nil
}

func (s *ChannelService) ListConversations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := require(req, wire.FieldUserID); err != nil {
		return nil, err
	}
	convs, err := s.ch.ListConversations(ctx, wire.String(req, wire.FieldUserID))
	if err != nil {
		return nil, toStatus("list conversations", err)
	}
	return wire.EncodeConversations(convs), nil
}

func (s *ChannelService) EnsureConversation(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	dir, ok := s.ch.(remote.Directory)
	if !ok {
		return nil, grpcstatus.Errorf(codes.Unimplemented, "backend %s cannot create conversations", s.backend)
	}
	conv := wire.DecodeConversation(req)
	if conv.ID == "" {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "missing %s", wire.FieldID)
	}
	if err := dir.EnsureConversation(ctx, conv); err != nil {
		return nil, toStatus("ensure conversation", err)
	}
	return &emptypb.Empty{}, nil
}

// Status reports the daemon's profile, backend and link health.
func (s *ChannelService) Status(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	fields := map[string]*structpb.Value{
		"profile":   structpb.NewStringValue(s.profile),
		"backend":   structpb.NewStringValue(s.backend),
		"uptime_ms": structpb.NewNumberValue(float64(time.Since(s.startedAt).Milliseconds())),
		"streams":   structpb.NewNumberValue(float64(s.streams.Load())),
	}
	if s.machine != nil {
		fields["link"] = structpb.NewStringValue(string(s.machine.Current()))
		fields["link_since_ms"] = structpb.NewNumberValue(float64(s.machine.Since().UnixMilli()))
	}
	return wire.Fields(fields), nil
}

// Subscribe relays one backend subscription to the stream until the client goes away.
func (s *ChannelService) Subscribe(req *structpb.Struct, stream wire.SubscribeServer) error {
	if err := require(req, wire.FieldConversationID); err != nil {
		return err
	}
	ctx := stream.Context()
	convID := wire.String(req, wire.FieldConversationID)
	topic := wire.String(req, wire.FieldTopic)

	var (
		sub remote.Subscription
		err error
	)
	switch topic {
	case wire.TopicMessages, "":
		topic = wire.TopicMessages
		sub, err = s.ch.Subscribe(ctx, convID)
	case wire.TopicTyping:
		sub, err = s.ch.SubscribeTyping(ctx, convID)
	default:
		return grpcstatus.Errorf(codes.InvalidArgument, "unknown topic %q", topic)
	}
	if err != nil {
		return toStatus("subscribe", err)
	}
	defer func() { _ = sub.Close() }()

	s.streams.Add(1)
	metrics.ActiveStreams.Inc()
	defer func() {
		s.streams.Add(-1)
		metrics.ActiveStreams.Dec()
	}()
	log := s.logger.With(zap.String("conversation_id", convID), zap.String("topic", topic))
	log.Debug("stream opened")

	// The first event confirms the subscription is live.
	if err := stream.Send(wire.EncodeEvent(chat.LinkEvent(chat.LinkUp, nil))); err != nil {
		return err
	}

	for {
		select {
		case evt := <-sub.Events():
			if evt.Kind == chat.EventLink {
				s.trackLink(evt)
			}
			if err := stream.Send(wire.EncodeEvent(evt)); err != nil {
				log.Debug("stream send failed", zap.Error(err))
				return err
			}
			metrics.StreamedEvents.WithLabelValues(topic).Inc()
		case <-ctx.Done():
			log.Debug("stream closed")
			return nil
		}
	}
}

// trackLink mirrors backend link events onto the daemon state machine.
func (s *ChannelService) trackLink(evt chat.Event) {
	if s.machine == nil {
		return
	}
	var to status.State
	switch evt.Link {
	case chat.LinkDown:
		to = status.Reconnecting
	case chat.LinkUp:
		to = status.Live
	default:
		return
	}
	if s.machine.Current() == to {
		return
	}
	if err := s.machine.Transition(to); err != nil {
		s.logger.Debug("link transition ignored", zap.Error(err))
		return
	}
	s.logger.Info("backend link changed", zap.String("state", string(to)), zap.Error(evt.Err))
}
