package api

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/tg"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *Service) ListChats(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ListChatsRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "list chats: %v", err)
	}

	var chats []tg.Chat
	switch strings.ToLower(req.Filter) {
	case "", FilterVisible:
		chats = s.state.Visible()
	case FilterAll:
		chats = s.state.Chats()
	case FilterGroups:
		chats = s.state.Groups()
	case FilterDirect:
		chats = s.state.Direct()
	default:
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "unknown filter %q", req.Filter)
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.fetch.ChatListLimit
	}
	if limit > 0 && len(chats) > limit {
		chats = chats[:limit]
	}

	resp := ListChatsResponse{Chats: make([]Chat, len(chats))}
	for i, c := range chats {
		resp.Chats[i] = chatOut(c)
	}
	return encode(resp)
}

func (s *Service) SummarizeChat(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SummarizeRequest
	if err := decode(in, &req); err != nil || req.ChatID == 0 {
		return nil, grpcstatus.Error(codes.InvalidArgument, "summarize: chatId is required")
	}
	chat, ok := s.state.Chat(req.ChatID)
	if !ok {
		return nil, grpcstatus.Errorf(codes.NotFound, "chat %d not found", req.ChatID)
	}

	summary, err := s.enrich.SummarizeChat(ctx, chat.ID, chat.Title)
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(SummarizeResponse{ChatID: chat.ID, Summary: summary})
}

// WatchEvents streams bus events matching the requested prefix until the
// client goes away.
func (s *Service) WatchEvents(in *structpb.Struct, stream grpc.ServerStream) error {
	if s.bus == nil {
		return grpcstatus.Error(codes.Unavailable, "event bus not available")
	}
	var req WatchEventsRequest
	if err := decode(in, &req); err != nil {
		return grpcstatus.Errorf(codes.InvalidArgument, "watch events: %v", err)
	}

	ch, unsub := s.bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt := <-ch:
			msg, err := encode(Event{
				ID:             uuid.NewString(),
				Session:        s.sessionName,
				Kind:           evt.Kind,
				OccurredAtUnix: evt.Timestamp.Unix(),
				ChatID:         eventChatID(evt),
			})
			if err != nil {
				return err
			}
			if err := stream.SendMsg(msg); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func eventChatID(evt bus.Event) int64 {
	switch p := evt.Payload.(type) {
	case bus.ChatsChanged:
		return p.ChatID
	case bus.MessageArchived:
		return p.ChatID
	}
	return 0
}
