package api

import (
	"context"
	"strings"

	"github.com/matheus3301/tgtriage/internal/tg"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *Service) Route(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req RouteRequest
	if err := decode(in, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "route: query is required")
	}
	r := s.router.Route(ctx, req.Query)
	s.logger.Debug("query routed",
		zap.String("intent", string(r.Intent)),
		zap.Bool("by_ai", r.ByAI),
	)
	return encode(RouteResponse{Intent: string(r.Intent), Query: r.Query, ByAI: r.ByAI})
}

func (s *Service) SearchMessages(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SearchRequest
	if err := decode(in, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "search: query is required")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.fetch.SearchLimit
	}

	var (
		msgs []tg.Message
		err  error
	)
	if req.ChatID != 0 {
		msgs, err = s.telegram.SearchChatMessages(ctx, req.ChatID, req.Query, limit)
	} else {
		msgs, err = s.telegram.SearchMessages(ctx, req.Query, limit)
	}
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(SearchResponse{Messages: messagesOut(msgs)})
}
