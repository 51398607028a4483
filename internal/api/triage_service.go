package api

import (
	"context"
	"errors"
	"strings"

	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/bus"
	"github.com/matheus3301/tgtriage/internal/enrich"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func (s *Service) Priority(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	items, err := s.enrich.Priority(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := PriorityResponse{Items: make([]ActionItem, len(items))}
	for i, it := range items {
		resp.Items[i] = ActionItem{
			ChatName:        it.ChatName,
			SenderName:      it.SenderName,
			Summary:         it.Summary,
			SuggestedAction: it.SuggestedAction,
			Urgency:         string(it.Urgency),
		}
	}
	return encode(resp)
}

func (s *Service) StartSemanticSearch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SemanticStartRequest
	if err := decode(in, &req); err != nil || strings.TrimSpace(req.Query) == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "semantic search: query is required")
	}
	page, err := s.enrich.StartSemanticSearch(ctx, req.Query)
	return s.semanticReply(page, err)
}

func (s *Service) NextSemanticPage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req SemanticNextRequest
	if err := decode(in, &req); err != nil || req.SearchID == "" {
		return nil, grpcstatus.Error(codes.InvalidArgument, "semantic search: searchId is required")
	}
	page, err := s.enrich.NextSemanticPage(ctx, req.SearchID)
	return s.semanticReply(page, err)
}

// semanticReply returns the accumulated page even when the page itself
// could not load any chat, so clients can keep paging.
func (s *Service) semanticReply(page enrich.SemanticPage, err error) (*structpb.Struct, error) {
	if err != nil && !errors.Is(err, apperr.ErrAllCandidatesFailed) {
		return nil, toStatus(err)
	}
	if err != nil {
		s.logger.Warn("semantic page loaded no chats", zap.String("search", page.SearchID))
		if !page.HasMore {
			return nil, toStatus(err)
		}
	}
	return encode(semanticPageOut(page))
}

func (s *Service) Digest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DigestRequest
	if err := decode(in, &req); err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "digest: %v", err)
	}
	period, ok := enrich.ParsePeriod(req.Period)
	if !ok {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "digest: unknown period %q", req.Period)
	}

	d, err := s.enrich.Digest(ctx, period)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := DigestResponse{
		Period:          string(d.Period),
		Sections:        make([]DigestSection, len(d.Sections)),
		GeneratedAtUnix: d.GeneratedAt.Unix(),
	}
	for i, sec := range d.Sections {
		resp.Sections[i] = DigestSection{Emoji: sec.Emoji, Title: sec.Title, Content: sec.Content}
	}
	return encode(resp)
}

func (s *Service) CategorizeDirect(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	msgs, err := s.enrich.CategorizeDirect(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	resp := CategorizeResponse{Messages: make([]CategorizedMessage, len(msgs))}
	for i, m := range msgs {
		resp.Messages[i] = CategorizedMessage{
			Message:  messageOut(m.Message),
			Category: string(m.Category),
			Reason:   m.Reason,
		}
	}
	return encode(resp)
}

// WatchPipeline runs the follow-up pipeline and streams every snapshot. A
// newer WatchPipeline call supersedes this one, which then ends with
// Aborted.
func (s *Service) WatchPipeline(_ *structpb.Struct, stream grpc.ServerStream) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()

	var sendErr error
	err := s.enrich.Pipeline(ctx, func(snap enrich.PipelineSnapshot) {
		if sendErr != nil {
			return
		}
		msg, err := encode(snapshotOut(snap))
		if err == nil {
			err = stream.SendMsg(msg)
		}
		if err != nil {
			sendErr = err
			cancel()
			return
		}
		s.bus.Emit(bus.KindPipelineItem, snap.RunID)
	})

	switch {
	case sendErr != nil:
		return sendErr
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled) && stream.Context().Err() == nil:
		return grpcstatus.Error(codes.Aborted, "pipeline superseded by a newer run")
	}
	return toStatus(err)
}
