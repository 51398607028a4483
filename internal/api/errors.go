package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/matheus3301/tgtriage/internal/apperr"
	"github.com/matheus3301/tgtriage/internal/enrich"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps a core error to a gRPC status carrying the user-facing
// message.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	if errors.Is(err, enrich.ErrUnknownSearch) {
		return grpcstatus.Error(codes.NotFound, "Search expired or was replaced by a newer one.")
	}
	return grpcstatus.Error(codeOf(err), apperr.UserMessage(err))
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, enrich.ErrUnknownSearch):
		return codes.NotFound
	}
	switch apperr.KindOf(err) {
	case apperr.ClientNotReady, apperr.AllCandidatesFailed:
		return codes.Unavailable
	case apperr.NotConfigured:
		return codes.FailedPrecondition
	case apperr.NotFound:
		return codes.NotFound
	case apperr.ParseFailure, apperr.InvalidResponse:
		return codes.Internal
	case apperr.HTTP:
		switch apperr.StatusCode(err) {
		case http.StatusUnauthorized:
			return codes.Unauthenticated
		case http.StatusForbidden:
			return codes.PermissionDenied
		case http.StatusTooManyRequests:
			return codes.ResourceExhausted
		default:
			return codes.Unavailable
		}
	}
	return codes.Internal
}
