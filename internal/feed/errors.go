package feed

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/intercept-engine/core"
	"github.com/signalsfoundry/intercept-engine/kb"
)

var (
	// ErrNoFrame is returned before the first snapshot has been published.
	ErrNoFrame = errors.New("no frame published yet")
	// ErrInvalidRequest is used for malformed request structs.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrStopped is returned when the frame loop is no longer running.
	ErrStopped = errors.New("frame loop stopped")
)

// ToStatusError maps engine and registry errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrBodyNotFound),
		errors.Is(err, kb.ErrStationNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, kb.ErrBodyInUse):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, kb.ErrBodyExists),
		errors.Is(err, kb.ErrStationExists):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, ErrNoFrame),
		errors.Is(err, ErrStopped):
		return status.Error(codes.Unavailable, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
