package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/beka-birhanu/claw-arbiter/service"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrMissingRouter = errors.New("api requires a command router")
	ErrBadPayload    = errors.New("request body is not valid JSON")
)

// classify maps core errors onto a transport-neutral code.
func classify(err error) (codes.Code, int, string) {
	switch {
	case errors.Is(err, service.ErrNotActiveClient):
		return codes.PermissionDenied, http.StatusForbidden, "not_active_client"
	case errors.Is(err, service.ErrInvalidDirection):
		return codes.InvalidArgument, http.StatusUnprocessableEntity, "invalid_direction"
	case errors.Is(err, service.ErrMissingClientID):
		return codes.InvalidArgument, http.StatusUnprocessableEntity, "missing_client_id"
	case errors.Is(err, service.ErrMissingEvent):
		return codes.InvalidArgument, http.StatusUnprocessableEntity, "missing_event"
	case errors.Is(err, ErrBadPayload):
		return codes.InvalidArgument, http.StatusBadRequest, "bad_payload"
	default:
		return codes.Internal, http.StatusInternalServerError, "internal"
	}
}

func grpcError(err error) error {
	code, _, _ := classify(err)
	return status.Error(code, err.Error())
}

// LoggingInterceptor logs every unary call with its status and latency.
func LoggingInterceptor(logger i.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		res, err := handler(ctx, req)
		msg := fmt.Sprintf("%s %s in %s", info.FullMethod, status.Code(err), time.Since(start).Round(time.Microsecond))
		if err != nil && status.Code(err) == codes.Internal {
			logger.Error(msg + ": " + err.Error())
		} else {
			logger.Info(msg)
		}
		return res, err
	}
}
