package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/famledger/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ToStatus converts a service error into a gRPC status error.
func ToStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	code := codes.Internal
	switch {
	case errors.Is(err, common.ErrTokenExpired):
		// the client interceptor matches this message to trigger a refresh
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrInvalidToken):
		code = codes.Unauthenticated
	case errors.Is(err, common.ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, common.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, common.ErrVersionConflict):
		code = codes.Aborted
	case errors.Is(err, common.ErrInvalidArgument):
		code = codes.InvalidArgument
	case errors.Is(err, common.ErrAlreadyExists):
		code = codes.AlreadyExists
	case errors.Is(err, common.ErrCorruption):
		code = codes.DataLoss
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	default:
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}

// FromStatus converts a gRPC error back into the matching sentinel,
// keeping the server's message.
func FromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var sentinel error
	switch st.Code() {
	case codes.OK:
		return nil
	case codes.Unauthenticated:
		if st.Message() == common.ErrTokenExpired.Error() {
			return common.ErrTokenExpired
		}
		sentinel = common.ErrUnauthorized
	case codes.PermissionDenied:
		sentinel = common.ErrUnauthorized
	case codes.NotFound:
		sentinel = common.ErrNotFound
	case codes.Aborted:
		sentinel = common.ErrVersionConflict
	case codes.InvalidArgument:
		sentinel = common.ErrInvalidArgument
	case codes.AlreadyExists:
		sentinel = common.ErrAlreadyExists
	case codes.DataLoss:
		sentinel = common.ErrCorruption
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		sentinel = common.ErrNetwork
	default:
		sentinel = common.ErrInternal
	}
	return fmt.Errorf("%w: %s", sentinel, st.Message())
}
