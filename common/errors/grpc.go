package errors

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func ToGRPCError(err error) error {
	if err == nil {
		return nil
	}

	if appErr, ok := As(err); ok {
		return status.Error(mapErrorCodeToGRPC(appErr.Code), appErr.Message)
	}

	if _, ok := status.FromError(err); ok {
		return err
	}

	return status.Error(codes.Internal, err.Error())
}

func mapErrorCodeToGRPC(code ErrorCode) codes.Code {
	switch code {
	case CodeNotFound:
		return codes.NotFound
	case CodeAlreadyExists:
		return codes.AlreadyExists
	case CodeInvalidInput:
		return codes.InvalidArgument
	case CodeUnauthorized:
		return codes.Unauthenticated
	case CodeForbidden:
		return codes.PermissionDenied
	case CodeConflict:
		return codes.Aborted
	case CodeServiceUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}
