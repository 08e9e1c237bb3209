package grpc

import (
	"errors"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/server/authz"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const msgInvalidResetToken = "invalid or expired reset token"

// toStatus maps service errors onto gRPC statuses with generic messages.
func toStatus(err error) error {
	var denied *authz.DeniedError
	switch {
	case errors.As(err, &denied):
		return status.Error(codes.PermissionDenied, deniedMessage(denied.Reason))
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrSessionNotFound),
		errors.Is(err, common.ErrSessionRevoked),
		errors.Is(err, common.ErrInvalidToken):
		return status.Error(codes.Unauthenticated, "invalid session")
	case errors.Is(err, common.ErrSessionExpired):
		return status.Error(codes.Unauthenticated, "session expired")
	case errors.Is(err, common.ErrTokenNotFound),
		errors.Is(err, common.ErrTokenAlreadyUsed),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.InvalidArgument, msgInvalidResetToken)
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, "validation failed")
	case errors.Is(err, common.ErrDelivery):
		return status.Error(codes.Unavailable, "delivery failed, try again later")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// deniedMessage keeps the machine-readable reason in front of the text.
func deniedMessage(r authz.Reason) string {
	return string(r) + ": " + r.Message()
}
