package grpc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/server/auth"
	"github.com/dmitrijs2005/calauth/internal/server/authz"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// msgResetRequested is returned for every well-formed reset request so the
// response does not reveal whether the email has an account.
const msgResetRequested = "If an account exists for this email, a reset link has been sent"

var revokeSessionChain = authz.RequireActive.Then(authz.OwnerOrRole())

func stringField(in *structpb.Struct, key string) string {
	if in == nil {
		return ""
	}
	v, ok := in.GetFields()[key]
	if !ok {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func statusResult(msg string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{"status": msg})
}

func (s *GRPCServer) Login(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email := stringField(in, "email")
	password := ""
	if v, ok := in.GetFields()["password"]; ok {
		password = v.GetStringValue()
	}
	if email == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password are required")
	}

	client := clientInfo(ctx, stringField(in, "device_name"))

	user, err := s.authn.Authenticate(ctx, email, password, client)
	if err != nil {
		return nil, toStatus(err)
	}

	pair, err := s.sessions.Issue(ctx, user.ID, client)
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"session_id":    pair.SessionID,
		"expires_at":    pair.RefreshExpiresAt.UTC().Format(time.RFC3339),
		"user": map[string]interface{}{
			"id":                user.ID,
			"email":             user.Email,
			"is_email_verified": user.IsEmailVerified,
		},
	})
}

func (s *GRPCServer) Refresh(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(in, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	claims, err := s.tokens.Parse(token, auth.KindRefresh)
	if err != nil {
		if auth.IsExpired(err) {
			return nil, toStatus(common.ErrSessionExpired)
		}
		return nil, toStatus(err)
	}

	pair, err := s.sessions.Rotate(ctx, claims.SessionID, claims.UserID, clientInfo(ctx, ""))
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"session_id":    pair.SessionID,
		"expires_at":    pair.RefreshExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *GRPCServer) Logout(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(in, "refresh_token")
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "refresh_token is required")
	}

	claims, err := s.tokens.Parse(token, auth.KindRefresh)
	if err != nil {
		// an expired refresh token has no session left to end
		if auth.IsExpired(err) {
			return statusResult("logged out")
		}
		return nil, toStatus(err)
	}

	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		return nil, toStatus(err)
	}
	return statusResult("logged out")
}

func (s *GRPCServer) RequestPasswordReset(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	email := stringField(in, "email")
	if email == "" {
		return nil, status.Error(codes.InvalidArgument, "email is required")
	}

	_, err := s.resets.Request(ctx, email, clientInfo(ctx, ""))
	switch {
	case err == nil, errors.Is(err, common.ErrAccountNotFound):
	case errors.Is(err, common.ErrDelivery):
		s.logger.Error(ctx, "reset link delivery failed", "error", err)
	default:
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]interface{}{"message": msgResetRequested})
}

func (s *GRPCServer) ResetPassword(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	token := stringField(in, "token")
	password := ""
	if v, ok := in.GetFields()["new_password"]; ok {
		password = v.GetStringValue()
	}
	if token == "" || password == "" {
		return nil, status.Error(codes.InvalidArgument, "token and new_password are required")
	}

	if _, err := s.resets.Consume(ctx, token, password); err != nil {
		return nil, toStatus(err)
	}
	return statusResult("password updated")
}

func (s *GRPCServer) ListSessions(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, _ := authz.FromContext(ctx)
	if err := authz.RequireActive.Evaluate(id, authz.Resource{}).Err(); err != nil {
		return nil, toStatus(err)
	}

	list, err := s.sessions.ListActive(ctx, id.UserID)
	if err != nil {
		return nil, toStatus(err)
	}

	items := make([]interface{}, 0, len(list))
	for _, sess := range list {
		items = append(items, sessionView(sess, id.SessionID))
	}
	return structpb.NewStruct(map[string]interface{}{"sessions": items})
}

func (s *GRPCServer) RevokeSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id, _ := authz.FromContext(ctx)
	if err := authz.RequireActive.Evaluate(id, authz.Resource{}).Err(); err != nil {
		return nil, toStatus(err)
	}

	sessionID := stringField(in, "session_id")
	if sessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "session_id is required")
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, common.ErrSessionNotFound) {
			return nil, status.Error(codes.NotFound, "session not found")
		}
		return nil, toStatus(err)
	}

	if err := revokeSessionChain.Evaluate(id, authz.Resource{OwnerID: sess.UserID}).Err(); err != nil {
		return nil, toStatus(err)
	}

	if err := s.sessions.Revoke(ctx, sess.ID); err != nil {
		return nil, toStatus(err)
	}
	return statusResult("session revoked")
}

func sessionView(sess models.Session, current string) map[string]interface{} {
	v := map[string]interface{}{
		"id":          sess.ID,
		"device_name": sess.Client.DeviceName,
		"ip_address":  sess.Client.IPAddress,
		"user_agent":  sess.Client.UserAgent,
		"created_at":  sess.CreatedAt.UTC().Format(time.RFC3339),
		"expires_at":  sess.ExpiresAt.UTC().Format(time.RFC3339),
		"current":     sess.ID == current,
	}
	if sess.LastSeenAt != nil {
		v["last_seen_at"] = sess.LastSeenAt.UTC().Format(time.RFC3339)
	}
	return v
}
