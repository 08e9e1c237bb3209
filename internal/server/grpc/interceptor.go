package grpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/calauth/internal/common"
	"github.com/dmitrijs2005/calauth/internal/server/auth"
	"github.com/dmitrijs2005/calauth/internal/server/authz"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// protectedMethods need a valid access token.
var protectedMethods = map[string]bool{
	FullMethod(MethodListSessions):  true,
	FullMethod(MethodRevokeSession): true,
}

// accessTokenInterceptor resolves the caller identity for protected methods
// and stores it in the context: the token must verify, its session must not
// be on the denylist and its user must still exist.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := metadataValue(ctx, common.AccessTokenHeaderName)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.tokens.Parse(accessToken, auth.KindAccess)
	if err != nil {
		if auth.IsExpired(err) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if s.sessions.IsRevoked(ctx, claims.SessionID) {
		return nil, status.Error(codes.Unauthenticated, "token revoked")
	}

	user, err := s.directory.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, status.Error(codes.Unauthenticated, "user not found")
		}
		return nil, toStatus(err)
	}

	s.sessions.Touch(ctx, claims.SessionID)

	ctx = authz.WithIdentity(ctx, &authz.Identity{
		UserID:        user.ID,
		SessionID:     claims.SessionID,
		Email:         user.Email,
		Roles:         user.Roles,
		Active:        user.IsActive,
		EmailVerified: user.IsEmailVerified,
	})

	return handler(ctx, req)
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}

// maxDeviceNameRunes matches the user_sessions.device_name column width.
const maxDeviceNameRunes = 100

// truncateRunes cuts s to at most n characters, never inside a multi-byte
// sequence.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// clientInfo collects device metadata from the call. deviceName from the
// request body wins over the header.
func clientInfo(ctx context.Context, deviceName string) models.ClientInfo {
	c := models.ClientInfo{
		DeviceName: deviceName,
		UserAgent:  metadataValue(ctx, "user-agent"),
	}
	if c.DeviceName == "" {
		c.DeviceName = metadataValue(ctx, common.DeviceNameHeaderName)
	}
	c.DeviceName = truncateRunes(c.DeviceName, maxDeviceNameRunes)
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		addr := p.Addr.String()
		if host, _, err := net.SplitHostPort(addr); err == nil {
			addr = host
		}
		c.IPAddress = strings.TrimSpace(addr)
	}
	return c
}
