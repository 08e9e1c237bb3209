// Package grpc exposes the credential and session lifecycle over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/auth"
	"github.com/dmitrijs2005/calauth/internal/server/models"
	"github.com/dmitrijs2005/calauth/internal/server/services"
	"google.golang.org/grpc"
)

type Authenticator interface {
	Authenticate(ctx context.Context, email, password string, client models.ClientInfo) (*models.User, error)
}

type SessionManager interface {
	Issue(ctx context.Context, userID string, client models.ClientInfo) (*services.TokenPair, error)
	Rotate(ctx context.Context, sessionID, userID string, client models.ClientInfo) (*services.TokenPair, error)
	Revoke(ctx context.Context, sessionID string) error
	Get(ctx context.Context, sessionID string) (*models.Session, error)
	ListActive(ctx context.Context, userID string) ([]models.Session, error)
	IsRevoked(ctx context.Context, sessionID string) bool
	Touch(ctx context.Context, sessionID string)
}

type PasswordResetManager interface {
	Request(ctx context.Context, email string, client models.ClientInfo) (string, error)
	Consume(ctx context.Context, secret, newPassword string) (*models.User, error)
}

type Directory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type TokenParser interface {
	Parse(token string, kind auth.TokenKind) (*auth.Claims, error)
}

type GRPCServer struct {
	address   string
	logger    logging.Logger
	authn     Authenticator
	sessions  SessionManager
	resets    PasswordResetManager
	directory Directory
	tokens    TokenParser
}

func NewGRPCServer(a string, l logging.Logger, authn Authenticator, sm SessionManager, rm PasswordResetManager,
	dir Directory, tokens TokenParser) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		authn:     authn,
		sessions:  sm,
		resets:    rm,
		directory: dir,
		tokens:    tokens,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))
	RegisterAuthServiceServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on an existing listener until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	return nil
}
