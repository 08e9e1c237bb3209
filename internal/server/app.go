// Package server initializes and runs the calauth server: it opens storage,
// applies migrations, builds the credential and session services and runs
// the gRPC API next to the HTTP health endpoint until shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/auth"
	"github.com/dmitrijs2005/calauth/internal/server/config"
	"github.com/dmitrijs2005/calauth/internal/server/credentials"
	"github.com/dmitrijs2005/calauth/internal/server/health"
	"github.com/dmitrijs2005/calauth/internal/server/notify"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calauth/internal/server/revocation"
	"github.com/dmitrijs2005/calauth/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/calauth/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  redis.UniversalClient
	grpc   *gs.GRPCServer
	health *health.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, err
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	app := &App{config: c, logger: logger, db: db}

	var denylist revocation.Cache = revocation.Nop{}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		denylist = revocation.NewRedisCache(app.redis)
	} else {
		logger.Warn(ctx, "redis address not set, revoked access tokens stay valid until they expire")
	}

	var notifier notify.Notifier
	if c.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(c.SMTPHost, c.SMTPPort, c.SMTPUser, c.SMTPPassword, c.SMTPFrom)
	} else {
		logger.Warn(ctx, "smtp host not set, reset links are not delivered")
		notifier = notify.NewLogNotifier(logger)
	}

	hasher := credentials.NewDefaultHasher()
	issuer := auth.NewIssuer([]byte(c.SecretKey), c.AccessTokenValidityDuration)

	authn := services.NewAuthenticator(db, m, hasher, logger)
	sessions := services.NewSessionManager(db, m, issuer, c.RefreshTokenValidityDuration, denylist, logger)
	resets := services.NewPasswordResetManager(db, m, hasher, notifier, c.ResetTokenValidityDuration, c.ResetLinkBaseURL, logger)
	directory := services.NewDirectory(db, m, hasher, logger)

	app.grpc = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, authn, sessions, resets, directory, issuer)
	app.health = health.NewServer(c.EndpointAddrHTTP, db, logger)

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := app.grpc.Run(ctx); err != nil {
			app.logger.Error(ctx, "grpc server failed", "error", err)
			cancelFunc()
		}
	}()
	go func() {
		defer wg.Done()
		if err := app.health.Run(ctx); err != nil {
			app.logger.Error(ctx, "health server failed", "error", err)
			cancelFunc()
		}
	}()

	wg.Wait()
	app.close(context.WithoutCancel(ctx))
}

func (app *App) close(ctx context.Context) {
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Warn(ctx, "redis close failed", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
