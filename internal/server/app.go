// Package server wires the memberkeeper server: storage, blob backend,
// services and the HTTP and gRPC endpoints, with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/dmitrijs2005/memberkeeper/internal/cryptox"
	"github.com/dmitrijs2005/memberkeeper/internal/logging"
	"github.com/dmitrijs2005/memberkeeper/internal/server/api"
	"github.com/dmitrijs2005/memberkeeper/internal/server/auth"
	"github.com/dmitrijs2005/memberkeeper/internal/server/blobstore"
	"github.com/dmitrijs2005/memberkeeper/internal/server/config"
	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/memberkeeper/internal/server/services"
	"github.com/dmitrijs2005/memberkeeper/internal/telemetry"

	gs "github.com/dmitrijs2005/memberkeeper/internal/server/grpc"
)

const (
	serviceName     = "memberkeeper"
	shutdownTimeout = 10 * time.Second
)

var initTracerProvider = telemetry.InitTracerProvider

type App struct {
	config          *config.Config
	logger          logging.Logger
	db              *sqlx.DB
	guard           *auth.Guard
	userService     *services.UserService
	mediaService    *services.MediaService
	tokenValidity   time.Duration
	shutdownTracing telemetry.ShutdownFunc
}

// NewApp connects to the database, applies migrations and builds the
// services described by c.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	shutdownTracing, err := initTracerProvider(ctx, serviceName, c.OTLPEndpoint, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := shutdownTracing(shutdownCtx); serr != nil {
			logger.Error(ctx, "tracing shutdown failed", "error", serr)
		}
	}()

	db, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	blobs, err := NewBlobStore(ctx, c)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		Secret:   []byte(c.SecretKey),
		Issuer:   c.TokenIssuer,
		Validity: c.AccessTokenValidityDuration,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	repo := rm.Users(db)

	return &App{
		config:          c,
		logger:          logger,
		db:              db,
		guard:           auth.NewGuard(tokens),
		userService:     services.NewUserService(repo, NewHasher(c), tokens, logger),
		mediaService:    services.NewMediaService(repo, blobs, logger, services.MediaConfig{Folder: c.AvatarFolder, MaxBytes: c.MaxAvatarBytes}),
		tokenValidity:   tokens.Validity(),
		shutdownTracing: shutdownTracing,
	}, nil
}

// NewHasher builds the password hasher from the configured Argon2 cost.
func NewHasher(c *config.Config) *cryptox.Argon2Hasher {
	return cryptox.NewArgon2Hasher(cryptox.Argon2Params{
		Time:      c.Argon2Time,
		MemoryKiB: c.Argon2MemoryKiB,
		Threads:   c.Argon2Threads,
	})
}

// NewBlobStore selects the configured blob backend.
func NewBlobStore(ctx context.Context, c *config.Config) (blobstore.BlobStore, error) {
	switch c.BlobBackend {
	case config.BlobBackendMemory:
		return blobstore.NewMemoryStore(c.S3PublicBaseURL + "/" + c.S3Bucket), nil
	case config.BlobBackendS3, "":
		return blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:        c.S3Bucket,
			Region:        c.S3Region,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			BaseEndpoint:  c.S3BaseEndpoint,
			PublicBaseURL: c.S3PublicBaseURL,
			UsePathStyle:  c.S3UsePathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
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

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewServer(app.config.EndpointAddrGRPC, app.guard, app.logger)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "gRPC server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	h := api.NewHandler(app.userService, app.mediaService, app.guard, app.logger, app.tokenValidity, app.config.MaxAvatarBytes)
	srv := api.NewApp(h)

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		if err := srv.ShutdownWithTimeout(shutdownTimeout); err != nil {
			app.logger.Error(ctx, "HTTP shutdown failed", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "address", app.config.EndpointAddrHTTP)
	if err := srv.Listen(app.config.EndpointAddrHTTP); err != nil {
		app.logger.Error(ctx, "HTTP server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until a termination signal arrives or a server fails, then
// drains background image cleanups and releases resources.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.mediaService.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := app.shutdownTracing(shutdownCtx); err != nil {
		app.logger.Error(ctx, "tracing shutdown failed", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
