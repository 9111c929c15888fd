package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/cache"
	"github.com/Sakethtadimeti/checkin-app/common/config"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	"github.com/Sakethtadimeti/checkin-app/common/directory"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/natsjetstream"
	"github.com/Sakethtadimeti/checkin-app/common/ops"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
	subscriber "github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/events"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/events/publisher"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/handler"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/repository"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/internal/service"
)

const serviceName = "checkin-service"

type App struct {
	cfg             *config.Config
	logger          *logger.Logger
	db              *database.DynamoDBClient
	redisClient     *cache.RedisClient
	natsClient      *natsjetstream.Client
	directory       directory.Directory
	cachedDirectory *directory.CachedDirectory
	eventPublisher  service.EventPublisher
	eventSubscriber *subscriber.EventSubscriber
	router          http.Handler
	httpServer      *http.Server
	opsServer       *ops.Server

	cleanup []func() error
}

func New(ctx context.Context, cfg *config.Config) (*App, *apperrors.AppError) {
	app := &App{
		cfg:     cfg,
		cleanup: make([]func() error, 0),
	}

	app.initLogger()

	if err := app.initDatabase(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to init database")
	}

	if err := app.initCache(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to init cache")
	}

	app.initDirectory()

	if err := app.initNATS(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to init nats client")
	}

	app.initMessagePublisher()
	app.initHTTP()
	app.initOps()

	if err := app.initMessageSubscriber(ctx); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to init messaging subscriber")
	}

	return app, nil
}

func (a *App) initLogger() {
	a.logger = logger.New(logger.Config{
		Level:       a.cfg.Server.LogLevel,
		Format:      a.cfg.Server.LogFormat,
		ServiceName: serviceName,
	})
	a.cleanup = append(a.cleanup, a.logger.Sync)
}

func (a *App) initDatabase(ctx context.Context) *apperrors.AppError {
	dynamoClient, err := database.NewDynamoDBClient(ctx, a.cfg)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create DynamoDB client")
	}

	a.db = dynamoClient
	a.logger.Info("DynamoDB client ready",
		"users_table", a.cfg.DynamoDB.UsersTable,
		"checkins_table", a.cfg.DynamoDB.CheckInsTable,
	)
	return nil
}

func (a *App) initCache(ctx context.Context) *apperrors.AppError {
	if !a.cfg.CacheEnabled() {
		a.logger.Info("Redis address not configured, user cache disabled")
		return nil
	}

	redisClient, err := cache.NewRedisClient(ctx, a.cfg.Redis)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeCacheError, "failed to connect to redis")
	}

	a.redisClient = redisClient
	a.cleanup = append(a.cleanup, redisClient.Close)
	a.logger.Info("Connected to Redis", "address", a.cfg.Redis.Address)
	return nil
}

func (a *App) initDirectory() {
	a.directory = directory.NewDirectory(a.db, nil, a.cfg.Auth.BcryptCost)

	if a.redisClient != nil {
		userCache := cache.NewUserCache(a.redisClient.GetClient(), a.cfg.Redis.UserTTL)
		a.cachedDirectory = directory.NewCachedDirectory(a.directory, userCache, a.logger)
		a.directory = a.cachedDirectory
	}
}

func (a *App) initNATS(ctx context.Context) *apperrors.AppError {
	if !a.cfg.EventsEnabled() {
		a.logger.Info("NATS url not configured, events disabled")
		return nil
	}

	natsClient, err := natsjetstream.NewClient(natsjetstream.FromAppConfig(a.cfg.NATS), a.logger)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "failed to connect to nats")
	}

	a.natsClient = natsClient
	a.cleanup = append(a.cleanup, natsClient.Close)

	for _, stream := range commonevents.Streams() {
		if err := natsClient.EnsureStream(ctx, stream.Name, stream.Subjects); err != nil {
			a.logger.Error("Failed to create stream",
				"error", err,
				"stream", stream.Name,
			)
			return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to create jetstream event stream")
		}
	}

	return nil
}

func (a *App) initMessagePublisher() {
	if a.natsClient == nil {
		return
	}
	a.eventPublisher = publisher.NewEventPublisher(natsjetstream.NewPublisher(a.natsClient), nil, a.logger)
}

func (a *App) initHTTP() {
	transactionRepo := database.NewTransactionRepository(a.db)
	checkInRepo := repository.NewCheckInRepository(a.db, transactionRepo, a.directory, nil)

	checkInService := service.NewCheckInService(checkInRepo, a.eventPublisher, a.logger)
	userService := service.NewUserService(a.directory, a.logger)

	tokens := auth.NewTokenService(a.cfg.Auth.JWTSecret, a.cfg.Auth.AccessTokenTTL, a.cfg.Auth.RefreshTokenTTL, nil)

	a.router = handler.NewRouter(handler.RouterConfig{
		CheckIns:   handler.NewCheckInHandler(checkInService, validation.Default(), a.logger),
		Users:      handler.NewUserHandler(userService, a.logger),
		Health:     api.NewHealthHandler(serviceName, nil),
		Tokens:     tokens,
		Logger:     a.logger,
		CORSOrigin: a.cfg.Server.CORSOrigin,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.HTTPPort),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) initOps() {
	if a.cfg.Server.GRPCPort <= 0 {
		return
	}
	a.opsServer = ops.NewServer(a.cfg.Server.GRPCPort, a.logger)
}

func (a *App) initMessageSubscriber(ctx context.Context) *apperrors.AppError {
	if a.natsClient == nil || a.cachedDirectory == nil {
		return nil
	}

	a.eventSubscriber = subscriber.NewEventSubscriber(a.natsClient, a.cachedDirectory, a.logger)
	if err := a.eventSubscriber.Start(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to start user event consumer")
	}
	a.cleanup = append(a.cleanup, a.eventSubscriber.Stop)
	return nil
}

// Handler exposes the routed API, used by the Lambda entry point.
func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Start() *apperrors.AppError {
	if a.opsServer != nil {
		if err := a.opsServer.Start(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to start ops server")
		}
	}

	go func() {
		a.logger.Info(fmt.Sprintf("HTTP server listening on %s", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("Failed to serve", "error", err)
		}
	}()

	if a.opsServer != nil {
		a.opsServer.SetServing(true)
	}

	a.logger.Info("Application started successfully")
	return nil
}

func (a *App) Stop() *apperrors.AppError {
	a.logger.Info("Stopping application...")

	if a.opsServer != nil {
		a.opsServer.SetServing(false)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("HTTP shutdown error", "error", err)
		}
	}

	if a.opsServer != nil {
		a.opsServer.Stop()
	}

	a.logger.Info("Application stopped")

	for i := len(a.cleanup) - 1; i >= 0; i-- {
		if err := a.cleanup[i](); err != nil {
			a.logger.Error(fmt.Sprintf("Cleanup error: %v", err))
		}
	}
	return nil
}
