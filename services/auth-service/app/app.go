package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/auth"
	"github.com/Sakethtadimeti/checkin-app/common/config"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	"github.com/Sakethtadimeti/checkin-app/common/directory"
	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/ops"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
	"github.com/Sakethtadimeti/checkin-app/services/auth-service/internal/handler"
	"github.com/Sakethtadimeti/checkin-app/services/auth-service/internal/service"
)

const serviceName = "auth-service"

type App struct {
	cfg        *config.Config
	logger     *logger.Logger
	db         *database.DynamoDBClient
	httpServer *http.Server
	opsServer  *ops.Server

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

	app.initHTTP()
	app.initOps()

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
	a.logger.Info("DynamoDB client ready", "users_table", a.cfg.DynamoDB.UsersTable)
	return nil
}

func (a *App) initHTTP() {
	users := directory.NewDirectory(a.db, nil, a.cfg.Auth.BcryptCost)
	tokens := auth.NewTokenService(a.cfg.Auth.JWTSecret, a.cfg.Auth.AccessTokenTTL, a.cfg.Auth.RefreshTokenTTL, nil)
	authService := service.NewAuthService(users, tokens, a.logger)

	router := handler.NewRouter(handler.RouterConfig{
		Auth:       handler.NewAuthHandler(authService, validation.Default(), a.logger),
		Health:     api.NewHealthHandler(serviceName, nil),
		Logger:     a.logger,
		CORSOrigin: a.cfg.Server.CORSOrigin,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.AuthPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) initOps() {
	if a.cfg.Server.AuthGRPCPort <= 0 {
		return
	}
	a.opsServer = ops.NewServer(a.cfg.Server.AuthGRPCPort, a.logger)
}

func (a *App) Start() *apperrors.AppError {
	if a.opsServer != nil {
		if err := a.opsServer.Start(); err != nil {
			return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to start ops server")
		}
	}

	go func() {
		a.logger.Info(fmt.Sprintf("Auth server listening on %s", a.httpServer.Addr))
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
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP shutdown error", "error", err)
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
