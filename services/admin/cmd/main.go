package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Sakethtadimeti/checkin-app/common/config"
	"github.com/Sakethtadimeti/checkin-app/common/database"
	"github.com/Sakethtadimeti/checkin-app/common/directory"
	commonevents "github.com/Sakethtadimeti/checkin-app/common/events"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
	"github.com/Sakethtadimeti/checkin-app/common/natsjetstream"
	"github.com/Sakethtadimeti/checkin-app/common/validation"
	"github.com/Sakethtadimeti/checkin-app/services/admin/internal/cli"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.New(logger.Config{
		Level:       cfg.Server.LogLevel,
		Format:      cfg.Server.LogFormat,
		ServiceName: "checkin-admin",
	})
	defer func() { _ = log.Sync() }()

	db, err := database.NewDynamoDBClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create DynamoDB client: %w", err)
	}

	admin := &cli.Admin{
		Out:           os.Stdout,
		Store:         db.Client,
		UsersTable:    cfg.DynamoDB.UsersTable,
		CheckInsTable: cfg.DynamoDB.CheckInsTable,
		Capacity:      database.Capacity{Read: cfg.DynamoDB.ReadCapacity, Write: cfg.DynamoDB.WriteCapacity},
		WaitForTables: config.WaitForTables(cfg.DynamoDB.UseLocalEndpoint),
		Directory:     directory.NewDirectory(db, nil, cfg.Auth.BcryptCost),
		Validator:     validation.Default(),
		Logger:        log,
	}

	if cfg.EventsEnabled() {
		natsClient, err := natsjetstream.NewClient(natsjetstream.FromAppConfig(cfg.NATS), log)
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer func() { _ = natsClient.Close() }()

		if err := natsClient.EnsureStream(ctx, commonevents.UserEventsStream, []string{commonevents.UserEventsWildcard}); err != nil {
			return fmt.Errorf("failed to create user event stream: %w", err)
		}
		admin.Events = natsjetstream.NewPublisher(natsClient)
	}

	return admin.Run(ctx, os.Args[1:])
}
