package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Sakethtadimeti/checkin-app/common/config"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/app"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, appErr := app.New(ctx, cfg)
	if appErr != nil {
		log.Fatalf("Failed to initialize application: %v", appErr)
	}

	if appErr := application.Start(); appErr != nil {
		log.Fatalf("Failed to start application: %v", appErr)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	if appErr := application.Stop(); appErr != nil {
		log.Printf("Error during shutdown: %v", appErr)
	}
}
