package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/Sakethtadimeti/checkin-app/common/api"
	"github.com/Sakethtadimeti/checkin-app/common/config"
	"github.com/Sakethtadimeti/checkin-app/services/checkin-service/app"
)

// The API Gateway entry point serves the same router as the HTTP server.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	application, appErr := app.New(context.Background(), cfg)
	if appErr != nil {
		log.Fatalf("Failed to initialize application: %v", appErr)
	}

	lambda.Start(api.NewLambdaHandler(application.Handler()))
}
