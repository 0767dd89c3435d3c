// Complaint Trends Lambda entry point
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"complaint-trends-engine/internal/app"
	"complaint-trends-engine/internal/config"
	"complaint-trends-engine/internal/handlers"
	"complaint-trends-engine/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize logger
	_ = utils.InitLogger(cfg.LogLevel)
	defer utils.Sync()

	application, err := app.New(context.Background(), cfg)
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}
	defer application.Close()

	// Start Lambda
	lambda.Start(handlers.NewTrendsHandler(application.API).Handle)
}
