// Health Check Lambda entry point
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"complaint-trends-engine/internal/config"
	"complaint-trends-engine/internal/handlers"
	"complaint-trends-engine/internal/services/database"
	"complaint-trends-engine/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Create handler; the database is optional
	handler := handlers.NewHealthHandler(nil, cfg.Stage, "")
	if cfg.DatabaseConfigured() {
		if db, err := database.New(cfg); err == nil {
			defer db.Close()
			handler = handlers.NewHealthHandler(db, cfg.Stage, "")
		} else {
			utils.Logger.Warn("Database unavailable for health checks", utils.Error(err))
		}
	}

	// Start Lambda
	lambda.Start(handler.Handle)
}
