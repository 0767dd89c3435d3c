// Package main provides the local HTTP server for the complaint trends dashboard API.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"complaint-trends-engine/internal/app"
	"complaint-trends-engine/internal/config"
	"complaint-trends-engine/internal/utils"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	// The two upstream fetches run concurrently, each bounded by CFPB_TIMEOUT.
	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           application.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.CFPBTimeout + 15*time.Second,
	}

	go func() {
		utils.Logger.Info("Complaint Trends Engine API Server",
			zap.String("addr", srv.Addr),
			zap.String("health", "http://localhost:"+cfg.Port+"/health"),
			zap.String("trends", "http://localhost:"+cfg.Port+"/api/complaint-trends"),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	utils.Logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Logger.Error("Graceful shutdown failed", zap.Error(err))
	}
}
