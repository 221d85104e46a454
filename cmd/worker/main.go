// Command worker consumes generation jobs published by the API server when
// RABBITMQ_URL is configured.
package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"artomate-backend/internal/app"
	"artomate-backend/internal/config"
	"artomate-backend/internal/core"
)

func main() {
	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	var zapLogger *zap.Logger
	if appConfig.IsRelease() {
		zapLogger, err = zap.NewProduction()
	} else {
		zapLogger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync()

	if appConfig.RabbitMQURL == "" {
		zapLogger.Fatal("CRITICAL_ERROR: RABBITMQ_URL is required to run the generation worker")
	}

	initCtx, cancelInitCtx := context.WithTimeout(context.Background(), 15*time.Second)
	application, err := app.Build(initCtx, appConfig, zapLogger)
	cancelInitCtx()
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize application", zap.Error(err))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("Generation worker started", zap.String("queue", appConfig.GenerationQueue))
	err = core.ConsumeGenerationJobs(ctx, application.Queue, appConfig.GenerationQueue,
		application.Services.Generation, appConfig.GenerationTimeout, zapLogger)
	if err != nil && !errors.Is(err, context.Canceled) {
		zapLogger.Error("Generation worker stopped", zap.Error(err))
		return
	}
	zapLogger.Info("Generation worker exiting gracefully.")
}
