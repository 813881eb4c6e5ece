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

	"pdf-watermark-api/internal/config"
	"pdf-watermark-api/internal/handler"
	"pdf-watermark-api/internal/metrics"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Wiring
	container, err := config.NewContainer(ctx)
	if err != nil {
		log.Printf("Failed to initialize: %v", err)
		os.Exit(1)
	}
	defer container.Close()
	cfg := container.Config

	// Handlers
	watermarkHandler := handler.NewWatermarkHandler(
		container.Watermarker,
		container.UsageService,
		container.Metrics,
		container.Logger,
		handler.WatermarkHandlerOptions{
			Label:         cfg.GetWatermarkLabel(),
			MaxFileSize:   cfg.GetMaxFileSize(),
			RecordTimeout: cfg.GetUsageRecordTimeout(),
		},
	)
	usageHandler := handler.NewUsageHandler(container.UsageService, container.Logger)

	watermarkAuth := handler.NewAuthMiddleware(cfg.GetAPIKey(), container.Logger).
		OnReject(func() { container.Metrics.ObserveRequest(metrics.OutcomeUnauthorized, 0) })
	usageAuth := handler.NewAuthMiddleware(cfg.GetAPIKey(), container.Logger)

	// Router
	router := handler.NewRouter(handler.RouterDeps{
		WatermarkHandler: watermarkHandler,
		UsageHandler:     usageHandler,
		WatermarkAuth:    watermarkAuth.Middleware,
		UsageAuth:        usageAuth.Middleware,
		MetricsHandler:   container.Metrics.Handler(),
		AllowedOrigins:   cfg.GetCORSAllowedOrigins(),
		Logger:           container.Logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.GetServerPort(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		container.Logger.Info("Server listening", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	select {
	case err := <-serverErr:
		container.Logger.Error("Server failed to start", err)
		container.Close()
		os.Exit(1)
	case <-ctx.Done():
	}

	container.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Graceful shutdown failed", err)
		_ = server.Close()
	}

	done := make(chan struct{})
	go func() {
		watermarkHandler.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		container.Logger.Warn("Shutdown timeout reached with usage updates still pending")
	}

	container.Logger.Info("Server exited")
}
