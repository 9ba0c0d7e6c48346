package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sushant-115/sagakv/core/kv"
	"github.com/sushant-115/sagakv/pkg/logger"
	"github.com/sushant-115/sagakv/pkg/telemetry"
)

func main() {
	addr := flag.String("addr", "localhost:7070", "Address to listen on for the key-value wire protocol")
	logLevel := flag.String("log-level", "info", "Minimum log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "console", "Log output format (json or console)")
	telemetryEnabled := flag.Bool("telemetry", false, "Enable OpenTelemetry metrics")
	metricsPort := flag.Int("metrics-port", 9091, "Port for the Prometheus /metrics endpoint")
	flag.Parse()

	zlog, err := logger.New(logger.Config{Level: *logLevel, Format: *logFormat, OutputFile: "stdout"})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	_, shutdownTelemetry, err := telemetry.New(telemetry.Config{
		Enabled:        *telemetryEnabled,
		ServiceName:    "sagakv_server",
		PrometheusPort: *metricsPort,
	})
	if err != nil {
		zlog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	engine := kv.NewMemory()
	server := kv.NewServer(engine, zlog)
	if err := server.Start(*addr); err != nil {
		zlog.Fatal("Failed to start server", zap.Error(err))
	}

	// Block until interrupted, then shut everything down.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zlog.Info("Shutting down", zap.String("signal", sig.String()), zap.Int("documents", engine.Len()))

	if err := server.Close(); err != nil {
		zlog.Error("Failed to close listener", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTelemetry(ctx); err != nil {
		zlog.Error("Failed to shut down telemetry", zap.Error(err))
	}
}
