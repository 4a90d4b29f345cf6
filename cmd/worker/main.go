package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ragcore/ragcore/internal/bootstrap"
	"github.com/ragcore/ragcore/internal/config"
	"github.com/ragcore/ragcore/internal/observability/logging"
	"github.com/ragcore/ragcore/internal/observability/metrics"
)

const serviceName = "worker"

const indexTimeout = 5 * time.Minute

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, true)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	handler := func(msgCtx context.Context, filePath string) error {
		indexCtx, cancel := context.WithTimeout(msgCtx, indexTimeout)
		defer cancel()

		workerMetrics.StartDocument()
		start := time.Now()
		doc, err := app.Indexer.Index(indexCtx, filePath)
		workerMetrics.FinishDocument(serviceName, time.Since(start), err)
		if err != nil {
			return err
		}

		chunks, chunksErr := app.Indexer.Chunks(indexCtx, doc.ID)
		if chunksErr == nil {
			workerMetrics.ObserveChunks(serviceName, len(chunks))
		}

		slog.Info("document_indexed",
			"document_id", doc.ID,
			"file_path", filePath,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	slog.Info("worker_started", "subject", cfg.NATSSubject, "metrics_port", cfg.WorkerMetricsPort)
	if err := app.Queue.SubscribeIndexRequested(ctx, handler); err != nil {
		slog.Error("subscribe_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker_stopped")
}
