// Command isobard serves isobar contours over HTTP, WebSocket, and Kafka.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/isobar-contour-service/internal/adapter/fetch"
	httpadapter "github.com/couchcryptid/isobar-contour-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/isobar-contour-service/internal/adapter/kafka"
	"github.com/couchcryptid/isobar-contour-service/internal/adapter/ws"
	"github.com/couchcryptid/isobar-contour-service/internal/cache"
	"github.com/couchcryptid/isobar-contour-service/internal/config"
	"github.com/couchcryptid/isobar-contour-service/internal/observability"
	"github.com/couchcryptid/isobar-contour-service/internal/pipeline"
	"github.com/couchcryptid/isobar-contour-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher, err := fetch.NewClient(cfg.DataBaseURL, cfg.DataAllowedHosts, cfg.FetchTimeout, metrics, logger)
	if err != nil {
		logger.Error("failed to create fetcher", "error", err)
		os.Exit(1)
	}

	w := worker.New(cache.NewLoader(fetcher), worker.Options{
		QueueSize:    cfg.WorkerQueueSize,
		FetchTimeout: cfg.FetchTimeout,
	}, metrics, logger)

	routes := httpadapter.Routes{Contours: w}
	if cfg.WSEnabled {
		routes.WebSocket = ws.NewHandler(w, cfg.WSMaxMessageBytes, metrics, logger)
		logger.Info("websocket transport enabled", "max_message_bytes", cfg.WSMaxMessageBytes)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, w, routes, metrics, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start the contour worker.
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := w.Run(ctx); err != nil {
			logger.Error("worker error", "error", err)
		}
	}()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start Kafka pipeline (feature-flagged via KAFKA_ENABLED).
	var reader *kafkaadapter.Reader
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		writer = kafkaadapter.NewWriter(cfg, logger)
		p := pipeline.New(reader, w, writer, logger, metrics, cfg.BatchSize)
		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("pipeline error", "error", err)
			}
		}()
		logger.Info("kafka transport enabled",
			"request_topic", cfg.KafkaRequestTopic,
			"response_topic", cfg.KafkaResponseTopic,
		)
	} else {
		logger.Info("kafka transport disabled")
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("worker did not stop before shutdown timeout")
	}

	logger.Info("shutdown complete")
}
