// Command aggregate computes hourly per-zone noise statistics from raw
// reports and upserts them as a derived collection. Deterministic bucket ids
// make every run idempotent, so the job can be re-run freely after failures
// or data corrections.
//
// Usage:
//
//	aggregate -project my-project \
//	  -start 2024-06-01T00:00:00Z -end 2024-07-01T00:00:00Z \
//	  -zone-mode grid -grid-deg 0.01 -tz Europe/Bucharest
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

	"github.com/quietmap/noise-stats-etl/internal/adapter/firestore"
	kafkaadapter "github.com/quietmap/noise-stats-etl/internal/adapter/kafka"
	"github.com/quietmap/noise-stats-etl/internal/aggregate"
	"github.com/quietmap/noise-stats-etl/internal/config"
	"github.com/quietmap/noise-stats-etl/internal/geo"
	"github.com/quietmap/noise-stats-etl/internal/observability"
	"github.com/quietmap/noise-stats-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load("aggregate", os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aggCfg := aggregate.Config{
		Mode:        cfg.ZoneMode,
		GridCellDeg: cfg.GridCellDeg,
		Location:    cfg.Location,
	}
	if cfg.ZoneMode == aggregate.ZoneModeSectors {
		f, err := os.Open(cfg.SectorsPath)
		if err != nil {
			logger.Error("failed to open sectors file", "path", cfg.SectorsPath, "error", err)
			os.Exit(1)
		}
		resolver, err := geo.LoadSectorResolver(f, geo.Bounds{})
		f.Close()
		if err != nil {
			logger.Error("failed to load sector boundaries", "path", cfg.SectorsPath, "error", err)
			os.Exit(1)
		}
		aggCfg.Resolver = resolver
		logger.Info("sector boundaries loaded", "path", cfg.SectorsPath)
	}

	client, err := firestore.NewClient(ctx, cfg.ProjectID, cfg.CredentialsFile)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	reader := firestore.NewReportReader(client, cfg.ReportsCollection, cfg.PageSize,
		firestore.TimeFilter{Start: cfg.Start, End: cfg.End}, logger, metrics)
	writer := firestore.NewAggregateWriter(client, cfg.OutCollection, cfg.BatchSize, logger, metrics)

	var publisher pipeline.AggregatePublisher
	if cfg.PublishTopic != "" {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.PublishTopic, logger)
		defer kp.Close()
		publisher = kp
		logger.Info("aggregate publishing enabled", "topic", cfg.PublishTopic)
	}

	var srv *observability.Server
	if cfg.MetricsAddr != "" {
		srv = observability.NewServer(cfg.MetricsAddr, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
	}

	job := pipeline.New(reader, aggregate.New(aggCfg), writer, publisher, logger, metrics, cfg.DryRun)

	summary, err := job.Run(ctx)
	if err != nil {
		logger.Error("aggregation run failed", "error", err,
			"processed", summary.Processed, "written", summary.Written)
		shutdownServer(srv, logger)
		os.Exit(1)
	}

	logger.Info("run complete",
		"processed", summary.Processed,
		"dropped", summary.Dropped,
		"buckets", summary.Buckets,
		"written", summary.Written,
		"collection", cfg.OutCollection,
	)
	shutdownServer(srv, logger)
}

func shutdownServer(srv *observability.Server, logger *slog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown error", "error", err)
	}
}
