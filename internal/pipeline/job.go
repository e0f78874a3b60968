// Package pipeline orchestrates one aggregation run: stream reports from the
// source, fold them into hourly buckets, and commit the finalized aggregates
// to the sink. The run is strictly sequential and non-resumable; idempotent
// sink writes make a full re-run the recovery path after any failure.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/quietmap/noise-stats-etl/internal/aggregate"
	"github.com/quietmap/noise-stats-etl/internal/domain"
	"github.com/quietmap/noise-stats-etl/internal/observability"
)

// ReportSource streams raw reports in timestamp order, invoking fn per report.
type ReportSource interface {
	ReadReports(ctx context.Context, fn func(domain.RawReport)) error
}

// AggregateSink persists finalized aggregates, returning the count written.
type AggregateSink interface {
	WriteAggregates(ctx context.Context, aggs []domain.BucketAggregate) (int, error)
}

// AggregatePublisher fans finalized aggregates out to downstream consumers.
type AggregatePublisher interface {
	PublishAggregates(ctx context.Context, aggs []domain.BucketAggregate) error
}

// Job runs the read-fold-write cycle once.
type Job struct {
	source     ReportSource
	aggregator *aggregate.Aggregator
	sink       AggregateSink
	publisher  AggregatePublisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	dryRun     bool
}

// Summary reports what one run did.
type Summary struct {
	Processed int
	Dropped   int
	Buckets   int
	Written   int
}

// New creates a Job. The publisher may be nil; dryRun computes and logs
// without writing anywhere.
func New(source ReportSource, aggregator *aggregate.Aggregator, sink AggregateSink, publisher AggregatePublisher, logger *slog.Logger, metrics *observability.Metrics, dryRun bool) *Job {
	return &Job{
		source:     source,
		aggregator: aggregator,
		sink:       sink,
		publisher:  publisher,
		logger:     logger,
		metrics:    metrics,
		dryRun:     dryRun,
	}
}

// Run executes the job to completion. Any source or sink error aborts the
// run; previously committed batches stay committed.
func (j *Job) Run(ctx context.Context) (Summary, error) {
	j.metrics.JobRunning.Set(1)
	defer j.metrics.JobRunning.Set(0)

	if err := j.source.ReadReports(ctx, j.aggregator.Add); err != nil {
		return Summary{}, err
	}

	aggs := j.aggregator.Finalize()
	summary := Summary{
		Processed: j.aggregator.Processed(),
		Dropped:   j.aggregator.Dropped(),
		Buckets:   len(aggs),
	}
	j.metrics.ReportsProcessed.Add(float64(summary.Processed))
	j.metrics.ReportsDropped.Add(float64(summary.Dropped))
	j.metrics.BucketsComputed.Set(float64(summary.Buckets))

	j.logger.Info("aggregation complete",
		"processed", summary.Processed,
		"dropped", summary.Dropped,
		"buckets", summary.Buckets,
	)

	if j.dryRun {
		for i, agg := range aggs {
			if i == 5 {
				break
			}
			j.logger.Info("dry run sample",
				"id", agg.ID,
				"zone", agg.ZoneID,
				"samples", agg.SampleCount,
				"min", agg.MinNoise,
				"max", agg.MaxNoise,
				"dominant", agg.DominantCategory,
			)
		}
		j.logger.Info("dry run, skipping writes")
		return summary, nil
	}

	written, err := j.sink.WriteAggregates(ctx, aggs)
	summary.Written = written
	if err != nil {
		return summary, err
	}

	if j.publisher != nil {
		if err := j.publisher.PublishAggregates(ctx, aggs); err != nil {
			return summary, err
		}
		j.logger.Info("aggregates published", "count", len(aggs))
	}

	return summary, nil
}
