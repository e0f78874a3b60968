package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	fs "cloud.google.com/go/firestore"

	"github.com/quietmap/noise-stats-etl/internal/domain"
	"github.com/quietmap/noise-stats-etl/internal/observability"
)

// DefaultBatchSize matches the store's per-batch write limit.
const DefaultBatchSize = 500

// AggregateWriter commits aggregates in fixed-size atomic batches. Document
// ids are the aggregates' deterministic bucket ids, so every write is an
// idempotent upsert: a re-run overwrites rather than duplicates.
type AggregateWriter struct {
	client     *fs.Client
	collection string
	batchSize  int
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewAggregateWriter creates a writer for the given collection. Batch sizes
// outside [1, DefaultBatchSize] are clamped to DefaultBatchSize.
func NewAggregateWriter(client *fs.Client, collection string, batchSize int, logger *slog.Logger, metrics *observability.Metrics) *AggregateWriter {
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &AggregateWriter{
		client:     client,
		collection: collection,
		batchSize:  batchSize,
		logger:     logger,
		metrics:    metrics,
	}
}

// WriteAggregates partitions the aggregates into batches and commits each one
// atomically. A batch failure leaves earlier batches committed and aborts the
// rest; it returns the count committed so far alongside the error.
func (w *AggregateWriter) WriteAggregates(ctx context.Context, aggs []domain.BucketAggregate) (int, error) {
	written := 0

	for start := 0; start < len(aggs); start += w.batchSize {
		end := min(start+w.batchSize, len(aggs))

		// WriteBatch commits all-or-nothing; BulkWriter does not, which is
		// why the older API is used here.
		batch := w.client.Batch()
		for _, agg := range aggs[start:end] {
			batch.Set(w.client.Collection(w.collection).Doc(agg.ID), agg)
		}

		commitStart := time.Now()
		if _, err := batch.Commit(ctx); err != nil {
			return written, fmt.Errorf("commit batch of %d aggregates: %w", end-start, err)
		}
		w.metrics.BatchCommitSeconds.Observe(time.Since(commitStart).Seconds())

		written += end - start
		w.metrics.AggregatesWritten.Add(float64(end - start))
		w.logger.Debug("batch committed", "size", end-start, "written", written)
	}

	return written, nil
}
