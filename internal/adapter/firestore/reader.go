// Package firestore adapts the pipeline's source and sink contracts onto
// Cloud Firestore, the store the report application writes to.
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

// TimeFilter bounds a scan inclusively on the record timestamp. Zero values
// leave the corresponding end unbounded.
type TimeFilter struct {
	Start time.Time
	End   time.Time
}

// ReportReader streams raw noise reports out of a collection using
// cursor-based pagination ordered by report timestamp. Single pass, no
// retries: a failed page fails the whole scan, and re-running the job is the
// recovery path.
type ReportReader struct {
	client     *fs.Client
	collection string
	pageSize   int
	filter     TimeFilter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewReportReader creates a reader over the given collection.
func NewReportReader(client *fs.Client, collection string, pageSize int, filter TimeFilter, logger *slog.Logger, metrics *observability.Metrics) *ReportReader {
	return &ReportReader{
		client:     client,
		collection: collection,
		pageSize:   pageSize,
		filter:     filter,
		logger:     logger,
		metrics:    metrics,
	}
}

// ReadReports walks the filtered range page by page, invoking fn for every
// report in timestamp order. Pagination stops on an empty or short page.
func (r *ReportReader) ReadReports(ctx context.Context, fn func(domain.RawReport)) error {
	var cursor *fs.DocumentSnapshot
	pages := 0

	for {
		q := r.client.Collection(r.collection).
			OrderBy("reportTimestamp", fs.Asc).
			Limit(r.pageSize)
		if !r.filter.Start.IsZero() {
			q = q.Where("reportTimestamp", ">=", r.filter.Start)
		}
		if !r.filter.End.IsZero() {
			q = q.Where("reportTimestamp", "<=", r.filter.End)
		}
		if cursor != nil {
			q = q.StartAfter(cursor)
		}

		docs, err := q.Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("read reports page %d: %w", pages+1, err)
		}
		if len(docs) == 0 {
			break
		}

		pages++
		r.metrics.PagesRead.Inc()
		r.metrics.PageSize.Observe(float64(len(docs)))

		for _, doc := range docs {
			fn(domain.ParseReportDoc(doc.Data()))
		}

		cursor = docs[len(docs)-1]
		if len(docs) < r.pageSize {
			break
		}
	}

	r.logger.Debug("report scan complete", "pages", pages)
	return nil
}

// AggregateReader pages stored aggregates back out, for CSV export.
type AggregateReader struct {
	client     *fs.Client
	collection string
	pageSize   int
	filter     TimeFilter
}

// NewAggregateReader creates a reader over an aggregate collection.
func NewAggregateReader(client *fs.Client, collection string, pageSize int, filter TimeFilter) *AggregateReader {
	return &AggregateReader{client: client, collection: collection, pageSize: pageSize, filter: filter}
}

// ReadAggregates walks the filtered range in timestamp order.
func (r *AggregateReader) ReadAggregates(ctx context.Context, fn func(domain.BucketAggregate)) error {
	var cursor *fs.DocumentSnapshot

	for {
		q := r.client.Collection(r.collection).
			OrderBy("timestamp", fs.Asc).
			Limit(r.pageSize)
		if !r.filter.Start.IsZero() {
			q = q.Where("timestamp", ">=", r.filter.Start)
		}
		if !r.filter.End.IsZero() {
			q = q.Where("timestamp", "<=", r.filter.End)
		}
		if cursor != nil {
			q = q.StartAfter(cursor)
		}

		docs, err := q.Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("read aggregates page: %w", err)
		}
		if len(docs) == 0 {
			break
		}

		for _, doc := range docs {
			var agg domain.BucketAggregate
			if err := doc.DataTo(&agg); err != nil {
				return fmt.Errorf("decode aggregate %s: %w", doc.Ref.ID, err)
			}
			if agg.ID == "" {
				agg.ID = doc.Ref.ID
			}
			fn(agg)
		}

		cursor = docs[len(docs)-1]
		if len(docs) < r.pageSize {
			break
		}
	}
	return nil
}
