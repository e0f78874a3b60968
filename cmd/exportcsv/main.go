// Command exportcsv pages hourly aggregates out of the store and writes them
// as CSV for interchange with spreadsheets and other environments.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quietmap/noise-stats-etl/internal/adapter/firestore"
	"github.com/quietmap/noise-stats-etl/internal/csvio"
	"github.com/quietmap/noise-stats-etl/internal/domain"
	"github.com/quietmap/noise-stats-etl/internal/observability"
)

func main() {
	var (
		project     = flag.String("project", os.Getenv("FIRESTORE_PROJECT_ID"), "Firestore project id")
		credentials = flag.String("credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "service account credentials file")
		collection  = flag.String("collection", "statisticiOrare", "aggregate collection to export")
		out         = flag.String("out", "exports/statisticiOrare.csv", "output CSV path")
		pageSize    = flag.Int("page-size", 1000, "documents per page")
		start       = flag.String("start", "", "inclusive lower time bound, RFC 3339")
		end         = flag.String("end", "", "inclusive upper time bound, RFC 3339")
		withAvg     = flag.Bool("with-avg", false, "include the avgNoise column")
	)
	flag.Parse()

	logger := observability.NewLogger("info", "text")

	filter, err := parseFilter(*start, *end)
	if err != nil {
		logger.Error("invalid time bound", "error", err)
		os.Exit(1)
	}
	if *project == "" {
		logger.Error("project id is required (set -project or FIRESTORE_PROJECT_ID)")
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := firestore.NewClient(ctx, *project, *credentials)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	reader := firestore.NewAggregateReader(client, *collection, *pageSize, filter)

	var aggs []domain.BucketAggregate
	if err := reader.ReadAggregates(ctx, func(agg domain.BucketAggregate) {
		aggs = append(aggs, agg)
	}); err != nil {
		logger.Error("export read failed", "error", err)
		os.Exit(1)
	}

	if err := writeCSV(*out, aggs, *withAvg); err != nil {
		logger.Error("export write failed", "error", err)
		os.Exit(1)
	}

	logger.Info("export complete", "documents", len(aggs), "collection", *collection, "out", *out)
}

func parseFilter(start, end string) (firestore.TimeFilter, error) {
	var f firestore.TimeFilter
	var err error
	if start != "" {
		if f.Start, err = time.Parse(time.RFC3339, start); err != nil {
			return f, fmt.Errorf("invalid -start: %w", err)
		}
	}
	if end != "" {
		if f.End, err = time.Parse(time.RFC3339, end); err != nil {
			return f, fmt.Errorf("invalid -end: %w", err)
		}
	}
	return f, nil
}

func writeCSV(path string, aggs []domain.BucketAggregate, withAvg bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	if err := csvio.WriteAggregates(f, aggs, withAvg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
