// Command importcsv parses an aggregate CSV (as produced by exportcsv) and
// batch-upserts the rows into the store. Document ids come from the CSV, so
// importing the same file twice is idempotent.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/quietmap/noise-stats-etl/internal/adapter/firestore"
	"github.com/quietmap/noise-stats-etl/internal/csvio"
	"github.com/quietmap/noise-stats-etl/internal/observability"
)

func main() {
	var (
		project     = flag.String("project", os.Getenv("FIRESTORE_PROJECT_ID"), "Firestore project id")
		credentials = flag.String("credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "service account credentials file")
		collection  = flag.String("collection", "statisticiOrare", "destination aggregate collection")
		in          = flag.String("in", "exports/statisticiOrare.csv", "input CSV path")
		batchSize   = flag.Int("batch-size", 500, "documents per write batch (max 500)")
		dryRun      = flag.Bool("dry-run", false, "parse and report without writing")
	)
	flag.Parse()

	logger := observability.NewLogger("info", "text")
	metrics := observability.NewMetrics()

	f, err := os.Open(*in)
	if err != nil {
		logger.Error("failed to open input", "path", *in, "error", err)
		os.Exit(1)
	}
	aggs, err := csvio.ReadAggregates(f)
	f.Close()
	if err != nil {
		logger.Error("failed to parse csv", "path", *in, "error", err)
		os.Exit(1)
	}
	logger.Info("csv parsed", "rows", len(aggs), "collection", *collection)

	if *dryRun {
		for i, agg := range aggs {
			if i == 5 {
				break
			}
			logger.Info("dry run sample", "id", agg.ID, "zone", agg.ZoneID, "samples", agg.SampleCount)
		}
		logger.Info("dry run, skipping writes")
		return
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

	writer := firestore.NewAggregateWriter(client, *collection, *batchSize, logger, metrics)
	written, err := writer.WriteAggregates(ctx, aggs)
	if err != nil {
		logger.Error("import write failed", "error", err, "written", written)
		os.Exit(1)
	}

	logger.Info("import complete", "written", written, "collection", *collection)
}
