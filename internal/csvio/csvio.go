// Package csvio encodes and decodes hourly aggregates for CSV interchange.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/quietmap/noise-stats-etl/internal/domain"
)

// Header is the canonical column order. AvgHeader appends the optional
// average-noise column.
var (
	Header    = []string{"id", "zoneId", "timestamp", "sampleCount", "minNoise", "maxNoise", "dominantCategory"}
	AvgHeader = append(append([]string{}, Header...), "avgNoise")
)

// WriteAggregates encodes aggregates as CSV with a header row. Timestamps are
// RFC 3339 in UTC so rows round-trip regardless of the job's bucket timezone.
func WriteAggregates(w io.Writer, aggs []domain.BucketAggregate, withAvg bool) error {
	cw := csv.NewWriter(w)

	header := Header
	if withAvg {
		header = AvgHeader
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, agg := range aggs {
		row := []string{
			agg.ID,
			agg.ZoneID,
			agg.Timestamp.UTC().Format(time.RFC3339),
			strconv.Itoa(agg.SampleCount),
			formatFloat(agg.MinNoise),
			formatFloat(agg.MaxNoise),
			agg.DominantCategory,
		}
		if withAvg {
			row = append(row, formatFloat(agg.AvgNoise))
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", agg.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadAggregates decodes aggregates from CSV. Columns are matched by header
// name, so column order and the optional avgNoise column are both tolerated.
// Rows missing an id or a parseable timestamp are skipped; id and timestamp
// are the only required columns.
func ReadAggregates(r io.Reader) ([]domain.BucketAggregate, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, fmt.Errorf("csv missing required column id, got: %s", strings.Join(header, ", "))
	}
	if _, ok := col["timestamp"]; !ok {
		return nil, fmt.Errorf("csv missing required column timestamp, got: %s", strings.Join(header, ", "))
	}

	var out []domain.BucketAggregate
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		id := strings.TrimSpace(field(row, col, "id"))
		if id == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(field(row, col, "timestamp")))
		if err != nil {
			continue
		}

		out = append(out, domain.BucketAggregate{
			ID:               id,
			ZoneID:           field(row, col, "zoneId"),
			Timestamp:        ts,
			SampleCount:      parseInt(field(row, col, "sampleCount")),
			MinNoise:         parseFloat(field(row, col, "minNoise")),
			MaxNoise:         parseFloat(field(row, col, "maxNoise")),
			AvgNoise:         parseFloat(field(row, col, "avgNoise")),
			DominantCategory: field(row, col, "dominantCategory"),
		})
	}
	return out, nil
}

func field(row []string, col map[string]int, name string) string {
	i, ok := col[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
