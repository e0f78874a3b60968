// Package config holds the aggregation job's settings, populated from CLI
// flags with environment fallbacks for credentials and brokers.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quietmap/noise-stats-etl/internal/aggregate"
)

// Config holds all job settings.
type Config struct {
	ProjectID       string
	CredentialsFile string

	ReportsCollection string
	OutCollection     string

	Start time.Time
	End   time.Time

	PageSize  int
	BatchSize int

	ZoneMode    aggregate.ZoneMode
	SectorsPath string
	GridCellDeg float64

	Timezone string
	Location *time.Location

	DryRun bool

	PublishTopic string
	KafkaBrokers []string

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// Load parses flags and environment, applying defaults and validating
// everything up front so the job fails before touching the store.
func Load(name string, args []string) (*Config, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	cfg := &Config{}
	var start, end, zoneMode string

	fs.StringVar(&cfg.ProjectID, "project", envOrDefault("FIRESTORE_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")), "Firestore project id")
	fs.StringVar(&cfg.CredentialsFile, "credentials", os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"), "service account credentials file")
	fs.StringVar(&cfg.ReportsCollection, "reports-collection", "noiseReports", "source collection of raw reports")
	fs.StringVar(&cfg.OutCollection, "out-collection", "statisticiOrare", "destination collection for hourly aggregates")
	fs.StringVar(&start, "start", "", "inclusive lower time bound, RFC 3339 (e.g. 2024-06-01T00:00:00Z)")
	fs.StringVar(&end, "end", "", "inclusive upper time bound, RFC 3339")
	fs.IntVar(&cfg.PageSize, "page-size", 1000, "reports per source page")
	fs.IntVar(&cfg.BatchSize, "batch-size", 500, "aggregates per sink batch (max 500)")
	fs.StringVar(&zoneMode, "zone-mode", string(aggregate.ZoneModeGrid), "zone derivation: grid, sectors, or none")
	fs.StringVar(&cfg.SectorsPath, "sectors", "", "sector boundaries GeoJSON (required for -zone-mode=sectors)")
	fs.Float64Var(&cfg.GridCellDeg, "grid-deg", 0.01, "grid cell size in degrees")
	fs.StringVar(&cfg.Timezone, "tz", "Local", "timezone for hour bucketing (IANA name or Local)")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "compute and report without writing")
	fs.StringVar(&cfg.PublishTopic, "publish-topic", "", "optional Kafka topic to publish aggregates to")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", "", "optional address to serve /metrics on while the job runs")
	fs.StringVar(&cfg.LogLevel, "log-level", envOrDefault("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", envOrDefault("LOG_FORMAT", "json"), "log format: json or text")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if cfg.Start, err = parseTimeBound(start); err != nil {
		return nil, fmt.Errorf("invalid -start: %w", err)
	}
	if cfg.End, err = parseTimeBound(end); err != nil {
		return nil, fmt.Errorf("invalid -end: %w", err)
	}
	if !cfg.Start.IsZero() && !cfg.End.IsZero() && cfg.End.Before(cfg.Start) {
		return nil, errors.New("-end is before -start")
	}

	cfg.ZoneMode = aggregate.ZoneMode(zoneMode)
	cfg.Location, err = time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid -tz %q: %w", cfg.Timezone, err)
	}

	cfg.KafkaBrokers = splitBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProjectID == "" {
		return errors.New("project id is required (set -project or FIRESTORE_PROJECT_ID)")
	}
	if c.PageSize <= 0 {
		return errors.New("-page-size must be positive")
	}
	if c.BatchSize <= 0 || c.BatchSize > 500 {
		return errors.New("-batch-size must be in [1, 500]")
	}

	switch c.ZoneMode {
	case aggregate.ZoneModeGrid:
		if c.GridCellDeg <= 0 {
			return errors.New("-grid-deg must be positive")
		}
		if c.SectorsPath != "" {
			return errors.New("-sectors requires -zone-mode=sectors")
		}
	case aggregate.ZoneModeSectors:
		if c.SectorsPath == "" {
			return errors.New("-zone-mode=sectors requires -sectors")
		}
	case aggregate.ZoneModeNone:
		if c.SectorsPath != "" {
			return errors.New("-sectors requires -zone-mode=sectors")
		}
	default:
		return fmt.Errorf("unknown -zone-mode %q", c.ZoneMode)
	}

	if c.PublishTopic != "" && len(c.KafkaBrokers) == 0 {
		return errors.New("-publish-topic is set but KAFKA_BROKERS is empty")
	}
	return nil
}

func parseTimeBound(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("use RFC 3339 like 2024-06-01T00:00:00Z: %w", err)
	}
	return t, nil
}

func envOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
