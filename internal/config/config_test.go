package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietmap/noise-stats-etl/internal/aggregate"
)

func load(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	return Load("test", append([]string{"-project", "test-project"}, args...))
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(t)
	require.NoError(t, err)

	assert.Equal(t, "test-project", cfg.ProjectID)
	assert.Equal(t, "noiseReports", cfg.ReportsCollection)
	assert.Equal(t, "statisticiOrare", cfg.OutCollection)
	assert.Equal(t, 1000, cfg.PageSize)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, aggregate.ZoneModeGrid, cfg.ZoneMode)
	assert.InEpsilon(t, 0.01, cfg.GridCellDeg, 1e-9)
	assert.True(t, cfg.Start.IsZero())
	assert.True(t, cfg.End.IsZero())
	assert.False(t, cfg.DryRun)
	assert.Empty(t, cfg.PublishTopic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.NotNil(t, cfg.Location)
}

func TestLoad_TimeBounds(t *testing.T) {
	cfg, err := load(t, "-start", "2024-06-01T00:00:00Z", "-end", "2024-07-01T00:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), cfg.Start)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), cfg.End)

	_, err = load(t, "-start", "June 1st")
	assert.Error(t, err)

	_, err = load(t, "-start", "2024-07-01T00:00:00Z", "-end", "2024-06-01T00:00:00Z")
	assert.Error(t, err)
}

func TestLoad_Timezone(t *testing.T) {
	cfg, err := load(t, "-tz", "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, cfg.Location)

	_, err = load(t, "-tz", "Mars/Olympus")
	assert.Error(t, err)
}

func TestLoad_ZoneModeValidation(t *testing.T) {
	_, err := load(t, "-zone-mode", "hexagons")
	assert.Error(t, err)

	_, err = load(t, "-zone-mode", "sectors")
	assert.Error(t, err, "sectors mode requires a boundary file")

	cfg, err := load(t, "-zone-mode", "sectors", "-sectors", "sectors.geojson")
	require.NoError(t, err)
	assert.Equal(t, aggregate.ZoneModeSectors, cfg.ZoneMode)

	_, err = load(t, "-sectors", "sectors.geojson")
	assert.Error(t, err, "a boundary file without sectors mode is a mistake")

	cfg, err = load(t, "-zone-mode", "none")
	require.NoError(t, err)
	assert.Equal(t, aggregate.ZoneModeNone, cfg.ZoneMode)
}

func TestLoad_NumericValidation(t *testing.T) {
	_, err := load(t, "-page-size", "0")
	assert.Error(t, err)

	_, err = load(t, "-batch-size", "0")
	assert.Error(t, err)

	_, err = load(t, "-batch-size", "501")
	assert.Error(t, err)

	_, err = load(t, "-grid-deg", "-0.5")
	assert.Error(t, err)
}

func TestLoad_ProjectRequired(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "")
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	_, err := Load("test", nil)
	assert.Error(t, err)
}

func TestLoad_ProjectFromEnv(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "env-project")
	cfg, err := Load("test", nil)
	require.NoError(t, err)
	assert.Equal(t, "env-project", cfg.ProjectID)
}

func TestLoad_KafkaBrokersFromEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092")
	cfg, err := load(t, "-publish-topic", "noise-aggregates")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "noise-aggregates", cfg.PublishTopic)
}
