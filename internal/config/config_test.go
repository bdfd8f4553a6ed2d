package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORTALSYNC_DB_DRIVER", "")
	t.Setenv("PORTALSYNC_CONCURRENCY", "")

	c := Load()
	assert.Equal(t, "ws://localhost:8000/rpc", c.SurrealDBURL)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, 4, c.Concurrency)
	assert.Equal(t, 15.0, c.GBPerHour)
	assert.Equal(t, 500, c.PageSize)
	assert.Equal(t, "locations", c.LocationsTable)
	assert.Equal(t, slog.LevelInfo, c.LogLevel)
	assert.NoError(t, c.Validate(false))
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORTALSYNC_DB_DRIVER", "Postgres")
	t.Setenv("PORTALSYNC_DB_DSN", "postgres://portal@localhost/portal")
	t.Setenv("PORTALSYNC_CONCURRENCY", "8")
	t.Setenv("PORTALSYNC_GB_PER_HOUR", "12.5")
	t.Setenv("PORTALSYNC_BREAKER_TIMEOUT", "1m")
	t.Setenv("PORTALSYNC_MEDIA_TABLE", "captures")
	t.Setenv("PORTALSYNC_LOG_LEVEL", "debug")

	c := Load()
	assert.Equal(t, "postgres", c.DBDriver)
	assert.Equal(t, 8, c.Concurrency)
	assert.Equal(t, 12.5, c.GBPerHour)
	assert.Equal(t, time.Minute, c.BreakerTimeout)
	assert.Equal(t, "captures", c.MediaTable)
	assert.Equal(t, slog.LevelDebug, c.LogLevel)
	assert.NoError(t, c.Validate(false))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		serving bool
		key     string
	}{
		{"malformed integer", map[string]string{"PORTALSYNC_CONCURRENCY": "many"}, false, "PORTALSYNC_CONCURRENCY"},
		{"malformed duration", map[string]string{"PORTALSYNC_SYNC_TIMEOUT": "soon"}, false, "PORTALSYNC_SYNC_TIMEOUT"},
		{"unknown driver", map[string]string{"PORTALSYNC_DB_DRIVER": "mysql"}, false, "PORTALSYNC_DB_DRIVER"},
		{"zero concurrency", map[string]string{"PORTALSYNC_CONCURRENCY": "0"}, false, "PORTALSYNC_CONCURRENCY"},
		{"negative hours constant", map[string]string{"PORTALSYNC_GB_PER_HOUR": "-1"}, false, "PORTALSYNC_GB_PER_HOUR"},
		{"NaN hours constant", map[string]string{"PORTALSYNC_GB_PER_HOUR": "NaN"}, false, "PORTALSYNC_GB_PER_HOUR"},
		{"infinite hours constant", map[string]string{"PORTALSYNC_GB_PER_HOUR": "+Inf"}, false, "PORTALSYNC_GB_PER_HOUR"},
		{"pool bounds", map[string]string{"PORTALSYNC_DB_MIN_CONNS": "20"}, false, "PORTALSYNC_DB_MIN_CONNS"},
		{"server without secret", map[string]string{"PORTALSYNC_JWT_SECRET": ""}, true, "PORTALSYNC_JWT_SECRET"},
		{"server bad port", map[string]string{"PORTALSYNC_JWT_SECRET": "s3cret", "PORTALSYNC_SERVER_PORT": "70000"}, true, "PORTALSYNC_SERVER_PORT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			err := Load().Validate(tt.serving)

			var ce *errs.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.key, ce.Key)
		})
	}
}

func TestValidateServing(t *testing.T) {
	t.Setenv("PORTALSYNC_JWT_SECRET", "s3cret")
	assert.NoError(t, Load().Validate(true))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("sync finished", "run_id", "r1")

	assert.Contains(t, stderr.String(), "run_id=r1")
	assert.Contains(t, file.String(), `"run_id":"r1"`)
	assert.NotContains(t, file.String(), "hidden")
}

func TestStoreSettings(t *testing.T) {
	t.Setenv("PORTALSYNC_JOBS_TABLE", "tasks")
	t.Setenv("PORTALSYNC_DB_MAX_CONNS", "25")
	t.Setenv("PORTALSYNC_BREAKER_FAILURES", "3")
	c := Load()

	sc := c.SurrealDB()
	assert.Equal(t, "tasks", sc.Tables[models.KindJob])
	assert.Equal(t, "locations", sc.Tables[models.KindLocation])
	assert.Equal(t, 500, sc.PageSize)

	wc := c.Warehouse()
	assert.Equal(t, "sqlite", wc.Driver)
	assert.Equal(t, int32(25), wc.MaxConns)

	opts := c.SyncOptions(nil)
	assert.Equal(t, uint32(3), opts.Breaker.ConsecutiveFailures)
	assert.Equal(t, 15.0, opts.GBPerHour)
}
