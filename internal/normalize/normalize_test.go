package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

func raw(id string, fields map[string]any) models.RawRecord {
	return models.RawRecord{ID: id, Fields: fields}
}

func TestJobTitleAliases(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"title wins over name", map[string]any{"title": "Inspect roof", "name": "Old name"}, "Inspect roof"},
		{"legacy name only", map[string]any{"name": "Old name"}, "Old name"},
		{"neither", map[string]any{}, DefaultJobTitle},
		{"null title falls through", map[string]any{"title": nil, "name": "Old name"}, "Old name"},
		{"blank title falls through", map[string]any{"title": "   ", "name": "Old name"}, "Old name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job, err := Job(raw("J1", tt.fields))
			require.NoError(t, err)
			assert.Equal(t, tt.want, job.Title)
		})
	}
}

func TestJobDefaults(t *testing.T) {
	job, err := Job(raw("J1", nil))
	require.NoError(t, err)

	assert.Equal(t, "Unnamed Task", job.Title)
	assert.Equal(t, models.JobAvailable, job.Status)
	assert.Equal(t, models.PriorityMedium, job.Priority)
	assert.Equal(t, DefaultCategory, job.Category)
	assert.Nil(t, job.Description)
	assert.Nil(t, job.EstimatedDurationMinutes)
	assert.Nil(t, job.CreatedAt)
	assert.Empty(t, job.LocationID)
}

func TestJobStatusRenames(t *testing.T) {
	tests := []struct {
		in   any
		want models.JobStatus
	}{
		{"claimed", models.JobClaimed},
		{"In Progress", models.JobInProgress},
		{"in-progress", models.JobInProgress},
		{"DONE", models.JobCompleted},
		{"cancelled", models.JobAborted},
		{"on hold", models.JobPaused},
		{"error", models.JobFailed},
		{"something-new", models.JobAvailable},
	}

	for _, tt := range tests {
		job, err := Job(raw("J1", map[string]any{"status": tt.in}))
		require.NoError(t, err)
		assert.Equal(t, tt.want, job.Status, "status %v", tt.in)
	}

	// legacy "state" is consulted when "status" is absent
	job, err := Job(raw("J1", map[string]any{"state": "finished"}))
	require.NoError(t, err)
	assert.Equal(t, models.JobCompleted, job.Status)
}

func TestJobFields(t *testing.T) {
	job, err := Job(raw("J1", map[string]any{
		"name":                       "Legacy",
		"details":                    "bring a ladder",
		"jobType":                    "inspection",
		"priority":                   int64(3),
		"location":                   surrealmodels.RecordID{Table: "locations", ID: "L1"},
		"estimated_duration_minutes": "44.6",
		"created_at":                 "2024-05-01T10:00:00Z",
	}))
	require.NoError(t, err)

	assert.Equal(t, "Legacy", job.Title)
	require.NotNil(t, job.Description)
	assert.Equal(t, "bring a ladder", *job.Description)
	assert.Equal(t, "inspection", job.Category)
	assert.Equal(t, models.PriorityHigh, job.Priority)
	assert.Equal(t, "L1", job.LocationID)
	require.NotNil(t, job.EstimatedDurationMinutes)
	assert.Equal(t, 45, *job.EstimatedDurationMinutes)
	require.NotNil(t, job.CreatedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), *job.CreatedAt)
}

func TestMissingIdentifier(t *testing.T) {
	for _, kind := range models.Kinds {
		_, err := Normalize(kind, raw("", map[string]any{"title": "x"}))

		var ve *errs.ValidationError
		require.True(t, errors.As(err, &ve), "kind %s", kind)
		assert.Equal(t, string(kind), ve.Kind)
		assert.Equal(t, FieldID, ve.Field)
	}
}

func TestIdentifierFromFields(t *testing.T) {
	loc, err := Location(raw("", map[string]any{"id": "L9"}))
	require.NoError(t, err)
	assert.Equal(t, "L9", loc.ID)
}

func TestLocation(t *testing.T) {
	t.Run("aliases", func(t *testing.T) {
		loc, err := Location(raw("L1", map[string]any{
			"locationName":     "Depot",
			"formattedAddress": "1 Main St",
			"orgId":            "ORG1",
			"geo":              map[string]any{"latitude": 48.2, "longitude": 16.37},
			"isActive":         false,
		}))
		require.NoError(t, err)

		assert.Equal(t, "Depot", loc.Name)
		assert.Equal(t, "1 Main St", loc.Address)
		assert.Equal(t, "ORG1", loc.OrganizationID)
		require.NotNil(t, loc.Coordinates)
		assert.Equal(t, models.Coordinates{Lat: 48.2, Lng: 16.37}, *loc.Coordinates)
		assert.Equal(t, models.LocationInactive, loc.Status)
	})

	t.Run("defaults", func(t *testing.T) {
		loc, err := Location(raw("L1", map[string]any{}))
		require.NoError(t, err)
		assert.Equal(t, DefaultLocationName, loc.Name)
		assert.Equal(t, models.LocationActive, loc.Status)
		assert.Nil(t, loc.Coordinates)
	})

	t.Run("top-level lat lng and geojson", func(t *testing.T) {
		loc, err := Location(raw("L1", map[string]any{"lat": "10.5", "lng": 20}))
		require.NoError(t, err)
		require.NotNil(t, loc.Coordinates)
		assert.Equal(t, 10.5, loc.Coordinates.Lat)

		loc, err = Location(raw("L2", map[string]any{"coordinates": []any{16.37, 48.2}}))
		require.NoError(t, err)
		require.NotNil(t, loc.Coordinates)
		assert.Equal(t, models.Coordinates{Lat: 48.2, Lng: 16.37}, *loc.Coordinates)
	})

	t.Run("out of range point ignored", func(t *testing.T) {
		loc, err := Location(raw("L1", map[string]any{"lat": 200, "lng": 20}))
		require.NoError(t, err)
		assert.Nil(t, loc.Coordinates)
	})

	t.Run("status wins over active flag", func(t *testing.T) {
		loc, err := Location(raw("L1", map[string]any{"status": "archived", "active": true}))
		require.NoError(t, err)
		assert.Equal(t, models.LocationInactive, loc.Status)
	})
}

func TestMedia(t *testing.T) {
	m, err := Media(raw("M1", map[string]any{
		"job_id":      "J1",
		"storageUrl":  "https://cdn.example.com/m1.mp4",
		"type":        "video/mp4",
		"duration":    json.Number("5400"),
		"size_gb":     3.2,
		"file_size":   uint64(3200000000),
		"uploaderId":  "U1",
		"timestamp":   map[string]any{"_seconds": float64(1714557600), "_nanoseconds": float64(0)},
		"locationId":  "L1",
		"thumbnail":   "https://cdn.example.com/m1.jpg",
		"durationSec": "ignored",
	}))
	require.NoError(t, err)

	assert.Equal(t, "J1", m.JobID)
	assert.Equal(t, "https://cdn.example.com/m1.mp4", m.URL)
	assert.Equal(t, models.MediaVideo, m.Kind)
	require.NotNil(t, m.DurationSeconds)
	assert.Equal(t, 5400.0, *m.DurationSeconds)
	require.NotNil(t, m.SizeGB)
	assert.Equal(t, 3.2, *m.SizeGB)
	require.NotNil(t, m.SizeBytes)
	assert.Equal(t, int64(3200000000), *m.SizeBytes)
	assert.Equal(t, "U1", m.UploaderID)
	require.NotNil(t, m.UploadedAt)
	assert.Equal(t, time.Unix(1714557600, 0).UTC(), *m.UploadedAt)
	require.NotNil(t, m.LocationID)
	assert.Equal(t, "L1", *m.LocationID)
	require.NotNil(t, m.ThumbnailURL)
	assert.Nil(t, m.DurationHours)
	assert.Nil(t, m.ResolvedHours)
}

func TestMediaDurationPrecedenceAndNegatives(t *testing.T) {
	m, err := Media(raw("M1", map[string]any{"durationSeconds": 60, "duration": 120}))
	require.NoError(t, err)
	require.NotNil(t, m.DurationSeconds)
	assert.Equal(t, 60.0, *m.DurationSeconds)

	m, err = Media(raw("M2", map[string]any{"durationSeconds": -5, "duration": 120}))
	require.NoError(t, err)
	require.NotNil(t, m.DurationSeconds)
	assert.Equal(t, 120.0, *m.DurationSeconds, "negative values are treated as absent")

	m, err = Media(raw("M3", map[string]any{"hours": -1}))
	require.NoError(t, err)
	assert.Nil(t, m.DurationHours)
	assert.Equal(t, models.MediaImage, m.Kind)
}

func TestAsTime(t *testing.T) {
	want := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		ok   bool
	}{
		{"time", want, true},
		{"surreal datetime", surrealmodels.CustomDateTime{Time: want}, true},
		{"rfc3339 offset", "2024-05-01T12:00:00+02:00", true},
		{"unix seconds", float64(want.Unix()), true},
		{"unix millis", want.UnixMilli(), true},
		{"seconds map", map[string]any{"seconds": want.Unix()}, true},
		{"garbage", "yesterday", false},
		{"zero", time.Time{}, false},
		{"negative", -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := asTime(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, want.Equal(got), "got %v", got)
				assert.Equal(t, time.UTC, got.Location())
			}
		})
	}

	d, ok := asTime("2024-05-01")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), d)
}

func TestAliasTablesHaveNoDuplicates(t *testing.T) {
	for kind, fields := range Aliases {
		for field, names := range fields {
			seen := map[string]bool{}
			for _, n := range names {
				assert.False(t, seen[n], "%s.%s lists %q twice", kind, field, n)
				seen[n] = true
			}
		}
	}
}
