package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:"}, nil)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func ptr[T any](v T) *T { return &v }

func seedLocationAndJob(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	_, err := s.UpsertLocation(ctx, &models.Location{ID: "L1", Name: "Depot", Status: models.LocationActive})
	require.NoError(t, err)
	_, err = s.UpsertJob(ctx, &models.Job{
		ID: "J1", Title: "Inspect roof", Category: "general", Priority: models.PriorityHigh,
		LocationID: "L1", Status: models.JobCompleted,
	})
	require.NoError(t, err)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "oracle"}, nil)
	var ce *errs.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "PORTALSYNC_DB_DRIVER", ce.Key)
}

func TestOpenSQLiteRequiresPath(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: DriverSQLite}, nil)
	var ce *errs.ConfigurationError
	require.ErrorAs(t, err, &ce)
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate(context.Background()))

	var n int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&n))
	assert.Equal(t, 1, n)

	v, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestUpsertLocationInsertThenUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	loc := &models.Location{ID: "L1", Name: "Depot", Status: models.LocationActive}
	inserted, err := s.UpsertLocation(ctx, loc)
	require.NoError(t, err)
	assert.True(t, inserted)

	loc.Name = "Main Depot"
	inserted, err = s.UpsertLocation(ctx, loc)
	require.NoError(t, err)
	assert.False(t, inserted)

	var (
		name  string
		count int
	)
	require.NoError(t, s.db.QueryRow("SELECT name FROM locations WHERE id = 'L1'").Scan(&name))
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM locations").Scan(&count))
	assert.Equal(t, "Main Depot", name)
	assert.Equal(t, 1, count)
}

func TestUpsertKeepsStoredTimestamps(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	_, err := s.UpsertLocation(ctx, &models.Location{ID: "L1", Name: "Depot", Status: models.LocationActive, CreatedAt: &created})
	require.NoError(t, err)

	// Later run without any source timestamp.
	s.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	_, err = s.UpsertLocation(ctx, &models.Location{ID: "L1", Name: "Depot", Status: models.LocationActive})
	require.NoError(t, err)

	var gotCreated, gotUpdated, gotSynced time.Time
	require.NoError(t, s.db.QueryRow("SELECT created_at, updated_at, synced_at FROM locations WHERE id = 'L1'").
		Scan(&gotCreated, &gotUpdated, &gotSynced))
	assert.True(t, created.Equal(gotCreated), "created_at = %v", gotCreated)
	assert.True(t, fixedNow.Equal(gotUpdated), "updated_at = %v", gotUpdated)
	assert.True(t, fixedNow.Add(24*time.Hour).Equal(gotSynced), "synced_at = %v", gotSynced)
}

func TestUpsertJobMissingLocationIsConstraintError(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertJob(context.Background(), &models.Job{
		ID: "J9", Title: "Orphan", Category: "general", Priority: models.PriorityLow,
		LocationID: "nope", Status: models.JobAvailable,
	})
	require.Error(t, err)

	var ce *errs.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "J9", ce.RecordID)
	assert.Equal(t, errs.ClassConstraint, errs.Class(err))
	assert.False(t, errs.IsTransient(err))

	exists, err := s.RecordExists(context.Background(), models.KindJob, "J9")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpsertJobWithoutLocationIsConstraintError(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertJob(context.Background(), &models.Job{
		ID: "J8", Title: "Nowhere", Category: "general", Priority: models.PriorityLow, Status: models.JobAvailable,
	})
	var ce *errs.ConstraintError
	require.ErrorAs(t, err, &ce)
}

func TestUpsertMediaStoresResolvedHours(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLocationAndJob(t, s)

	m := &models.Media{
		ID: "M1", JobID: "J1", LocationID: ptr("L1"), URL: "https://cdn/m1.mp4", Kind: models.MediaVideo,
		SizeGB: ptr(30.0), ResolvedHours: ptr(2.0), HoursDerived: true,
	}
	inserted, err := s.UpsertMedia(ctx, m)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = s.UpsertMedia(ctx, m)
	require.NoError(t, err)
	assert.False(t, inserted)

	var (
		hours   float64
		derived bool
	)
	require.NoError(t, s.db.QueryRow("SELECT duration_hours, hours_derived FROM media WHERE id = 'M1'").Scan(&hours, &derived))
	assert.InDelta(t, 2.0, hours, 1e-9)
	assert.True(t, derived)
}

func TestUpsertMediaMissingJob(t *testing.T) {
	s := newTestStore(t)

	_, err := s.UpsertMedia(context.Background(), &models.Media{ID: "M2", JobID: "J404", URL: "u", Kind: models.MediaImage})
	var ce *errs.ConstraintError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "media", ce.Kind)
}

func TestJobLocation(t *testing.T) {
	s := newTestStore(t)
	seedLocationAndJob(t, s)

	loc, err := s.JobLocation(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, "L1", loc)

	_, err = s.JobLocation(context.Background(), "J404")
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLocationAndJob(t, s)

	_, err := s.UpsertLocation(ctx, &models.Location{ID: "L2", Name: "Closed", Status: models.LocationInactive})
	require.NoError(t, err)
	_, err = s.UpsertJob(ctx, &models.Job{
		ID: "J2", Title: "Open job", Category: "general", Priority: models.PriorityMedium,
		LocationID: "L2", Status: models.JobAvailable,
	})
	require.NoError(t, err)

	for _, m := range []*models.Media{
		{ID: "M1", JobID: "J1", LocationID: ptr("L1"), URL: "a", Kind: models.MediaVideo, ResolvedHours: ptr(2.0), HoursDerived: true},
		{ID: "M2", JobID: "J1", LocationID: ptr("L1"), URL: "b", Kind: models.MediaVideo, ResolvedHours: ptr(0.5)},
		{ID: "M3", JobID: "J2", LocationID: ptr("L2"), URL: "c", Kind: models.MediaImage},
	} {
		_, err := s.UpsertMedia(ctx, m)
		require.NoError(t, err)
	}

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalLocations)
	assert.Equal(t, 1, st.ActiveLocations)
	assert.Equal(t, 2, st.TotalJobs)
	assert.Equal(t, 1, st.JobsByStatus[models.JobCompleted])
	assert.Equal(t, 1, st.JobsByStatus[models.JobAvailable])
	assert.Equal(t, 3, st.TotalMedia)
	assert.Equal(t, 2, st.VideoCount)
	assert.InDelta(t, 2.5, st.TotalHours, 1e-9)
	assert.InDelta(t, 2.0, st.DerivedHours, 1e-9)
	assert.Equal(t, 1, st.MediaWithoutDuration)
	assert.Nil(t, st.LastRun)
}

func TestStatsEmpty(t *testing.T) {
	s := newTestStore(t)

	st, err := s.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.TotalLocations)
	assert.Zero(t, st.TotalMedia)
	assert.Zero(t, st.TotalHours)
	assert.Empty(t, st.JobsByStatus)
}

func TestLocationHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedLocationAndJob(t, s)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.UpsertMedia(ctx, &models.Media{ID: "M1", JobID: "J1", LocationID: ptr("L1"), URL: "a", Kind: models.MediaVideo,
		ResolvedHours: ptr(1.0), UploadedAt: &older})
	require.NoError(t, err)
	_, err = s.UpsertMedia(ctx, &models.Media{ID: "M2", JobID: "J1", LocationID: ptr("L1"), URL: "b", Kind: models.MediaImage,
		UploadedAt: &newer})
	require.NoError(t, err)

	h, err := s.LocationHistory(ctx, "L1", 10)
	require.NoError(t, err)
	assert.Equal(t, "Depot", h.Name)
	assert.Equal(t, 2, h.TotalItems)
	assert.InDelta(t, 1.0, h.TotalHours, 1e-9)
	require.Len(t, h.Items, 2)
	assert.Equal(t, "M2", h.Items[0].MediaID)
	assert.Nil(t, h.Items[0].Hours)
	assert.Equal(t, "Inspect roof", h.Items[1].JobTitle)
	require.NotNil(t, h.Items[1].Hours)

	h, err = s.LocationHistory(ctx, "L1", 1)
	require.NoError(t, err)
	assert.Len(t, h.Items, 1)
	assert.Equal(t, 2, h.TotalItems)

	_, err = s.LocationHistory(ctx, "L404", 10)
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRecordRunAndRecentRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := &models.SyncRunResult{RunID: "run-1", StartedAt: fixedNow, Locations: models.KindCounts{Attempted: 2, Synced: 2}}
	first.Finish(fixedNow.Add(time.Second))
	second := &models.SyncRunResult{RunID: "run-2", StartedAt: fixedNow.Add(time.Minute), Jobs: models.KindCounts{Attempted: 1, Failed: 1}}
	second.Finish(fixedNow.Add(2 * time.Minute))

	require.NoError(t, s.RecordRun(ctx, first))
	require.NoError(t, s.RecordRun(ctx, second))

	runs, err := s.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].RunID)
	assert.False(t, runs[0].Success)
	assert.Equal(t, 1, runs[0].Jobs.Failed)
	assert.Equal(t, "run-1", runs[1].RunID)
	assert.True(t, runs[1].Success)
	assert.Equal(t, 2, runs[1].Locations.Synced)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "run-2", st.LastRun.RunID)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	lite := &Store{driver: DriverSQLite}

	q := "SELECT * FROM t WHERE a = ? AND b = ?"
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind(q))
	assert.Equal(t, q, lite.rebind(q))
}

func TestParseMigrationVersion(t *testing.T) {
	v, err := parseMigrationVersion("007_add_index.sql")
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = parseMigrationVersion("init.sql")
	assert.Error(t, err)
}

func TestWrapReadErrorTransient(t *testing.T) {
	err := wrapReadError("stats", context.DeadlineExceeded)
	var te *errs.TransientStoreError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "relational", te.Store)

	plain := errors.New("syntax error")
	assert.Equal(t, plain, wrapReadError("stats", plain))
}
