package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/portalsync/internal/errs"
	"github.com/raphaelgruber/portalsync/internal/models"
)

// Timestamp columns follow one rule: a source timestamp always wins; a missing
// one falls back to "now" on insert and keeps the stored value on update.

const upsertLocationSQL = `
	INSERT INTO locations (id, name, address, organization_id, latitude, longitude, status, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		address = excluded.address,
		organization_id = excluded.organization_id,
		latitude = excluded.latitude,
		longitude = excluded.longitude,
		status = excluded.status,
		created_at = COALESCE(?, locations.created_at),
		updated_at = COALESCE(?, locations.updated_at),
		synced_at = excluded.synced_at
`

const upsertJobSQL = `
	INSERT INTO jobs (id, title, description, category, priority, location_id, status, estimated_duration_minutes, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		category = excluded.category,
		priority = excluded.priority,
		location_id = excluded.location_id,
		status = excluded.status,
		estimated_duration_minutes = excluded.estimated_duration_minutes,
		created_at = COALESCE(?, jobs.created_at),
		updated_at = COALESCE(?, jobs.updated_at),
		synced_at = excluded.synced_at
`

const upsertMediaSQL = `
	INSERT INTO media (id, job_id, location_id, url, thumbnail_url, kind, duration_seconds, source_hours, size_gb, size_bytes,
		duration_hours, hours_derived, uploader_id, uploaded_at, created_at, updated_at, synced_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		job_id = excluded.job_id,
		location_id = excluded.location_id,
		url = excluded.url,
		thumbnail_url = excluded.thumbnail_url,
		kind = excluded.kind,
		duration_seconds = excluded.duration_seconds,
		source_hours = excluded.source_hours,
		size_gb = excluded.size_gb,
		size_bytes = excluded.size_bytes,
		duration_hours = excluded.duration_hours,
		hours_derived = excluded.hours_derived,
		uploader_id = excluded.uploader_id,
		uploaded_at = COALESCE(?, media.uploaded_at),
		created_at = COALESCE(?, media.created_at),
		updated_at = COALESCE(?, media.updated_at),
		synced_at = excluded.synced_at
`

var existsSQL = map[models.Kind]string{
	models.KindLocation: `SELECT COUNT(*) FROM locations WHERE id = ?`,
	models.KindJob:      `SELECT COUNT(*) FROM jobs WHERE id = ?`,
	models.KindMedia:    `SELECT COUNT(*) FROM media WHERE id = ?`,
}

// UpsertLocation inserts or updates a location. Returns true when the row was created.
func (s *Store) UpsertLocation(ctx context.Context, loc *models.Location) (bool, error) {
	now := s.now().UTC()
	var lat, lng any
	if loc.Coordinates != nil {
		lat, lng = loc.Coordinates.Lat, loc.Coordinates.Lng
	}
	args := []any{
		loc.ID, loc.Name, loc.Address, loc.OrganizationID, lat, lng, string(loc.Status),
		orNow(loc.CreatedAt, now), orNow(loc.UpdatedAt, now), now,
		nullTime(loc.CreatedAt), nullTime(loc.UpdatedAt),
	}
	return s.upsert(ctx, models.KindLocation, loc.ID, upsertLocationSQL, args)
}

// UpsertJob inserts or updates a job. The owning location must already exist.
func (s *Store) UpsertJob(ctx context.Context, job *models.Job) (bool, error) {
	now := s.now().UTC()
	var minutes any
	if job.EstimatedDurationMinutes != nil {
		minutes = *job.EstimatedDurationMinutes
	}
	args := []any{
		job.ID, job.Title, nullString(job.Description), job.Category, string(job.Priority),
		nullIfEmpty(job.LocationID), string(job.Status), minutes,
		orNow(job.CreatedAt, now), orNow(job.UpdatedAt, now), now,
		nullTime(job.CreatedAt), nullTime(job.UpdatedAt),
	}
	return s.upsert(ctx, models.KindJob, job.ID, upsertJobSQL, args)
}

// UpsertMedia inserts or updates a media row. ResolvedHours must already be set
// by the caller; it is stored as-is.
func (s *Store) UpsertMedia(ctx context.Context, m *models.Media) (bool, error) {
	now := s.now().UTC()
	uploaded := m.UploadedAt
	if uploaded == nil {
		uploaded = m.CreatedAt
	}
	var sizeBytes any
	if m.SizeBytes != nil {
		sizeBytes = *m.SizeBytes
	}
	args := []any{
		m.ID, nullIfEmpty(m.JobID), nullString(m.LocationID), m.URL, nullString(m.ThumbnailURL), string(m.Kind),
		nullFloat(m.DurationSeconds), nullFloat(m.DurationHours), nullFloat(m.SizeGB), sizeBytes,
		nullFloat(m.ResolvedHours), m.HoursDerived, m.UploaderID,
		orNow(uploaded, now), orNow(m.CreatedAt, now), orNow(m.UpdatedAt, now), now,
		nullTime(uploaded), nullTime(m.CreatedAt), nullTime(m.UpdatedAt),
	}
	return s.upsert(ctx, models.KindMedia, m.ID, upsertMediaSQL, args)
}

// upsert runs the existence check and the insert-or-update in one transaction.
func (s *Store) upsert(ctx context.Context, kind models.Kind, id, query string, args []any) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, wrapWriteError(kind, id, fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, s.rebind(existsSQL[kind]), id).Scan(&n); err != nil {
		return false, wrapWriteError(kind, id, fmt.Errorf("check %s exists: %w", kind, err))
	}
	if _, err := tx.ExecContext(ctx, s.rebind(query), args...); err != nil {
		return false, wrapWriteError(kind, id, fmt.Errorf("upsert %s: %w", kind, err))
	}
	if err := tx.Commit(); err != nil {
		return false, wrapWriteError(kind, id, fmt.Errorf("commit %s: %w", kind, err))
	}
	return n == 0, nil
}

// RecordExists reports whether a row with id exists for kind.
func (s *Store) RecordExists(ctx context.Context, kind models.Kind, id string) (bool, error) {
	query, ok := existsSQL[kind]
	if !ok {
		return false, fmt.Errorf("record exists: unknown kind %q", kind)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(&n); err != nil {
		return false, wrapReadError("exists "+string(kind), fmt.Errorf("check %s exists: %w", kind, err))
	}
	return n > 0, nil
}

// JobLocation returns the location id of a synced job, or errs.ErrNotFound.
func (s *Store) JobLocation(ctx context.Context, jobID string) (string, error) {
	var locationID string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT location_id FROM jobs WHERE id = ?`), jobID).Scan(&locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.ErrNotFound
	}
	if err != nil {
		return "", wrapReadError("job location", fmt.Errorf("get job location: %w", err))
	}
	return locationID, nil
}

// RecordRun persists the aggregate counters of a finished sync run.
func (s *Store) RecordRun(ctx context.Context, r *models.SyncRunResult) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO sync_runs (run_id, started_at, finished_at,
			locations_attempted, locations_synced, locations_failed,
			jobs_attempted, jobs_synced, jobs_failed,
			media_attempted, media_synced, media_failed,
			aborted, success, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		r.RunID, r.StartedAt.UTC(), r.FinishedAt.UTC(),
		r.Locations.Attempted, r.Locations.Synced, r.Locations.Failed,
		r.Jobs.Attempted, r.Jobs.Synced, r.Jobs.Failed,
		r.Media.Attempted, r.Media.Synced, r.Media.Failed,
		r.Aborted, r.Success, r.Message,
	)
	if err != nil {
		return wrapReadError("record run", fmt.Errorf("record sync run: %w", err))
	}
	return nil
}

func orNow(t *time.Time, now time.Time) time.Time {
	if t == nil {
		return now
	}
	return t.UTC()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
