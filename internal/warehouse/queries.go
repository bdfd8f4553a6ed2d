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

// Stats summarizes the relational projection. Correct only as of the last sync.
type Stats struct {
	TotalLocations       int                      `json:"total_locations"`
	ActiveLocations      int                      `json:"active_locations"`
	TotalJobs            int                      `json:"total_jobs"`
	JobsByStatus         map[models.JobStatus]int `json:"jobs_by_status"`
	TotalMedia           int                      `json:"total_media"`
	VideoCount           int                      `json:"video_count"`
	TotalHours           float64                  `json:"total_hours"`
	DerivedHours         float64                  `json:"derived_hours"`
	MediaWithoutDuration int                      `json:"media_without_duration"`
	LastRun              *RunRecord               `json:"last_run,omitempty"`
}

// RunRecord is one row of the sync audit table.
type RunRecord struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Locations  models.KindCounts `json:"locations"`
	Jobs       models.KindCounts `json:"jobs"`
	Media      models.KindCounts `json:"media"`
	Aborted    bool              `json:"aborted"`
	Success    bool              `json:"success"`
	Message    string            `json:"message"`
}

// HistoryItem is one media capture at a location.
type HistoryItem struct {
	MediaID      string           `json:"media_id"`
	JobID        string           `json:"job_id"`
	JobTitle     string           `json:"job_title"`
	JobStatus    models.JobStatus `json:"job_status"`
	Kind         models.MediaKind `json:"kind"`
	URL          string           `json:"url"`
	Hours        *float64         `json:"hours,omitempty"`
	HoursDerived bool             `json:"hours_derived"`
	UploadedAt   time.Time        `json:"uploaded_at"`
}

// LocationHistory lists recent media at a location with hour totals.
type LocationHistory struct {
	LocationID string        `json:"location_id"`
	Name       string        `json:"name"`
	TotalItems int           `json:"total_items"`
	TotalHours float64       `json:"total_hours"`
	Items      []HistoryItem `json:"items"`
}

// Stats computes the portal dashboard aggregates. Hour totals use the stored
// resolved hours only; media without any duration count as items.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{JobsByStatus: make(map[models.JobStatus]int)}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0)
		FROM locations
	`).Scan(&st.TotalLocations, &st.ActiveLocations)
	if err != nil {
		return nil, wrapReadError("stats", fmt.Errorf("count locations: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, wrapReadError("stats", fmt.Errorf("count jobs: %w", err))
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan job status: %w", err)
		}
		st.JobsByStatus[models.JobStatus(status)] = n
		st.TotalJobs += n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapReadError("stats", fmt.Errorf("iterate job statuses: %w", err))
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN kind = 'video' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(duration_hours), 0),
			COALESCE(SUM(CASE WHEN hours_derived THEN duration_hours ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN duration_hours IS NULL THEN 1 ELSE 0 END), 0)
		FROM media
	`).Scan(&st.TotalMedia, &st.VideoCount, &st.TotalHours, &st.DerivedHours, &st.MediaWithoutDuration)
	if err != nil {
		return nil, wrapReadError("stats", fmt.Errorf("aggregate media: %w", err))
	}

	runs, err := s.RecentRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) > 0 {
		st.LastRun = &runs[0]
	}
	return st, nil
}

// LocationHistory returns the most recent media captured at locationID.
func (s *Store) LocationHistory(ctx context.Context, locationID string, limit int) (*LocationHistory, error) {
	if limit <= 0 {
		limit = 50
	}

	h := &LocationHistory{LocationID: locationID, Items: []HistoryItem{}}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT name FROM locations WHERE id = ?`), locationID).Scan(&h.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, wrapReadError("history", fmt.Errorf("get location: %w", err))
	}

	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*), COALESCE(SUM(duration_hours), 0) FROM media WHERE location_id = ?
	`), locationID).Scan(&h.TotalItems, &h.TotalHours)
	if err != nil {
		return nil, wrapReadError("history", fmt.Errorf("aggregate location media: %w", err))
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT m.id, m.job_id, j.title, j.status, m.kind, m.url, m.duration_hours, m.hours_derived, m.uploaded_at
		FROM media m
		JOIN jobs j ON j.id = m.job_id
		WHERE m.location_id = ?
		ORDER BY m.uploaded_at DESC, m.id
		LIMIT ?
	`), locationID, limit)
	if err != nil {
		return nil, wrapReadError("history", fmt.Errorf("list location media: %w", err))
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item  HistoryItem
			hours sql.NullFloat64
		)
		if err := rows.Scan(&item.MediaID, &item.JobID, &item.JobTitle, &item.JobStatus, &item.Kind,
			&item.URL, &hours, &item.HoursDerived, &item.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan history item: %w", err)
		}
		if hours.Valid {
			v := hours.Float64
			item.Hours = &v
		}
		h.Items = append(h.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapReadError("history", fmt.Errorf("iterate history: %w", err))
	}
	return h, nil
}

// RecentRuns returns the latest sync audit rows, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT run_id, started_at, finished_at,
			locations_attempted, locations_synced, locations_failed,
			jobs_attempted, jobs_synced, jobs_failed,
			media_attempted, media_synced, media_failed,
			aborted, success, message
		FROM sync_runs
		ORDER BY finished_at DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, wrapReadError("runs", fmt.Errorf("list sync runs: %w", err))
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.StartedAt, &r.FinishedAt,
			&r.Locations.Attempted, &r.Locations.Synced, &r.Locations.Failed,
			&r.Jobs.Attempted, &r.Jobs.Synced, &r.Jobs.Failed,
			&r.Media.Attempted, &r.Media.Synced, &r.Media.Failed,
			&r.Aborted, &r.Success, &r.Message); err != nil {
			return nil, fmt.Errorf("scan sync run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapReadError("runs", fmt.Errorf("iterate sync runs: %w", err))
	}
	return runs, nil
}
