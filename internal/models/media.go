package models

import "time"

// MediaKind distinguishes captured artifacts.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media is a captured video or image artifact attached to a job.
type Media struct {
	ID           string    `json:"id"`
	JobID        string    `json:"job_id"`
	LocationID   *string   `json:"location_id,omitempty"` // denormalized from the job
	URL          string    `json:"url"`
	ThumbnailURL *string   `json:"thumbnail_url,omitempty"`
	Kind         MediaKind `json:"kind"`

	// Source values. Any of them may be absent.
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	DurationHours   *float64 `json:"duration_hours,omitempty"`
	SizeGB          *float64 `json:"size_gb,omitempty"`
	SizeBytes       *int64   `json:"size_bytes,omitempty"`

	// Set by the derive package before the record is written.
	ResolvedHours *float64 `json:"resolved_hours,omitempty"`
	HoursDerived  bool     `json:"hours_derived"`

	UploaderID string     `json:"uploader_id"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}
