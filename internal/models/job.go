package models

import "time"

// JobStatus is the state of a job in the field-worker workflow.
type JobStatus string

const (
	JobAvailable  JobStatus = "available"
	JobClaimed    JobStatus = "claimed"
	JobInProgress JobStatus = "in_progress"
	JobPaused     JobStatus = "paused"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
	JobAborted    JobStatus = "aborted"
)

// JobStatuses lists every valid status.
var JobStatuses = []JobStatus{JobAvailable, JobClaimed, JobInProgress, JobPaused, JobCompleted, JobFailed, JobAborted}

// Priority of a job.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Job is a unit of work scheduled at a Location.
type Job struct {
	ID                       string     `json:"id"`
	Title                    string     `json:"title"`
	Description              *string    `json:"description,omitempty"`
	Category                 string     `json:"category"`
	Priority                 Priority   `json:"priority"`
	LocationID               string     `json:"location_id"`
	Status                   JobStatus  `json:"status"`
	EstimatedDurationMinutes *int       `json:"estimated_duration_minutes,omitempty"`
	CreatedAt                *time.Time `json:"created_at,omitempty"`
	UpdatedAt                *time.Time `json:"updated_at,omitempty"`
}
