package models

import (
	"fmt"
	"strings"
	"time"
)

// KindCounts tallies one phase of a sync run.
type KindCounts struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
}

// RecordError describes one record that could not be synced.
type RecordError struct {
	Kind     Kind   `json:"kind"`
	RecordID string `json:"record_id"`
	Class    string `json:"class"`
	Message  string `json:"message"`
}

func (e RecordError) String() string {
	id := e.RecordID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, id, e.Message)
}

// SyncRunResult is the outcome of one orchestrator invocation.
type SyncRunResult struct {
	RunID       string        `json:"run_id"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Locations   KindCounts    `json:"locations"`
	Jobs        KindCounts    `json:"jobs"`
	Media       KindCounts    `json:"media"`
	Errors      []RecordError `json:"errors"`
	Aborted     bool          `json:"aborted"`
	AbortReason string        `json:"abort_reason,omitempty"`
	Success     bool          `json:"success"`
	Message     string        `json:"message"`
}

// Counts returns the tally for kind.
func (r *SyncRunResult) Counts(kind Kind) *KindCounts {
	switch kind {
	case KindLocation:
		return &r.Locations
	case KindJob:
		return &r.Jobs
	case KindMedia:
		return &r.Media
	}
	return nil
}

// TotalFailed sums failures across all kinds.
func (r *SyncRunResult) TotalFailed() int {
	return r.Locations.Failed + r.Jobs.Failed + r.Media.Failed
}

// Abort marks the run as stopped early. Only the first reason is kept.
func (r *SyncRunResult) Abort(kind Kind, err error) {
	if r.Aborted {
		return
	}
	r.Aborted = true
	r.AbortReason = fmt.Sprintf("%s phase: %v", kind, err)
}

// Finish stamps the end time and computes Success and Message.
func (r *SyncRunResult) Finish(now time.Time) {
	r.FinishedAt = now
	r.Success = !r.Aborted && r.TotalFailed() == 0

	var b strings.Builder
	if r.Success {
		b.WriteString("Sync completed: ")
	} else {
		b.WriteString("Sync completed with errors: ")
	}
	fmt.Fprintf(&b, "%d/%d locations, %d/%d jobs, %d/%d media synced",
		r.Locations.Synced, r.Locations.Attempted,
		r.Jobs.Synced, r.Jobs.Attempted,
		r.Media.Synced, r.Media.Attempted)
	if n := r.TotalFailed(); n > 0 {
		fmt.Fprintf(&b, "; %d failed", n)
	}
	if r.Aborted {
		fmt.Fprintf(&b, "; aborted (%s)", r.AbortReason)
	}
	r.Message = b.String()
}
