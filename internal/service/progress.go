package service

import (
	"sync"
	"time"

	"github.com/raphaelgruber/portalsync/internal/models"
)

// RunStatus represents the state of the latest sync run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed" // finished with record failures
	RunStatusAborted   RunStatus = "aborted"
)

// RunProgress is the live view of a sync run.
type RunProgress struct {
	RunID       string      `json:"run_id"`
	Status      RunStatus   `json:"status"`
	Phase       models.Kind `json:"phase,omitempty"`
	Processed   int         `json:"processed"`
	Total       int         `json:"total"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// progressTracker holds the progress of the current or most recent run.
type progressTracker struct {
	mu      sync.RWMutex
	current *RunProgress
}

func (p *progressTracker) start(runID string, at time.Time) {
	p.mu.Lock()
	p.current = &RunProgress{RunID: runID, Status: RunStatusRunning, StartedAt: at}
	p.mu.Unlock()
}

func (p *progressTracker) phase(kind models.Kind, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return
	}
	p.current.Phase = kind
	p.current.Processed = 0
	p.current.Total = total
}

func (p *progressTracker) advance() {
	p.mu.Lock()
	if p.current != nil {
		p.current.Processed++
	}
	p.mu.Unlock()
}

func (p *progressTracker) complete(r *models.SyncRunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil || p.current.RunID != r.RunID {
		return
	}
	switch {
	case r.Aborted:
		p.current.Status = RunStatusAborted
	case r.Success:
		p.current.Status = RunStatusCompleted
	default:
		p.current.Status = RunStatusFailed
	}
	finished := r.FinishedAt
	p.current.CompletedAt = &finished
	p.current.Message = r.Message
}

// snapshot returns a copy of the tracked run, or false before the first run.
func (p *progressTracker) snapshot() (RunProgress, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.current == nil {
		return RunProgress{}, false
	}
	return *p.current, true
}
