package models

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Run status values.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run records a single replication from a master to a slave appliance.
type Run struct {
	ID         string     `json:"id"`
	Object     string     `json:"object"`
	Master     string     `json:"master"`
	Slave      string     `json:"slave"`
	Status     string     `json:"status"`
	Stage      string     `json:"stage,omitempty"` // stage that failed, if any
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Output     []string   `json:"output"`
	mu         sync.Mutex
}

// NewRun creates a running Run with a fresh UUID.
func NewRun(object, master, slave string) *Run {
	return &Run{
		ID:        uuid.New().String(),
		Object:    object,
		Master:    master,
		Slave:     slave,
		Status:    RunRunning,
		StartedAt: time.Now(),
		Output:    []string{},
	}
}

// ShortID returns the first block of the run UUID, used in file names.
func (r *Run) ShortID() string {
	if len(r.ID) < 8 {
		return r.ID
	}
	return r.ID[:8]
}

// AppendLog adds a line to the run output.
func (r *Run) AppendLog(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Output = append(r.Output, line)
}

// Lines returns a copy of the run output.
func (r *Run) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	lines := make([]string, len(r.Output))
	copy(lines, r.Output)
	return lines
}

// Complete marks the run as completed.
func (r *Run) Complete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunCompleted
	now := time.Now()
	r.FinishedAt = &now
}

// Fail marks the run as failed at the given stage.
func (r *Run) Fail(stage, err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Status = RunFailed
	r.Stage = stage
	r.Error = err
	now := time.Now()
	r.FinishedAt = &now
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt == nil {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
