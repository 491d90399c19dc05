package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Clinteastman/heartlib/internal/model"
)

// Job tracks one generation request from creation to terminal outcome.
// Identity, parameters and creation time are immutable; the mutable fields
// are written only by the executor that owns the job and read by observers
// through Snapshot.
type Job struct {
	ID        string
	Params    model.GenerationParams
	CreatedAt time.Time

	mu           sync.RWMutex
	status       model.JobStatus
	progress     float64
	currentFrame int
	totalFrames  int
	outputPath   string
	errMsg       string
	startedAt    *time.Time
	completedAt  *time.Time
}

// NewJobID allocates a fresh opaque job identifier
func NewJobID() string {
	return uuid.New().String()
}

func newJob(id string, params model.GenerationParams) *Job {
	return &Job{
		ID:        id,
		Params:    params,
		CreatedAt: time.Now(),
		status:    model.JobStatusQueued,
	}
}

// BeginLoading marks the start of model warm-up and stamps startedAt
func (j *Job) BeginLoading() {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status = model.JobStatusLoading
	j.startedAt = &now
}

// BeginGenerating enters the production loop; totalFrames is the frame
// budget resolved from the requested duration and is set exactly once
func (j *Job) BeginGenerating(totalFrames int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = model.JobStatusGenerating
	j.totalFrames = totalFrames
}

// AdvanceFrame records one produced frame. Progress is monotonically
// non-decreasing while generating.
func (j *Job) AdvanceFrame(frame int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.currentFrame = frame
	if j.totalFrames > 0 {
		j.progress = float64(frame) / float64(j.totalFrames)
	}
}

// Complete transitions to the completed terminal state. Progress is forced
// to 1 even when the engine stopped early on end-of-sequence.
func (j *Job) Complete(outputPath string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status = model.JobStatusCompleted
	j.progress = 1.0
	j.outputPath = outputPath
	j.completedAt = &now
}

// Fail transitions to the failed terminal state, keeping the error verbatim
func (j *Job) Fail(errMsg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	j.status = model.JobStatusFailed
	j.errMsg = errMsg
	j.completedAt = &now
}

// Snapshot returns a point-in-time copy of the job's state
func (j *Job) Snapshot() model.JobSnapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return model.JobSnapshot{
		JobID:        j.ID,
		Status:       j.status,
		Progress:     j.progress,
		CurrentFrame: j.currentFrame,
		TotalFrames:  j.totalFrames,
		OutputPath:   j.outputPath,
		Error:        j.errMsg,
		CreatedAt:    j.CreatedAt,
		StartedAt:    j.startedAt,
		CompletedAt:  j.completedAt,
	}
}
