package service

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Clinteastman/heartlib/internal/model"
	"github.com/Clinteastman/heartlib/internal/pipeline"
)

var (
	// ErrJobNotFound is returned for unknown job ids
	ErrJobNotFound = errors.New("job not found")
	// ErrCapacityExceeded is returned while another job holds the admission slot
	ErrCapacityExceeded = errors.New("a generation is already in progress")
	// ErrJobNotCompleted is returned when a result is requested before completion
	ErrJobNotCompleted = errors.New("job not completed")
)

// GenerationService orchestrates generation jobs: admission, dispatch onto
// the executor goroutine, status queries and the live progress stream.
type GenerationService struct {
	registry  *pipeline.Registry
	gate      *pipeline.Gate
	notifier  *pipeline.Notifier
	executor  *pipeline.Executor
	keepalive time.Duration
}

func NewGenerationService(registry *pipeline.Registry, gate *pipeline.Gate, notifier *pipeline.Notifier, executor *pipeline.Executor, keepalive time.Duration) *GenerationService {
	return &GenerationService{
		registry:  registry,
		gate:      gate,
		notifier:  notifier,
		executor:  executor,
		keepalive: keepalive,
	}
}

// Start admits a new generation job. The slot is claimed before the job is
// created so a capacity rejection never leaves a dangling queued job behind.
func (s *GenerationService) Start(req *model.GenerationStartRequest) (*model.GenerationStartResponse, error) {
	params := req.Params()
	if err := params.Validate(); err != nil {
		return nil, err
	}

	id := pipeline.NewJobID()
	if !s.gate.TryAcquire(id) {
		return nil, ErrCapacityExceeded
	}

	job, err := s.registry.Create(id, params)
	if err != nil {
		s.gate.Release()
		return nil, err
	}

	// The production loop is long and accelerator-bound; it runs detached
	// from any request context
	go s.executor.Run(context.Background(), job)

	return &model.GenerationStartResponse{
		JobID:     job.ID,
		Status:    model.JobStatusQueued,
		Message:   "Generation started. Use /api/generation/progress/" + job.ID + " to track progress.",
		CreatedAt: job.CreatedAt,
	}, nil
}

// Status returns the current snapshot of a job
func (s *GenerationService) Status(jobID string) (model.JobSnapshot, error) {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return model.JobSnapshot{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// DownloadInfo describes where a completed job's artifact can be fetched
func (s *GenerationService) DownloadInfo(jobID string) (*model.DownloadInfo, error) {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}

	snap := job.Snapshot()
	if snap.Status != model.JobStatusCompleted {
		return nil, ErrJobNotCompleted
	}

	short := jobID
	if len(short) > 8 {
		short = short[:8]
	}
	return &model.DownloadInfo{
		JobID:       jobID,
		DownloadURL: snap.OutputPath,
		Filename:    fmt.Sprintf("heartmula_%s.mp3", short),
	}, nil
}

// Subscribe registers an observer for a job's progress notifications
func (s *GenerationService) Subscribe(jobID string) *pipeline.Subscription {
	return s.notifier.Subscribe(jobID)
}

// Unsubscribe detaches one observer
func (s *GenerationService) Unsubscribe(sub *pipeline.Subscription) {
	s.notifier.Unsubscribe(sub)
}

// StreamProgress bridges a job's push notifications into a Server-Sent
// Events stream on w. The first event is the current snapshot,
// unconditionally; after the first terminal snapshot the stream ends. The
// wait loop pairs event-driven delivery with a keepalive-driven re-poll of
// the registry, because intermediate delivery is best-effort and a client
// connecting around the terminal transition must still learn the outcome.
// Returns once the stream is done or the client has gone away; the
// observer is always detached on the way out.
func (s *GenerationService) StreamProgress(w *bufio.Writer, jobID string) error {
	job, ok := s.registry.Get(jobID)
	if !ok {
		return ErrJobNotFound
	}

	snap := job.Snapshot()
	if err := writeSSE(w, snap); err != nil {
		return err
	}
	if snap.Status.Terminal() {
		return nil
	}

	sub := s.notifier.Subscribe(jobID)
	defer s.notifier.Unsubscribe(sub)

	timer := time.NewTimer(s.keepalive)
	defer timer.Stop()

	for {
		select {
		case snap, open := <-sub.C:
			if !open {
				// Terminal cleanup closed the channel before we drained
				// the final event; the registry still has it
				if last := job.Snapshot(); last.Status.Terminal() {
					return writeSSE(w, last)
				}
				return nil
			}
			if err := writeSSE(w, snap); err != nil {
				return err
			}
			if snap.Status.Terminal() {
				return nil
			}

		case <-timer.C:
			if _, err := w.WriteString(": keepalive\n\n"); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if last := job.Snapshot(); last.Status.Terminal() {
				return writeSSE(w, last)
			}
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(s.keepalive)
	}
}

func writeSSE(w *bufio.Writer, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return w.Flush()
}
