package pipeline

import (
	"context"
	"log"

	"github.com/Clinteastman/heartlib/internal/engine"
)

// FrameDurationMS is the fixed audio duration of one generated frame
const FrameDurationMS = 80

// ArtifactStore persists a completed job's audio and returns the stable
// path it is retrievable from.
type ArtifactStore interface {
	Save(ctx context.Context, jobID string, audio []byte) (string, error)
}

// Executor runs one admitted job to a terminal state on its own goroutine,
// fully detached from the request-handling path.
type Executor struct {
	gate     *Gate
	notifier *Notifier
	engine   engine.Engine
	store    ArtifactStore
}

func NewExecutor(gate *Gate, notifier *Notifier, eng engine.Engine, store ArtifactStore) *Executor {
	return &Executor{
		gate:     gate,
		notifier: notifier,
		engine:   eng,
		store:    store,
	}
}

// Run drives the job through loading → generating → completed|failed.
// Every terminal path publishes the final snapshot, detaches all observers
// and releases the admission gate, in that order, so a new job cannot be
// admitted while this one's outcome is still being published.
func (e *Executor) Run(ctx context.Context, job *Job) {
	log.Printf("generation job %s: starting (max %dms, temp %.2f, topk %d, cfg %.2f)",
		job.ID, job.Params.MaxAudioLengthMS, job.Params.Temperature, job.Params.TopK, job.Params.CFGScale)

	job.BeginLoading()
	e.notifier.Publish(job.Snapshot())

	if err := e.engine.Warmup(ctx); err != nil {
		e.fail(job, "model warm-up failed: "+err.Error())
		return
	}

	totalFrames := job.Params.MaxAudioLengthMS / FrameDurationMS
	job.BeginGenerating(totalFrames)
	e.notifier.Publish(job.Snapshot())

	params := engine.SamplingParams{
		Lyrics:      job.Params.Lyrics,
		Tags:        job.Params.Tags,
		Temperature: job.Params.Temperature,
		TopK:        job.Params.TopK,
		CFGScale:    job.Params.CFGScale,
	}

	// The seed frame primes the sequence and does not advance the visible
	// progress counter
	seed, eos, err := e.engine.GenerateFrame(ctx, nil, params)
	if err != nil {
		e.fail(job, "generation failed: "+err.Error())
		return
	}

	frames := make([]engine.Frame, 0, totalFrames+1)
	frames = append(frames, seed)
	prev := seed

	for i := 1; i <= totalFrames && !eos; i++ {
		var frame engine.Frame
		frame, eos, err = e.engine.GenerateFrame(ctx, prev, params)
		if err != nil {
			e.fail(job, "generation failed: "+err.Error())
			return
		}
		if eos {
			// End-of-sequence is a successful, shorter-than-budget
			// completion
			log.Printf("generation job %s: end of sequence at frame %d/%d", job.ID, i-1, totalFrames)
			break
		}

		frames = append(frames, frame)
		prev = frame
		job.AdvanceFrame(i)
		e.notifier.Publish(job.Snapshot())
	}

	audio, err := e.engine.Decode(ctx, frames)
	if err != nil {
		e.fail(job, "audio decoding failed: "+err.Error())
		return
	}

	outputPath, err := e.store.Save(ctx, job.ID, audio)
	if err != nil {
		e.fail(job, "failed to save output: "+err.Error())
		return
	}

	job.Complete(outputPath)
	e.finish(job)
	log.Printf("generation job %s: completed, output %s", job.ID, outputPath)
}

func (e *Executor) fail(job *Job, errMsg string) {
	job.Fail(errMsg)
	e.finish(job)
	log.Printf("generation job %s: failed: %s", job.ID, errMsg)
}

// finish publishes the terminal snapshot before releasing the gate
func (e *Executor) finish(job *Job) {
	e.notifier.PublishTerminal(job.Snapshot())
	e.notifier.Close(job.ID)
	e.gate.Release()
}
