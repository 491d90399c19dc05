// Package engine defines the boundary to the inference engine that owns
// token sampling, attention caching and audio decoding. The pipeline treats
// it as an opaque, synchronous collaborator; the executor's dedicated
// goroutine absorbs the blocking.
package engine

import "context"

// Frame is one fixed-duration increment of generated output: the audio
// codec tokens for 80 ms of audio.
type Frame []int32

// SamplingParams condition frame production for one job
type SamplingParams struct {
	Lyrics      string
	Tags        string
	Temperature float64
	TopK        int
	CFGScale    float64
}

// Engine produces audio frames autoregressively and decodes them into a
// final artifact.
type Engine interface {
	// Warmup performs the one-time model load. Idempotent.
	Warmup(ctx context.Context) error

	// GenerateFrame produces the next frame given the previous one as
	// feedback. A nil prev requests the seed frame that primes the
	// sequence. eos reports that the model ended the sequence; the frame
	// returned alongside eos carries no audio.
	GenerateFrame(ctx context.Context, prev Frame, params SamplingParams) (frame Frame, eos bool, err error)

	// Decode turns the accumulated frame sequence into the final audio
	// artifact (MP3 bytes).
	Decode(ctx context.Context, frames []Frame) ([]byte, error)
}
