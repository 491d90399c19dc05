package engine

import (
	"context"
	"encoding/binary"
	"sync"
	"time"
)

// frameTokens is the codec parallel number of the simulated model
const frameTokens = 8

// Simulated is a stand-in engine used when no inference sidecar is
// configured. It produces deterministic frames and a synthetic MP3 payload,
// which keeps the full job lifecycle exercisable in development and tests.
type Simulated struct {
	// FrameDelay is slept before each produced frame
	FrameDelay time.Duration

	// EOSAfterFrame ends the sequence when the frame beyond this index is
	// requested. Zero means the engine never ends early.
	EOSAfterFrame int

	// WarmupError, when set, is returned from Warmup
	WarmupError error

	// FailAtFrame, when non-zero, makes production of that frame return
	// FrameError
	FailAtFrame int
	FrameError  error

	mu       sync.Mutex
	warmedUp bool
	produced int
}

func NewSimulated(frameDelay time.Duration) *Simulated {
	return &Simulated{FrameDelay: frameDelay}
}

func (e *Simulated) Warmup(ctx context.Context) error {
	if e.WarmupError != nil {
		return e.WarmupError
	}
	e.mu.Lock()
	e.warmedUp = true
	e.mu.Unlock()
	return nil
}

func (e *Simulated) GenerateFrame(ctx context.Context, prev Frame, params SamplingParams) (Frame, bool, error) {
	if e.FrameDelay > 0 {
		select {
		case <-time.After(e.FrameDelay):
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}

	// The seed frame primes the sequence and is not counted
	if prev == nil {
		return e.makeFrame(0), false, nil
	}

	e.mu.Lock()
	e.produced++
	n := e.produced
	e.mu.Unlock()

	if e.FailAtFrame > 0 && n >= e.FailAtFrame {
		return nil, false, e.FrameError
	}
	if e.EOSAfterFrame > 0 && n > e.EOSAfterFrame {
		return nil, true, nil
	}
	return e.makeFrame(n), false, nil
}

func (e *Simulated) Decode(ctx context.Context, frames []Frame) ([]byte, error) {
	// Synthetic payload: an ID3 header followed by the token stream, so the
	// artifact size tracks the generated length
	out := make([]byte, 0, 10+len(frames)*frameTokens*4)
	out = append(out, 'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0)
	for _, f := range frames {
		for _, tok := range f {
			out = binary.LittleEndian.AppendUint32(out, uint32(tok))
		}
	}
	return out, nil
}

func (e *Simulated) makeFrame(n int) Frame {
	f := make(Frame, frameTokens)
	for i := range f {
		f[i] = int32(n*frameTokens + i)
	}
	return f
}
