package model

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a generation job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusLoading    JobStatus = "loading"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further status transitions can occur
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Parameter bounds accepted by the generation pipeline
const (
	MinTemperature = 0.1
	MaxTemperature = 2.0
	MinTopK        = 1
	MaxTopK        = 200
	MinCFGScale    = 1.0
	MaxCFGScale    = 3.0
	MinAudioMS     = 60000
	MaxAudioMS     = 480000
)

// Default sampling parameters, applied when the request omits them
const (
	DefaultTemperature = 1.0
	DefaultTopK        = 50
	DefaultCFGScale    = 1.5
	DefaultAudioMS     = 240000
)

// GenerationParams are the immutable request parameters of a job
type GenerationParams struct {
	Lyrics           string  `json:"lyrics"`
	Tags             string  `json:"tags"`
	Temperature      float64 `json:"temperature"`
	TopK             int     `json:"topk"`
	CFGScale         float64 `json:"cfgScale"`
	MaxAudioLengthMS int     `json:"maxAudioLengthMs"`
}

// Validate checks every parameter against its accepted range
func (p GenerationParams) Validate() error {
	if p.Lyrics == "" {
		return fmt.Errorf("lyrics must not be empty")
	}
	if p.Tags == "" {
		return fmt.Errorf("tags must not be empty")
	}
	if p.Temperature < MinTemperature || p.Temperature > MaxTemperature {
		return fmt.Errorf("temperature %.2f out of range [%.1f, %.1f]", p.Temperature, MinTemperature, MaxTemperature)
	}
	if p.TopK < MinTopK || p.TopK > MaxTopK {
		return fmt.Errorf("topk %d out of range [%d, %d]", p.TopK, MinTopK, MaxTopK)
	}
	if p.CFGScale < MinCFGScale || p.CFGScale > MaxCFGScale {
		return fmt.Errorf("cfgScale %.2f out of range [%.1f, %.1f]", p.CFGScale, MinCFGScale, MaxCFGScale)
	}
	if p.MaxAudioLengthMS < MinAudioMS || p.MaxAudioLengthMS > MaxAudioMS {
		return fmt.Errorf("maxAudioLengthMs %d out of range [%d, %d]", p.MaxAudioLengthMS, MinAudioMS, MaxAudioMS)
	}
	return nil
}

// JobSnapshot is a point-in-time copy of a job's state, as delivered to
// observers and returned from the status endpoint
type JobSnapshot struct {
	JobID        string     `json:"jobId"`
	Status       JobStatus  `json:"status"`
	Progress     float64    `json:"progress"`
	CurrentFrame int        `json:"currentFrame"`
	TotalFrames  int        `json:"totalFrames"`
	OutputPath   string     `json:"outputPath,omitempty"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// GenerationStartRequest is the body of POST /api/generation/start
type GenerationStartRequest struct {
	Lyrics           string   `json:"lyrics" validate:"required,min=1"`
	Tags             string   `json:"tags" validate:"required,min=1"`
	Temperature      *float64 `json:"temperature" validate:"omitempty,gte=0.1,lte=2"`
	TopK             *int     `json:"topk" validate:"omitempty,gte=1,lte=200"`
	CFGScale         *float64 `json:"cfgScale" validate:"omitempty,gte=1,lte=3"`
	MaxAudioLengthMS *int     `json:"maxAudioLengthMs" validate:"omitempty,gte=60000,lte=480000"`
}

// Params resolves the request into generation parameters, filling defaults
func (r *GenerationStartRequest) Params() GenerationParams {
	p := GenerationParams{
		Lyrics:           r.Lyrics,
		Tags:             r.Tags,
		Temperature:      DefaultTemperature,
		TopK:             DefaultTopK,
		CFGScale:         DefaultCFGScale,
		MaxAudioLengthMS: DefaultAudioMS,
	}
	if r.Temperature != nil {
		p.Temperature = *r.Temperature
	}
	if r.TopK != nil {
		p.TopK = *r.TopK
	}
	if r.CFGScale != nil {
		p.CFGScale = *r.CFGScale
	}
	if r.MaxAudioLengthMS != nil {
		p.MaxAudioLengthMS = *r.MaxAudioLengthMS
	}
	return p
}

// GenerationStartResponse is returned when a job has been admitted
type GenerationStartResponse struct {
	JobID     string    `json:"jobId"`
	Status    JobStatus `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// DownloadInfo describes where a completed job's artifact can be fetched
type DownloadInfo struct {
	JobID       string `json:"jobId"`
	DownloadURL string `json:"downloadUrl"`
	Filename    string `json:"filename"`
}
