package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Clinteastman/heartlib/internal/config"
	"github.com/Clinteastman/heartlib/internal/engine"
)

// EngineClient implements engine.Engine against the inference sidecar that
// hosts the HeartMuLa model. All calls are synchronous; the executor
// goroutine absorbs the blocking.
type EngineClient struct {
	httpClient     *http.Client
	baseURL        string
	checkpointPath string
	modelVersion   string
}

type warmupRequest struct {
	CheckpointPath string `json:"checkpointPath"`
	Version        string `json:"version"`
}

type frameRequest struct {
	Prev        []int32 `json:"prev,omitempty"`
	Seed        bool    `json:"seed"`
	Lyrics      string  `json:"lyrics"`
	Tags        string  `json:"tags"`
	Temperature float64 `json:"temperature"`
	TopK        int     `json:"topk"`
	CFGScale    float64 `json:"cfgScale"`
}

type frameResponse struct {
	Frame []int32 `json:"frame"`
	EOS   bool    `json:"eos"`
}

type decodeRequest struct {
	Frames [][]int32 `json:"frames"`
}

type decodeResponse struct {
	Audio []byte `json:"audio"` // base64 over the wire
}

// NewEngineClient creates a client for the inference sidecar
func NewEngineClient(cfg *config.EngineConfig, modelCfg *config.ModelConfig) *EngineClient {
	return &EngineClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL:        cfg.ServiceURL,
		checkpointPath: modelCfg.CheckpointPath,
		modelVersion:   modelCfg.Version,
	}
}

func (c *EngineClient) Warmup(ctx context.Context) error {
	req := warmupRequest{
		CheckpointPath: c.checkpointPath,
		Version:        c.modelVersion,
	}
	return c.post(ctx, "/warmup", req, &struct{}{})
}

func (c *EngineClient) GenerateFrame(ctx context.Context, prev engine.Frame, params engine.SamplingParams) (engine.Frame, bool, error) {
	req := frameRequest{
		Prev:        prev,
		Seed:        prev == nil,
		Lyrics:      params.Lyrics,
		Tags:        params.Tags,
		Temperature: params.Temperature,
		TopK:        params.TopK,
		CFGScale:    params.CFGScale,
	}

	var resp frameResponse
	if err := c.post(ctx, "/frame", req, &resp); err != nil {
		return nil, false, err
	}
	return resp.Frame, resp.EOS, nil
}

func (c *EngineClient) Decode(ctx context.Context, frames []engine.Frame) ([]byte, error) {
	req := decodeRequest{Frames: make([][]int32, len(frames))}
	for i, f := range frames {
		req.Frames[i] = f
	}

	var resp decodeResponse
	if err := c.post(ctx, "/decode", req, &resp); err != nil {
		return nil, err
	}
	return resp.Audio, nil
}

func (c *EngineClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("inference engine error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if a sidecar URL has been set
func (c *EngineClient) IsConfigured() bool {
	return c.baseURL != ""
}
