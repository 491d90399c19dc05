package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Clinteastman/heartlib/internal/config"
	"github.com/Clinteastman/heartlib/internal/engine"
)

func newTestClient(serviceURL string) *EngineClient {
	return NewEngineClient(
		&config.EngineConfig{ServiceURL: serviceURL, Timeout: 5},
		&config.ModelConfig{CheckpointPath: "/models/ckpt", Version: "3B"},
	)
}

func TestIsConfigured(t *testing.T) {
	if !newTestClient("http://localhost:8001").IsConfigured() {
		t.Error("expected configured client with a service URL")
	}
	if newTestClient("").IsConfigured() {
		t.Error("expected unconfigured client without a service URL")
	}
}

func TestWarmupSendsCheckpoint(t *testing.T) {
	var got warmupRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/warmup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.Warmup(context.Background()); err != nil {
		t.Fatalf("Warmup failed: %v", err)
	}
	if got.CheckpointPath != "/models/ckpt" || got.Version != "3B" {
		t.Errorf("unexpected warmup payload: %+v", got)
	}
}

func TestGenerateFrameRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req frameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if !req.Seed {
			t.Error("expected seed request for a nil previous frame")
		}
		json.NewEncoder(w).Encode(frameResponse{Frame: []int32{1, 2, 3}, EOS: false})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	frame, eos, err := c.GenerateFrame(context.Background(), nil, engine.SamplingParams{
		Lyrics:      "[verse]\nhello",
		Tags:        "pop",
		Temperature: 1.0,
		TopK:        50,
		CFGScale:    1.5,
	})
	if err != nil {
		t.Fatalf("GenerateFrame failed: %v", err)
	}
	if eos {
		t.Error("unexpected EOS")
	}
	if len(frame) != 3 || frame[0] != 1 {
		t.Errorf("unexpected frame: %v", frame)
	}
}

func TestEngineErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if err := c.Warmup(context.Background()); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}
