package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/Clinteastman/heartlib/internal/model"
)

// ErrDownloadInProgress is returned when a download is already running
var ErrDownloadInProgress = errors.New("a model download is already in progress")

// requiredArtifact describes one model artifact the pipeline needs on disk.
// IsFile marks loose files that live directly in the checkpoint dir;
// directory artifacts get their own subdirectory.
type requiredArtifact struct {
	Name   string
	Subdir string
	Repo   string
	IsFile bool
}

var requiredArtifacts = []requiredArtifact{
	{Name: "HeartCodec-oss", Subdir: "HeartCodec-oss", Repo: "HeartMuLa/HeartCodec-oss"},
	{Name: "HeartMuLa-oss-3B", Subdir: "HeartMuLa-oss-3B", Repo: "HeartMuLa/HeartMuLa-oss-3B"},
	{Name: "tokenizer.json", Subdir: "tokenizer.json", Repo: "HeartMuLa/HeartMuLaGen", IsFile: true},
	{Name: "gen_config.json", Subdir: "gen_config.json", Repo: "HeartMuLa/HeartMuLaGen", IsFile: true},
}

// ModelService checks model artifact presence and orchestrates downloads
// from the Hugging Face hub. At most one download runs at a time; the
// download itself is owned by the external CLI tooling.
type ModelService struct {
	checkpointDir string
	pollInterval  time.Duration

	mu     sync.Mutex
	status model.DownloadStatus
}

func NewModelService(checkpointDir string) *ModelService {
	return &ModelService{
		checkpointDir: checkpointDir,
		pollInterval:  time.Second,
		status:        model.DownloadStatus{Total: len(requiredArtifacts)},
	}
}

// Status reports which required artifacts are present
func (s *ModelService) Status() *model.ArtifactsStatusResponse {
	resp := &model.ArtifactsStatusResponse{
		CheckpointDir: s.checkpointDir,
		AllPresent:    true,
	}

	for _, a := range requiredArtifacts {
		path := filepath.Join(s.checkpointDir, a.Subdir)
		_, err := os.Stat(path)
		exists := err == nil
		if !exists {
			resp.AllPresent = false
		}
		resp.Artifacts = append(resp.Artifacts, model.ArtifactInfo{
			Name:   a.Name,
			Path:   path,
			Exists: exists,
			Repo:   a.Repo,
		})
	}
	return resp
}

// DownloadStatus reports the state of the background download
func (s *ModelService) DownloadStatus() model.DownloadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StreamDownloadStatus bridges the download status into a Server-Sent
// Events stream on w, emitting one snapshot per poll. The stream ends
// after the first snapshot that reports no download in progress, so a
// client connecting while idle gets exactly one event.
func (s *ModelService) StreamDownloadStatus(w *bufio.Writer) error {
	for {
		status := s.DownloadStatus()
		if err := writeSSE(w, status); err != nil {
			return err
		}
		if !status.Downloading {
			return nil
		}
		time.Sleep(s.pollInterval)
	}
}

// StartDownload launches a background download of all missing artifacts.
// Mirrors the admission pattern: at most one download at a time.
func (s *ModelService) StartDownload(ctx context.Context) error {
	s.mu.Lock()
	if s.status.Downloading {
		s.mu.Unlock()
		return ErrDownloadInProgress
	}
	s.status = model.DownloadStatus{
		Downloading: true,
		Total:       len(requiredArtifacts),
	}
	s.mu.Unlock()

	go s.download(ctx)
	return nil
}

func (s *ModelService) download(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.status.Downloading = false
		s.status.CurrentArtifact = ""
		s.mu.Unlock()
	}()

	// Repos shared by several artifacts are only fetched once
	fetched := make(map[string]bool)

	for _, a := range requiredArtifacts {
		if _, err := os.Stat(filepath.Join(s.checkpointDir, a.Subdir)); err == nil {
			s.advance(a.Name)
			continue
		}
		if fetched[a.Repo] {
			s.advance(a.Name)
			continue
		}

		s.mu.Lock()
		s.status.CurrentArtifact = a.Name
		s.mu.Unlock()

		if err := s.fetchRepo(ctx, a.Repo, s.artifactLocalDir(a)); err != nil {
			log.Printf("model download failed for %s: %v", a.Repo, err)
			s.mu.Lock()
			s.status.Error = fmt.Sprintf("download of %s failed: %v", a.Repo, err)
			s.mu.Unlock()
			return
		}
		fetched[a.Repo] = true
		s.advance(a.Name)
	}
}

func (s *ModelService) advance(name string) {
	s.mu.Lock()
	s.status.Completed++
	s.mu.Unlock()
	log.Printf("model artifact ready: %s", name)
}

// artifactLocalDir resolves where the CLI should place a repo's files.
// Directory artifacts get their own subdirectory so the presence check in
// Status finds them; loose files download straight into the checkpoint dir.
func (s *ModelService) artifactLocalDir(a requiredArtifact) string {
	if a.IsFile {
		return s.checkpointDir
	}
	return filepath.Join(s.checkpointDir, a.Subdir)
}

// fetchRepo shells out to the Hugging Face CLI, trying the long and short
// command names in order.
func (s *ModelService) fetchRepo(ctx context.Context, repo, localDir string) error {
	args := []string{"download", "--local-dir", localDir, repo}

	var lastErr error
	for _, bin := range []string{"huggingface-cli", "hf"} {
		cmd := exec.CommandContext(ctx, bin, args...)
		out, err := cmd.CombinedOutput()
		if err == nil {
			return nil
		}
		lastErr = fmt.Errorf("%s: %w: %s", bin, err, string(out))
		if errors.Is(err, exec.ErrNotFound) {
			continue
		}
		return lastErr
	}
	return lastErr
}
