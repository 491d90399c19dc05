package service

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Clinteastman/heartlib/internal/client"
)

// OutputURLPrefix is the stable path generated artifacts are served under
const OutputURLPrefix = "/output"

// ArtifactStore writes generated audio to the local output directory and,
// when object storage is configured, mirrors it there. The local path is
// the canonical output location; the mirror is best-effort.
type ArtifactStore struct {
	dir     string
	storage client.StorageClient
}

func NewArtifactStore(dir string, storage client.StorageClient) *ArtifactStore {
	return &ArtifactStore{
		dir:     dir,
		storage: storage,
	}
}

// Save persists a completed job's audio under a filename derived from the
// job id and returns the stable public path.
func (s *ArtifactStore) Save(ctx context.Context, jobID string, audio []byte) (string, error) {
	filename := jobID + ".mp3"

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), audio, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}

	if s.storage != nil {
		key := "tracks/" + filename
		if _, err := s.storage.Upload(ctx, key, bytes.NewReader(audio), "audio/mpeg"); err != nil {
			log.Printf("artifact mirror upload failed for %s: %v", jobID, err)
		}
	}

	return OutputURLPrefix + "/" + filename, nil
}
