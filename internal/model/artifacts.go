package model

// ArtifactInfo describes one required model artifact on disk
type ArtifactInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	Repo   string `json:"repo,omitempty"`
}

// ArtifactsStatusResponse is the answer to GET /api/models/status
type ArtifactsStatusResponse struct {
	CheckpointDir string         `json:"checkpointDir"`
	AllPresent    bool           `json:"allPresent"`
	Artifacts     []ArtifactInfo `json:"artifacts"`
}

// DownloadStatus reports the state of a background artifact download
type DownloadStatus struct {
	Downloading     bool   `json:"downloading"`
	CurrentArtifact string `json:"currentArtifact,omitempty"`
	Completed       int    `json:"completed"`
	Total           int    `json:"total"`
	Error           string `json:"error,omitempty"`
}
