package model

// LyricsGenerateRequest is the body of POST /api/lyrics/generate
type LyricsGenerateRequest struct {
	Prompt   string `json:"prompt" validate:"required,min=3,max=1000"`
	Genre    string `json:"genre" validate:"omitempty,max=50"`
	Mood     string `json:"mood" validate:"omitempty,max=50"`
	Theme    string `json:"theme" validate:"omitempty,max=100"`
	Language string `json:"language" validate:"omitempty,max=20"`
}

// LyricsGenerateResponse carries the drafted lyrics and suggested tags
type LyricsGenerateResponse struct {
	Lyrics string `json:"lyrics"`
	Tags   string `json:"tags"`
}

// TagPresets groups suggested tags by category for the UI
type TagPresets struct {
	Instruments []string `json:"instruments"`
	Moods       []string `json:"moods"`
	Genres      []string `json:"genres"`
	Feels       []string `json:"feels"`
	Vocals      []string `json:"vocals"`
}

// LyricsExample is a ready-made lyrics/tags pair for testing the pipeline
type LyricsExample struct {
	Lyrics string `json:"lyrics"`
	Tags   string `json:"tags"`
}
