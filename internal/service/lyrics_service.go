package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/Clinteastman/heartlib/internal/client"
	"github.com/Clinteastman/heartlib/internal/config"
	"github.com/Clinteastman/heartlib/internal/model"
)

// ErrLLMNotConfigured is returned when the selected provider needs an API
// key and none has been set
var ErrLLMNotConfigured = errors.New("LLM provider not configured: add an API key in settings")

const tagsMarker = "---TAGS---"

const lyricsSystemPrompt = `You are a professional songwriter. Create lyrics for the HeartMuLa music generation system.

## OUTPUT FORMAT
Respond with lyrics using section markers, then tags. Use EXACTLY this format:

[Intro]
(optional intro vocalizations or leave empty)

[Verse]
lyrics lines here...

[Chorus]
hook and memorable lines...

(add more sections as needed)

---TAGS---
tag1,tag2,tag3,tag4

## RULES
- Standard structure: Intro - Verse - Prechorus - Chorus - Verse - Chorus - Bridge - Chorus - Outro
- The chorus carries the hook: 3-7 syllables, repeated, instantly memorable
- Verse 6-10 syllables per line, chorus 4-8; match syllable counts in parallel lines
- Show don't tell, use sensory details, present tense, first/second person
- Suggest 4-8 tags covering instruments, mood, genre, feel and vocals
- Tags must be lowercase, comma-separated, no spaces between tags
- Lyrics should be lowercase; each section marker on its own line in brackets
- Separate lyrics from tags with the ---TAGS--- marker`

// Available LLM providers for lyrics drafting
var llmProviders = map[string]model.LLMProviderInfo{
	"openai": {
		ID:             "openai",
		Name:           "OpenAI",
		RequiresAPIKey: true,
		Models:         []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"},
		DefaultModel:   "gpt-4o",
	},
	"anthropic": {
		ID:             "anthropic",
		Name:           "Anthropic",
		RequiresAPIKey: true,
		Models:         []string{"claude-sonnet-4-20250514", "claude-3-5-sonnet-20241022", "claude-3-haiku-20240307"},
		DefaultModel:   "claude-sonnet-4-20250514",
	},
	"ollama": {
		ID:             "ollama",
		Name:           "Ollama (Local)",
		RequiresAPIKey: false,
		Models:         []string{"llama3.2", "llama3.1", "mistral", "mixtral"},
		DefaultModel:   "llama3.2",
	},
}

// LyricsService drafts lyrics through a configurable LLM provider. The
// provider, model and API keys can be changed at runtime through the
// settings endpoints; settings are in-memory only.
type LyricsService struct {
	openAIBaseURL string
	ollamaBaseURL string

	mu       sync.Mutex
	provider string
	model    string
	apiKeys  map[string]string
	client   client.LLMProvider
}

func NewLyricsService(cfg *config.LLMConfig) *LyricsService {
	s := &LyricsService{
		openAIBaseURL: cfg.OpenAIBaseURL,
		ollamaBaseURL: cfg.OllamaBaseURL,
		provider:      cfg.Provider,
		model:         cfg.Model,
		apiKeys:       make(map[string]string),
	}
	if s.provider == "" {
		s.provider = "openai"
	}
	if s.model == "" {
		s.model = llmProviders[s.provider].DefaultModel
	}
	if cfg.OpenAIAPIKey != "" {
		s.apiKeys["openai"] = cfg.OpenAIAPIKey
	}
	if cfg.AnthropicAPIKey != "" {
		s.apiKeys["anthropic"] = cfg.AnthropicAPIKey
	}
	return s
}

// Generate drafts lyrics and tags from a free-form description
func (s *LyricsService) Generate(ctx context.Context, req *model.LyricsGenerateRequest) (*model.LyricsGenerateResponse, error) {
	provider, llmModel, err := s.currentProvider()
	if err != nil {
		return nil, err
	}

	userParts := []string{fmt.Sprintf("Write song lyrics based on this description: %s", req.Prompt)}
	if req.Genre != "" {
		userParts = append(userParts, "Genre: "+req.Genre)
	}
	if req.Mood != "" {
		userParts = append(userParts, "Mood: "+req.Mood)
	}
	if req.Theme != "" {
		userParts = append(userParts, "Theme: "+req.Theme)
	}
	if req.Language != "" && !strings.EqualFold(req.Language, "english") {
		userParts = append(userParts, "Language: "+req.Language)
	}

	raw, err := provider.Complete(ctx, lyricsSystemPrompt, strings.Join(userParts, "\n"), llmModel)
	if err != nil {
		return nil, fmt.Errorf("lyrics generation failed: %w", err)
	}

	lyrics, tags := parseLyricsResponse(raw)
	return &model.LyricsGenerateResponse{
		Lyrics: lyrics,
		Tags:   tags,
	}, nil
}

// Providers lists the selectable LLM providers
func (s *LyricsService) Providers() []model.LLMProviderInfo {
	out := make([]model.LLMProviderInfo, 0, len(llmProviders))
	for _, id := range []string{"openai", "anthropic", "ollama"} {
		out = append(out, llmProviders[id])
	}
	return out
}

// Settings returns the current provider configuration
func (s *LyricsService) Settings() model.LLMSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.LLMSettings{
		Provider:  s.provider,
		Model:     s.model,
		APIKeySet: s.apiKeys[s.provider] != "" || !llmProviders[s.provider].RequiresAPIKey,
	}
}

// UpdateSettings applies a runtime settings change
func (s *LyricsService) UpdateSettings(req *model.UpdateLLMSettingsRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.Provider != "" {
		info, ok := llmProviders[req.Provider]
		if !ok {
			return fmt.Errorf("unknown provider: %s", req.Provider)
		}
		s.provider = req.Provider
		if req.Model == "" {
			s.model = info.DefaultModel
		}
	}
	if req.Model != "" {
		s.model = req.Model
	}
	if req.APIKey != "" {
		s.apiKeys[s.provider] = req.APIKey
	}

	// Force re-initialization on the next request
	s.client = nil
	return nil
}

// DeleteAPIKey removes the stored key for a provider
func (s *LyricsService) DeleteAPIKey(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.apiKeys, provider)
	if provider == s.provider {
		s.client = nil
	}
}

func (s *LyricsService) currentProvider() (client.LLMProvider, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		return s.client, s.model, nil
	}

	switch s.provider {
	case "openai":
		key := s.apiKeys["openai"]
		if key == "" {
			return nil, "", ErrLLMNotConfigured
		}
		s.client = client.NewOpenAIClient(s.openAIBaseURL, key)
	case "anthropic":
		key := s.apiKeys["anthropic"]
		if key == "" {
			return nil, "", ErrLLMNotConfigured
		}
		s.client = client.NewAnthropicClient(key)
	case "ollama":
		s.client = client.NewOllamaClient(s.ollamaBaseURL)
	default:
		return nil, "", fmt.Errorf("unknown provider: %s", s.provider)
	}

	return s.client, s.model, nil
}

// parseLyricsResponse splits an LLM response into cleaned lyrics and tags.
// The primary format puts tags after a ---TAGS--- marker; as a fallback the
// last comma-separated line is treated as tags.
func parseLyricsResponse(response string) (string, string) {
	var lyrics, tags string

	if idx := strings.Index(response, tagsMarker); idx != -1 {
		lyrics = strings.TrimSpace(response[:idx])
		tags = strings.TrimSpace(response[idx+len(tagsMarker):])
	} else {
		lines := strings.Split(strings.TrimSpace(response), "\n")
		tagsIdx := -1
		for i := len(lines) - 1; i >= 0; i-- {
			line := strings.TrimSpace(lines[i])
			if line == "" {
				continue
			}
			if !strings.HasPrefix(line, "[") && strings.Contains(line, ",") {
				tagsIdx = i
			}
			break
		}
		if tagsIdx != -1 {
			lyrics = strings.TrimSpace(strings.Join(lines[:tagsIdx], "\n"))
			tags = strings.TrimSpace(lines[tagsIdx])
		} else {
			lyrics = strings.TrimSpace(response)
			tags = "pop,emotional"
		}
	}

	return cleanLyrics(lyrics), cleanTags(tags)
}

var (
	markdownRe      = regexp.MustCompile("[`*_]")
	codeBlockRe     = regexp.MustCompile("```[^`]*```")
	inlineCodeRe    = regexp.MustCompile("`[^`]*`")
	sectionMarkerRe = regexp.MustCompile(`(?i)\[(\w+)\]`)
)

func cleanTags(tags string) string {
	tags = markdownRe.ReplaceAllString(strings.TrimSpace(tags), "")

	var cleaned []string
	for _, t := range strings.Split(tags, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || len(t) >= 30 || strings.HasPrefix(t, "[") {
			continue
		}
		cleaned = append(cleaned, t)
	}
	if len(cleaned) > 8 {
		cleaned = cleaned[:8]
	}
	return strings.Join(cleaned, ",")
}

func cleanLyrics(lyrics string) string {
	lyrics = strings.ToLower(lyrics)
	lyrics = codeBlockRe.ReplaceAllString(lyrics, "")
	lyrics = inlineCodeRe.ReplaceAllString(lyrics, "")

	// Section markers keep their capitalized form
	lyrics = sectionMarkerRe.ReplaceAllStringFunc(lyrics, func(m string) string {
		name := strings.Trim(m, "[]")
		return "[" + strings.ToUpper(name[:1]) + strings.ToLower(name[1:]) + "]"
	})

	// Collapse runs of blank lines while preserving structure
	var cleaned []string
	prevEmpty := false
	for _, line := range strings.Split(lyrics, "\n") {
		line = strings.TrimRight(line, " \t")
		isEmpty := strings.TrimSpace(line) == ""
		if isEmpty && prevEmpty {
			continue
		}
		cleaned = append(cleaned, line)
		prevEmpty = isEmpty
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}
