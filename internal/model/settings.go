package model

// LLMProviderInfo describes one selectable LLM provider
type LLMProviderInfo struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	RequiresAPIKey bool     `json:"requiresApiKey"`
	Models         []string `json:"models"`
	DefaultModel   string   `json:"defaultModel"`
}

// LLMSettings is the current lyrics-drafting configuration
type LLMSettings struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	APIKeySet bool   `json:"apiKeySet"`
}

// UpdateLLMSettingsRequest is the body of PUT /api/settings/llm
type UpdateLLMSettingsRequest struct {
	Provider string `json:"provider" validate:"omitempty,oneof=openai anthropic ollama"`
	Model    string `json:"model" validate:"omitempty,max=100"`
	APIKey   string `json:"apiKey" validate:"omitempty,max=300"`
}
