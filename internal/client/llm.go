package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LLMProvider is the boundary to a chat-completion backend used for lyrics
// drafting.
type LLMProvider interface {
	Complete(ctx context.Context, system, user, model string) (string, error)
}

const llmTimeout = 120 * time.Second

// postJSON sends a POST request with JSON body and parses the response
func postJSON(ctx context.Context, httpClient *http.Client, url string, headers map[string]string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("llm provider error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// OpenAIClient talks to the OpenAI chat-completions API or any compatible
// endpoint.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func NewOpenAIClient(baseURL, apiKey string) *OpenAIClient {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: llmTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	req := chatCompletionRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.8,
		MaxTokens:   2000,
	}

	var resp chatCompletionResponse
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/chat/completions", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnthropicClient talks to the Anthropic messages API
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{Timeout: llmTimeout},
		baseURL:    "https://api.anthropic.com",
		apiKey:     apiKey,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	req := anthropicRequest{
		Model:     model,
		MaxTokens: 2000,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: user}},
	}

	var resp anthropicResponse
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/v1/messages", headers, req, &resp); err != nil {
		return "", err
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return resp.Content[0].Text, nil
}

// OllamaClient talks to a local Ollama instance; no API key required
type OllamaClient struct {
	httpClient *http.Client
	baseURL    string
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type ollamaResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
}

func NewOllamaClient(baseURL string) *OllamaClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaClient{
		httpClient: &http.Client{Timeout: llmTimeout},
		baseURL:    baseURL,
	}
}

func (c *OllamaClient) Complete(ctx context.Context, system, user, model string) (string, error) {
	req := ollamaRequest{
		Model: model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
	}

	var resp ollamaResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/api/chat", nil, req, &resp); err != nil {
		return "", err
	}
	return resp.Message.Content, nil
}
