package e2e

import (
	"net/http"
	"strings"
	"testing"
)

func TestSettingsProviders(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/settings/llm/providers", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := readBody(t, resp)
	for _, id := range []string{"openai", "anthropic", "ollama"} {
		if !strings.Contains(body, `"id":"`+id+`"`) {
			t.Errorf("expected provider %s in catalog, got %s", id, body)
		}
	}
}

func TestSettingsGetAndUpdate(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/settings/llm", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["provider"] != "openai" {
		t.Errorf("expected default provider openai, got %v", body["provider"])
	}
	if body["apiKeySet"] != false {
		t.Errorf("expected no API key initially, got %v", body["apiKeySet"])
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/llm",
		`{"provider": "ollama", "model": "mistral"}`)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/settings/llm", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body = parseJSON(t, resp)
	if body["provider"] != "ollama" || body["model"] != "mistral" {
		t.Errorf("expected updated settings, got %v", body)
	}
	if body["apiKeySet"] != true {
		t.Error("expected ollama to report a usable configuration")
	}
}

func TestSettingsUpdate_UnknownProvider(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/llm",
		`{"provider": "dall-e"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestSettingsDeleteAPIKey(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPut, "/api/settings/llm",
		`{"provider": "openai", "apiKey": "sk-test-123"}`)
	if err != nil {
		t.Fatalf("update request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/settings/llm", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body := parseJSON(t, resp); body["apiKeySet"] != true {
		t.Fatal("expected API key recorded")
	}

	resp, err = doAuthRequest(t, ta.app, http.MethodDelete, "/api/settings/llm/api-key/openai", "")
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/settings/llm", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if body := parseJSON(t, resp); body["apiKeySet"] != false {
		t.Error("expected API key removed")
	}
}
