package e2e

import (
	"net/http"
	"testing"
)

func TestBaseURL(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if _, ok := body["timestamp"]; !ok {
		t.Error("expected 'timestamp' field in response")
	}
}

func TestHealth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
	services, ok := body["services"].(map[string]interface{})
	if !ok {
		t.Fatal("expected 'services' field in response")
	}
	if services["busy"] != false {
		t.Errorf("expected idle generation slot, got %v", services["busy"])
	}
}

func TestAuthRejectsMalformedToken(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodGet, "/api/models/status", "", map[string]string{
		"Authorization": "Bearer not-a-token",
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}
