package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"github.com/Clinteastman/heartlib/internal/config"
	"github.com/Clinteastman/heartlib/internal/engine"
	"github.com/Clinteastman/heartlib/internal/handler"
	"github.com/Clinteastman/heartlib/internal/middleware"
	"github.com/Clinteastman/heartlib/internal/pipeline"
	"github.com/Clinteastman/heartlib/internal/service"
)

const testJWTSecret = "test-secret-for-e2e"

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	registry *pipeline.Registry
	gate     *pipeline.Gate
	engine   *engine.Simulated
}

// setupApp creates a Fiber app wired like main.go, with a simulated engine
// and no external clients configured.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	// Rate limiting is fail-open, so an absent Redis does not block tests
	redisClient := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // use DB 15 for tests to avoid collision
	})
	t.Cleanup(func() { redisClient.Close() })

	validate := validator.New()

	eng := engine.NewSimulated(0)

	registry := pipeline.NewRegistry()
	gate := pipeline.NewGate()
	notifier := pipeline.NewNotifier()
	store := service.NewArtifactStore(t.TempDir(), nil)
	executor := pipeline.NewExecutor(gate, notifier, eng, store)

	generationService := service.NewGenerationService(registry, gate, notifier, executor, time.Second)
	lyricsService := service.NewLyricsService(&config.LLMConfig{Provider: "openai"}) // no API key → 503
	modelService := service.NewModelService(t.TempDir())

	generationHandler := handler.NewGenerationHandler(generationService, validate)
	lyricsHandler := handler.NewLyricsHandler(lyricsService, validate)
	modelsHandler := handler.NewModelsHandler(modelService)
	settingsHandler := handler.NewSettingsHandler(lyricsService, validate)

	authMiddleware := middleware.NewAuthMiddleware(testJWTSecret)
	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New()

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"timestamp": 1234567890})
	})
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"engine": false,
				"r2":     false,
				"models": modelService.Status().AllPresent,
				"busy":   gate.IsOccupied(),
			},
		})
	})

	api := app.Group("/api", authMiddleware.Authenticate())

	// Use very high rate limits so tests don't get blocked
	generation := api.Group("/generation")
	generation.Post("/start", rateLimiter.GenerateLimit(10000), generationHandler.Start)
	generation.Get("/status/:jobId", generationHandler.Status)
	generation.Get("/progress/:jobId", generationHandler.Progress)
	generation.Get("/download/:jobId", generationHandler.Download)

	lyrics := api.Group("/lyrics")
	lyrics.Post("/generate", rateLimiter.LyricsLimit(10000), lyricsHandler.Generate)
	lyrics.Get("/tag-presets", lyricsHandler.TagPresets)
	lyrics.Get("/example", lyricsHandler.Example)

	models := api.Group("/models")
	models.Get("/status", modelsHandler.Status)
	models.Post("/download", modelsHandler.Download)
	models.Get("/download/status", modelsHandler.DownloadStatus)
	models.Get("/download/progress", modelsHandler.DownloadProgress)

	settings := api.Group("/settings")
	settings.Get("/llm/providers", settingsHandler.Providers)
	settings.Get("/llm", settingsHandler.Get)
	settings.Put("/llm", settingsHandler.Update)
	settings.Delete("/llm/api-key/:provider", settingsHandler.DeleteAPIKey)

	return &testApp{
		app:      app,
		registry: registry,
		gate:     gate,
		engine:   eng,
	}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	claims := middleware.UserClaims{
		UserID: "test-user-123",
		Email:  "test@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "heartlib",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitForStatus polls the status endpoint until the job reaches the wanted
// status or the deadline passes.
func waitForStatus(t *testing.T, ta *testApp, jobID, want string) map[string]interface{} {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/generation/status/"+jobID, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		body := parseJSON(t, resp)
		if body["status"] == want {
			return body
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach status %s in time", jobID, want)
	return nil
}
