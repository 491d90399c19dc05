package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/Clinteastman/heartlib/internal/client"
	"github.com/Clinteastman/heartlib/internal/config"
	"github.com/Clinteastman/heartlib/internal/engine"
	"github.com/Clinteastman/heartlib/internal/handler"
	"github.com/Clinteastman/heartlib/internal/middleware"
	"github.com/Clinteastman/heartlib/internal/pipeline"
	"github.com/Clinteastman/heartlib/internal/service"
	ws "github.com/Clinteastman/heartlib/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.Generation.OutputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	// Redis backs the rate limiter; the service runs without it
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Printf("Warning: Redis not available, rate limiting disabled: %v", err)
	}

	validate := validator.New()

	// Inference engine: remote sidecar when configured, simulated otherwise
	var eng engine.Engine
	var engineClient *client.EngineClient
	if cfg.Engine.ServiceURL != "" {
		engineClient = client.NewEngineClient(&cfg.Engine, &cfg.Model)
		eng = engineClient
		log.Printf("Using inference engine at %s", cfg.Engine.ServiceURL)
	} else {
		eng = engine.NewSimulated(10 * time.Millisecond)
		log.Println("Info: no inference engine configured, using simulated engine")
	}

	// R2 artifact mirror (optional)
	var storageClient client.StorageClient
	if cfg.R2.AccessKeyID != "" && cfg.R2.SecretAccessKey != "" {
		r2Client, err := client.NewR2Client(&cfg.R2)
		if err != nil {
			log.Printf("Warning: R2 client not initialized: %v", err)
		} else {
			storageClient = r2Client
		}
	}

	// Pipeline core
	registry := pipeline.NewRegistry()
	gate := pipeline.NewGate()
	notifier := pipeline.NewNotifier()
	store := service.NewArtifactStore(cfg.Generation.OutputDir, storageClient)
	executor := pipeline.NewExecutor(gate, notifier, eng, store)

	// Services
	keepalive := time.Duration(cfg.Generation.KeepaliveSeconds) * time.Second
	generationService := service.NewGenerationService(registry, gate, notifier, executor, keepalive)
	lyricsService := service.NewLyricsService(&cfg.LLM)
	modelService := service.NewModelService(cfg.Model.CheckpointPath)

	// Handlers
	generationHandler := handler.NewGenerationHandler(generationService, validate)
	lyricsHandler := handler.NewLyricsHandler(lyricsService, validate)
	modelsHandler := handler.NewModelsHandler(modelService)
	settingsHandler := handler.NewSettingsHandler(lyricsService, validate)

	// WebSocket progress bridge
	wsBridge := ws.NewBridge(registry, notifier)

	rateLimiter := middleware.NewRateLimiter(redisClient)

	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if strings.EqualFold(cfg.Server.LogLevel, "debug") {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"engine": engineClient != nil && engineClient.IsConfigured(),
				"r2":     storageClient != nil,
				"models": modelService.Status().AllPresent,
				"busy":   gate.IsOccupied(),
			},
		})
	})

	// API routes; authentication is optional for local deployments
	var api fiber.Router
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret != "" {
		authMiddleware := middleware.NewAuthMiddleware(cfg.Auth.JWTSecret)
		api = app.Group("/api", authMiddleware.Authenticate())
	} else {
		api = app.Group("/api")
	}

	// Generation routes
	generation := api.Group("/generation")
	generation.Post("/start", rateLimiter.GenerateLimit(cfg.RateLimit.GeneratePerHour), generationHandler.Start)
	generation.Get("/status/:jobId", generationHandler.Status)
	generation.Get("/progress/:jobId", generationHandler.Progress)
	generation.Get("/download/:jobId", generationHandler.Download)

	// Lyrics routes
	lyrics := api.Group("/lyrics")
	lyrics.Post("/generate", rateLimiter.LyricsLimit(cfg.RateLimit.LyricsPerMin), lyricsHandler.Generate)
	lyrics.Get("/tag-presets", lyricsHandler.TagPresets)
	lyrics.Get("/example", lyricsHandler.Example)

	// Model artifact routes
	models := api.Group("/models")
	models.Get("/status", modelsHandler.Status)
	models.Post("/download", modelsHandler.Download)
	models.Get("/download/status", modelsHandler.DownloadStatus)
	models.Get("/download/progress", modelsHandler.DownloadProgress)

	// Settings routes
	settings := api.Group("/settings")
	settings.Get("/llm/providers", settingsHandler.Providers)
	settings.Get("/llm", settingsHandler.Get)
	settings.Put("/llm", settingsHandler.Update)
	settings.Delete("/llm/api-key/:provider", settingsHandler.DeleteAPIKey)

	// Generated audio artifacts
	app.Static(service.OutputURLPrefix, cfg.Generation.OutputDir)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		wsBridge.HandleConnection(c, c.Params("jobId"))
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s (model %s at %s)", addr, cfg.Model.Version, cfg.Model.CheckpointPath)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
