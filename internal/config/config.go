package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Model      ModelConfig
	Generation GenerationConfig
	Engine     EngineConfig
	LLM        LLMConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	R2         R2Config
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type ModelConfig struct {
	CheckpointPath string
	Version        string
}

type GenerationConfig struct {
	OutputDir        string
	KeepaliveSeconds int
}

type EngineConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type LLMConfig struct {
	Provider        string
	Model           string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaBaseURL   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

type RateLimitConfig struct {
	LyricsPerMin    int
	GeneratePerHour int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("OPENAI_API_KEY")
	readSecret("ANTHROPIC_API_KEY")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("model.checkpoint_path", "MODEL_CHECKPOINT_PATH")
	_ = viper.BindEnv("model.version", "MODEL_VERSION")
	_ = viper.BindEnv("generation.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("generation.keepalive_seconds", "STREAM_KEEPALIVE_SECONDS")
	_ = viper.BindEnv("engine.service_url", "ENGINE_SERVICE_URL")
	_ = viper.BindEnv("engine.timeout", "ENGINE_TIMEOUT")
	_ = viper.BindEnv("llm.provider", "LLM_PROVIDER")
	_ = viper.BindEnv("llm.model", "LLM_MODEL")
	_ = viper.BindEnv("llm.openai_api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("llm.openai_base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("llm.anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = viper.BindEnv("llm.ollama_base_url", "OLLAMA_BASE_URL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("auth.enabled", "AUTH_ENABLED")
	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("ratelimit.lyrics_per_min", "RATELIMIT_LYRICS_PER_MIN")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("model.checkpoint_path", "./ckpt")
	viper.SetDefault("model.version", "3B")
	viper.SetDefault("generation.output_dir", "./output")
	viper.SetDefault("generation.keepalive_seconds", 30)
	viper.SetDefault("engine.service_url", "")
	viper.SetDefault("engine.timeout", 300)
	viper.SetDefault("llm.provider", "openai")
	viper.SetDefault("llm.model", "gpt-4o")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("ratelimit.lyrics_per_min", 30)
	viper.SetDefault("ratelimit.generate_per_hour", 10)

	// Config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Model: ModelConfig{
			CheckpointPath: viper.GetString("model.checkpoint_path"),
			Version:        viper.GetString("model.version"),
		},
		Generation: GenerationConfig{
			OutputDir:        viper.GetString("generation.output_dir"),
			KeepaliveSeconds: viper.GetInt("generation.keepalive_seconds"),
		},
		Engine: EngineConfig{
			ServiceURL: viper.GetString("engine.service_url"),
			Timeout:    viper.GetInt("engine.timeout"),
		},
		LLM: LLMConfig{
			Provider:        viper.GetString("llm.provider"),
			Model:           viper.GetString("llm.model"),
			OpenAIAPIKey:    viper.GetString("llm.openai_api_key"),
			OpenAIBaseURL:   viper.GetString("llm.openai_base_url"),
			AnthropicAPIKey: viper.GetString("llm.anthropic_api_key"),
			OllamaBaseURL:   viper.GetString("llm.ollama_base_url"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			Enabled:   viper.GetBool("auth.enabled"),
			JWTSecret: viper.GetString("auth.jwt_secret"),
		},
		RateLimit: RateLimitConfig{
			LyricsPerMin:    viper.GetInt("ratelimit.lyrics_per_min"),
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
	}

	return cfg, nil
}
