// Package config loads process configuration the way the teacher's
// cmd/server/main.go did: godotenv.Load() best-effort, then typed getters
// over os.Getenv with defaults, collected into one struct.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable the engine needs at startup.
type Config struct {
	Port           string
	AllowedOrigin  string
	DataDir        string // root for fileId/sessionId JSON documents
	TaskStoreDir   string
	ImageAssetDir  string
	MissionFixturesDir string // directory of pre-authored YAML mission-path fixtures; empty disables it

	AnthropicAPIKey string
	AnthropicModel  string
	OpenAIAPIKey    string
	OpenAIImageModel string

	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration
	LLMMaxRetries  int

	MissionCadenceTurns     int
	ConversationHistoryCap  int
	StreamHeartbeatInterval time.Duration
	TaskStalenessThreshold  time.Duration
	TaskFailedRetention     time.Duration
	TaskCompletedRetention  time.Duration
	GameHoursPerAction      int
}

// Load reads a .env file if present (warning, not failing, when absent) and
// builds a Config from the environment with sensible defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "warning: .env file not found or error loading it:", err)
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:3000"),
		DataDir:       getEnv("DATA_DIR", "data/store"),
		TaskStoreDir:  getEnv("TASK_STORE_DIR", "data/tasks"),
		ImageAssetDir: getEnv("IMAGE_ASSET_DIR", "data/images"),
		MissionFixturesDir: getEnv("MISSION_FIXTURES_DIR", ""),

		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:   getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIImageModel: getEnv("OPENAI_IMAGE_MODEL", "gpt-image-1"),

		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.9),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTimeout:     getEnvDuration("LLM_TIMEOUT", 60*time.Second),
		LLMMaxRetries:  getEnvInt("LLM_MAX_RETRIES", 3),

		MissionCadenceTurns:     getEnvInt("MISSION_CADENCE_TURNS", 5),
		ConversationHistoryCap:  getEnvInt("CONVERSATION_HISTORY_CAP", 40),
		StreamHeartbeatInterval: getEnvDuration("STREAM_HEARTBEAT_INTERVAL", 30*time.Second),
		TaskStalenessThreshold:  getEnvDuration("TASK_STALENESS_THRESHOLD", 30*time.Minute),
		TaskFailedRetention:     getEnvDuration("TASK_FAILED_RETENTION", 2*time.Hour),
		TaskCompletedRetention:  getEnvDuration("TASK_COMPLETED_RETENTION", 24*time.Hour),
		GameHoursPerAction:      getEnvInt("GAME_HOURS_PER_ACTION", 1),
	}

	if cfg.AnthropicAPIKey == "" {
		fmt.Fprintln(os.Stderr, "warning: ANTHROPIC_API_KEY not set; LLM calls will fail")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
