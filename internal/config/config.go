package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	APIPort                string
	WorkerEnabled          bool
	BackendAPIKey          string // API key for authenticating requests (empty = no auth, dev mode)
	CorsAllowedOrigins     string // Comma-separated allowed origins (empty = *, dev mode)
	ShutdownTimeoutSeconds int    // Grace period for in-flight requests on shutdown

	// Redis (stage job queue)
	RedisURL string

	// Supabase (asset storage)
	SupabaseURL           string
	SupabaseServiceKey    string
	SupabaseStorageBucket string

	// OpenAI (storyboard plan generation)
	OpenAIKey string

	// Gemini (image generation; same key drives Veo video jobs)
	GeminiKey string
	VeoModel  string

	// ElevenLabs (voice-over synthesis)
	ElevenLabsKey     string
	ElevenLabsVoiceID string

	// Rendering
	BrandFontPath string // TTF used for captions/watermark (empty = built-in fallback face)
	TempDir       string // Scratch space for ffmpeg intermediates
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := &Config{
		APIPort:                getEnv("API_PORT", "8080"),
		WorkerEnabled:          getEnvBool("WORKER_ENABLED", true),
		BackendAPIKey:          getEnv("BACKEND_API_KEY", ""),
		CorsAllowedOrigins:     getEnv("CORS_ALLOWED_ORIGINS", ""),
		ShutdownTimeoutSeconds: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 30),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379"),
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBucket:  getEnv("SUPABASE_STORAGE_BUCKET", "adforge-assets"),
		OpenAIKey:              getEnv("OPENAI_API_KEY", ""),
		GeminiKey:              getEnv("GEMINI_API_KEY", ""),
		VeoModel:               getEnv("VEO_MODEL", "veo-3.1-generate-preview"),
		ElevenLabsKey:          getEnv("ELEVENLABS_API_KEY", ""),
		ElevenLabsVoiceID:      getEnv("ELEVENLABS_VOICE_ID", ""),
		BrandFontPath:          getEnv("BRAND_FONT_PATH", ""),
		TempDir:                getEnv("TEMP_DIR", "/tmp/adforge"),
	}

	// Validate required fields
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.GeminiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.ElevenLabsKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY is required")
	}

	if cfg.SupabaseURL == "" || cfg.SupabaseServiceKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_SERVICE_KEY are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
