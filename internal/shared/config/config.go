package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	OllamaURL          string
	OllamaModel        string
	LLMMaxAttempts     int
	JobTimeout         time.Duration
	WorkerPollInterval time.Duration
	WorkerConcurrency  int
	RoundToHours       float64
	DatabaseURL        string
	Env                string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of a local env file for dev convenience.
	_ = godotenv.Load(".env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", ""),
		OllamaURL:          strings.TrimRight(getEnv("OLLAMA_URL", "http://localhost:11434"), "/"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "llama3"),
		LLMMaxAttempts:     getEnvInt("LLM_MAX_ATTEMPTS", 3),
		JobTimeout:         getEnvDuration("JOB_TIMEOUT", 10*time.Minute),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 3*time.Second),
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
		RoundToHours:       getEnvFloat("ROUND_TO_HOURS", 0.5),
		DatabaseURL:        dbURL,
		Env:                env,
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid int %q, using default %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid float %q, using default %v", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q, using default %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}
