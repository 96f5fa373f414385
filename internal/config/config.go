package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// JWT
	JWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiModel          string
	GeminiEmbeddingModel string
	GeminiConcurrentReqs int

	// Gateway timeouts
	GenerationTimeout time.Duration
	EvaluationTimeout time.Duration
	RetrievalTimeout  time.Duration

	// Engine tuning
	QuestionsPerMinute float64
	MinQuestions       int
	MaxQuestions       int
	RaiseThreshold     float64
	LowerThreshold     float64
	MasteryThreshold   float64
	DuplicateWindow    time.Duration
	SnapshotTTL        time.Duration

	// Scenario catalog
	CatalogPath string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Env:         getEnvOrDefault("ENV", "development"),
		DatabaseURL: mustGetEnv("DATABASE_URL"),
		RedisURL:    mustGetEnv("REDIS_URL"),
		JWTSecret:   mustGetEnv("JWT_SECRET"),

		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-3-flash-preview"),
		GeminiEmbeddingModel: getEnvOrDefault("GEMINI_EMBEDDING_MODEL", "text-embedding-004"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),

		GenerationTimeout: getEnvAsDurationOrDefault("GENERATION_TIMEOUT", 10*time.Second),
		EvaluationTimeout: getEnvAsDurationOrDefault("EVALUATION_TIMEOUT", 8*time.Second),
		RetrievalTimeout:  getEnvAsDurationOrDefault("RETRIEVAL_TIMEOUT", 5*time.Second),

		QuestionsPerMinute: getEnvAsFloatOrDefault("QUESTIONS_PER_MINUTE", 0.6),
		MinQuestions:       getEnvAsIntOrDefault("MIN_QUESTIONS", 7),
		MaxQuestions:       getEnvAsIntOrDefault("MAX_QUESTIONS", 25),
		RaiseThreshold:     getEnvAsFloatOrDefault("RAISE_THRESHOLD", 7.5),
		LowerThreshold:     getEnvAsFloatOrDefault("LOWER_THRESHOLD", 5.0),
		MasteryThreshold:   getEnvAsFloatOrDefault("MASTERY_THRESHOLD", 7.0),
		DuplicateWindow:    getEnvAsDurationOrDefault("DUPLICATE_ANSWER_WINDOW", 30*time.Second),
		SnapshotTTL:        getEnvAsDurationOrDefault("AUTOSAVE_SNAPSHOT_TTL", 24*time.Hour),

		CatalogPath: getEnvOrDefault("CATALOG_PATH", "configs/catalog.yaml"),
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
