package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// LLMSlot describes one of the two validator backends.
type LLMSlot struct {
	Provider string
	Name     string
	Model    string
}

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Auth
	JWTSecret         string
	TokenTTL          time.Duration
	AdminUsername     string
	AdminPassword     string
	AdminPasswordHash string

	// LLM validators
	PrimaryLLM     LLMSlot
	SecondaryLLM   LLMSlot
	AWSRegion      string
	GeminiAPIKey   string
	LLMTimeout     time.Duration
	LLMMaxTokens   int
	LLMTemperature float32

	// RevalidationWorkers drain the background revalidation queue.
	RevalidationWorkers int

	// Quiz taking
	SessionTTL            time.Duration
	RecentAttemptsToAvoid int

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

		JWTSecret:         mustGetEnv("JWT_SECRET"),
		TokenTTL:          time.Duration(getEnvAsIntOrDefault("TOKEN_TTL_HOURS", 12)) * time.Hour,
		AdminUsername:     getEnvOrDefault("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnvOrDefault("ADMIN_PASSWORD", ""),
		AdminPasswordHash: getEnvOrDefault("ADMIN_PASSWORD_HASH", ""),

		AWSRegion:      getEnvOrDefault("AWS_REGION", "us-east-1"),
		GeminiAPIKey:   getEnvOrDefault("GEMINI_API_KEY", ""),
		LLMTimeout:     time.Duration(getEnvAsIntOrDefault("LLM_TIMEOUT_SECONDS", 15)) * time.Second,
		LLMMaxTokens:   getEnvAsIntOrDefault("LLM_MAX_TOKENS", 1000),
		LLMTemperature: float32(getEnvAsFloatOrDefault("LLM_TEMPERATURE", 0.1)),

		RevalidationWorkers: getEnvAsIntOrDefault("REVALIDATION_WORKERS", 2),

		SessionTTL:            time.Duration(getEnvAsIntOrDefault("QUIZ_SESSION_TTL_MINUTES", 120)) * time.Minute,
		RecentAttemptsToAvoid: getEnvAsIntOrDefault("RECENT_ATTEMPTS_TO_AVOID", 3),

		FrontendURL: getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.AdminPassword == "" && cfg.AdminPasswordHash == "" {
		panic("either ADMIN_PASSWORD or ADMIN_PASSWORD_HASH must be set")
	}

	cfg.PrimaryLLM = loadSlot("PRIMARY", "claude", "BEDROCK_LLM_ID_CLAUDE", "gemini-1.5-flash")
	cfg.SecondaryLLM = loadSlot("SECONDARY", "gpt", "BEDROCK_LLM_ID_GPT", "gemini-1.5-pro")

	if cfg.PrimaryLLM.Provider == ProviderGemini || cfg.SecondaryLLM.Provider == ProviderGemini {
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	}

	return cfg
}

// IsProduction reports whether the service runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func loadSlot(slot, defaultName, bedrockModelKey, defaultGeminiModel string) LLMSlot {
	s := LLMSlot{
		Provider: getEnvOrDefault("LLM_"+slot+"_PROVIDER", ProviderBedrock),
		Name:     getEnvOrDefault("LLM_"+slot+"_NAME", defaultName),
	}

	switch s.Provider {
	case ProviderBedrock:
		s.Model = mustGetEnv(bedrockModelKey)
	case ProviderGemini:
		s.Model = getEnvOrDefault("GEMINI_MODEL_"+slot, defaultGeminiModel)
	default:
		panic(fmt.Sprintf("unsupported LLM provider %q for LLM_%s_PROVIDER", s.Provider, slot))
	}

	return s
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
