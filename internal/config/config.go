package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	RedisURL    string
	DatabaseURL string // optional; transcript archive is disabled when empty

	// LLM providers
	GeminiAPIKey  string
	GeminiModel   string
	GroqAPIKey    string
	GroqModel     string
	LLMTemperature float64
	LLMMaxTokens   int

	// Knowledge base
	PineconeAPIKey string
	PineconeIndex  string
	OpenAIAPIKey   string // embeddings for knowledge search and the semantic cache
	EmbeddingModel string
	KnowledgeTopK  int

	// Admission control
	RateLimitPerMinute  int
	RateLimitPerHour    int
	RateLimitPerDay     int
	SessionMessageLimit int
	DailyQuotaLimit     int
	MaxMessageLength    int

	// Sessions and cache
	SessionRetentionHours    int
	CacheTTLHours            int
	CacheSimilarityThreshold float64
	SemanticCacheEnabled     bool

	// Notifications
	MailgunDomain string
	MailgunAPIKey string
	NotifyEmail   string
	FromEmail     string

	// Admin surface
	AdminAPIKey string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "production"),

		RedisURL:    getEnv("REDIS_URL", ""),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GroqAPIKey:     getEnv("GROQ_API_KEY", ""),
		GroqModel:      getEnv("GROQ_MODEL", "llama-3.3-70b-versatile"),
		LLMTemperature: getFloatEnv("LLM_TEMPERATURE", 0.7),
		LLMMaxTokens:   getIntEnv("LLM_MAX_TOKENS", 3096),

		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),
		PineconeIndex:  getEnv("PINECONE_INDEX", "myself"),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		KnowledgeTopK:  getIntEnv("KNOWLEDGE_TOP_K", 8),

		RateLimitPerMinute:  getIntEnv("RATE_LIMIT_PER_MINUTE", 10),
		RateLimitPerHour:    getIntEnv("RATE_LIMIT_PER_HOUR", 50),
		RateLimitPerDay:     getIntEnv("RATE_LIMIT_PER_DAY", 60),
		SessionMessageLimit: getIntEnv("SESSION_MESSAGE_LIMIT", 15),
		DailyQuotaLimit:     getIntEnv("DAILY_QUOTA_LIMIT", 500),
		MaxMessageLength:    getIntEnv("MAX_MESSAGE_LENGTH", 500),

		SessionRetentionHours:    getIntEnv("SESSION_RETENTION_HOURS", 24),
		CacheTTLHours:            getIntEnv("CACHE_TTL_HOURS", 24),
		CacheSimilarityThreshold: getFloatEnv("CACHE_SIMILARITY_THRESHOLD", 0.85),
		SemanticCacheEnabled:     getBoolEnv("SEMANTIC_CACHE_ENABLED", false),

		MailgunDomain: getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey: getEnv("MAILGUN_API_KEY", ""),
		NotifyEmail:   getEnv("NOTIFY_EMAIL", ""),
		FromEmail:     getEnv("FROM_EMAIL", ""),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}
