// Package config provides configuration for the assistant backend.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// Server settings
	HTTPPort     int
	InternalPort int
	CORSOrigins  []string

	// Database
	DatabaseURL string

	// Completion service
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	ImageModel     string
	LLMTemperature float64
	LLMMaxTokens   int

	// Conversation behaviour
	IdentityPreamble       string
	BehaviorPreamble       string
	HistoryWindowExchanges int
	SessionPolicy          string

	// Auth
	JWTSecret string
	JWTTTL    time.Duration

	// Timeouts
	LLMTimeout   time.Duration
	ImageTimeout time.Duration

	// Retention
	RetentionInterval time.Duration
	RetentionGrace    time.Duration

	// WebSocket
	WSReadTimeout    time.Duration
	WSWriteTimeout   time.Duration
	WSPingInterval   time.Duration
	WSMaxMessageSize int64

	// Logging
	LogMode string
}

// DefaultDatabaseURL opens a WAL database where writers wait on each other instead of failing.
// Transactions take the write lock up front so two exchanges never deadlock on upgrade.
const DefaultDatabaseURL = "file:aetheron.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"

// DefaultJWTSecret is a development placeholder; deployments must set JWT_SECRET.
const DefaultJWTSecret = "your-secret-key"

// DefaultIdentityPreamble is the first system message of every prompt context.
const DefaultIdentityPreamble = `You are Aetheron NLP, an advanced AI assistant based on Llama-3.3.`

// DefaultBehaviorPreamble is the second system message of every prompt context.
const DefaultBehaviorPreamble = `
You are a helpful and concise assistant. Always follow these rules:

- Provide short, accurate, and direct answers.
- Do not elaborate unless the user explicitly asks for more detail.
- Be friendly but professional and to the point.
- Avoid technical jargon unless the user is an expert or requests it.
- Never guess or assume; say "I'm not sure" if uncertain.
- Always consider the chat history for context continuity.
- Avoid fluff or filler. Do not restate the question.
- Never explain your reasoning unless requested.
- Never share illegal, unsafe, or unethical information.
- Be cohesive and relevant to the conversation.
`

// Load loads configuration from environment variables.
func Load() *Config {
	cfg := &Config{
		HTTPPort:               getEnvInt("HTTP_PORT", 5000),
		InternalPort:           getEnvInt("INTERNAL_PORT", 5001),
		CORSOrigins:            getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://localhost:5000"}),
		DatabaseURL:            getEnv("DATABASE_URL", DefaultDatabaseURL),
		LLMBaseURL:             getEnv("LLM_BASE_URL", "https://api.together.xyz"),
		LLMAPIKey:              getEnv("LLM_API_KEY", ""),
		LLMModel:               getEnv("LLM_MODEL", "meta-llama/Llama-3.3-70B-Instruct-Turbo-Free"),
		ImageModel:             getEnv("IMAGE_MODEL", "black-forest-labs/FLUX.1-schnell-Free"),
		LLMTemperature:         getEnvFloat("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:           getEnvInt("LLM_MAX_TOKENS", 2048),
		IdentityPreamble:       getEnv("IDENTITY_PREAMBLE", DefaultIdentityPreamble),
		BehaviorPreamble:       getEnv("BEHAVIOR_PREAMBLE", DefaultBehaviorPreamble),
		HistoryWindowExchanges: getEnvInt("HISTORY_WINDOW_EXCHANGES", 0),
		SessionPolicy:          getEnv("SESSION_POLICY", "default"),
		JWTSecret:              getEnv("JWT_SECRET", DefaultJWTSecret),
		JWTTTL:                 time.Duration(getEnvInt("JWT_TTL_HOURS", 7*24)) * time.Hour,
		LLMTimeout:             time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		ImageTimeout:           time.Duration(getEnvInt("IMAGE_TIMEOUT_MS", 60000)) * time.Millisecond,
		RetentionInterval:      time.Duration(getEnvInt("RETENTION_INTERVAL_MS", 600000)) * time.Millisecond,
		RetentionGrace:         time.Duration(getEnvInt("RETENTION_GRACE_MS", 86400000)) * time.Millisecond,
		WSReadTimeout:          time.Duration(getEnvInt("WS_READ_TIMEOUT_MS", 60000)) * time.Millisecond,
		WSWriteTimeout:         time.Duration(getEnvInt("WS_WRITE_TIMEOUT_MS", 10000)) * time.Millisecond,
		WSPingInterval:         time.Duration(getEnvInt("WS_PING_INTERVAL_MS", 30000)) * time.Millisecond,
		WSMaxMessageSize:       int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 1<<20)),
		LogMode:                getEnv("LOG_MODE", "development"),
	}
	return cfg
}

// UsesDefaultJWTSecret reports whether tokens are signed with the development placeholder.
func (c *Config) UsesDefaultJWTSecret() bool {
	return c.JWTSecret == DefaultJWTSecret
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
