// Package config provides configuration for the chat service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultSystemPrompt frames the assistant when SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = `You are an AI assistant specialized in HR policies and procedures. ` +
	`Base your answers on the reference excerpts provided; if the information is not there, say so. ` +
	`Be professional, clear, and concise, and cite the originating document when possible.`

// Config holds the service configuration.
type Config struct {
	// Server settings
	HTTPPort int

	// Database
	DatabaseURL string

	// Completion backend
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration

	// Session settings
	SessionTTL      time.Duration
	MaxContextTurns int

	// Retrieval settings
	RetrievalTopK int
	DocumentsPath string
	SystemPrompt  string

	// Admin policy
	AdminPolicyFile string
}

// Load loads configuration from a .env file (if present) and the
// environment.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:        getEnvInt("HTTP_PORT", 8080),
		DatabaseURL:     getEnv("DATABASE_URL", "file:ragchat.db?cache=shared&mode=rwc"),
		LLMBaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:       getEnv("LLM_API_KEY", ""),
		LLMModel:        getEnv("LLM_MODEL", "gpt-3.5-turbo"),
		LLMTimeout:      time.Duration(getEnvInt("LLM_TIMEOUT_MS", 30000)) * time.Millisecond,
		SessionTTL:      time.Duration(getEnvInt("SESSION_TIMEOUT_HOURS", 24)) * time.Hour,
		MaxContextTurns: getEnvInt("MAX_CONTEXT_TURNS", 10),
		RetrievalTopK:   getEnvInt("RETRIEVAL_TOP_K", 4),
		DocumentsPath:   getEnv("DOCUMENTS_PATH", "./documents"),
		SystemPrompt:    getEnv("SYSTEM_PROMPT", DefaultSystemPrompt),
		AdminPolicyFile: getEnv("ADMIN_POLICY_FILE", ""),
	}
	return cfg
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
