package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	APIPort            string
	PostgresURL        string
	LLMProvider        string
	LLMModel           string
	LLMBaseURL         string
	OpenAIAPIKey       string
	DeepSeekAPIKey     string
	OpenRouterAPIKey   string
	ExtractUserAgent   string
	ExtractMaxBody     int
	ExtractMaxLinks    int
	ExtractMaxSubPages int
	ArticleMinWords    int
	ArticleMinChars    int
	ArticleTokenCap    int
}

func Load() Config {
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		APIPort:            getEnv("API_PORT", "8080"),
		PostgresURL:        postgresURL,
		LLMProvider:        getEnv("LLM_PROVIDER", "openai"),
		LLMModel:           getEnv("LLM_MODEL", "gpt-5-nano"),
		LLMBaseURL:         getEnv("LLM_BASE_URL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		DeepSeekAPIKey:     getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		ExtractUserAgent:   getEnv("EXTRACT_USER_AGENT", "Mozilla/5.0"),
		ExtractMaxBody:     getEnvInt("EXTRACT_MAX_BODY_CHARS", 8000),
		ExtractMaxLinks:    getEnvInt("EXTRACT_MAX_LINKS", 10),
		ExtractMaxSubPages: getEnvInt("EXTRACT_MAX_SUB_PAGES", 3),
		ArticleMinWords:    getEnvInt("ARTICLE_MIN_WORDS", 500),
		ArticleMinChars:    getEnvInt("ARTICLE_MIN_CHARS", 100),
		ArticleTokenCap:    getEnvInt("ARTICLE_TOKEN_CAP", 8192),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	host := getEnv("POSTGRES_HOST", "")
	if host == "" {
		return ""
	}
	user := getEnv("POSTGRES_USER", "rankforge")
	password := getEnv("POSTGRES_PASSWORD", "rankforge")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "rankforge")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
