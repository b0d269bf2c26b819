package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddr string

	DBDriver   string
	DBUser     string
	DBPassword string
	DBHost     string
	DBPort     string
	DBName     string
	DBPath     string
	JWTSecret  string

	// Path of the properties file holding user defaults (custom host/model etc).
	DefaultsPath string

	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOSecure    bool

	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	OpenAIKey string
	ClaudeKey string
	GeminiKey string
}

func LoadConfig() Config {
	// a missing .env is fine, the process environment still applies
	_ = godotenv.Load()

	return Config{
		ServerAddr:     getEnv("SERVER_ADDR", ":8000"),
		DBDriver:       getEnv("DB_DRIVER", "postgres"),
		DBUser:         getEnv("DB_USER", ""),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBName:         getEnv("DB_NAME", "agentorange"),
		DBPath:         getEnv("DB_PATH", "agentorange.db"),
		JWTSecret:      getEnv("JWT_SECRET", ""),
		DefaultsPath:   getEnv("AGENTORANGE_DEFAULTS", "agentorange/agents/configs/agentorange.properties"),
		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "agentorange-code"),
		MinIOSecure:    getEnvBool("MINIO_SECURE", false),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisPassword:  getEnv("REDIS_PASSWORD", ""),
		RedisChannel:   getEnv("REDIS_CHANNEL", "agentorange:messages"),
		OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
		ClaudeKey:      getEnv("ANTHROPIC_API_KEY", ""),
		GeminiKey:      getEnv("GEMINI_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}
