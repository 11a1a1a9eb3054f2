package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	ModelDir       string
	AllowedOrigins []string
}

// Load reads configuration from the environment, with a .env file as an
// optional overlay (its absence is not an error).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		ModelDir:       getEnv("MODEL_DIR", "models"),
		AllowedOrigins: splitOrigins(getEnv("ALLOWED_ORIGINS", "*")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}
