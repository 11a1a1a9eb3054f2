package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("MODEL_DIR", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "models", cfg.ModelDir)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("MODEL_DIR", "/opt/aurasight/models")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://aurasight24.onrender.com")

	cfg := Load()
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "/opt/aurasight/models", cfg.ModelDir)
	assert.Equal(t, []string{"http://localhost:3000", "https://aurasight24.onrender.com"}, cfg.AllowedOrigins)
}
