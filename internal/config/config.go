package config

import (
	"github.com/joho/godotenv"

	"ugcvideo/internal/infra"
)

// Load reads .env and .env.local when present and then builds the
// environment-backed configuration. Missing files are not an error;
// variables already set in the environment win over file values.
func Load() (*infra.Config, error) {
	_ = godotenv.Load(".env", ".env.local")
	return infra.LoadConfig()
}
