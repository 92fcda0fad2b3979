package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv overlays a local .env file onto the process environment, same
// as the teacher's config loader: local values win so a checked-out repo is
// deterministic in development regardless of the ambient shell environment.
func loadDotEnv(path string) error {
	return godotenv.Overload(path)
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
