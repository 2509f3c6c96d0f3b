package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from the nearest .env file. Looks in
// the working directory, its parents, and next to the executable. Missing
// .env is fine; the process environment is used as-is.
func LoadDotEnv() error {
	candidates := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, f := range candidates {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		return godotenv.Load(f)
	}

	return nil
}
