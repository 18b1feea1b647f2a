package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kelsos/metafetch/internal/logger"
)

// LoadEnvironment loads environment variables from .env files in the working
// directory and next to the executable. Variables that are already set win.
// It returns the files that were loaded.
func LoadEnvironment() []string {
	var loaded []string

	candidates := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	} else {
		logger.Debug("Could not determine executable path: %v", err)
	}

	seen := make(map[string]bool)
	for _, path := range candidates {
		abs, err := filepath.Abs(path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		if err := godotenv.Load(abs); err != nil {
			logger.Debug("No .env file loaded from %s: %v", abs, err)
			continue
		}
		logger.Debug("Loaded .env file from %s", abs)
		loaded = append(loaded, abs)
	}
	return loaded
}
