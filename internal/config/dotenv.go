package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/subosito/gotenv"
)

// EnvFileVar names an extra .env file to load after the working directory's.
const EnvFileVar = "DEEPRESEARCH_ENV_FILE"

// DotEnvFiles returns the candidate .env files in load order.
func DotEnvFiles() []string {
	files := []string{".env"}
	if extra := os.Getenv(EnvFileVar); extra != "" {
		files = append(files, extra)
	}
	return files
}

// LoadDotEnv loads the given .env files into the process environment and
// returns the ones that existed. Variables already set in the environment
// are never overridden, and missing files are skipped.
func LoadDotEnv(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		} else if err != nil {
			return loaded, fmt.Errorf("stat %s: %w", f, err)
		}
		if err := gotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

// OpenAIKey returns the OpenAI key from the environment, after .env files
// have been loaded.
func OpenAIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}
