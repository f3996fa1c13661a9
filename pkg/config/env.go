package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// EnvFileVar names an env file that takes precedence over the path passed to
// LoadEnvFile.
const EnvFileVar = "PI_ENV_FILE"

// LoadEnvFile loads KEY=VALUE pairs from a .env file into the process
// environment before Load reads PI_* overrides. Variables already set in the
// environment win. A missing default file is not an error; it returns the
// path actually loaded, or "" when none was.
func LoadEnvFile(path string) (string, error) {
	explicit := false
	if custom := strings.TrimSpace(os.Getenv(EnvFileVar)); custom != "" {
		path = custom
		explicit = true
	}
	if path == "" {
		return "", nil
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("loading env file %s: %w", path, err)
	}
	return path, nil
}
