package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	IdentityConfig
	StorageConfig
	AssistantConfig
}

type mainConfig struct {
	EnvVars
	Identity
	Storage
	Assistant
}

// New loads an optional .env file and parses the environment into a Config.
func New() (Config, error) {
	return Load(".env")
}

// Load is New with explicit dotenv files. Missing files are ignored.
func Load(dotenvFiles ...string) (Config, error) {
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("[config.Load] %s: %w", f, err)
		}
	}

	var c mainConfig
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("[config.Load] parse environment: %w", err)
	}
	return c, nil
}
