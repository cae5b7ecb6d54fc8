package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// MemoryState selects the in-memory store instead of a state directory.
const MemoryState = "-"

type Config struct {
	APIURL      string        `env:"POLL_API_URL" env-default:"http://localhost:8080"`
	Origin      string        `env:"POLL_ORIGIN" env-default:"http://localhost:5173"`
	HTTPTimeout time.Duration `env:"POLL_HTTP_TIMEOUT" env-default:"10s"`
	RedisDB     string        `env:"REDIS_DB"`
	MongoDB     string        `env:"MONGO_DB"`
	StateDir    string        `env:"POLL_STATE_DIR"`
	LogLevel    string        `env:"LOG_LEVEL" env-default:"info"`
	LogFile     string        `env:"LOG_FILE"`
	Port        int           `env:"PORT" env-default:"8080"`
	StubRate    float64       `env:"STUB_RATE" env-default:"20"`
}

// Load reads .env files when present and then the environment. Variables
// already set in the environment win over .env.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "failed to load %s", f)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}

	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "POLL_STATE_DIR not set and no home directory")
		}

		cfg.StateDir = filepath.Join(home, ".livepoll")
	}

	if cfg.HTTPTimeout <= 0 {
		return nil, errors.Errorf("POLL_HTTP_TIMEOUT must be positive, got %s", cfg.HTTPTimeout)
	}

	return &cfg, nil
}

func (c *Config) InMemory() bool {
	return c.StateDir == MemoryState
}
