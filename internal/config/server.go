package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ServerConfig is read from the environment by the API server.
type ServerConfig struct {
	Port      string        `envconfig:"API_PORT" default:"8080"`
	Env       string        `envconfig:"API_ENV" default:"development"`
	StaticDir string        `envconfig:"STATIC_DIR"`
	CacheTTL  time.Duration `envconfig:"EXPERIMENT_CACHE_TTL" default:"1h"`
	MaxRuns   int           `envconfig:"MAX_RUNS" default:"500"`
	Workers   int           `envconfig:"WORKERS" default:"0"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"info"`
}

func (s ServerConfig) Production() bool { return s.Env == "production" }

func LoadServer() (ServerConfig, error) {
	var s ServerConfig
	if err := envconfig.Process("", &s); err != nil {
		return ServerConfig{}, fmt.Errorf("failed to load server config from env: %w", err)
	}
	if s.MaxRuns < 1 {
		return ServerConfig{}, fmt.Errorf("MAX_RUNS must be >= 1, got %d", s.MaxRuns)
	}
	return s, nil
}
