// Package settings loads worker process settings from the environment.
package settings

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Worker run modes.
const (
	ModeLambda = "lambda"
	ModeNATS   = "nats"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Settings configures a worker process.
type Settings struct {
	Mode      string `env:"RELAY_MODE" envDefault:"lambda"`
	LogLevel  string `env:"RELAY_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"RELAY_LOG_FORMAT" envDefault:"json"`

	Store         string `env:"RELAY_STORE" envDefault:"memory"`
	RedisAddr     string `env:"RELAY_REDIS_ADDR"`
	RedisPassword string `env:"RELAY_REDIS_PASSWORD"`
	RedisDB       int    `env:"RELAY_REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"RELAY_REDIS_PREFIX" envDefault:"relay:"`

	NATSURL    string `env:"RELAY_NATS_URL"`
	Subject    string `env:"RELAY_SUBJECT" envDefault:"relay.worker"`
	QueueGroup string `env:"RELAY_QUEUE_GROUP" envDefault:"relay-workers"`
	PoolSize   int    `env:"RELAY_POOL_SIZE" envDefault:"16"`

	HTTPTimeout time.Duration `env:"RELAY_HTTP_TIMEOUT" envDefault:"10s"`
	ChunkRunes  int           `env:"RELAY_CHUNK_RUNES" envDefault:"1800"`
	CaptureFile string        `env:"RELAY_CAPTURE_FILE"`
	MetricsAddr string        `env:"RELAY_METRICS_ADDR"`

	FunctionName string `env:"AWS_LAMBDA_FUNCTION_NAME"`
}

// Load parses the environment and validates the result.
func Load() (Settings, error) {
	s, err := env.ParseAs[Settings]()
	if err != nil {
		return Settings{}, fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that the settings are consistent.
func (s Settings) Validate() error {
	switch s.Mode {
	case ModeLambda:
	case ModeNATS:
		if s.NATSURL == "" {
			return fmt.Errorf("RELAY_NATS_URL is required in %s mode", ModeNATS)
		}
	default:
		return fmt.Errorf("unknown RELAY_MODE %q", s.Mode)
	}

	switch s.Store {
	case StoreMemory:
	case StoreRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("RELAY_REDIS_ADDR is required for the %s store", StoreRedis)
		}
	default:
		return fmt.Errorf("unknown RELAY_STORE %q", s.Store)
	}

	if s.PoolSize <= 0 {
		return fmt.Errorf("RELAY_POOL_SIZE must be positive")
	}
	return nil
}
