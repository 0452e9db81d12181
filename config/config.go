// Package config provides environment-variable configuration for the
// watcher core, using the caarlos0/env struct-tag idiom the teacher uses
// throughout core/config and core/queue/config.go.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process-level defaults the watcher.Watcher composition
// root loads at startup. Per-call options (watcher.Option) always take
// precedence over these. Every field here feeds a specific consumer:
// QueueCapacity bounds each backend's queue.Queue, ShutdownTimeout and
// DeadLetterCapacity become thread.WithShutdownTimeout/
// WithDeadLetterCapacity on both backend Threads, and LogFile is applied
// to the default corelog.Sink at construction if set.
type Config struct {
	QueueCapacity      int           `env:"WATCHCORE_QUEUE_CAPACITY" envDefault:"256"`
	PollingInterval    time.Duration `env:"WATCHCORE_POLLING_INTERVAL" envDefault:"1s"`
	PollingThrottle    time.Duration `env:"WATCHCORE_POLLING_THROTTLE" envDefault:"100ms"`
	ShutdownTimeout    time.Duration `env:"WATCHCORE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	DeadLetterCapacity int           `env:"WATCHCORE_DEAD_LETTER_CAPACITY" envDefault:"64"`
	LogFile            string        `env:"WATCHCORE_LOG_FILE" envDefault:""`
}

// Load populates cfg from the environment, first loading a .env file from
// the working directory if one is present (ignored if absent).
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// MustLoad is Load but panics on failure, for use at process startup.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
