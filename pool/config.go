package pool

import (
	"fmt"

	"github.com/mstoykov/envconfig"

	"github.com/machinefabric/fcgx-go/request"
)

// Config tunes a worker pool. FastCGI processes are usually configured
// through environment variables by whatever supervises them (spawn-fcgi,
// systemd, the front-end server), so the pool reads its knobs the same
// way.
type Config struct {
	// Workers is the number of serving goroutines, each owning one
	// request record on the shared listening channel.
	Workers int `envconfig:"FCGX_WORKERS"`

	// ChunkSize is the per-read buffer size used when handlers drain
	// request bodies.
	ChunkSize int `envconfig:"FCGX_CHUNK_SIZE"`
}

// DefaultConfig returns the default pool configuration
func DefaultConfig() Config {
	return Config{
		Workers:   8,
		ChunkSize: request.DefaultChunkSize,
	}
}

// ConfigFromEnv returns DefaultConfig overridden by FCGX_* environment
// variables.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("pool: read config from environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("pool: Workers must be at least 1, got %d", c.Workers)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("pool: ChunkSize must be at least 1, got %d", c.ChunkSize)
	}
	return nil
}
