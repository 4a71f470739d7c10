// File: server/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/momentics/hioload-echo/api"
	"github.com/momentics/hioload-echo/internal/logging"
	"github.com/pkg/errors"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. ":9000"
	AdminAddr       string        // admin HTTP bind address, empty disables it
	ExecutorWorkers int           // executor goroutines, 0 = GOMAXPROCS
	ReadBufferSize  int           // size of pooled echo read buffers
	RegistryShards  int           // session registry shards
	ShutdownTimeout time.Duration // per-session wait for the peer after CloseWrite
	DrainTimeout    time.Duration // how long Serve lets sessions drain on cancel
	NoDelay         bool          // TCP_NODELAY on accepted sockets
	KeepAlive       time.Duration // keepalive idle time, negative disables
	LogLevel        string        // zerolog level name
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":9000",
		AdminAddr:       "127.0.0.1:9090",
		ExecutorWorkers: runtime.GOMAXPROCS(0),
		ReadBufferSize:  32 * 1024,
		RegistryShards:  16,
		ShutdownTimeout: 5 * time.Second,
		DrainTimeout:    10 * time.Second,
		NoDelay:         true,
		KeepAlive:       30 * time.Second,
		LogLevel:        "info",
	}
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.ListenAddr) == "":
		return api.ErrInvalidArgument.WithContext("listen_addr", "empty")
	case c.ExecutorWorkers < 0:
		return api.ErrInvalidArgument.WithContext("executor_workers", c.ExecutorWorkers)
	case c.ReadBufferSize <= 0:
		return api.ErrInvalidArgument.WithContext("read_buffer_size", c.ReadBufferSize)
	case c.ShutdownTimeout < 0:
		return api.ErrInvalidArgument.WithContext("shutdown_timeout", c.ShutdownTimeout)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok && c.LogLevel != "" {
		return api.ErrInvalidArgument.WithContext("log_level", c.LogLevel)
	}
	return nil
}

type fileConfig struct {
	ListenAddr      string `toml:"listen_addr"`
	AdminAddr       string `toml:"admin_addr"`
	ExecutorWorkers int    `toml:"executor_workers"`
	ReadBufferSize  int    `toml:"read_buffer_size"`
	RegistryShards  int    `toml:"registry_shards"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	DrainTimeout    string `toml:"drain_timeout"`
	NoDelay         bool   `toml:"no_delay"`
	KeepAlive       string `toml:"keepalive"`
	LogLevel        string `toml:"log_level"`
}

// LoadConfig overlays the TOML file at path on DefaultConfig. Keys absent
// from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return nil, errors.Wrap(err, "load server config")
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.Errorf("load server config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("listen_addr") {
		cfg.ListenAddr = strings.TrimSpace(raw.ListenAddr)
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("executor_workers") {
		cfg.ExecutorWorkers = raw.ExecutorWorkers
	}
	if meta.IsDefined("read_buffer_size") {
		cfg.ReadBufferSize = raw.ReadBufferSize
	}
	if meta.IsDefined("registry_shards") {
		cfg.RegistryShards = raw.RegistryShards
	}
	if meta.IsDefined("no_delay") {
		cfg.NoDelay = raw.NoDelay
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"shutdown_timeout", raw.ShutdownTimeout, &cfg.ShutdownTimeout},
		{"drain_timeout", raw.DrainTimeout, &cfg.DrainTimeout},
		{"keepalive", raw.KeepAlive, &cfg.KeepAlive},
	}
	for _, d := range durations {
		if !meta.IsDefined(d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return nil, errors.Wrapf(err, "parse %s", d.key)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "load server config")
	}
	return cfg, nil
}
