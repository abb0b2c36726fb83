// Package config loads server and client configuration via viper, the way
// the teacher's cmd/server/main.go loads internal/server.Config.
package config

import (
	"fmt"
	"time"

	"github.com/gosyncbox/syncbox/internal/plan"
)

const (
	DefaultServerBindAddress = "0.0.0.0:9443"
	DefaultDataRoot          = ".data"
	DefaultChunkSize         = 65536
	DefaultIdleTimeout       = 60 * time.Second
)

// ServerConfig maps spec §6's server.* and encryption.* keys plus the
// ambient idle-timeout/worker knobs syncserver exposes.
type ServerConfig struct {
	Server     ServerSection     `mapstructure:"server"`
	Sync       SyncSection       `mapstructure:"sync"`
	Encryption EncryptionSection `mapstructure:"encryption"`
}

type ServerSection struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	BindAddress string        `mapstructure:"bind_address"`
	DataRoot    string        `mapstructure:"data_root"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MaxWorkers  int           `mapstructure:"max_workers"`
}

type SyncSection struct {
	IgnorePatterns   []string `mapstructure:"ignore_patterns"`
	Compression      bool     `mapstructure:"compression"`
	ChunkSize        int      `mapstructure:"chunk_size"`
	ConflictStrategy string   `mapstructure:"conflict_strategy"`
}

type EncryptionSection struct {
	Enabled bool   `mapstructure:"enabled"`
	KeyFile string `mapstructure:"key_file"`
}

// Validate enforces spec §7.1: a missing key file with encryption enabled
// is a fatal configuration error, not a runtime one.
func (c *ServerConfig) Validate() error {
	if c.Server.BindAddress == "" {
		return fmt.Errorf("server.bind_address is required")
	}
	if c.Server.DataRoot == "" {
		return fmt.Errorf("server.data_root is required")
	}
	if c.Encryption.Enabled && c.Encryption.KeyFile == "" {
		return fmt.Errorf("encryption.enabled is true but encryption.key_file is empty")
	}
	if c.Sync.ChunkSize <= 0 {
		return fmt.Errorf("sync.chunk_size must be positive")
	}
	return nil
}

// ClientConfig maps spec §6's client.* and sync.*/encryption.* keys.
type ClientConfig struct {
	Client     ClientSection     `mapstructure:"client"`
	Sync       SyncSection       `mapstructure:"sync"`
	Encryption EncryptionSection `mapstructure:"encryption"`
}

type ClientSection struct {
	RemoteHost string `mapstructure:"remote_host"`
	RemotePort int    `mapstructure:"remote_port"`
	LocalRoot  string `mapstructure:"local_root"`
}

func (c *ClientConfig) Validate() error {
	if c.Client.RemoteHost == "" {
		return fmt.Errorf("client.remote_host is required")
	}
	if c.Client.RemotePort <= 0 {
		return fmt.Errorf("client.remote_port must be positive")
	}
	if c.Client.LocalRoot == "" {
		return fmt.Errorf("client.local_root is required")
	}
	if c.Encryption.Enabled && c.Encryption.KeyFile == "" {
		return fmt.Errorf("encryption.enabled is true but encryption.key_file is empty")
	}
	return nil
}

// ConflictStrategyValue parses sync.conflict_strategy, defaulting to "ask" to
// match spec §4.E's default behavior when the field is unset or unknown.
func (s SyncSection) ConflictStrategyValue() plan.ConflictStrategy {
	switch plan.ConflictStrategy(s.ConflictStrategy) {
	case plan.StrategyLocal, plan.StrategyRemote, plan.StrategySkip:
		return plan.ConflictStrategy(s.ConflictStrategy)
	default:
		return plan.StrategyAsk
	}
}
