package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// LoadServer mirrors cmd/server/main.go's loadConfig: config file (if any),
// overlaid by SYNCBOX_ env vars, overlaid by already-bound CLI flags.
func LoadServer(configFile string, bind func(v *viper.Viper)) (*ServerConfig, error) {
	v := newViper("SYNCBOX")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/syncbox/")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	bindServerDefaults(v)
	if bind != nil {
		bind(v)
	}

	if err := readConfig(v, configFile); err != nil {
		return nil, err
	}

	var cfg ServerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient mirrors LoadServer for the client side.
func LoadClient(configFile string, bind func(v *viper.Viper)) (*ClientConfig, error) {
	v := newViper("SYNCBOX")

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	bindClientDefaults(v)
	if bind != nil {
		bind(v)
	}

	if err := readConfig(v, configFile); err != nil {
		return nil, err
	}

	var cfg ClientConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func newViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func readConfig(v *viper.Viper, configFile string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		enoent := errors.Is(err, os.ErrNotExist)
		if configFile != "" && enoent {
			return err
		}
		if !enoent && !errors.As(err, &notFound) {
			return fmt.Errorf("config read %q: %w", v.ConfigFileUsed(), err)
		}
	}
	return nil
}

func bindServerDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9443)
	v.SetDefault("server.bind_address", DefaultServerBindAddress)
	v.SetDefault("server.data_root", DefaultDataRoot)
	v.SetDefault("server.idle_timeout", DefaultIdleTimeout)
	v.SetDefault("server.max_workers", 0)

	v.SetDefault("sync.ignore_patterns", []string{})
	v.SetDefault("sync.compression", true)
	v.SetDefault("sync.chunk_size", DefaultChunkSize)
	v.SetDefault("sync.conflict_strategy", "ask")

	v.SetDefault("encryption.enabled", false)
	v.SetDefault("encryption.key_file", "")
}

func bindClientDefaults(v *viper.Viper) {
	v.SetDefault("client.remote_host", "127.0.0.1")
	v.SetDefault("client.remote_port", 9443)
	v.SetDefault("client.local_root", ".")

	v.SetDefault("sync.ignore_patterns", []string{})
	v.SetDefault("sync.compression", true)
	v.SetDefault("sync.chunk_size", DefaultChunkSize)
	v.SetDefault("sync.conflict_strategy", "ask")

	v.SetDefault("encryption.enabled", false)
	v.SetDefault("encryption.key_file", "")
}
