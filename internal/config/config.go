// Package config loads the inference daemon's configuration surface
// (§6) from a file plus environment overrides, using
// github.com/spf13/viper the way this codebase's other services do.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/chsigg/minigo/internal/dualnet"
)

// Config is the on-disk/env configuration shape. It mirrors
// dualnet.Config field-for-field plus the process-level settings
// (listen address, log level) that sit above the dispatch layer.
type Config struct {
	ModelPath        string `mapstructure:"MODEL_PATH"`
	BatchSize        int    `mapstructure:"BATCH_SIZE"`
	Engine           string `mapstructure:"ENGINE"`
	NumDevices       int    `mapstructure:"NUM_DEVICES"`
	WorkersPerDevice int    `mapstructure:"WORKERS_PER_DEVICE"`
	Opaque           map[string]string `mapstructure:"OPAQUE"`

	ListenAddr string `mapstructure:"LISTEN_ADDR"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
}

// Setup reads cfgPath (if non-empty) and layers DUALNET_-prefixed
// environment variables on top, the same precedence the bootstrap
// config in this codebase's backing services uses.
func Setup(cfgPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DUALNET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Unmarshal only consults the environment for keys viper already
	// knows, so every env-settable key needs a default.
	v.SetDefault("MODEL_PATH", "")
	v.SetDefault("NUM_DEVICES", 0)
	v.SetDefault("BATCH_SIZE", dualnet.DefaultBatchSize)
	v.SetDefault("WORKERS_PER_DEVICE", dualnet.DefaultWorkersPerDevice)
	v.SetDefault("ENGINE", string(dualnet.TagNative))
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", cfgPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	return &cfg, nil
}

// DualnetConfig projects Config down to the dualnet.Config the Engine
// constructor expects.
func (c *Config) DualnetConfig() dualnet.Config {
	return dualnet.Config{
		ModelPath:        c.ModelPath,
		BatchSize:        c.BatchSize,
		Engine:           dualnet.Tag(c.Engine),
		NumDevices:       c.NumDevices,
		WorkersPerDevice: c.WorkersPerDevice,
		Opaque:           c.Opaque,
	}
}
