// Package config handles configuration loading using viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"firestige.xyz/ipcap/internal/log"
)

// Config is the static configuration of the ipcap CLI. Every key can be
// overridden through IPCAP_* environment variables.
type Config struct {
	Log      log.Config `mapstructure:"log"`
	Profiles string     `mapstructure:"profiles"` // path to a filter-profile file
}

// Load reads the configuration. With an empty path the usual locations
// are searched and a missing file falls back to defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("log.level", "info")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ipcap")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/ipcap")
		v.AddConfigPath("$HOME/.config/ipcap")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("IPCAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// No config file found, defaults and environment apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
