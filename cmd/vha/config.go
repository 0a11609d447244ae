package main

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"

	"github.com/medassist/vha/internal/config"
)

// loadConfig reads the YAML config file. A missing file is not an error: the
// defaults describe a fully working mock-mode assistant.
func loadConfig() (config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = "vha.yaml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return config.Default(), nil
		}
		return config.Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := config.ValidateSettings(v.AllSettings()); err != nil {
		return config.Config{}, err
	}

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return config.Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Normalize(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}
