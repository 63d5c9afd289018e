// Package config resolves dashboard settings from ~/.tokenuze.yaml and the
// environment. Environment variables always win over the file.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Dashboard holds the uploader's settings.
type Dashboard struct {
	Server string `yaml:"server"`
	APIKey string `yaml:"api_key"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".tokenuze.yaml"), nil
}

// Load reads the config file; a missing file yields zero values.
func Load() (Dashboard, error) {
	var cfg Dashboard
	path, err := configPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve layers the environment over the file settings.
func Resolve() Dashboard {
	cfg, _ := Load()
	if v := os.Getenv("DASHBOARD_API_URL"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("DASHBOARD_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	return cfg
}
