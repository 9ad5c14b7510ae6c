package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the chanpack configuration file (~/.config/chanpack/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type Config struct {
	Workers   *int64 `yaml:"workers"`
	Retries   *int64 `yaml:"retries"`
	Overwrite *bool  `yaml:"overwrite"`
	OutputDir string `yaml:"output_dir"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
	PackagesDir   string `yaml:"packages_dir"`
}

const envChanpackConfig = "CHANPACK_CONFIG"

func configPath() string {
	if p := os.Getenv(envChanpackConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "chanpack", "config.yaml")
}

// LoadConfig reads the config file. Returns a zero Config if the file doesn't exist.
func LoadConfig() Config {
	path := configPath()
	if path == "" {
		return Config{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}
	}
	return cfg
}
