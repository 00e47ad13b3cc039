package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileConfig is the optional .mcpboot.yaml shape. Every field is optional;
// absent fields leave the corresponding Config field at its flag-resolved
// value.
type FileConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Port     int    `yaml:"port"`
	CacheDir string `yaml:"cache_dir"`
	NoCache  bool   `yaml:"no_cache"`
	Verbose  bool   `yaml:"verbose"`
}

// loadFileConfigIfPresent reads and parses path. A missing file is not an
// error: it returns (nil, nil) so the config file stays optional.
func loadFileConfigIfPresent(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &ConfigError{Msg: fmt.Sprintf("read config file %q: %v", path, err)}
	}
	return parseFileConfig(data)
}

func parseFileConfig(data []byte) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("parse config file: %v", err)}
	}
	return &fc, nil
}

// applyFileConfig fills in cfg fields from fc, but only for flags the user
// did not explicitly pass: built-in defaults < file values < explicit
// flags. set records which flag names were passed on the command line.
func applyFileConfig(cfg *Config, fc *FileConfig, set map[string]bool) {
	if fc.Provider != "" && !set["provider"] {
		cfg.Provider = fc.Provider
	}
	if fc.Model != "" && !set["model"] {
		cfg.Model = fc.Model
	}
	if fc.Port != 0 && !set["port"] {
		cfg.Port = fc.Port
	}
	if fc.CacheDir != "" && !set["cache-dir"] {
		cfg.CacheDir = fc.CacheDir
	}
	if fc.NoCache && !set["no-cache"] {
		cfg.NoCache = true
	}
	if fc.Verbose && !set["verbose"] {
		cfg.Verbose = true
	}
}
