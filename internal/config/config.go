// Package config loads the optional .codegraph.yml project file.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the per-project config file, looked up in the project root.
const FileName = ".codegraph.yml"

type Config struct {
	// DBPath overrides the default cache-directory database location.
	DBPath string `yaml:"db_path"`
	// Workers bounds the parse worker pool; 0 means NumCPU.
	Workers int `yaml:"workers"`
	// Crates lists explicit group directories relative to the project
	// root; empty means scan for manifests.
	Crates []string `yaml:"crates"`
	// IgnoreDirs supplements the built-in discovery ignore set.
	IgnoreDirs []string `yaml:"ignore_dirs"`
	// Watch enables the polling watcher after the initial build.
	Watch bool `yaml:"watch"`
}

// Load reads the project config from root. A missing file is not an
// error: the zero Config is returned.
func Load(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
