// Package manifest reads the per-group Cargo.toml metadata that discovery
// needs for namespace derivation: the unit's name and version.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the manifest file expected at each group root.
const FileName = "Cargo.toml"

// ErrNotFound is returned when a group root has no manifest.
var ErrNotFound = errors.New("manifest not found")

// Manifest exposes the unit metadata used for namespace derivation.
type Manifest struct {
	Name    string
	Version string
}

type rawManifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
}

// Load parses <dir>/Cargo.toml and validates the fields discovery depends
// on.
func Load(dir string) (Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return Manifest{}, fmt.Errorf("read %s: %w", path, err)
	}

	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw.Package.Name == "" {
		return Manifest{}, fmt.Errorf("%s: missing package.name", path)
	}
	if raw.Package.Version == "" {
		return Manifest{}, fmt.Errorf("%s: missing package.version", path)
	}
	return Manifest{Name: raw.Package.Name, Version: raw.Package.Version}, nil
}
