package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvConfig names a config file when -config is not given.
const EnvConfig = "GLR_CONFIG"

// configNames are tried in order in the working directory, then in ConfigDir.
var configNames = []string{"glr.yaml", "config.yaml"}

// Load builds the configuration from defaults, then the first config file
// found, then command-line flags, and validates the result.
func Load() (*Config, error) {
	cfg := Default()

	path := ConfigPath()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	for _, dir := range []string{".", ConfigDir()} {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// ConfigDir returns the per-user config directory, falling back to the
// temp dir when the OS reports none.
func ConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil || !filepath.IsAbs(base) {
		base = os.TempDir()
	}
	return filepath.Join(base, "glr")
}

// loadFromFile merges a YAML file over cfg. Unknown keys are rejected, and
// asset paths the file sets are taken relative to the file's directory.
func loadFromFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// Cleared so that what the file sets can be told apart from defaults.
	rig, textures := cfg.Assets.RigPath, cfg.Assets.TexturePaths
	cfg.Assets.RigPath, cfg.Assets.TexturePaths = "", nil

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	err = dec.Decode(cfg)

	dir := filepath.Dir(path)
	if cfg.Assets.RigPath == "" {
		cfg.Assets.RigPath = rig
	} else {
		cfg.Assets.RigPath = resolve(dir, cfg.Assets.RigPath)
	}
	if cfg.Assets.TexturePaths == nil {
		cfg.Assets.TexturePaths = textures
	} else {
		for i, p := range cfg.Assets.TexturePaths {
			cfg.Assets.TexturePaths[i] = resolve(dir, p)
		}
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
