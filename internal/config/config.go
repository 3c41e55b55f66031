// Package config loads App Factory tooling configuration from an optional
// appfactory.yaml at the repository root. A missing file yields defaults;
// a malformed file is an error, since config is developer-owned (unlike the
// build registry, which must tolerate corruption).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the well-known config file looked up at the repo root.
const ConfigFileName = "appfactory.yaml"

// Config is the top-level configuration document.
type Config struct {
	Registry  RegistryConfig  `yaml:"registry"`
	Validator ValidatorConfig `yaml:"validator"`
}

// RegistryConfig controls the build registry file.
type RegistryConfig struct {
	// Path to the registry document, relative to the repo root.
	Path string `yaml:"path"`

	// Lock enables a file lock around register's read-modify-write cycle.
	// Off by default: concurrent registrations then race with
	// last-write-wins, which the pipeline accepts.
	Lock bool `yaml:"lock"`
}

// ValidatorConfig controls build validation.
type ValidatorConfig struct {
	// BundlePrefix is the organizational prefix required of iOS bundle
	// identifiers and Android package names (without trailing dot).
	BundlePrefix string `yaml:"bundle_prefix"`

	// CommandTimeout bounds each external diagnostic command, e.g. "30s".
	CommandTimeout string `yaml:"command_timeout"`

	// MaxOutputBytes caps captured stdout/stderr per command.
	MaxOutputBytes int64 `yaml:"max_output_bytes"`

	// PackageRunner is the binary used to invoke framework CLI commands
	// (normally npx). Tests point this at a stub.
	PackageRunner string `yaml:"package_runner"`

	// FrameworkPrefix marks framework-managed dependencies in package.json.
	FrameworkPrefix string `yaml:"framework_prefix"`
}

// Default returns the configuration used when no appfactory.yaml exists.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			Path: filepath.Join("builds", "build_index.json"),
		},
		Validator: ValidatorConfig{
			BundlePrefix:    "com.appfactory",
			CommandTimeout:  "30s",
			MaxOutputBytes:  10 * 1024 * 1024,
			PackageRunner:   "npx",
			FrameworkPrefix: "expo-",
		},
	}
}

// Load reads appfactory.yaml from root, falling back to defaults when the
// file is absent. Zero-valued fields are filled with defaults so a partial
// config file stays valid.
func Load(root string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filepath.Join(root, ConfigFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFileName, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ConfigFileName, err)
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = def.Registry.Path
	}
	if cfg.Validator.BundlePrefix == "" {
		cfg.Validator.BundlePrefix = def.Validator.BundlePrefix
	}
	if cfg.Validator.CommandTimeout == "" {
		cfg.Validator.CommandTimeout = def.Validator.CommandTimeout
	}
	if cfg.Validator.MaxOutputBytes <= 0 {
		cfg.Validator.MaxOutputBytes = def.Validator.MaxOutputBytes
	}
	if cfg.Validator.PackageRunner == "" {
		cfg.Validator.PackageRunner = def.Validator.PackageRunner
	}
	if cfg.Validator.FrameworkPrefix == "" {
		cfg.Validator.FrameworkPrefix = def.Validator.FrameworkPrefix
	}
}

// Timeout parses CommandTimeout, falling back to 30 seconds on any
// unparseable value.
func (c ValidatorConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(c.CommandTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// FindRepoRoot walks upward from the current directory looking for
// appfactory.yaml, a builds/ directory, or go.mod. If none is found the
// current working directory is returned.
func FindRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFileName)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "builds")); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}
