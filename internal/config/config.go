// Package config holds the process-wide runtime configuration, set once
// at startup and read thereafter through a package-level accessor guarded
// by a RWMutex, following progressdb-ProgressDB/service/pkg/config's
// RuntimeConfig/SetRuntime pattern.
package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// RuntimeConfig is the core's resolved startup configuration.
type RuntimeConfig struct {
	// DataDir is the root directory holding the identity file, the
	// settings vault, and every per-vault SQLite database (spec.md §6.3).
	DataDir string
	// LogLevel is one of debug/info/warn/error.
	LogLevel string
	// LogSink is "stdout" or "file:<path>".
	LogSink string
	// DefaultSyncURL/DefaultSyncToken are loaded from the environment or
	// reachvault.yaml. Nothing in the core reads them: a new vault gets
	// only the sync target its caller passes.
	DefaultSyncURL   string
	DefaultSyncToken string
}

var (
	mu  sync.RWMutex
	cfg *RuntimeConfig
)

// SetRuntime installs the process-wide configuration. Intended to be
// called exactly once at startup.
func SetRuntime(rc *RuntimeConfig) {
	mu.Lock()
	defer mu.Unlock()
	cfg = rc
}

// Get returns the installed configuration, or nil if SetRuntime has not
// been called yet.
func Get() *RuntimeConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// DataDir returns the configured data directory, or "" if unset.
func DataDir() string {
	mu.RLock()
	defer mu.RUnlock()
	if cfg == nil {
		return ""
	}
	return cfg.DataDir
}

// yamlConfig mirrors RuntimeConfig's fields for the optional
// reachvault.yaml file. YAML values are applied first and then
// overridden by any REACHVAULT_* environment variable that is set, so
// the env always wins for a value set both ways.
type yamlConfig struct {
	DataDir          string `yaml:"data_dir"`
	LogLevel         string `yaml:"log_level"`
	LogSink          string `yaml:"log_sink"`
	DefaultSyncURL   string `yaml:"default_sync_url"`
	DefaultSyncToken string `yaml:"default_sync_token"`
}

// loadYAMLConfig reads reachvault.yaml from the working directory. A
// missing file is not an error, matching godotenv's own convention for
// optional config.
func loadYAMLConfig() (yamlConfig, error) {
	var yc yamlConfig
	raw, err := os.ReadFile("reachvault.yaml")
	if err != nil {
		if os.IsNotExist(err) {
			return yc, nil
		}
		return yc, err
	}
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return yc, err
	}
	return yc, nil
}

// Load reads a .env file if present (missing files are not an error,
// matching godotenv's own convention), then an optional reachvault.yaml
// in the working directory, and builds a RuntimeConfig by layering
// REACHVAULT_* environment variables over the YAML defaults. DataDir
// falls back to $HOME/.reachvault when neither source sets it.
func Load(envPath string) (*RuntimeConfig, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	} else {
		_ = godotenv.Load()
	}

	yc, err := loadYAMLConfig()
	if err != nil {
		return nil, err
	}

	rc := &RuntimeConfig{
		DataDir:          firstNonEmpty(os.Getenv("REACHVAULT_DATA_DIR"), yc.DataDir),
		LogLevel:         firstNonEmpty(os.Getenv("REACHVAULT_LOG_LEVEL"), yc.LogLevel),
		LogSink:          firstNonEmpty(os.Getenv("REACHVAULT_LOG_SINK"), yc.LogSink),
		DefaultSyncURL:   firstNonEmpty(os.Getenv("REACHVAULT_SYNC_URL"), yc.DefaultSyncURL),
		DefaultSyncToken: firstNonEmpty(os.Getenv("REACHVAULT_SYNC_TOKEN"), yc.DefaultSyncToken),
	}
	if rc.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		rc.DataDir = filepath.Join(home, ".reachvault")
	}
	return rc, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
