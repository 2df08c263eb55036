package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".fedcheck"

// ErrConfigNotFound is returned when the configuration file does not
// exist. Callers decide whether that matters: an explicitly requested
// file must exist, a searched-for one may not.
var ErrConfigNotFound = errors.New("configuration file not found")

// Duration wraps time.Duration for YAML: values are written as Go
// duration strings ("15s", "168h").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// File is the YAML configuration file shape. Every field is optional;
// zero values leave the corresponding Config default untouched.
type File struct {
	// Concurrency overrides the probe worker pool size.
	Concurrency int `yaml:"concurrency"`

	// Timeout overrides the per-request probe deadline.
	Timeout Duration `yaml:"timeout"`

	// MaxAge overrides the cache freshness window.
	MaxAge Duration `yaml:"max_age"`

	// HostRPS overrides the per-host politeness rate.
	HostRPS float64 `yaml:"host_rps"`

	// UserAgent overrides the probe User-Agent header.
	UserAgent string `yaml:"user_agent"`

	// CacheFile overrides the cache file path.
	CacheFile string `yaml:"cache_file"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FindConfigFile searches for the configuration file:
// an explicit path first, then .fedcheck in the current directory, then in
// the user's home directory. Returns empty when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		candidate := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}

// Apply overlays the file's non-zero values onto the config.
func (c *Config) Apply(f *File) {
	if f == nil {
		return
	}
	if f.Concurrency > 0 {
		c.Concurrency = f.Concurrency
	}
	if f.Timeout > 0 {
		c.Timeout = time.Duration(f.Timeout)
	}
	if f.MaxAge > 0 {
		c.MaxAge = time.Duration(f.MaxAge)
	}
	if f.HostRPS > 0 {
		c.HostRPS = f.HostRPS
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.CacheFile != "" {
		c.CacheFile = f.CacheFile
	}
}
