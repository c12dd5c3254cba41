// Package config loads the per-project .pascope.toml file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

// FileName is the config file looked up at the project root.
const FileName = ".pascope.toml"

// DefaultDB is the database path used when none is configured, relative to
// the project root.
const DefaultDB = ".pascope/index.db"

// Config is the project configuration. Slices keep their configured order;
// ScopeNames order decides which expansion wins.
type Config struct {
	ScopeNames []string `toml:"scope_names"`
	SourceDirs []string `toml:"source_dirs"`
	Exclude    []string `toml:"exclude"`
	DB         string   `toml:"db"`
	Watch      Watch    `toml:"watch"`
	Projects   Projects `toml:"projects"`

	// Root is the directory the config was loaded for. Not read from the file.
	Root string `toml:"-"`
}

type Watch struct {
	Debounce    time.Duration `toml:"debounce"`
	MetricsAddr string        `toml:"metrics_addr"`
}

// Projects controls discovery of extra roots from project descriptors.
type Projects struct {
	Discover bool `toml:"discover"`
}

// Default returns the configuration used when no file exists.
func Default(root string) *Config {
	cfg := &Config{Root: root, Projects: Projects{Discover: true}}
	applyDefaults(cfg)
	return cfg
}

// Load reads path. A missing file yields Default(filepath.Dir(path)).
func Load(path string) (*Config, error) {
	root := filepath.Dir(path)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(root), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{Projects: Projects{Discover: true}}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	cfg.Root = root
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads FileName from dir.
func LoadDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, FileName))
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.DB) == "" {
		cfg.DB = DefaultDB
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 300 * time.Millisecond
	}
	if len(cfg.Exclude) == 0 {
		cfg.Exclude = []string{"**/__history/**", "**/__recovery/**", "**/backup/**"}
	}
	names := cfg.ScopeNames[:0]
	for _, n := range cfg.ScopeNames {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	cfg.ScopeNames = names
}

func validate(cfg *Config) error {
	for _, pattern := range cfg.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative")
	}
	return nil
}

// DBPath returns the database path, resolved against Root when relative.
func (c *Config) DBPath() string {
	if filepath.IsAbs(c.DB) || c.Root == "" {
		return c.DB
	}
	return filepath.Join(c.Root, c.DB)
}

// SourceRoots returns SourceDirs resolved against Root.
func (c *Config) SourceRoots() []string {
	roots := make([]string, 0, len(c.SourceDirs))
	for _, d := range c.SourceDirs {
		if !filepath.IsAbs(d) {
			d = filepath.Join(c.Root, d)
		}
		roots = append(roots, filepath.Clean(d))
	}
	return roots
}

// ExcludeMatch reports whether path, taken relative to Root when possible,
// matches any exclude pattern.
func (c *Config) ExcludeMatch(path string) bool {
	rel := path
	if c.Root != "" && filepath.IsAbs(path) {
		if r, err := filepath.Rel(c.Root, path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
