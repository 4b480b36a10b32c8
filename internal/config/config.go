// Package config handles sramp configuration.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cockroachdb/errors"

	"github.com/aidanlsb/sramp/internal/atomicfile"
	"github.com/aidanlsb/sramp/internal/query"
	"github.com/aidanlsb/sramp/internal/resolver"
)

// Config represents the sramp configuration file.
type Config struct {
	// Database is the path of the catalog database. Relative paths are
	// resolved against the config file's directory.
	Database string `toml:"database"`

	// Ontologies are glob patterns of ontology YAML files.
	Ontologies []string `toml:"ontologies"`

	// Audit appends catalog changes to audit.log beside the database.
	Audit bool `toml:"audit"`

	Query      QueryConfig      `toml:"query"`
	Resolution ResolutionConfig `toml:"resolution"`
	Log        LogConfig        `toml:"log"`

	// dir is the directory of the file the config was loaded from.
	dir string
}

// QueryConfig holds query defaults.
type QueryConfig struct {
	DefaultCount   int    `toml:"default_count"`
	DefaultOrderBy string `toml:"default_order_by"`
}

// ResolutionConfig controls the relationship link pass.
type ResolutionConfig struct {
	Workers int `toml:"workers"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Database: "catalog.db",
		Query: QueryConfig{
			DefaultCount:   query.DefaultCount,
			DefaultOrderBy: query.DefaultOrderBy,
		},
		Resolution: ResolutionConfig{Workers: resolver.DefaultWorkers},
		Log:        LogConfig{Level: "warn"},
		dir:        filepath.Dir(DefaultPath()),
	}
}

// Load loads the configuration from the default location.
// Returns a default config if the file doesn't exist.
func Load() (*Config, error) {
	configPath := DefaultPath()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Default(), nil
	}

	return LoadFrom(configPath)
}

// LoadFrom loads the configuration from a specific path. Unset values keep
// their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errors.WithHintf(
			errors.Newf("unknown config keys in %s: %s", path, strings.Join(keys, ", ")),
			"Valid keys are database, ontologies, audit, [query], [resolution] and [log].")
	}
	cfg.dir = filepath.Dir(path)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database) == "" {
		return errors.New("database path is empty")
	}
	if c.Query.DefaultCount <= 0 {
		return errors.Newf("query.default_count must be positive (got %d)", c.Query.DefaultCount)
	}
	if c.Query.DefaultOrderBy != "" && !query.IsName(c.Query.DefaultOrderBy) {
		return errors.Newf("query.default_order_by %q is not a property name", c.Query.DefaultOrderBy)
	}
	if c.Resolution.Workers <= 0 {
		return errors.Newf("resolution.workers must be positive (got %d)", c.Resolution.Workers)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return errors.WithHint(errors.Newf("unknown log level %q", c.Log.Level),
			"Use debug, info, warn or error.")
	}
	return nil
}

// DatabasePath returns the database path, resolved against the config
// directory when relative.
func (c *Config) DatabasePath() string {
	return c.resolve(c.Database)
}

// OntologyGlobs returns the ontology patterns, resolved against the config
// directory when relative.
func (c *Config) OntologyGlobs() []string {
	out := make([]string, len(c.Ontologies))
	for i, p := range c.Ontologies {
		out[i] = c.resolve(p)
	}
	return out
}

func (c *Config) resolve(p string) string {
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) || c.dir == "" {
		return p
	}
	return filepath.Join(c.dir, p)
}

// ResolveConfigPath resolves the effective config path from an optional override.
func ResolveConfigPath(explicitConfigPath string) string {
	if strings.TrimSpace(explicitConfigPath) != "" {
		return explicitConfigPath
	}
	return DefaultPath()
}

// DefaultPath returns the default config file path.
// Checks ~/.config/sramp/config.toml first (XDG style),
// then falls back to OS-specific location.
func DefaultPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		xdgPath := filepath.Join(home, ".config", "sramp", "config.toml")
		if _, err := os.Stat(xdgPath); err == nil {
			return xdgPath
		}
	}

	if configDir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(configDir, "sramp", "config.toml")
	}

	return filepath.Join(".", "config.toml")
}

const defaultConfig = `# sramp configuration

# Catalog database (relative to this file)
database = "catalog.db"

# Ontology definition files (glob patterns, relative to this file)
# ontologies = ["ontologies/*.yaml"]

# Record ingests and deletions in audit.log next to the database
audit = false

[query]
default_count = 100
default_order_by = "name"

[resolution]
# Relationship sources resolved in parallel after each ingest
workers = 4

[log]
# debug, info, warn or error
level = "warn"
json = false
`

// CreateDefault writes a default config file at path if none exists and
// returns whether it created one.
func CreateDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := atomicfile.WriteFile(path, []byte(defaultConfig), 0o644); err != nil {
		return false, errors.Wrapf(err, "failed to write config %s", path)
	}
	return true, nil
}
