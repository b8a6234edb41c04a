// Package config loads docsearch-mcp settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DirName is the per-user data directory under the home directory
	DirName = ".docsearch-mcp"

	// FileName is the config file looked up in the data directory
	FileName = "config.yaml"
)

// Config is the complete docsearch-mcp configuration
type Config struct {
	Source  SourceConfig `yaml:"source" json:"source"`
	DataDir string       `yaml:"data_dir" json:"data_dir"`
	Search  SearchConfig `yaml:"search" json:"search"`
	Watch   WatchConfig  `yaml:"watch" json:"watch"`
}

// SourceConfig says where the search index comes from.
// Path wins over URL; with neither set the embedded copy is used.
type SourceConfig struct {
	Path       string   `yaml:"path" json:"path"`
	URL        string   `yaml:"url" json:"url"`
	RefreshTTL Duration `yaml:"refresh_ttl" json:"refresh_ttl"`
}

// SearchConfig tunes query handling
type SearchConfig struct {
	MaxResults int `yaml:"max_results" json:"max_results"`
	CacheSize  int `yaml:"cache_size" json:"cache_size"` // cached queries per loaded index, 0 disables
	Fuzziness  int `yaml:"fuzziness" json:"fuzziness"`   // full-text edit distance, 0-2
}

// WatchConfig controls reloading when the source file is regenerated
type WatchConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	Debounce Duration `yaml:"debounce" json:"debounce"`
}

// Duration is a time.Duration that reads "500ms" style strings from YAML
type Duration time.Duration

func (d Duration) String() string {
	return time.Duration(d).String()
}

// UnmarshalYAML accepts Go duration strings
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration back as a string
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			RefreshTTL: Duration(7 * 24 * time.Hour),
		},
		Search: SearchConfig{
			MaxResults: 10,
			CacheSize:  256,
			Fuzziness:  1,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: Duration(500 * time.Millisecond),
		},
	}
}

// Load reads the config file at path over the defaults and applies environment
// overrides. An empty path looks for config.yaml in the user data directory;
// a missing file there is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, DirName, FileName)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from DOCSEARCH_* variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("DOCSEARCH_SOURCE"); v != "" {
		c.Source.Path = v
	}
	if v := os.Getenv("DOCSEARCH_SOURCE_URL"); v != "" {
		c.Source.URL = v
	}
	if v := os.Getenv("DOCSEARCH_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("DOCSEARCH_MAX_RESULTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOCSEARCH_MAX_RESULTS %q: %w", v, err)
		}
		c.Search.MaxResults = n
	}
	if v := os.Getenv("DOCSEARCH_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DOCSEARCH_CACHE_SIZE %q: %w", v, err)
		}
		c.Search.CacheSize = n
	}
	if v := os.Getenv("DOCSEARCH_WATCH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DOCSEARCH_WATCH %q: %w", v, err)
		}
		c.Watch.Enabled = b
	}
	return nil
}

// Validate rejects settings that cannot work
func (c *Config) Validate() error {
	var problems []string
	if c.Search.MaxResults < 1 {
		problems = append(problems, "search.max_results must be at least 1")
	}
	if c.Search.CacheSize < 0 {
		problems = append(problems, "search.cache_size must not be negative")
	}
	if c.Search.Fuzziness < 0 || c.Search.Fuzziness > 2 {
		problems = append(problems, "search.fuzziness must be between 0 and 2")
	}
	if c.Source.RefreshTTL < 0 {
		problems = append(problems, "source.refresh_ttl must not be negative")
	}
	if c.Watch.Debounce < 0 {
		problems = append(problems, "watch.debounce must not be negative")
	}
	if u := c.Source.URL; u != "" && !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		problems = append(problems, "source.url must be an http(s) URL")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// ResolveDataDir picks and creates the data directory.
// Priority: configured dir > ~/.docsearch-mcp > ./data
func (c *Config) ResolveDataDir() string {
	if c.DataDir != "" {
		if err := os.MkdirAll(c.DataDir, 0755); err != nil {
			log.Printf("Warning: Could not create data directory at %s: %v", c.DataDir, err)
		}
		return c.DataDir
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userDataDir := filepath.Join(homeDir, DirName)
		if err := os.MkdirAll(userDataDir, 0755); err == nil {
			c.DataDir = userDataDir
			return c.DataDir
		}
		log.Printf("Warning: Could not create user data directory at %s: %v", userDataDir, err)
	} else {
		log.Printf("Warning: Could not determine user home directory: %v", err)
	}

	c.DataDir = filepath.Join(".", "data")
	log.Printf("⚠️  Data directory (fallback): %s", c.DataDir)
	os.MkdirAll(c.DataDir, 0755)
	return c.DataDir
}
