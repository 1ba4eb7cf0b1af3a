package cache

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
)

// ShardConfig is one entry of the "caches" array in the configuration
// document.
type ShardConfig struct {
	ReplacementPolicy string `json:"replacement_policy"`
	Size              int    `json:"size"`
	Dir               string `json:"dir"`
}

// Config is the parsed, validated configuration document.
type Config struct {
	CacheDir  string        `json:"cache_dir"`
	PageSize  int           `json:"page_size"`
	IgnoreDir []string      `json:"ignore_dir"`
	Caches    []ShardConfig `json:"caches"`
}

// LoadConfig reads and validates a configuration document from path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, configErr("opening config file %q: %v", path, err)
	}
	defer f.Close()
	return ParseConfig(f)
}

// ParseConfig reads and validates a configuration document from r.
func ParseConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, configErr("decoding config: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.CacheDir == "" {
		return configErr("cache_dir is required")
	}
	if !filepath.IsAbs(c.CacheDir) {
		return configErr("cache_dir must be an absolute path, got %q", c.CacheDir)
	}
	if c.PageSize <= 0 {
		return configErr("page_size must be a positive integer, got %d", c.PageSize)
	}
	if len(c.Caches) == 0 {
		return configErr("caches must not be empty (a zero-shard engine bypasses every path)")
	}
	for i, sc := range c.Caches {
		switch sc.ReplacementPolicy {
		case "LRU", "LFU", "MRU":
		default:
			return configErr("caches[%d].replacement_policy must be one of LRU, LFU, MRU, got %q", i, sc.ReplacementPolicy)
		}
		if sc.Size <= 0 {
			return configErr("caches[%d].size must be a positive integer, got %d", i, sc.Size)
		}
		if sc.Dir == "" {
			return configErr("caches[%d].dir must not be empty (use \"*\" for a wildcard shard)", i)
		}
	}
	return nil
}
