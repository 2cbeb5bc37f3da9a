package config

import (
	"fmt"
	"net"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DataPaths holds all data directory and file path configuration.
// These paths can be overridden via environment variables.
type DataPaths struct {
	// DataDir is the base data directory (SHRIKE_DATA_DIR, default: ./data)
	DataDir string `mapstructure:"data_dir"`
	// SQLitePath is the report database file path (SHRIKE_SQLITE_PATH, default: ${DataDir}/shrike.db)
	SQLitePath string `mapstructure:"sqlite_path"`
	// ReportsDir is the directory report documents are exported to (SHRIKE_REPORTS_DIR, default: ${DataDir}/reports)
	ReportsDir string `mapstructure:"reports_dir"`
}

// Signatures configures the signature catalog an analysis runs with.
type Signatures struct {
	// Dirs are directories of declarative YAML definitions loaded on top
	// of the built-in set.
	Dirs []string `mapstructure:"dirs"`
	// TTPFile optionally replaces the built-in technique dictionary with
	// a YAML one.
	TTPFile string `mapstructure:"ttp_file"`
	// MarkCap bounds the marks carried per finding. Zero keeps the
	// engine default.
	MarkCap int `mapstructure:"mark_cap"`
	// Platform skips signatures declaring a different platform. Empty
	// runs everything.
	Platform string `mapstructure:"platform"`
}

// Matcher bounds pattern evaluation against runaway expressions.
type Matcher struct {
	RegexTimeout     time.Duration `mapstructure:"regex_timeout"`
	MaxPatternLength int           `mapstructure:"max_pattern_length"`
	PatternCacheSize int           `mapstructure:"pattern_cache_size"`
}

// MongoDB configures the optional report sink.
type MongoDB struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	Collection  string `mapstructure:"collection"`
	Enabled     bool   `mapstructure:"enabled"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
}

// Metrics configures the optional Prometheus endpoint.
type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// Config holds all configuration for the shrike analyzer.
type Config struct {
	// Debug lowers the log level to debug.
	Debug bool `mapstructure:"debug"`

	DataPaths  DataPaths  `mapstructure:"data_paths"`
	Signatures Signatures `mapstructure:"signatures"`
	Matcher    Matcher    `mapstructure:"matcher"`
	MongoDB    MongoDB    `mapstructure:"mongodb"`
	Metrics    Metrics    `mapstructure:"metrics"`
}

func setDefaults() {
	viper.SetDefault("debug", false)

	// Base directory - the other paths derive from this by default
	viper.SetDefault("data_paths.data_dir", "./data")
	viper.SetDefault("data_paths.sqlite_path", "") // Empty = derive from data_dir
	viper.SetDefault("data_paths.reports_dir", "") // Empty = derive from data_dir

	viper.SetDefault("signatures.dirs", []string{})
	viper.SetDefault("signatures.ttp_file", "")
	viper.SetDefault("signatures.mark_cap", 0)
	viper.SetDefault("signatures.platform", "")

	viper.SetDefault("matcher.regex_timeout", 500*time.Millisecond)
	viper.SetDefault("matcher.max_pattern_length", 4096)
	viper.SetDefault("matcher.pattern_cache_size", 1024)

	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "shrike")
	viper.SetDefault("mongodb.collection", "reports")
	viper.SetDefault("mongodb.enabled", false)
	viper.SetDefault("mongodb.max_pool_size", 10)

	viper.SetDefault("metrics.enabled", false)
	viper.SetDefault("metrics.listen", "127.0.0.1:9090")
}

// loadFromEnv sets up environment variable loading
func loadFromEnv() {
	viper.SetEnvPrefix("SHRIKE")
	viper.AutomaticEnv()

	// Explicit environment variable bindings for the settings most
	// commonly overridden per invocation
	_ = viper.BindEnv("debug", "SHRIKE_DEBUG")
	_ = viper.BindEnv("data_paths.data_dir", "SHRIKE_DATA_DIR")
	_ = viper.BindEnv("data_paths.sqlite_path", "SHRIKE_SQLITE_PATH")
	_ = viper.BindEnv("data_paths.reports_dir", "SHRIKE_REPORTS_DIR")
	_ = viper.BindEnv("signatures.platform", "SHRIKE_PLATFORM")
	_ = viper.BindEnv("mongodb.uri", "SHRIKE_MONGODB_URI")
	_ = viper.BindEnv("mongodb.enabled", "SHRIKE_MONGODB_ENABLED")
	_ = viper.BindEnv("metrics.listen", "SHRIKE_METRICS_LISTEN")
	_ = viper.BindEnv("metrics.enabled", "SHRIKE_METRICS_ENABLED")
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	return unmarshalConfig()
}

// LoadConfigFile loads configuration from an explicit file path. Unlike
// LoadConfig, a missing or unreadable file is an error here: the caller
// asked for this file specifically.
func LoadConfigFile(path string) (*Config, error) {
	viper.SetConfigFile(path)

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("unable to read config file %s: %w", path, err)
	}

	return unmarshalConfig()
}

func unmarshalConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	config.ResolveDataPaths()

	return &config, nil
}

// ResolveDataPaths resolves all data paths, deriving from DataDir if not
// explicitly set
func (c *Config) ResolveDataPaths() {
	dataDir := c.DataPaths.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}

	if c.DataPaths.SQLitePath == "" {
		c.DataPaths.SQLitePath = filepath.Join(dataDir, "shrike.db")
	} else if !filepath.IsAbs(c.DataPaths.SQLitePath) {
		c.DataPaths.SQLitePath = filepath.Clean(c.DataPaths.SQLitePath)
	}

	if c.DataPaths.ReportsDir == "" {
		c.DataPaths.ReportsDir = filepath.Join(dataDir, "reports")
	} else if !filepath.IsAbs(c.DataPaths.ReportsDir) {
		c.DataPaths.ReportsDir = filepath.Clean(c.DataPaths.ReportsDir)
	}

	c.DataPaths.DataDir = dataDir
}

// GetDataDir returns the resolved base data directory
func (c *Config) GetDataDir() string {
	if c.DataPaths.DataDir == "" {
		return "./data"
	}
	return c.DataPaths.DataDir
}

// GetSQLitePath returns the resolved report database path
func (c *Config) GetSQLitePath() string {
	if c.DataPaths.SQLitePath == "" {
		return filepath.Join(c.GetDataDir(), "shrike.db")
	}
	return c.DataPaths.SQLitePath
}

// GetReportsDir returns the resolved report export directory
func (c *Config) GetReportsDir() string {
	if c.DataPaths.ReportsDir == "" {
		return filepath.Join(c.GetDataDir(), "reports")
	}
	return c.DataPaths.ReportsDir
}

// GetRegexTimeout returns the configured pattern timeout, defaulting to
// 500ms if not set
func (c *Config) GetRegexTimeout() time.Duration {
	if c.Matcher.RegexTimeout == 0 {
		return 500 * time.Millisecond
	}
	return c.Matcher.RegexTimeout
}

// validateConfig validates the configuration for correctness
func validateConfig(config *Config) error {
	// Validate pattern evaluation bounds
	if config.Matcher.RegexTimeout < 10*time.Millisecond {
		return fmt.Errorf("matcher.regex_timeout must be at least 10ms, got %v", config.Matcher.RegexTimeout)
	}
	if config.Matcher.RegexTimeout > 5000*time.Millisecond {
		return fmt.Errorf("matcher.regex_timeout must be at most 5000ms, got %v", config.Matcher.RegexTimeout)
	}
	if config.Matcher.MaxPatternLength < 1 || config.Matcher.MaxPatternLength > 10000 {
		return fmt.Errorf("matcher.max_pattern_length must be between 1 and 10000, got %d", config.Matcher.MaxPatternLength)
	}
	if config.Matcher.PatternCacheSize < 1 || config.Matcher.PatternCacheSize > 100000 {
		return fmt.Errorf("matcher.pattern_cache_size must be between 1 and 100000, got %d", config.Matcher.PatternCacheSize)
	}

	if config.Signatures.MarkCap < 0 {
		return fmt.Errorf("signatures.mark_cap cannot be negative, got %d", config.Signatures.MarkCap)
	}

	// Validate MongoDB URI
	if config.MongoDB.Enabled {
		if !strings.HasPrefix(config.MongoDB.URI, "mongodb://") && !strings.HasPrefix(config.MongoDB.URI, "mongodb+srv://") {
			return fmt.Errorf("invalid MongoDB URI: must start with mongodb:// or mongodb+srv://")
		}
		parsed, err := url.Parse(config.MongoDB.URI)
		if err != nil {
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if parsed.Host == "" {
			return fmt.Errorf("invalid MongoDB URI: missing host")
		}
		if config.MongoDB.Database == "" {
			return fmt.Errorf("MongoDB database cannot be empty")
		}
		if config.MongoDB.Collection == "" {
			return fmt.Errorf("MongoDB collection cannot be empty")
		}
	}

	// Validate metrics listen address
	if config.Metrics.Enabled {
		host, port, err := net.SplitHostPort(config.Metrics.Listen)
		if err != nil {
			return fmt.Errorf("invalid metrics.listen address %q: %w", config.Metrics.Listen, err)
		}
		if host == "" {
			return fmt.Errorf("invalid metrics.listen address %q: host cannot be empty", config.Metrics.Listen)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 1 || p > 65535 {
			return fmt.Errorf("invalid metrics.listen port: %s (must be 1-65535)", port)
		}
	}

	return nil
}
