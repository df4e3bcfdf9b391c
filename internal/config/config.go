// Package config provides configuration for mining runs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/VariantSync/DiffDetective-sub004/cpp"
	"github.com/VariantSync/DiffDetective-sub004/parse"
)

// Config holds mining configuration.
type Config struct {
	// DataDir is the directory that receives line graph output.
	DataDir string
	// DBPath is the SQLite result database. Empty means DataDir/results.db.
	DBPath string
	// Workers is the number of patches parsed concurrently per repository.
	Workers int
	// Repos is the number of repositories mined concurrently.
	Repos int
	// LogLevel is a logrus level name.
	LogLevel string
	// Compress writes line graphs zstd compressed.
	Compress bool
	// Collapse merges consecutive code lines into one artifact.
	Collapse bool
	// IgnoreEmpty skips blank lines in diffs.
	IgnoreEmpty bool
	// CommitLimit stops after that many commits per repository, 0 for all.
	CommitLimit int
	// NodeFormat names the line graph node label format.
	NodeFormat string
}

// FromEnv creates a Config from environment variables.
func FromEnv() *Config {
	return &Config{
		DataDir:     getEnv("DIFFDETECTIVE_DATA", "./data"),
		DBPath:      getEnv("DIFFDETECTIVE_DB", ""),
		Workers:     getEnvInt("DIFFDETECTIVE_WORKERS", runtime.NumCPU()),
		Repos:       getEnvInt("DIFFDETECTIVE_REPOS", 2),
		LogLevel:    getEnv("DIFFDETECTIVE_LOG_LEVEL", "info"),
		Compress:    getEnvBool("DIFFDETECTIVE_COMPRESS", true),
		Collapse:    getEnvBool("DIFFDETECTIVE_COLLAPSE", true),
		IgnoreEmpty: getEnvBool("DIFFDETECTIVE_IGNORE_EMPTY", false),
		CommitLimit: getEnvInt("DIFFDETECTIVE_COMMIT_LIMIT", 0),
		NodeFormat:  getEnv("DIFFDETECTIVE_NODE_FORMAT", "linenumber"),
	}
}

// FromArgs creates a Config from explicit values, with env fallbacks.
func FromArgs(dataDir, dbPath, logLevel string, workers int) *Config {
	cfg := FromEnv()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	return cfg
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data directory must be set")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Repos < 1 {
		return fmt.Errorf("repos must be positive, got %d", c.Repos)
	}
	if c.CommitLimit < 0 {
		return fmt.Errorf("commit limit must not be negative, got %d", c.CommitLimit)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Database returns the path of the result database.
func (c *Config) Database() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "results.db")
}

// Level parses LogLevel.
func (c *Config) Level() (logrus.Level, error) {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return 0, fmt.Errorf("invalid log level: %w", err)
	}
	return lvl, nil
}

// ParseOptions returns the parser options for a repository. A nil resolver
// keeps conditions as written.
func (c *Config) ParseOptions(resolver cpp.MacroResolver) parse.Options {
	return parse.Options{
		CollapseMultipleCodeLines: c.Collapse,
		IgnoreEmptyLines:          c.IgnoreEmpty,
		Formulas:                  &cpp.Extractor{Resolver: resolver},
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
