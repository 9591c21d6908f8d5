// Package config binds scd's project configuration, per spec 6's
// "Persisted state layout": <baseDir>/config.json, optionally overlaid
// by an SCD_* environment variable and a machine-local scd.toml
// profile. It follows the teacher's viper-for-the-tracked-file,
// direct-read-for-pre-init-reads split.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full set of project settings every component wires
// against. Zero values are the engine/process/watcher package defaults
// documented alongside each field.
type Config struct {
	// BaseDir is the project root holding specs.jsonl, issues.jsonl,
	// specs/, issues/, worktrees/, the store db file, and config.json
	// itself (spec 6).
	BaseDir string `mapstructure:"base-dir"`

	// StoreDBFile names the entity store's SQLite file, relative to
	// BaseDir. Defaults to "scd.db".
	StoreDBFile string `mapstructure:"store-db-file"`

	// MaxConcurrentExecutions caps the execution engine's bounded
	// worker pool (spec 5's "engine caps concurrent subprocesses
	// (default 3)"). Zero uses engine.DefaultMaxConcurrent.
	MaxConcurrentExecutions int `mapstructure:"max-concurrent-executions"`

	// SyncBranch is the git branch streams integrate onto by default
	// when an execution's target stream branch is unset.
	SyncBranch string `mapstructure:"sync-branch"`

	// IssuePrefix is prepended to generated issue ids (e.g. "bd-").
	IssuePrefix string `mapstructure:"issue-prefix"`

	// Author fills an entity's created-by field when no agent identity
	// is supplied.
	Author string `mapstructure:"author"`

	// LogLevel is a logrus level name ("debug", "info", "warn",
	// "error"). Defaults to "info".
	LogLevel string `mapstructure:"log-level"`
}

const envPrefix = "SCD"

func defaults() Config {
	return Config{
		StoreDBFile:             "scd.db",
		MaxConcurrentExecutions: 3,
		LogLevel:                "info",
	}
}

// Load reads config.json under baseDir through viper, applying SCD_*
// environment variable overrides (SCD_SYNC_BRANCH, SCD_LOG_LEVEL, and
// so on, one per mapstructure tag with dashes turned into underscores),
// then fills settings still at their defaults from any local scd.toml
// profile via LoadLocalProfile. A missing config.json is not an error; Load falls
// back to defaults() as the teacher's LoadLocalConfig does for a
// missing config.yaml.
func Load(baseDir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(baseDir)

	cfg := defaults()
	setViperDefaults(v, cfg)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("config: read %s/config.json: %w", baseDir, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.BaseDir = baseDir

	profile := LoadLocalProfile(baseDir)
	profile.applyTo(&cfg)

	return cfg, nil
}

func setViperDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("store-db-file", cfg.StoreDBFile)
	v.SetDefault("max-concurrent-executions", cfg.MaxConcurrentExecutions)
	v.SetDefault("log-level", cfg.LogLevel)
}
