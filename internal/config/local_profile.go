package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LocalProfile is a machine-local override layer read directly from
// scd.toml, bypassing viper. This mirrors the teacher's LocalConfig /
// LoadLocalConfig split in internal/config/local_config.go: useful when
// the working directory has changed since the main Config was loaded,
// or when something needs to peek at overrides before viper has been
// initialized at all.
type LocalProfile struct {
	SyncBranch string `toml:"sync-branch"`
	Author     string `toml:"author"`
	LogLevel   string `toml:"log-level"`
}

// LoadLocalProfile reads scd.toml directly from baseDir. It returns an
// empty LocalProfile (not nil) if the file doesn't exist or fails to
// parse, so callers never need a nil check.
func LoadLocalProfile(baseDir string) *LocalProfile {
	path := filepath.Join(baseDir, "scd.toml")
	data, err := os.ReadFile(path) // #nosec G304 - path built from caller-supplied baseDir
	if err != nil {
		return &LocalProfile{}
	}

	var p LocalProfile
	if _, err := toml.Decode(string(data), &p); err != nil {
		return &LocalProfile{}
	}
	return &p
}

// applyTo overlays non-empty fields of p onto cfg. Environment variable
// overrides (applied earlier, in Load) still win over the profile file
// the same way SCD_SYNC_BRANCH wins over config.json, since Load only
// calls applyTo after viper has already unmarshalled the environment;
// the profile therefore fills gaps, it does not override env vars that
// were already set. Callers needing env-over-profile precedence instead
// should read os.Getenv directly, matching GetLocalSyncBranch's pattern
// in the teacher.
func (p *LocalProfile) applyTo(cfg *Config) {
	if p.SyncBranch != "" && cfg.SyncBranch == "" {
		cfg.SyncBranch = p.SyncBranch
	}
	if p.Author != "" && cfg.Author == "" {
		cfg.Author = p.Author
	}
	if p.LogLevel != "" && cfg.LogLevel == defaults().LogLevel {
		cfg.LogLevel = p.LogLevel
	}
}

// IsSyncBranchConfigured checks scd.toml directly, without going
// through Load, for callers that need a pre-init read — the direct
// analogue of the teacher's IsNoDbModeConfigured.
func IsSyncBranchConfigured(baseDir string) bool {
	return LoadLocalProfile(baseDir).SyncBranch != ""
}

// GetLocalSyncBranch reads the SCD_SYNC_BRANCH environment variable
// first, then falls back to scd.toml, matching the teacher's
// GetLocalSyncBranch (BEADS_SYNC_BRANCH env var, then config.yaml).
func GetLocalSyncBranch(baseDir string) string {
	if envBranch := os.Getenv("SCD_SYNC_BRANCH"); envBranch != "" {
		return envBranch
	}
	return LoadLocalProfile(baseDir).SyncBranch
}
