// Package config loads the process configuration (A1): environment
// variables first, an optional TOML file underneath, and a fail-fast check
// that the secrets the engine cannot run without are present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds everything the serve command needs to construct the engine,
// the hosting-platform client, and the operator console.
type Config struct {
	HostingToken     string `toml:"hosting_token"`
	OperatorSecret   string `toml:"operator_secret"`
	PackageCountBase int    `toml:"package_count_offset"`
	IgnoreList       []string
	ListenAddr       string `toml:"listen_addr"`
	CacheDir         string `toml:"cache_dir"`
	EnforcePRGuard   bool   `toml:"pr_guard_enforce"`
	RedisAddr        string `toml:"redis_addr"`
	IgnoreListRaw    string `toml:"ignore_list"`
}

const (
	envHostingToken     = "REVIEWBOT_HOSTING_TOKEN"
	envOperatorSecret   = "REVIEWBOT_OPERATOR_SECRET"
	envPackageCountBase = "REVIEWBOT_PACKAGE_COUNT_OFFSET"
	envIgnoreList       = "REVIEWBOT_IGNORE_LIST"
	envListenAddr       = "REVIEWBOT_LISTEN_ADDR"
	envCacheDir         = "REVIEWBOT_CACHE_DIR"
	envPRGuardEnforce   = "REVIEWBOT_PR_GUARD_ENFORCE"
	envRedisAddr        = "REVIEWBOT_REDIS_ADDR"
)

// defaultListenAddr is used when neither the file nor the environment sets
// one; it is not itself a secret and has no fail-fast requirement.
const defaultListenAddr = ":8080"

// Load builds a Config from an optional TOML file at path (ignored if path
// is empty) overlaid with environment variables, which always win, then
// validates the required secrets. The environment is the outer,
// authoritative layer.
func Load(path string) (Config, error) {
	cfg := Config{ListenAddr: defaultListenAddr}

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if cfg.IgnoreListRaw != "" {
			cfg.IgnoreList = splitIgnoreList(cfg.IgnoreListRaw)
		}
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(envHostingToken); v != "" {
		cfg.HostingToken = v
	}
	if v := os.Getenv(envOperatorSecret); v != "" {
		cfg.OperatorSecret = v
	}
	if v := os.Getenv(envPackageCountBase); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PackageCountBase = n
		}
	}
	if v := os.Getenv(envIgnoreList); v != "" {
		cfg.IgnoreList = splitIgnoreList(v)
	}
	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envCacheDir); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv(envPRGuardEnforce); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.EnforcePRGuard = b
		}
	}
	if v := os.Getenv(envRedisAddr); v != "" {
		cfg.RedisAddr = v
	}
}

func splitIgnoreList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate enforces spec.md §7's only fatal startup condition: the hosting
// token and operator secret must both be set, or the process must not run.
func (c Config) validate() error {
	var missing []string
	if c.HostingToken == "" {
		missing = append(missing, envHostingToken)
	}
	if c.OperatorSecret == "" {
		missing = append(missing, envOperatorSecret)
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
