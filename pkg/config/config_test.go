package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		envHostingToken, envOperatorSecret, envPackageCountBase,
		envIgnoreList, envListenAddr, envCacheDir, envPRGuardEnforce, envRedisAddr,
	} {
		old, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func() {
			if had {
				os.Setenv(key, old)
			}
		})
	}
}

func TestLoadFailsFastWithoutSecrets(t *testing.T) {
	clearEnv(t)
	if _, err := Load(""); err == nil {
		t.Fatal("Load() should fail when required secrets are unset")
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv(envHostingToken, "tok")
	t.Setenv(envOperatorSecret, "secret")
	t.Setenv(envIgnoreList, "elm/core, elm/json")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HostingToken != "tok" || cfg.OperatorSecret != "secret" {
		t.Fatalf("secrets not loaded from env: %+v", cfg)
	}
	if len(cfg.IgnoreList) != 2 || cfg.IgnoreList[0] != "elm/core" || cfg.IgnoreList[1] != "elm/json" {
		t.Errorf("IgnoreList = %v", cfg.IgnoreList)
	}
	if cfg.ListenAddr != defaultListenAddr {
		t.Errorf("ListenAddr = %q, want default %q", cfg.ListenAddr, defaultListenAddr)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "reviewbot.toml")
	contents := `
hosting_token = "file-token"
operator_secret = "file-secret"
listen_addr = ":9090"
ignore_list = "elm/core"
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(envHostingToken, "env-token")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HostingToken != "env-token" {
		t.Errorf("HostingToken = %q, want env value to win", cfg.HostingToken)
	}
	if cfg.OperatorSecret != "file-secret" {
		t.Errorf("OperatorSecret = %q, want file value retained", cfg.OperatorSecret)
	}
	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want file value retained", cfg.ListenAddr)
	}
	if len(cfg.IgnoreList) != 1 || cfg.IgnoreList[0] != "elm/core" {
		t.Errorf("IgnoreList = %v, want [elm/core] from file", cfg.IgnoreList)
	}
}

func TestPRGuardEnforceParsesBool(t *testing.T) {
	clearEnv(t)
	t.Setenv(envHostingToken, "tok")
	t.Setenv(envOperatorSecret, "secret")
	t.Setenv(envPRGuardEnforce, "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.EnforcePRGuard {
		t.Error("EnforcePRGuard should be true")
	}
}
