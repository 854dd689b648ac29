package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPrecedenceFlagsOverEnvOverFile(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(configPath, []byte("output: plain\nretries: 1\ntimeout: 3s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("AGENTKIT_OUTPUT", "json")
	t.Setenv("AGENTKIT_TIMEOUT", "7s")
	flags := GlobalFlags{ConfigPath: configPath, Plain: true, Retries: 5}
	settings, err := Load(flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.OutputMode != "plain" {
		t.Fatalf("expected flag to win, got output=%s", settings.OutputMode)
	}
	if settings.Retries != 5 {
		t.Fatalf("expected retries from flags, got %d", settings.Retries)
	}
	if settings.Timeout != 7*time.Second {
		t.Fatalf("expected env timeout to override file, got %s", settings.Timeout)
	}
}

func TestLoadMutuallyExclusiveOutputFlags(t *testing.T) {
	_, err := Load(GlobalFlags{JSON: true, Plain: true, Retries: -1})
	if err == nil {
		t.Fatal("expected error with --json and --plain")
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml"), Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.CacheTTL != 60*time.Second {
		t.Fatalf("expected 60s cache ttl, got %s", settings.CacheTTL)
	}
	if settings.CacheBackend != CacheBackendSQLite || !settings.CacheEnabled {
		t.Fatalf("unexpected cache defaults %+v", settings)
	}
	if settings.Retries != 2 {
		t.Fatalf("expected default retries, got %d", settings.Retries)
	}
	if filepath.Base(settings.PlanStorePath) != "plans.db" {
		t.Fatalf("unexpected plan store path %s", settings.PlanStorePath)
	}
}

func TestPluginSettingsFileThenEnv(t *testing.T) {
	tmp := t.TempDir()
	configPath := filepath.Join(tmp, "config.yaml")
	body := "settings:\n  ankr_wallet: file-key\n"
	if err := os.WriteFile(configPath, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ANKR_WALLET", "env-key")
	t.Setenv("HYPERBOLIC_API_KEY", "hb-key")

	settings, err := Load(GlobalFlags{ConfigPath: configPath, Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := settings.Setting("ANKR_WALLET"); got != "file-key" {
		t.Fatalf("expected file value to win, got %q", got)
	}
	if got := settings.Setting("hyperbolic_api_key"); got != "hb-key" {
		t.Fatalf("expected env fallback, got %q", got)
	}
	if got := settings.Setting("FORM_PRIVATE_KEY"); got != "" {
		t.Fatalf("expected empty setting, got %q", got)
	}
}

func TestLoadRedisBackendRequiresURL(t *testing.T) {
	t.Setenv("AGENTKIT_CACHE_BACKEND", "redis")
	_, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "none.yaml"), Retries: -1})
	if err == nil {
		t.Fatal("expected error without redis url")
	}

	t.Setenv("AGENTKIT_REDIS_URL", "redis://localhost:6379/0")
	settings, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "none.yaml"), Retries: -1})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if settings.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected redis url %q", settings.RedisURL)
	}
}

func TestLoadRejectsBadEnvValue(t *testing.T) {
	t.Setenv("AGENTKIT_RETRIES", "many")
	if _, err := Load(GlobalFlags{ConfigPath: filepath.Join(t.TempDir(), "none.yaml"), Retries: -1}); err == nil {
		t.Fatal("expected envconfig parse error")
	}
}

func TestFingerprintTracksPrefixedSettings(t *testing.T) {
	t.Setenv("FORM_TESTNET", "false")
	settings := Settings{Plugin: map[string]string{"FORM_RPC_URL": "http://form.test"}}
	if got := settings.Fingerprint(); got != "" {
		t.Fatalf("expected empty fingerprint without prefixes, got %q", got)
	}
	mainnet := settings.Fingerprint("FORM_")
	if mainnet == "" || mainnet != settings.Fingerprint("form_") {
		t.Fatalf("expected stable case-insensitive fingerprint, got %q", mainnet)
	}

	t.Setenv("UNRELATED_SETTING", "x")
	if got := settings.Fingerprint("FORM_"); got != mainnet {
		t.Fatalf("unrelated setting changed fingerprint: %q != %q", got, mainnet)
	}

	t.Setenv("FORM_TESTNET", "true")
	if got := settings.Fingerprint("FORM_"); got == mainnet {
		t.Fatal("expected env change to change fingerprint")
	}

	settings.Plugin["FORM_TESTNET"] = "false"
	if got := settings.Fingerprint("FORM_"); got != mainnet {
		t.Fatalf("expected file value to win over env, got %q want %q", got, mainnet)
	}
}
