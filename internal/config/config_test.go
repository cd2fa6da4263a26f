package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != "8000" {
		t.Errorf("Default port = %s, want 8000", cfg.Server.Port)
	}
	if cfg.Store.Path != "fragments.db" {
		t.Errorf("Default store path = %s, want fragments.db", cfg.Store.Path)
	}
	if cfg.Executor.AllowUnsafe {
		t.Error("AllowUnsafe must default to off")
	}
	if cfg.Executor.Timeout() != 5*time.Second {
		t.Errorf("Default executor timeout = %v, want 5s", cfg.Executor.Timeout())
	}
	if !cfg.RateLimit.Enabled {
		t.Error("Rate limiting should be enabled by default")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	envVars := map[string]string{
		"PORT":            "9100",
		"STORE_PATH":      "/tmp/frag-test.db",
		"EXEC_TIMEOUT_MS": "250",
		"LOG_LEVEL":       "debug",
		"LOG_DEV":         "true",
	}
	for k, v := range envVars {
		os.Setenv(k, v)
	}
	defer func() {
		for k := range envVars {
			os.Unsetenv(k)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != "9100" {
		t.Errorf("Port = %s, want 9100", cfg.Server.Port)
	}
	if cfg.Store.Path != "/tmp/frag-test.db" {
		t.Errorf("Store path = %s, want /tmp/frag-test.db", cfg.Store.Path)
	}
	if cfg.Executor.Timeout() != 250*time.Millisecond {
		t.Errorf("Executor timeout = %v, want 250ms", cfg.Executor.Timeout())
	}
	if !cfg.Logging.Development {
		t.Error("LOG_DEV=true should enable development logging")
	}
}

func TestLoadDenyExtra(t *testing.T) {
	os.Setenv("EXEC_DENY_EXTRA", "os_exec,net_dial")
	defer os.Unsetenv("EXEC_DENY_EXTRA")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Executor.DenyExtra) != 2 {
		t.Fatalf("DenyExtra = %v, want 2 entries", cfg.Executor.DenyExtra)
	}
	if cfg.Executor.DenyExtra[0] != "os_exec" || cfg.Executor.DenyExtra[1] != "net_dial" {
		t.Errorf("DenyExtra = %v", cfg.Executor.DenyExtra)
	}
}

func TestLoadOrDefaultFallsBack(t *testing.T) {
	os.Setenv("EXEC_TIMEOUT_MS", "not-a-number")
	defer os.Unsetenv("EXEC_TIMEOUT_MS")

	cfg := LoadOrDefault()
	if cfg.Executor.TimeoutMS != 5000 {
		t.Errorf("LoadOrDefault should fall back to defaults, got timeout %d", cfg.Executor.TimeoutMS)
	}
}
