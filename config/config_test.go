package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed for missing file: %v", err)
	}

	if cfg.AppName != "Spendex" || cfg.ListenPort != 8080 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.AdminUsername != "admin" || cfg.AdminPassword != "admin123" {
		t.Errorf("unexpected admin defaults: %+v", cfg)
	}
	// A random session key is generated when none is configured
	if cfg.SessionKey == "" || cfg.SessionKey == "CHANGE_ME_IN_PRODUCTION" {
		t.Errorf("session key was not generated: %q", cfg.SessionKey)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"app_name": "Test App",
		"listen_port": 9090,
		"session_key": "file-session-key",
		"db_path": "/tmp/test.db",
		"captcha": true
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.AppName != "Test App" || cfg.ListenPort != 9090 || !cfg.Captcha {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.SessionKey != "file-session-key" {
		t.Errorf("configured session key replaced: %q", cfg.SessionKey)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SPENDEX_SESSION_KEY", "env-session-key")
	t.Setenv("ADMIN_USERNAME", "root")
	t.Setenv("ADMIN_PASSWORD", "s3cret")
	t.Setenv("SPENDEX_PORT", "7070")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionKey != "env-session-key" {
		t.Errorf("SPENDEX_SESSION_KEY not applied: %q", cfg.SessionKey)
	}
	if cfg.AdminUsername != "root" || cfg.AdminPassword != "s3cret" {
		t.Errorf("admin env overrides not applied: %+v", cfg)
	}
	if cfg.ListenPort != 7070 {
		t.Errorf("SPENDEX_PORT not applied: %d", cfg.ListenPort)
	}
}
