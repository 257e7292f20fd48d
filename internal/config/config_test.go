package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.DefaultProfile = "work"
	cfg.UserID = "alice"
	cfg.TypingTimeout = Duration{7 * time.Second}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.UserID != "alice" {
		t.Errorf("UserID = %q, want alice", loaded.UserID)
	}
	if loaded.TypingTimeout.Duration != 7*time.Second {
		t.Errorf("TypingTimeout = %s, want 7s", loaded.TypingTimeout)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoadKeepsDefaultsForOmittedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("user_id = \"bob\"\nrefresh_interval = \"30s\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RefreshInterval.Duration != 30*time.Second {
		t.Errorf("RefreshInterval = %s, want 30s", cfg.RefreshInterval)
	}
	if cfg.PageSize != 10 || cfg.TypingTimeout.Duration != 10*time.Second || cfg.EditWindow.Duration != 15*time.Minute {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("typing_timeout = \"soon\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for unparseable duration")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CONVO_BACKEND":        "redis",
		"CONVO_USER_ID":        "carol",
		"CONVO_PAGE_SIZE":      "25",
		"CONVO_TYPING_TIMEOUT": "3s",
	}
	cfg := Default()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if cfg.Backend != BackendRedis || cfg.UserID != "carol" || cfg.PageSize != 25 || cfg.TypingTimeout.Duration != 3*time.Second {
		t.Errorf("env not applied: %+v", cfg)
	}

	env["CONVO_PAGE_SIZE"] = "many"
	if err := Default().ApplyEnv(func(k string) string { return env[k] }); err == nil {
		t.Error("expected error for non-numeric page size")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"daemon backend", func(c *Config) { c.Backend = BackendDaemon }, false},
		{"unknown backend", func(c *Config) { c.Backend = "postgres" }, true},
		{"zero page size", func(c *Config) { c.PageSize = 0 }, true},
		{"negative retries", func(c *Config) { c.AutoRetry = -1 }, true},
		{"zero typing timeout", func(c *Config) { c.TypingTimeout = Duration{} }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolveWithoutFile(t *testing.T) {
	t.Setenv("CONVO_USERNAME", "Dana")
	cfg, err := Resolve(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Username != "Dana" || cfg.Backend != BackendSQL {
		t.Errorf("resolved = %+v", cfg)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
