package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/convo/internal/config"
)

func TestDir(t *testing.T) {
	t.Setenv("CONVO_HOME", "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".convo", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestBaseDirOverride(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("CONVO_HOME", tmp)
	if got := Dir("work"); got != filepath.Join(tmp, "profiles", "work") {
		t.Errorf("Dir(work) = %q, want under %q", got, tmp)
	}
	if got := ConfigPath(); got != filepath.Join(tmp, "config.toml") {
		t.Errorf("ConfigPath() = %q", got)
	}
}

func TestSocketPath(t *testing.T) {
	got := SocketPath("test")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "convod.sock")) {
		t.Errorf("SocketPath(test) = %q, want suffix profiles/test/convod.sock", got)
	}
}

func TestLogPath(t *testing.T) {
	got := LogPath("test", "convotui")
	if !strings.HasSuffix(got, filepath.Join("profiles", "test", "logs", "convotui.log")) {
		t.Errorf("LogPath = %q", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("CONVO_HOME", t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatal(err)
	}
	for _, dir := range []string{Dir("test"), LogDir("test")} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("%s not created: %v", dir, err)
		}
		if !info.IsDir() || info.Mode().Perm() != 0700 {
			t.Errorf("%s: mode %v, want 0700 dir", dir, info.Mode())
		}
	}
}

func TestResolve(t *testing.T) {
	cfg := &config.Config{DefaultProfile: "work"}
	if got := Resolve("flag", cfg); got != "flag" {
		t.Errorf("flag override = %q", got)
	}
	if got := Resolve("", cfg); got != "work" {
		t.Errorf("config default = %q", got)
	}
	if got := Resolve("", nil); got != DefaultName {
		t.Errorf("fallback = %q", got)
	}
}
