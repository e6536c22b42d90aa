package gamectl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CurrentContext != "" || len(cfg.Contexts) != 0 {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := &Config{}
	setContext(cfg, Context{Name: "prod", Server: "https://console.example.com", Token: "secret"}, false)
	setContext(cfg, Context{Name: "dev", Server: "http://localhost:8080"}, false)
	if cfg.CurrentContext != "prod" {
		t.Fatalf("first context should become current, got %q", cfg.CurrentContext)
	}
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected private config file, got %v", perm)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigRejectsGarbage(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("contexts: [unterminated"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestSetContextKeepsStoredToken(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	setContext(cfg, Context{Name: "prod", Server: "https://a", Token: "tok", StatePath: "/var/state.db"}, true)
	setContext(cfg, Context{Name: "prod", Server: "https://b"}, true)

	want := Context{Name: "prod", Server: "https://b", Token: "tok", StatePath: "/var/state.db"}
	if diff := cmp.Diff(want, cfg.Contexts["prod"]); diff != "" {
		t.Fatalf("unexpected context (-want +got):\n%s", diff)
	}
	if err := ensureContextExists(cfg, "staging"); err == nil {
		t.Fatalf("expected missing context error")
	}
}

func TestDefaultStatePath(t *testing.T) {
	t.Parallel()

	got := defaultStatePath("/home/u/.config/gamectl/config.yaml", "")
	if want := filepath.Join("/home/u/.config/gamectl", "state", "default.db"); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}
