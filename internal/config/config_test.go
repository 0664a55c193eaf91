package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Backend.BaseURL != DefaultBaseURL || cfg.Backend.Timeout != 10*time.Second {
		t.Fatalf("unexpected backend defaults %+v", cfg.Backend)
	}
	if !cfg.JournalEnabled() {
		t.Fatalf("journal should default on")
	}
	if cfg.Display.Unassigned != "unassigned" {
		t.Fatalf("placeholder=%q", cfg.Display.Unassigned)
	}
}

func TestFromYAMLFillsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("session:\n  user_id: 7\njournal:\n  enabled: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.UserID != 7 {
		t.Fatalf("user_id=%d", cfg.Session.UserID)
	}
	if cfg.JournalEnabled() {
		t.Fatalf("journal should be disabled")
	}
	if cfg.Server.BasePath != DefaultBasePath || cfg.Backend.Timeout != DefaultTimeout {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"relative url":   "backend:\n  base_url: localhost:8000\n",
		"ftp url":        "backend:\n  base_url: ftp://host/api\n",
		"negative user":  "session:\n  user_id: -1\n",
		"bad base path":  "server:\n  base_path: console\n",
		"bad yaml":       "backend: [",
		"negative delay": "backend:\n  timeout: -1s\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromYAML([]byte(doc)); err == nil {
				t.Fatalf("expected error for %q", doc)
			}
		})
	}
}

func TestLoadOptionalAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("expected defaults, got %v %v", cfg, err)
	}
	if _, err := Load(dir); err == nil || !strings.Contains(err.Error(), "numa config init") {
		t.Fatalf("expected not found hint, got %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "numa.yml"), []byte(GenerateDefault(3)), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.UserID != 3 {
		t.Fatalf("user_id=%d", cfg.Session.UserID)
	}
}
