package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const sampleConfig = `
default = "work"

[hosts.work]
url = "https://jira.example.com"
user = "dana"
token = "file-token"

[[hosts.work.patterns]]
jql = "project = PROJ AND assignee = currentUser()"
max = 500

[[hosts.work.patterns]]
jql = "project = OPS"

[hosts.staging]
url = "https://jira-staging.example.com"
user = "dana"
token = "other-token"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return dir
}

func TestLoadAndSelectDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	host, name, err := cfg.SelectHost("")
	if err != nil {
		t.Fatalf("SelectHost failed: %v", err)
	}
	if name != "work" {
		t.Errorf("selected %q, want default host work", name)
	}
	if host.URL != "https://jira.example.com" || host.Token != "file-token" {
		t.Errorf("unexpected host: %+v", host)
	}
	if len(host.Patterns) != 2 || host.Patterns[0].Max != 500 {
		t.Errorf("patterns not parsed: %+v", host.Patterns)
	}
}

func TestSelectHostExplicit(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	_, name, err := cfg.SelectHost("staging")
	if err != nil {
		t.Fatalf("SelectHost failed: %v", err)
	}
	if name != "staging" {
		t.Errorf("selected %q, want staging", name)
	}

	if _, _, err := cfg.SelectHost("nope"); err == nil {
		t.Error("unknown host should fail")
	}
}

func TestSelectHostEnvOverrides(t *testing.T) {
	t.Setenv("TETHER_HOST", "staging")
	t.Setenv("TETHER_TOKEN", "env-token")

	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	host, name, err := cfg.SelectHost("")
	if err != nil {
		t.Fatalf("SelectHost failed: %v", err)
	}
	if name != "staging" {
		t.Errorf("TETHER_HOST ignored, selected %q", name)
	}
	if host.Token != "env-token" {
		t.Errorf("TETHER_TOKEN ignored, token = %q", host.Token)
	}
}

func TestSelectSingleHostWithoutDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[hosts.only]
url = "https://jira.example.com"
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	_, name, err := cfg.SelectHost("")
	if err != nil {
		t.Fatalf("SelectHost failed: %v", err)
	}
	if name != "only" {
		t.Errorf("single configured host not auto-selected, got %q", name)
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Hosts) != 0 {
		t.Errorf("expected empty config, got %+v", cfg)
	}
}

func TestFindWorkspace(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, WorkspaceDirName)
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(ws, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := FindWorkspace(nested)
	if err != nil {
		t.Fatalf("FindWorkspace failed: %v", err)
	}
	if got != ws {
		t.Errorf("found %q, want %q", got, ws)
	}

	if _, err := FindWorkspace(t.TempDir()); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("expected ErrNoWorkspace, got %v", err)
	}
}

func TestFindWorkspaceEnvOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv("TETHER_DIR", override)

	got, err := FindWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("FindWorkspace failed: %v", err)
	}
	if got != override {
		t.Errorf("TETHER_DIR ignored: got %q", got)
	}
}
