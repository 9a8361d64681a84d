package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFindUpwardLocatesFileInAncestor(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}
	marker := filepath.Join(root, "a", ProjectConfigFile)
	if err := os.WriteFile(marker, []byte("project: {}"), 0644); err != nil {
		t.Fatalf("failed to write marker file: %v", err)
	}

	got := findUpward(nested, ProjectConfigFile)
	if got != marker {
		t.Errorf("findUpward() = %q, want %q", got, marker)
	}
}

func TestFindUpwardReturnsEmptyWithoutMatch(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "x", "y")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dir: %v", err)
	}

	got := findUpward(nested, "does-not-exist.yaml")
	if got != "" {
		t.Errorf("findUpward() = %q, want empty", got)
	}
}

func TestLoaderLoadMergesUserThenProjectLayers(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	userDir := filepath.Join(home, UserConfigDir)
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatalf("failed to create user config dir: %v", err)
	}
	userConfig := "pipe:\n  name: user-pipe\n  connect_timeout: 9s\n"
	if err := os.WriteFile(filepath.Join(userDir, UserConfigFile), []byte(userConfig), 0644); err != nil {
		t.Fatalf("failed to write user config: %v", err)
	}

	projectDir := t.TempDir()
	projectConfig := "pipe:\n  name: project-pipe\nproject:\n  path: " + projectDir + "\n"
	if err := os.WriteFile(filepath.Join(projectDir, ProjectConfigFile), []byte(projectConfig), 0644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}
	t.Chdir(projectDir)

	cfg, err := NewLoader(nil).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Pipe.Name != "project-pipe" {
		t.Errorf("expected project layer to win on pipe.name, got %s", cfg.Pipe.Name)
	}
	if cfg.Pipe.ConnectTimeout.String() != "9s" {
		t.Errorf("expected user layer's connect_timeout to survive, got %v", cfg.Pipe.ConnectTimeout)
	}
	if cfg.Project.Path != projectDir {
		t.Errorf("expected project.path %s, got %s", projectDir, cfg.Project.Path)
	}
}

func TestLoaderEnsureUserConfigWritesDefaultsOnce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	l := NewLoader(nil)
	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("EnsureUserConfig() error = %v", err)
	}

	path := filepath.Join(home, UserConfigDir, UserConfigFile)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected user config at %s: %v", path, err)
	}

	if err := os.WriteFile(path, []byte("pipe:\n  name: untouched\n"), 0644); err != nil {
		t.Fatalf("failed to overwrite user config: %v", err)
	}
	if err := l.EnsureUserConfig(); err != nil {
		t.Fatalf("second EnsureUserConfig() error = %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}
	if cfg.Pipe.Name != "untouched" {
		t.Error("EnsureUserConfig must not overwrite an existing user config")
	}
}
