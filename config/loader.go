package config

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file.
	ProjectConfigFile = "hotreload.yaml"
	// UserConfigDir is the directory for user-level config.
	UserConfigDir = ".config/hotreload"
	// UserConfigFile is the name of the user-level config file.
	UserConfigFile = "config.yaml"
)

// configLayer names one optional config source merged on top of the
// defaults. Layers are tried in order; later layers win on any field they
// set.
type configLayer struct {
	label string
	path  string
}

// Loader resolves the final Config by layering the defaults with whatever
// user- and project-level files exist, then filling in the project root.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load resolves the layered config: defaults, then the user config
// (~/.config/hotreload/config.yaml), then the nearest hotreload.yaml found
// walking up from the working directory. Project.Path is auto-detected from
// git (falling back to the working directory) when no layer set it.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, layer := range l.layers() {
		l.applyLayer(cfg, layer)
	}

	if cfg.Project.Path == "" {
		cfg.Project.Path = l.resolveProjectPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// layers enumerates the optional config sources in merge order. A layer
// with an empty path is skipped by applyLayer.
func (l *Loader) layers() []configLayer {
	cwd, _ := os.Getwd()
	return []configLayer{
		{label: "user", path: l.userConfigPath()},
		{label: "project", path: findUpward(cwd, ProjectConfigFile)},
	}
}

// applyLayer loads and merges a single layer into cfg, logging at Debug on
// success and Warn on any failure other than the file simply not existing.
func (l *Loader) applyLayer(cfg *Config, layer configLayer) {
	if layer.path == "" {
		l.logger.Debug("config layer not found", "layer", layer.label)
		return
	}

	loaded, err := LoadFromFile(layer.path)
	switch {
	case err == nil:
		cfg.Merge(loaded)
		l.logger.Debug("merged config layer", "layer", layer.label, "path", layer.path)
	case errors.Is(err, os.ErrNotExist):
		l.logger.Debug("config layer not found", "layer", layer.label, "path", layer.path)
	default:
		l.logger.Warn("failed to load config layer", "layer", layer.label, "path", layer.path, "error", err)
	}
}

// resolveProjectPath picks a project root when no layer set one: the
// enclosing git repository's top level, or the working directory otherwise.
func (l *Loader) resolveProjectPath() string {
	if root := gitTopLevel(); root != "" {
		l.logger.Debug("auto-detected git root as project path", "path", root)
		return root
	}
	if cwd, err := os.Getwd(); err == nil {
		l.logger.Debug("using working directory as project path", "path", cwd)
		return cwd
	}
	return ""
}

// EnsureUserConfig writes the user config file populated with defaults if
// it does not already exist.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return errors.New("config: could not resolve user home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("wrote default user config", "path", path)
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findUpward walks from dir toward the filesystem root looking for a file
// named name, returning the first match or "" if none exists.
func findUpward(dir, name string) string {
	if dir == "" {
		return ""
	}
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	parent := filepath.Dir(dir)
	if parent == dir {
		return ""
	}
	return findUpward(parent, name)
}

// gitTopLevel returns the enclosing git repository's top-level directory,
// or "" when the working directory is not inside one (or git is missing).
func gitTopLevel() string {
	out, err := exec.Command("git", "rev-parse", "--show-toplevel").Output()
	if err != nil {
		return ""
	}
	return string(bytes.TrimSpace(out))
}
