// Package config provides configuration loading and management for the
// hot-reload delta pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete hot-reload pipeline configuration.
type Config struct {
	Pipe     PipeConfig     `yaml:"pipe"`
	Project  ProjectConfig  `yaml:"project"`
	Compiler CompilerConfig `yaml:"compiler"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	NATS     NATSConfig     `yaml:"nats"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// PipeConfig configures the named local pipe used to reach the in-process agent.
type PipeConfig struct {
	// Name is the well-known pipe/socket name, without any platform prefix.
	Name string `yaml:"name"`
	// ConnectTimeout bounds how long the agent waits to dial the tool on startup.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// AckTimeout bounds how long the applier waits for a single ack byte.
	AckTimeout time.Duration `yaml:"ack_timeout"`
}

// ProjectConfig configures the watched project/solution.
type ProjectConfig struct {
	// Path is the project root path (auto-detected from git if empty).
	Path string `yaml:"path"`
	// SourceExtensions lists file extensions the edit-session driver will process.
	SourceExtensions []string `yaml:"source_extensions"`
	// AdditionalExtensions lists file extensions opened as AdditionalDocuments:
	// content the compiler backend should see on an edit-session refresh but
	// that never itself carries a module's syntax tree (e.g. .json, .config).
	AdditionalExtensions []string `yaml:"additional_extensions"`
	// DebounceDelay is retained for embedders that pair this pipeline with a
	// watcher; the pipeline itself does not debounce, the watcher does.
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// CompilerConfig selects and configures the edit-continuation compiler
// backend. When Command is empty the daemon runs against the in-memory
// fake compiler, a dry-run mode useful for exercising the watch/apply loop
// without a real managed-runtime toolchain installed.
type CompilerConfig struct {
	// Command is the external compiler host binary invoked once per
	// edit-session operation. Empty selects the in-memory fake.
	Command string `yaml:"command"`
	// Args are passed to Command on every invocation.
	Args []string `yaml:"args"`
	// Timeout bounds a single OpenSession/EmitUpdate/EndSession invocation.
	Timeout time.Duration `yaml:"timeout"`
}

// RefreshConfig configures the browser-refresh variant.
type RefreshConfig struct {
	// Enabled turns on the WebSocket refresh hub.
	Enabled bool `yaml:"enabled"`
	// ListenAddr is the address the refresh hub's HTTP upgrade endpoint binds to.
	ListenAddr string `yaml:"listen_addr"`
}

// NATSConfig configures the optional lifecycle/diagnostics event bus.
type NATSConfig struct {
	// URL is the NATS server URL. Empty disables the event bus entirely.
	URL string `yaml:"url"`
	// SubjectPrefix is loaded and merged (default "hotreload") but not read by
	// the event bus, which always publishes under eventbus.SubjectPrefix.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled registers the pipeline's collectors on a registry owned by the daemon.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Pipe: PipeConfig{
			Name:           "netcore-hot-reload",
			ConnectTimeout: 5 * time.Second,
			AckTimeout:     2 * time.Second,
		},
		Project: ProjectConfig{
			Path:                 "", // Auto-detect
			SourceExtensions:     []string{".cs", ".razor"},
			AdditionalExtensions: nil,
			DebounceDelay:        100 * time.Millisecond,
		},
		Compiler: CompilerConfig{
			Timeout: 10 * time.Second,
		},
		Refresh: RefreshConfig{
			Enabled:    false,
			ListenAddr: "127.0.0.1:0",
		},
		NATS: NATSConfig{
			URL:           "",
			SubjectPrefix: "hotreload",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Pipe.Name == "" {
		return fmt.Errorf("pipe.name is required")
	}
	if c.Pipe.ConnectTimeout <= 0 {
		return fmt.Errorf("pipe.connect_timeout must be positive")
	}
	if c.Pipe.AckTimeout <= 0 {
		return fmt.Errorf("pipe.ack_timeout must be positive")
	}
	if len(c.Project.SourceExtensions) == 0 {
		return fmt.Errorf("project.source_extensions must not be empty")
	}
	if c.Compiler.Timeout <= 0 {
		return fmt.Errorf("compiler.timeout must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values).
// Metrics.Enabled is the exception: a false value in other disables metrics.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Pipe.Name != "" {
		c.Pipe.Name = other.Pipe.Name
	}
	if other.Pipe.ConnectTimeout != 0 {
		c.Pipe.ConnectTimeout = other.Pipe.ConnectTimeout
	}
	if other.Pipe.AckTimeout != 0 {
		c.Pipe.AckTimeout = other.Pipe.AckTimeout
	}

	if other.Project.Path != "" {
		c.Project.Path = other.Project.Path
	}
	if len(other.Project.SourceExtensions) > 0 {
		c.Project.SourceExtensions = other.Project.SourceExtensions
	}
	if len(other.Project.AdditionalExtensions) > 0 {
		c.Project.AdditionalExtensions = other.Project.AdditionalExtensions
	}
	if other.Project.DebounceDelay != 0 {
		c.Project.DebounceDelay = other.Project.DebounceDelay
	}

	if other.Compiler.Command != "" {
		c.Compiler.Command = other.Compiler.Command
	}
	if len(other.Compiler.Args) > 0 {
		c.Compiler.Args = other.Compiler.Args
	}
	if other.Compiler.Timeout != 0 {
		c.Compiler.Timeout = other.Compiler.Timeout
	}

	if other.Refresh.Enabled {
		c.Refresh.Enabled = true
	}
	if other.Refresh.ListenAddr != "" {
		c.Refresh.ListenAddr = other.Refresh.ListenAddr
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}

	if !other.Metrics.Enabled {
		c.Metrics.Enabled = false
	}
}
