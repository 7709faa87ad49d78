// Package config loads workspace configuration: the hosts.toml file inside
// the .tether directory, overlaid with TETHER_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// WorkspaceDirName is the directory marking a tether workspace root.
const WorkspaceDirName = ".tether"

// ConfigFileName is the host configuration file inside the workspace.
const ConfigFileName = "hosts.toml"

// ErrNoWorkspace is returned when no .tether directory is found in the
// current directory or any parent.
var ErrNoWorkspace = errors.New(".tether directory not found")

// Pattern is one configured pull query.
type Pattern struct {
	JQL string `toml:"jql"`
	Max int    `toml:"max"`
}

// Host is one configured remote tracker.
type Host struct {
	URL      string    `toml:"url"`
	User     string    `toml:"user"`
	Token    string    `toml:"token"`
	Patterns []Pattern `toml:"patterns"`
}

// Config is the parsed hosts.toml.
type Config struct {
	// Default names the host used when none is given on the command line.
	Default string          `toml:"default"`
	Hosts   map[string]Host `toml:"hosts"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("TETHER")
	v.AutomaticEnv()
	return v
}

// FindWorkspace walks up from start looking for a .tether directory and
// returns its path. TETHER_DIR overrides the search entirely.
func FindWorkspace(start string) (string, error) {
	if dir := newViper().GetString("dir"); dir != "" {
		return dir, nil
	}

	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, WorkspaceDirName)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrNoWorkspace
		}
		dir = parent
	}
}

// Load parses hosts.toml from the workspace directory. A missing file
// yields an empty config rather than an error, so read-only commands work
// before any host is configured.
func Load(workspaceDir string) (*Config, error) {
	cfg := &Config{Hosts: make(map[string]Host)}
	path := filepath.Join(workspaceDir, ConfigFileName)
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cfg.Hosts == nil {
		cfg.Hosts = make(map[string]Host)
	}
	return cfg, nil
}

// Names returns the configured host names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Hosts))
	for name := range c.Hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SelectHost resolves which host a command targets: the explicit name if
// given, else TETHER_HOST, else the configured default, else the single
// configured host. Credentials from TETHER_USER and TETHER_TOKEN override
// the file so tokens can stay out of it.
func (c *Config) SelectHost(name string) (Host, string, error) {
	v := newViper()
	if name == "" {
		name = v.GetString("host")
	}
	if name == "" {
		name = c.Default
	}
	if name == "" && len(c.Hosts) == 1 {
		for only := range c.Hosts {
			name = only
		}
	}
	if name == "" {
		return Host{}, "", fmt.Errorf("no host selected and no default configured (have: %s)",
			strings.Join(c.Names(), ", "))
	}

	host, ok := c.Hosts[name]
	if !ok {
		return Host{}, "", fmt.Errorf("unknown host %q (have: %s)", name, strings.Join(c.Names(), ", "))
	}
	if host.URL == "" {
		return Host{}, "", fmt.Errorf("host %q has no url configured", name)
	}
	if user := v.GetString("user"); user != "" {
		host.User = user
	}
	if token := v.GetString("token"); token != "" {
		host.Token = token
	}
	return host, name, nil
}
