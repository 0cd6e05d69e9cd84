package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/pelletier/go-toml/v2"
)

// FileName is the name of the config file searched for.
const FileName = "provision.toml"

const defaultEnvironmentName = "local"

// EnvironmentConfig describes a single named environment from provision.toml.
type EnvironmentConfig struct {
	Description string `toml:"description,omitempty"`
	// URLVar names the dotenv variable holding the connection URL.
	URLVar string `toml:"url_var,omitempty"`
	// DatabaseURL is used when no dotenv variable provides one.
	DatabaseURL string `toml:"database_url,omitempty"`
}

// ScriptConfig describes a named SQL script.
type ScriptConfig struct {
	// File is relative to the config directory.
	File        string   `toml:"file"`
	Environment string   `toml:"environment,omitempty"`
	Verify      []string `toml:"verify,omitempty"`
}

type Config struct {
	DefaultEnvironment string                       `toml:"default_environment,omitempty"`
	Environments       map[string]EnvironmentConfig `toml:"environments,omitempty"`
	Scripts            map[string]ScriptConfig      `toml:"scripts,omitempty"`
	ConfigFilePath     string                       `toml:"-"`
}

// LoadConfig searches the working directory and its parents for
// provision.toml, stopping at the project root. A missing file yields an
// empty config.
func LoadConfig() (*Config, error) {
	startDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(startDir)
}

// LoadConfigFrom is LoadConfig starting at dir.
func LoadConfigFrom(startDir string) (*Config, error) {
	dir := startDir
	for {
		configPath := filepath.Join(dir, FileName)
		if _, err := os.Stat(configPath); err == nil {
			return LoadFile(configPath)
		}

		// Check if we've reached a project boundary
		if isProjectRoot(dir) {
			break
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return &Config{}, nil
}

// LoadFile reads, validates and decodes one config file.
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	if err := Validate(data); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", configPath, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", configPath, err)
	}

	abs, err := filepath.Abs(configPath)
	if err != nil {
		abs = configPath
	}
	config.ConfigFilePath = abs
	return &config, nil
}

// ConfigDir is the directory holding the config file, or the working
// directory when there is none.
func (c *Config) ConfigDir() string {
	if c != nil && c.ConfigFilePath != "" {
		return filepath.Dir(c.ConfigFilePath)
	}
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}
	return "."
}

// Script looks up a named script.
func (c *Config) Script(name string) (ScriptConfig, error) {
	if c != nil {
		if s, ok := c.Scripts[name]; ok {
			return s, nil
		}
	}
	return ScriptConfig{}, fmt.Errorf("script %q not defined in %s (available: %v)", name, FileName, c.ScriptNames())
}

// ScriptNames returns the configured script names in sorted order.
func (c *Config) ScriptNames() []string {
	if c == nil {
		return nil
	}
	names := make([]string, 0, len(c.Scripts))
	for name := range c.Scripts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScriptPath resolves a script file against the config directory.
func (c *Config) ScriptPath(s ScriptConfig) string {
	if filepath.IsAbs(s.File) {
		return s.File
	}
	return filepath.Join(c.ConfigDir(), s.File)
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "package.json")); err == nil {
		return true
	}
	return false
}
