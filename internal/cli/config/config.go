package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultServer is used when neither the file nor a flag names a server.
const DefaultServer = "http://127.0.0.1:8080"

// CLIConfig is the persisted CLI state.
type CLIConfig struct {
	Server string `yaml:"server"`
	Output string `yaml:"output,omitempty"`
	CAFile string `yaml:"ca_file,omitempty"`

	// Session of the last successful login.
	Email        string `yaml:"email,omitempty"`
	AccessToken  string `yaml:"access_token,omitempty"`
	RefreshToken string `yaml:"refresh_token,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{Server: DefaultServer, Output: "table"}
}

// ClearSession forgets the stored tokens.
func (c *CLIConfig) ClearSession() {
	c.Email = ""
	c.AccessToken = ""
	c.RefreshToken = ""
}

// DefaultPath returns ~/.gatekeeper/cli.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".gatekeeper", "cli.yaml")
	}
	return filepath.Join(home, ".gatekeeper", "cli.yaml")
}

// Load reads path, returning defaults when the file does not exist.
func Load(path string) (*CLIConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	return cfg, nil
}

// Save writes cfg to path with owner-only permissions. The file is
// replaced atomically so a crash never leaves half-written tokens.
func Save(cfg *CLIConfig, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cli-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cli config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
