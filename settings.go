package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings represents the application configuration file.
type Settings struct {
	// Databases maps an alias to a saved connection.
	Databases map[string]DatabaseAlias `yaml:"databases,omitempty"`
	// Charset is the default encoding of byte-string cells.
	Charset string `yaml:"charset,omitempty"`
	// SentryDSN enables error reporting when set.
	SentryDSN string `yaml:"sentry_dsn,omitempty"`
}

type DatabaseAlias struct {
	Type     string `yaml:"type,omitempty"`
	Database string `yaml:"database"`
	Host     string `yaml:"host,omitempty"`
	Port     string `yaml:"port,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Charset  string `yaml:"charset,omitempty"`
}

// getConfigDir returns $XDG_CONFIG_HOME/mdbed, or ~/.config/mdbed.
func getConfigDir() (string, error) {
	if xdgHome := os.Getenv("XDG_CONFIG_HOME"); xdgHome != "" {
		return filepath.Join(xdgHome, "mdbed"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "mdbed"), nil
}

func getSettingsPath() (string, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.yaml"), nil
}

// LoadSettings reads config.yaml. A missing file yields empty settings.
func LoadSettings() (*Settings, error) {
	settingsPath, err := getSettingsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(settingsPath)
	if errors.Is(err, os.ErrNotExist) {
		return &Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read settings file: %w", err)
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("could not parse settings file %s: %w", settingsPath, err)
	}
	return &settings, nil
}

// SaveSettings writes the settings to config.yaml
func SaveSettings(settings *Settings) error {
	settingsPath, err := getSettingsPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(settingsPath), 0o755); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}
	// may hold passwords
	if err := os.WriteFile(settingsPath, data, 0o600); err != nil {
		return fmt.Errorf("could not write settings file: %w", err)
	}
	return nil
}

// Resolve fills cfg for the command-line database argument. A known alias
// supplies every field the flags left empty; anything else is taken as a
// file path or database name.
func (s *Settings) Resolve(arg string, cfg *Config) error {
	if arg == "" {
		return errors.New("must specify a database file or alias")
	}
	alias, ok := s.Databases[arg]
	if !ok {
		cfg.Database = arg
		if cfg.Charset == "" {
			cfg.Charset = s.Charset
		}
		return nil
	}
	if alias.Database == "" {
		return fmt.Errorf("alias %q has no database", arg)
	}
	cfg.Database = os.ExpandEnv(alias.Database)
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&cfg.Type, alias.Type)
	fill(&cfg.Host, alias.Host)
	fill(&cfg.Port, alias.Port)
	fill(&cfg.Username, alias.Username)
	fill(&cfg.Password, alias.Password)
	fill(&cfg.Charset, alias.Charset)
	fill(&cfg.Charset, s.Charset)
	return nil
}
