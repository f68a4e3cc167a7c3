// Package config loads appframe settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds the settings shared by the CLI and the library wiring.
type Config struct {
	AppID    string
	BaseURL  string
	Timeout  time.Duration
	DataDir  string
	LogLevel string
	Storage  string
}

const (
	defaultConfigPath = "~/.config/appframe/config.toml"
	defaultAppID      = "com.example.appframe"
	defaultBaseURL    = "http://127.0.0.1:8080"
	defaultTimeoutMS  = 10000
	defaultDataDir    = "~/.appframe"
	defaultLogLevel   = "info"
	defaultStorage    = "sqlite"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		AppID:    defaultAppID,
		BaseURL:  defaultBaseURL,
		Timeout:  defaultTimeoutMS * time.Millisecond,
		DataDir:  mustExpand(defaultDataDir),
		LogLevel: defaultLogLevel,
		Storage:  defaultStorage,
	}
}

// Load locates and parses the config file, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		AppID     string `toml:"app_id"`
		BaseURL   string `toml:"base_url"`
		TimeoutMS int    `toml:"timeout_ms"`
		DataDir   string `toml:"data_dir"`
		LogLevel  string `toml:"log_level"`
		Storage   string `toml:"storage"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.AppID); v != "" {
		cfg.AppID = v
	}
	if v := strings.TrimSpace(raw.BaseURL); v != "" {
		cfg.BaseURL = v
	}
	if raw.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(raw.TimeoutMS) * time.Millisecond
	}
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.ToLower(strings.TrimSpace(raw.Storage)); v != "" {
		if v != "sqlite" && v != "json" {
			return Config{}, fmt.Errorf("parse config: unknown storage %q (want sqlite or json)", raw.Storage)
		}
		cfg.Storage = v
	}

	return cfg, nil
}

// Save writes cfg to path, creating directories as needed.
func Save(path string, cfg Config) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	raw := struct {
		AppID     string `toml:"app_id"`
		BaseURL   string `toml:"base_url"`
		TimeoutMS int64  `toml:"timeout_ms"`
		DataDir   string `toml:"data_dir"`
		LogLevel  string `toml:"log_level"`
		Storage   string `toml:"storage"`
	}{
		AppID:     cfg.AppID,
		BaseURL:   cfg.BaseURL,
		TimeoutMS: cfg.Timeout.Milliseconds(),
		DataDir:   cfg.DataDir,
		LogLevel:  cfg.LogLevel,
		Storage:   cfg.Storage,
	}
	bytes, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
