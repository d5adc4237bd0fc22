// Package config manages the global (~/.config/personachat/config.toml)
// configuration for personachat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Provider name constants mirrored from the adapter package so config
// validation does not need to import it.
const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderClaude     = "claude"
	ProviderOllama     = "ollama"
)

// GlobalConfig holds user-wide settings.
type GlobalConfig struct {
	DataDir        string          `toml:"data_dir"`
	DefaultPersona string          `toml:"default_persona"`
	User           UserConfig      `toml:"user"`
	Provider       ProviderConfig  `toml:"provider"`
	Keys           KeysConfig      `toml:"keys"`
	Ollama         OllamaConfig    `toml:"ollama"`
	Memory         MemoryConfig    `toml:"memory"`
	Context        ContextConfig   `toml:"context"`
	Proactive      ProactiveConfig `toml:"proactive"`
	Log            LogConfig       `toml:"log"`
}

// UserConfig identifies the local user. Authentication is handled elsewhere;
// the id only scopes memory and sessions.
type UserConfig struct {
	ID string `toml:"id"`
}

// ProviderConfig selects the completion provider and its model ladder.
type ProviderConfig struct {
	Name           string   `toml:"name"`
	BaseURL        string   `toml:"base_url"`
	PrimaryModel   string   `toml:"primary_model"`
	FallbackModels []string `toml:"fallback_models"`
	Temperature    float64  `toml:"temperature"`
	MaxTokens      int      `toml:"max_tokens"`
	IdleTimeout    Duration `toml:"idle_timeout"`
	Referer        string   `toml:"referer"`
	Title          string   `toml:"title"`
}

type KeysConfig struct {
	OpenRouter string `toml:"openrouter"`
	OpenAI     string `toml:"openai"`
	Anthropic  string `toml:"anthropic"`
}

type OllamaConfig struct {
	Host string `toml:"host"`
}

// MemoryConfig controls fact extraction and retention.
type MemoryConfig struct {
	MaxFacts    int  `toml:"max_facts"`
	AutoExtract bool `toml:"auto_extract"`
}

type ContextConfig struct {
	MaxHistoryTokens int `toml:"max_history_tokens"`
}

// ProactiveConfig seeds the scheduler state the first time it is created.
type ProactiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Frequency     string   `toml:"frequency"`
	QuietStart    string   `toml:"quiet_start"`
	QuietEnd      string   `toml:"quiet_end"`
	CheckInterval Duration `toml:"check_interval"`
}

type LogConfig struct {
	Level string `toml:"level"`
	JSON  bool   `toml:"json"`
}

// Duration is a time.Duration that round-trips through TOML as a string
// such as "60s" or "5m".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: parse duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultGlobal returns sensible defaults.
func DefaultGlobal() GlobalConfig {
	return GlobalConfig{
		DefaultPersona: "corporate",
		User:           UserConfig{ID: "local"},
		Provider: ProviderConfig{
			Name:         ProviderOpenRouter,
			BaseURL:      "https://openrouter.ai/api/v1",
			PrimaryModel: "nvidia/llama-3.1-nemotron-70b-instruct",
			FallbackModels: []string{
				"meta-llama/llama-3.1-8b-instruct:free",
				"microsoft/phi-3-medium-128k-instruct:free",
				"google/gemma-2-9b-it:free",
			},
			Temperature: 0.8,
			MaxTokens:   1000,
			IdleTimeout: Duration{60 * time.Second},
			Referer:     "http://localhost",
			Title:       "personachat",
		},
		Ollama: OllamaConfig{
			Host: "http://localhost:11434",
		},
		Memory: MemoryConfig{
			MaxFacts:    20,
			AutoExtract: true,
		},
		Context: ContextConfig{
			MaxHistoryTokens: 6000,
		},
		Proactive: ProactiveConfig{
			Enabled:       false,
			Frequency:     "few_hours",
			QuietStart:    "22:00",
			QuietEnd:      "08:00",
			CheckInterval: Duration{time.Minute},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ConfigDir returns ~/.config/personachat.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "personachat"), nil
}

// GlobalConfigPath returns the path to the global config file. The
// PERSONACHAT_CONFIG environment variable takes precedence.
func GlobalConfigPath() (string, error) {
	if v := os.Getenv("PERSONACHAT_CONFIG"); v != "" {
		return v, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// LoadFile loads the config at path. A missing file yields the defaults.
func LoadFile(path string) (GlobalConfig, error) {
	cfg := DefaultGlobal()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("config: load global: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets env vars override config file API keys.
func applyEnv(cfg *GlobalConfig) {
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		cfg.Keys.OpenRouter = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Keys.OpenAI = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Keys.Anthropic = v
	}
}

// Validate reports settings that cannot work at all.
func (c GlobalConfig) Validate() error {
	switch c.Provider.Name {
	case ProviderOpenRouter, ProviderOpenAI, ProviderClaude, ProviderOllama:
	default:
		return fmt.Errorf("config: unknown provider %q; valid providers: openrouter, openai, claude, ollama", c.Provider.Name)
	}
	if c.Provider.PrimaryModel == "" {
		return fmt.Errorf("config: provider.primary_model is required")
	}
	if c.Memory.MaxFacts <= 0 {
		return fmt.Errorf("config: memory.max_facts must be positive, got %d", c.Memory.MaxFacts)
	}
	return nil
}

// APIKey returns the key for the configured provider.
func (c GlobalConfig) APIKey() string {
	switch c.Provider.Name {
	case ProviderOpenRouter:
		return c.Keys.OpenRouter
	case ProviderOpenAI:
		return c.Keys.OpenAI
	case ProviderClaude:
		return c.Keys.Anthropic
	default:
		return ""
	}
}

// SaveFile writes cfg to path, creating parent directories.
func SaveFile(path string, cfg GlobalConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create global config: %w", err)
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// UpdateFile applies fn to the config stored at path and writes it back.
// Environment overrides are not applied, so keys given only through the
// environment never end up on disk.
func UpdateFile(path string, fn func(*GlobalConfig)) error {
	cfg := DefaultGlobal()
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return fmt.Errorf("config: load global: %w", err)
		}
	}
	fn(&cfg)
	return SaveFile(path, cfg)
}

// ResolveDataDir returns the data directory, defaulting to
// ~/.local/share/personachat.
func (c GlobalConfig) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "personachat"), nil
}

// DBPath returns the path to the SQLite database.
func (c GlobalConfig) DBPath() (string, error) {
	dir, err := c.ResolveDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "personachat.db"), nil
}

// PersonaDir returns the directory holding TOML persona definition files.
func PersonaDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "personas"), nil
}
