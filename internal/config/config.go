// Package config loads relaychat's configuration.
// Sources, highest priority first:
//  1. environment variables (LLM_API_KEY, LLM_BASE_URL, LLM_MODEL,
//     ANTHROPIC_API_KEY, OPENAI_API_KEY, RELAYCHAT_*)
//  2. the file named by --config
//  3. ~/.config/relaychat/config.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProviderConfig is the configuration of a single provider.
type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

// CheckpointConfig tunes checkpoint building.
type CheckpointConfig struct {
	// TailMessages is how many recent messages the continuation prompt quotes.
	TailMessages int `yaml:"tail_messages"`

	// TruncateAt caps each quoted message, in characters.
	TruncateAt int `yaml:"truncate_at"`

	// DefaultTask is used when the user saves without a task description.
	DefaultTask string `yaml:"default_task"`
}

// ActivityConfig selects where usage activity is recorded.
type ActivityConfig struct {
	// Sink: "sqlite" (default, shares the checkpoint DB) | "jsonl" | "none"
	Sink string `yaml:"sink"`

	// Path of the JSONL file when Sink is "jsonl". Empty = default location.
	Path string `yaml:"path,omitempty"`
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	// Level: debug | info | warn | error
	Level string `yaml:"level"`

	// Format: text | json
	Format string `yaml:"format"`

	// File receives log output. Empty = stderr.
	File string `yaml:"file,omitempty"`
}

// Config is the complete relaychat configuration.
type Config struct {
	// Provider is the active provider name ("anthropic", "openai", "deepseek", ...).
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`

	Providers map[string]*ProviderConfig `yaml:"providers"`

	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// MaxTokens caps each reply. 0 = provider default.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// DBPath is the SQLite database for checkpoints. Empty = default location.
	DBPath string `yaml:"db_path,omitempty"`

	// ModelLimits adds or overrides per-model context limits in tokens.
	// The "default" key replaces the fallback limit.
	ModelLimits map[string]int `yaml:"model_limits,omitempty"`

	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Activity   ActivityConfig   `yaml:"activity"`
	Log        LogConfig        `yaml:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:  "anthropic",
		Providers: make(map[string]*ProviderConfig),
		Checkpoint: CheckpointConfig{
			TailMessages: 5,
			TruncateAt:   200,
			DefaultTask:  "Continue previous conversation",
		},
		Activity: ActivityConfig{Sink: "sqlite"},
		Log:      LogConfig{Level: "warn", Format: "text"},
	}
}

// DefaultPath returns ~/.config/relaychat/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "relaychat", "config.yaml")
}

// Load reads the config file and applies environment overrides.
// A missing file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath == "" {
		configPath = DefaultPath()
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
			}
		}
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]*ProviderConfig)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values that cannot work.
func (c *Config) Validate() error {
	switch c.Activity.Sink {
	case "", "sqlite", "jsonl", "none":
	default:
		return fmt.Errorf("invalid activity.sink %q (want sqlite, jsonl or none)", c.Activity.Sink)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("invalid log.format %q (want text or json)", c.Log.Format)
	}
	if c.Checkpoint.TailMessages < 0 || c.Checkpoint.TruncateAt < 0 {
		return fmt.Errorf("checkpoint.tail_messages and checkpoint.truncate_at must not be negative")
	}
	return nil
}

// GetProviderConfig returns the named provider's config, or an empty one.
func (c *Config) GetProviderConfig(name string) *ProviderConfig {
	if pc, ok := c.Providers[name]; ok && pc != nil {
		return pc
	}
	return &ProviderConfig{}
}

// ActiveModel returns the model to use: the global override, then the
// provider's configured model. Empty means the provider default.
func (c *Config) ActiveModel() string {
	if c.Model != "" {
		return c.Model
	}
	return c.GetProviderConfig(c.Provider).Model
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) provider(name string) *ProviderConfig {
	if c.Providers[name] == nil {
		c.Providers[name] = &ProviderConfig{}
	}
	return c.Providers[name]
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *Config) {
	// Generic overrides apply to the provider selected by the file.
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.provider(cfg.Provider).APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.provider(cfg.Provider).BaseURL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Model = v
	}

	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.provider("anthropic").APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.provider("openai").APIKey = v
	}

	if v := os.Getenv("RELAYCHAT_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("RELAYCHAT_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("RELAYCHAT_DB"); v != "" {
		cfg.DBPath = v
	}
}
