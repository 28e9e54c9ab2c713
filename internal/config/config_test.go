package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Provider != "anthropic" {
		t.Errorf("expected default provider 'anthropic', got %q", cfg.Provider)
	}
	if cfg.Checkpoint.TailMessages != 5 {
		t.Errorf("expected default tail_messages 5, got %d", cfg.Checkpoint.TailMessages)
	}
	if cfg.Checkpoint.TruncateAt != 200 {
		t.Errorf("expected default truncate_at 200, got %d", cfg.Checkpoint.TruncateAt)
	}
	if cfg.Checkpoint.DefaultTask != "Continue previous conversation" {
		t.Errorf("unexpected default task %q", cfg.Checkpoint.DefaultTask)
	}
	if cfg.Activity.Sink != "sqlite" {
		t.Errorf("expected default activity sink 'sqlite', got %q", cfg.Activity.Sink)
	}
	if cfg.Log.Level != "warn" || cfg.Log.Format != "text" {
		t.Errorf("unexpected log defaults %+v", cfg.Log)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("expected defaults, got provider %q", cfg.Provider)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	content := `provider: deepseek
model: deepseek-chat
providers:
  deepseek:
    api_key: sk-test
    base_url: https://api.deepseek.com/v1
max_tokens: 4096
db_path: /tmp/relaychat-test.db
model_limits:
  deepseek-chat: 64000
checkpoint:
  tail_messages: 8
  truncate_at: 120
activity:
  sink: jsonl
  path: /tmp/activity.jsonl
log:
  level: debug
  format: json
`
	os.WriteFile(path, []byte(content), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "deepseek" || cfg.Model != "deepseek-chat" {
		t.Errorf("provider/model = %q/%q", cfg.Provider, cfg.Model)
	}
	pc := cfg.GetProviderConfig("deepseek")
	if pc.APIKey != "sk-test" || pc.BaseURL != "https://api.deepseek.com/v1" {
		t.Errorf("provider config = %+v", pc)
	}
	if cfg.MaxTokens != 4096 {
		t.Errorf("max_tokens = %d", cfg.MaxTokens)
	}
	if cfg.ModelLimits["deepseek-chat"] != 64000 {
		t.Errorf("model_limits = %v", cfg.ModelLimits)
	}
	if cfg.Checkpoint.TailMessages != 8 || cfg.Checkpoint.TruncateAt != 120 {
		t.Errorf("checkpoint = %+v", cfg.Checkpoint)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Checkpoint.DefaultTask != "Continue previous conversation" {
		t.Errorf("default_task should keep default, got %q", cfg.Checkpoint.DefaultTask)
	}
	if cfg.Activity.Sink != "jsonl" || cfg.Log.Format != "json" {
		t.Errorf("activity/log = %+v / %+v", cfg.Activity, cfg.Log)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	os.WriteFile(path, []byte("provider: [unclosed\n"), 0644)

	_, err := Load(path)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_InvalidSink(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	os.WriteFile(path, []byte("activity:\n  sink: kafka\n"), 0644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown activity sink")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	os.WriteFile(path, []byte("provider: openai\n"), 0644)

	t.Setenv("LLM_API_KEY", "env-key-123")
	t.Setenv("LLM_BASE_URL", "https://custom.api.com/v1")
	t.Setenv("LLM_MODEL", "custom-model")
	t.Setenv("RELAYCHAT_PROVIDER", "deepseek")
	t.Setenv("RELAYCHAT_DB", "/tmp/override.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Provider != "deepseek" {
		t.Errorf("RELAYCHAT_PROVIDER should override, got %q", cfg.Provider)
	}
	if cfg.Model != "custom-model" {
		t.Errorf("LLM_MODEL should override, got %q", cfg.Model)
	}
	// LLM_API_KEY applies to the provider named in the file, before
	// RELAYCHAT_PROVIDER switches it.
	pc := cfg.GetProviderConfig("openai")
	if pc.APIKey != "env-key-123" {
		t.Errorf("LLM_API_KEY should set openai api_key, got %q", pc.APIKey)
	}
	if pc.BaseURL != "https://custom.api.com/v1" {
		t.Errorf("LLM_BASE_URL should set base_url, got %q", pc.BaseURL)
	}
	if cfg.DBPath != "/tmp/override.db" {
		t.Errorf("RELAYCHAT_DB should override, got %q", cfg.DBPath)
	}
}

func TestLoad_VendorAPIKeys(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	os.WriteFile(path, []byte("provider: anthropic\n"), 0644)

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("OPENAI_API_KEY", "sk-oai-test")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pc := cfg.GetProviderConfig("anthropic"); pc.APIKey != "sk-ant-test" {
		t.Errorf("ANTHROPIC_API_KEY should set anthropic api_key, got %q", pc.APIKey)
	}
	if pc := cfg.GetProviderConfig("openai"); pc.APIKey != "sk-oai-test" {
		t.Errorf("OPENAI_API_KEY should set openai api_key, got %q", pc.APIKey)
	}
}

func TestGetProviderConfig_Unknown(t *testing.T) {
	cfg := DefaultConfig()
	pc := cfg.GetProviderConfig("nonexistent")
	if pc == nil {
		t.Fatal("expected non-nil provider config for unknown provider")
	}
	if pc.APIKey != "" {
		t.Error("expected empty api_key for unknown provider")
	}
}

func TestActiveModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers["anthropic"] = &ProviderConfig{Model: "claude-opus-4-20250514"}
	if got := cfg.ActiveModel(); got != "claude-opus-4-20250514" {
		t.Errorf("ActiveModel = %q, want provider model", got)
	}
	cfg.Model = "claude-3-5-haiku-20241022"
	if got := cfg.ActiveModel(); got != "claude-3-5-haiku-20241022" {
		t.Errorf("ActiveModel = %q, want global override", got)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Provider = "openai"
	cfg.Providers["openai"] = &ProviderConfig{APIKey: "sk-x"}
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Provider != "openai" || loaded.GetProviderConfig("openai").APIKey != "sk-x" {
		t.Errorf("loaded = %+v", loaded)
	}
}
