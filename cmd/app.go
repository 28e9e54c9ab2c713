package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/apexion-ai/relaychat/internal/activity"
	"github.com/apexion-ai/relaychat/internal/chat"
	"github.com/apexion-ai/relaychat/internal/checkpoint"
	"github.com/apexion-ai/relaychat/internal/config"
	"github.com/apexion-ai/relaychat/internal/provider"
	"github.com/apexion-ai/relaychat/internal/session"
	"github.com/apexion-ai/relaychat/internal/tui"
)

// providerBaseURLs maps OpenAI-compatible provider names to their base URLs.
var providerBaseURLs = map[string]string{
	"openai":   "https://api.openai.com/v1",
	"deepseek": "https://api.deepseek.com",
	"minimax":  "https://api.minimax.chat/v1",
	"kimi":     "https://api.moonshot.cn/v1",
	"qwen":     "https://dashscope.aliyuncs.com/compatible-mode/v1",
	"groq":     "https://api.groq.com/openai/v1",
}

// buildProvider creates a Provider instance based on configuration.
func buildProvider(cfg *config.Config) (provider.Provider, error) {
	name := cfg.Provider
	pc := cfg.GetProviderConfig(name)

	if pc.APIKey == "" {
		return nil, fmt.Errorf(
			"API key not configured for provider %q.\n"+
				"Set it via:\n"+
				"  - config file: providers.%s.api_key\n"+
				"  - environment: LLM_API_KEY\n"+
				"  - run: relaychat init",
			name, name,
		)
	}

	baseURL := pc.BaseURL
	if name != "anthropic" && baseURL == "" {
		u, ok := providerBaseURLs[name]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q; set providers.%s.base_url in config", name, name)
		}
		baseURL = u
	}
	return provider.New(name, pc.APIKey, baseURL, cfg.ActiveModel()), nil
}

// openStore opens the checkpoint database named in cfg.
func openStore(cfg *config.Config) (*checkpoint.SQLiteStore, error) {
	dbPath := cfg.DBPath
	if dbPath == "" {
		p, err := checkpoint.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("checkpoint db path: %w", err)
		}
		dbPath = p
	}
	store, err := checkpoint.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	return store, nil
}

// buildTracker selects the activity sink.
func buildTracker(cfg *config.Config, store *checkpoint.SQLiteStore) (activity.Tracker, error) {
	switch cfg.Activity.Sink {
	case "none":
		return activity.NullTracker{}, nil
	case "jsonl":
		return activity.NewFileTracker(cfg.Activity.Path)
	default:
		return activity.NewSQLiteTracker(store.DB())
	}
}

// newLogger builds the diagnostics logger. The returned closer releases the
// log file, if any.
func newLogger(lc config.LogConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(lc.Level))); err != nil && lc.Level != "" {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", lc.Level, err)
	}

	var w io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}
	if lc.File != "" {
		if err := os.MkdirAll(filepath.Dir(lc.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(lc.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w, closer = f, f
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(lc.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// app holds everything a chat command needs.
type app struct {
	cfg        *config.Config
	store      *checkpoint.SQLiteStore
	tracker    activity.Tracker
	log        *slog.Logger
	logCloser  io.Closer
	controller *chat.Controller
}

// newApp wires config, storage, provider and logging into a controller.
func newApp(ui tui.IO, resume chat.ResumeMode) (*app, error) {
	cfg, err := initConfig()
	if err != nil {
		return nil, err
	}
	p, err := buildProvider(cfg)
	if err != nil {
		return nil, err
	}
	logger, logCloser, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	tracker, err := buildTracker(cfg, store)
	if err != nil {
		store.Close()
		logCloser.Close()
		return nil, fmt.Errorf("open activity tracker: %w", err)
	}

	builder := &checkpoint.Builder{
		Renderer: checkpoint.PromptRenderer{
			TailMessages: cfg.Checkpoint.TailMessages,
			TruncateAt:   cfg.Checkpoint.TruncateAt,
		},
		DefaultTask: cfg.Checkpoint.DefaultTask,
	}

	c := chat.New(p, store, ui, chat.Options{
		Model:        cfg.ActiveModel(),
		SystemPrompt: cfg.SystemPrompt,
		MaxTokens:    cfg.MaxTokens,
		Limits:       session.DefaultLimits().With(cfg.ModelLimits),
		Builder:      builder,
		Activity:     tracker,
		Logger:       logger.With("provider", p.Name()),
		Resume:       resume,
	})
	logger.Debug("relaychat started", "version", appVersion, "provider", p.Name(), "model", c.Model())

	return &app{
		cfg:        cfg,
		store:      store,
		tracker:    tracker,
		log:        logger,
		logCloser:  logCloser,
		controller: c,
	}, nil
}

func (a *app) Close() {
	if err := a.tracker.Close(); err != nil {
		a.log.Warn("close activity tracker", "err", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("close checkpoint store", "err", err)
	}
	a.logCloser.Close()
}
