package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/personachat/personachat/internal/adapter"
	"github.com/personachat/personachat/internal/budget"
	"github.com/personachat/personachat/internal/completion"
	"github.com/personachat/personachat/internal/config"
	"github.com/personachat/personachat/internal/conversation"
	"github.com/personachat/personachat/internal/db"
	"github.com/personachat/personachat/internal/logger"
	"github.com/personachat/personachat/internal/memory"
	"github.com/personachat/personachat/internal/notify"
	"github.com/personachat/personachat/internal/persona"
	"github.com/personachat/personachat/internal/proactive"
)

// app is everything a command needs, wired from the global config.
type app struct {
	cfg        config.GlobalConfig
	configPath string
	personaDir string
	log        *slog.Logger
	db         *db.DB
	memory     *memory.Store
	personas   *persona.Registry
	sessions   *conversation.Manager
}

func loadConfig(flags *globalFlags) (config.GlobalConfig, string, error) {
	path := flags.configPath
	if path == "" {
		p, err := config.GlobalConfigPath()
		if err != nil {
			cfg := config.DefaultGlobal()
			return cfg, "", cfg.Validate()
		}
		path = p
	}
	cfg, err := config.LoadFile(path)
	return cfg, path, err
}

// openApp loads config, opens the database and wires every component.
// Callers must Close the result.
func openApp(flags *globalFlags) (*app, error) {
	cfg, path, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	log := logger.New(
		logger.WithLevel(cfg.Log.Level),
		logger.WithJSON(cfg.Log.JSON),
	)
	if flags.debug {
		log = logger.New(logger.WithDebug(true), logger.WithJSON(cfg.Log.JSON))
	}

	dbPath, err := cfg.DBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	database, err := db.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{cfg: cfg, configPath: path, log: log, db: database}

	a.memory = memory.NewStore(memory.NewSQLiteBackend(database),
		memory.WithMaxFacts(cfg.Memory.MaxFacts),
		memory.WithLogger(log),
	)

	a.personas = persona.NewRegistry(persona.NewSQLiteRepository(database), cfg.User.ID,
		persona.WithDefault(cfg.DefaultPersona),
		persona.WithLogger(log),
	)
	a.personaDir = personaDir(path)
	if a.personaDir != "" {
		files, err := persona.LoadDir(a.personaDir)
		if err != nil {
			log.Warn("some persona files could not be loaded", "dir", a.personaDir, "error", err)
		}
		a.personas.SetFilePersonas(files)
	}

	provider, err := adapter.New(cfg.Provider.Name, providerOptions(cfg))
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	client := completion.New(provider, completion.Config{
		PrimaryModel:     cfg.Provider.PrimaryModel,
		FallbackModels:   cfg.Provider.FallbackModels,
		Temperature:      cfg.Provider.Temperature,
		MaxTokens:        cfg.Provider.MaxTokens,
		IdleTimeout:      cfg.Provider.IdleTimeout.Duration,
		MaxHistoryTokens: cfg.Context.MaxHistoryTokens,
	}, completion.WithCounter(budget.Default(log)), completion.WithLogger(log))

	a.sessions = conversation.NewManager(conversation.NewSQLiteRepository(database), a.personas, a.memory, client, cfg.User.ID,
		conversation.WithAutoExtract(cfg.Memory.AutoExtract),
		conversation.WithLogger(log),
	)
	a.personas.OnDelete(a.sessions.RetirePersona)
	return a, nil
}

// personaDir holds persona definition files next to the config file.
func personaDir(configPath string) string {
	if configPath != "" {
		return filepath.Join(filepath.Dir(configPath), "personas")
	}
	dir, err := config.PersonaDir()
	if err != nil {
		return ""
	}
	return dir
}

// newScheduler builds the proactive scheduler with the given sinks.
func (a *app) newScheduler(sinks ...proactive.Sink) *proactive.Scheduler {
	opts := []proactive.Option{
		proactive.WithPersona(a.currentPersona),
		proactive.WithLogger(a.log),
	}
	for _, sink := range sinks {
		opts = append(opts, proactive.WithSink(sink))
	}
	return proactive.NewScheduler(proactive.NewSQLiteStore(a.db), a.cfg.User.ID, schedulerDefaults(a.cfg), opts...)
}

// chatSink appends proactive messages to the persona's conversation.
func (a *app) chatSink() proactive.Sink {
	return proactive.SinkFunc(func(ctx context.Context, ev proactive.Event) error {
		_, _, err := a.sessions.DeliverProactive(ctx, ev.PersonaID, ev.Text)
		return err
	})
}

func (a *app) Close() error {
	return a.db.Close()
}

// currentPersona is the persona of the most recently active session, or
// the configured default.
func (a *app) currentPersona(ctx context.Context) string {
	list, err := a.sessions.List(ctx)
	if err != nil || len(list) == 0 {
		return a.personas.DefaultID()
	}
	return list[0].PersonaID
}

// personaTitle names a persona for notifications.
func (a *app) personaTitle(ctx context.Context) func(string) string {
	return func(id string) string {
		if p, ok := a.personas.Lookup(ctx, id); ok && p.Kind == persona.KindCustom {
			return p.Name
		}
		return notify.DefaultTitle(id)
	}
}

func providerOptions(cfg config.GlobalConfig) adapter.Options {
	opts := adapter.Options{
		APIKey:  cfg.APIKey(),
		Referer: cfg.Provider.Referer,
		Title:   cfg.Provider.Title,
	}
	switch cfg.Provider.Name {
	case config.ProviderOllama:
		opts.BaseURL = cfg.Ollama.Host
	case config.ProviderOpenRouter:
		opts.BaseURL = cfg.Provider.BaseURL
	default:
		// The default base_url is OpenRouter's; only a user-set one applies
		// to the other providers.
		if cfg.Provider.BaseURL != config.DefaultGlobal().Provider.BaseURL {
			opts.BaseURL = cfg.Provider.BaseURL
		}
	}
	return opts
}

func schedulerDefaults(cfg config.GlobalConfig) proactive.State {
	return proactive.State{
		Enabled:    cfg.Proactive.Enabled,
		Frequency:  proactive.Frequency(cfg.Proactive.Frequency),
		QuietHours: proactive.QuietHours{Start: cfg.Proactive.QuietStart, End: cfg.Proactive.QuietEnd},
	}
}
