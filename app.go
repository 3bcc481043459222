package main

import (
	"context"
	"fmt"

	"jira_code_agent/internal/config"
	"jira_code_agent/internal/core"
	"jira_code_agent/internal/services"
	"jira_code_agent/internal/storage"
	"jira_code_agent/pkg"
	"jira_code_agent/src"
	"jira_code_agent/src/jira"
	"jira_code_agent/src/llm"
	"jira_code_agent/src/llm/analysis"
	"jira_code_agent/src/logger"
)

const (
	sourceJira    = "jira"
	sourceCatalog = "catalog"
)

// app holds the wired components shared by the commands
type app struct {
	cfg      *src.Config
	yamlCfg  *config.YAMLConfig
	engine   *core.Engine
	writer   *storage.FileArtifactWriter
	cache    *storage.CachedItemProvider
	defaults pkg.GenerationOptions
	closers  []func() error
}

// loadConfig reads the environment and YAML config and initializes logging
func loadConfig() (*src.Config, *config.YAMLConfig, error) {
	cfg, err := src.LoadConfig(envFile)
	if err != nil {
		return nil, nil, err
	}
	if configFile != "" {
		cfg.ConfigFile = configFile
	}

	if err := logger.InitLogger(cfg.LogConfig); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	yamlCfg, err := config.LoadConfig(cfg.ConfigFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, yamlCfg, nil
}

// newApp wires the engine and its collaborators
func newApp(ctx context.Context) (*app, error) {
	cfg, yamlCfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	chatModel, err := llm.NewChatModel(ctx, cfg.LLMConfig)
	if err != nil {
		return nil, err
	}
	gen := llm.NewChatGenerator(chatModel, cfg.LLMConfig.Model)
	analyzer := analysis.NewAnalyzer(gen, yamlCfg.Prompts.AnalysisSystem, yamlCfg.Tokens.Analysis)

	a := &app{
		cfg:      cfg,
		yamlCfg:  yamlCfg,
		writer:   storage.NewFileArtifactWriter(cfg.ExportConfig.Dir),
		defaults: yamlCfg.Generation,
	}

	items, err := newItemProvider(cfg, analyzer)
	if err != nil {
		return nil, err
	}
	if cfg.CacheConfig.RedisURL != "" {
		cache, err := storage.NewRedisStorage(ctx, cfg.CacheConfig.RedisURL)
		if err != nil {
			logger.Warn().Err(err).Msg("Ticket cache disabled")
		} else {
			a.cache = storage.NewCachedItemProvider(items, cache, cfg.CacheConfig.TTL)
			items = a.cache
			a.closers = append(a.closers, cache.Close)
			logger.Info().Dur("ttl", cfg.CacheConfig.TTL).Msg("Ticket cache enabled")
		}
	}

	runner := services.NewSandboxTestRunner(a.writer, yamlCfg.TestCommands, cfg.TestsConfig.Timeout)
	engineCfg := config.BuildCoreConfig(yamlCfg, cfg.WorkflowConfig.MaxIterations, cfg.WorkflowConfig.StepTimeout)

	a.engine = core.NewEngine(
		storage.NewMemorySessionStore(),
		items,
		gen,
		core.WithConfig(engineCfg),
		core.WithTestRunner(runner),
	)

	logger.Info().
		Str("provider", cfg.LLMConfig.Provider).
		Str("model", cfg.LLMConfig.Model).
		Str("items", cfg.ItemsConfig.Source).
		Msg("Engine ready")

	return a, nil
}

func newItemProvider(cfg *src.Config, analyzer jira.Analyzer) (core.ItemProvider, error) {
	switch cfg.ItemsConfig.Source {
	case sourceJira, "":
		if cfg.JiraConfig.Server == "" {
			return nil, fmt.Errorf("JIRA_SERVER is required when ITEMS_SOURCE is %s", sourceJira)
		}
		return jira.NewProvider(jira.NewClient(cfg.JiraConfig), analyzer), nil
	case sourceCatalog:
		return services.NewTicketCatalog(cfg.ItemsConfig.CatalogDir, analyzer), nil
	default:
		return nil, fmt.Errorf("unsupported ITEMS_SOURCE %q", cfg.ItemsConfig.Source)
	}
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close resource")
		}
	}
}
