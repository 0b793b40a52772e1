package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/listener/pkg/adapter"
	"github.com/m-mizutani/listener/pkg/model"
	"github.com/m-mizutani/listener/pkg/repository"
	"github.com/m-mizutani/listener/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// config holds configuration values
type config struct {
	dbPath     string
	configPath string
	logLevel   string

	geminiAPIKey string
	geminiModel  string
}

// fileConfig is the optional YAML configuration file. Flags and environment
// variables take precedence over it.
type fileConfig struct {
	Tags  []string `yaml:"tags"`
	Model string   `yaml:"model"`
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Aliases:     []string{"d"},
			Usage:       "Path to the SQLite database file",
			Value:       "data/listener.db",
			Sources:     cli.EnvVars("LISTENER_DB"),
			Destination: &cfg.dbPath,
		},
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to YAML config file (seed tags, model)",
			Sources:     cli.EnvVars("LISTENER_CONFIG"),
			Destination: &cfg.configPath,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("LISTENER_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-api-key",
			Usage:       "Gemini API key",
			Sources:     cli.EnvVars("GEMINI_API_KEY"),
			Destination: &cfg.geminiAPIKey,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for replies and classification",
			Sources:     cli.EnvVars("LISTENER_GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// loadFile reads the optional YAML config file
func (cfg *config) loadFile() (*fileConfig, error) {
	if cfg.configPath == "" {
		return &fileConfig{}, nil
	}

	data, err := os.ReadFile(cfg.configPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", cfg.configPath))
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse config file", goerr.V("path", cfg.configPath))
	}

	for _, tag := range fc.Tags {
		if err := model.ValidateTagName(tag); err != nil {
			return nil, err
		}
	}

	return &fc, nil
}

// newLogger builds the command logger from the configured level
func (cfg *config) newLogger() *slog.Logger {
	logger := logging.New(cfg.logLevel, os.Stdout)
	logging.SetDefault(logger)
	return logger
}

// newRepository opens the database and seeds the tag vocabulary
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.dbPath == "" {
		return nil, goerr.New("db path is required")
	}

	fc, err := cfg.loadFile()
	if err != nil {
		return nil, err
	}

	repo, err := repository.NewSQLite(cfg.dbPath)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}

	seeds := fc.Tags
	if len(seeds) == 0 {
		seeds = model.SeedTags
	}
	for _, tag := range seeds {
		if err := repo.RegisterTag(ctx, tag); err != nil {
			_ = repo.Close()
			return nil, goerr.Wrap(err, "failed to seed tag vocabulary", goerr.V("tag", tag))
		}
	}

	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiAPIKey == "" {
		return nil, goerr.New("gemini-api-key is required")
	}

	fc, err := cfg.loadFile()
	if err != nil {
		return nil, err
	}

	var opts []adapter.GeminiOption
	switch {
	case cfg.geminiModel != "":
		opts = append(opts, adapter.WithModel(cfg.geminiModel))
	case fc.Model != "":
		opts = append(opts, adapter.WithModel(fc.Model))
	}

	return adapter.NewGemini(ctx, cfg.geminiAPIKey, opts...)
}
