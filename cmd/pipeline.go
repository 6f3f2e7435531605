package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/ai/gemini"
	"github.com/spigell/job-hunter/internal/config"
	"github.com/spigell/job-hunter/internal/cycle"
	"github.com/spigell/job-hunter/internal/extract"
	"github.com/spigell/job-hunter/internal/finder"
	"github.com/spigell/job-hunter/internal/journal"
	"github.com/spigell/job-hunter/internal/logger"
	"github.com/spigell/job-hunter/internal/notifier"
	"github.com/spigell/job-hunter/internal/search"
	"github.com/spigell/job-hunter/internal/secrets"
)

// pipeline holds the components of one cycle, built once per process.
type pipeline struct {
	config    *config.Config
	logger    *zap.Logger
	finder    *finder.Finder
	evaluator *gemini.Evaluator
	notifier  *notifier.Telegram
	journal   *journal.Journal
}

func newLogger() *zap.Logger {
	l, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

func loadConfig(base *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(cfg.Redacted(), "", "  ")
	base.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	return cfg, nil
}

// newPipeline fails with config.ErrMissingAPIKey when no Gemini key is set.
func newPipeline(ctx context.Context, cfg *config.Config, base *zap.Logger) (*pipeline, error) {
	apiKey, err := cfg.GeminiAPIKey()
	if err != nil {
		return nil, err
	}
	base.Info("gemini api key loaded", zap.String("key", secrets.Mask(apiKey)))

	gcfg := cfg.AI.Gemini
	generator, err := gemini.NewGenerator(ctx, apiKey, gcfg.Model, gcfg.MaxAttempts, gcfg.Timeout,
		logger.Named(base, "gemini", logger.AIFields("gemini", gcfg.Model)...))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	evaluator := gemini.NewEvaluator(generator, gemini.EvaluatorConfig{
		Profile:         cfg.AI.Profile,
		RejectionMarker: cfg.AI.RejectionMarker,
		MaxLogLength:    gcfg.MaxLogLength,
	}, logger.Named(base, "evaluator", logger.AIFields("gemini", generator.Model())...))

	searcher := search.New(logger.Named(base, "search"))
	searcher.UserAgent = cfg.Search.UserAgent

	extractor := extract.New(logger.Named(base, "extract"), cfg.Extract.Timeout, cfg.Extract.MaxChars)
	extractor.UserAgent = cfg.Search.UserAgent

	f := finder.New(searcher, extractor, finder.Config{
		Queries:         cfg.Search.Queries,
		ResultsPerQuery: cfg.Search.ResultsPerQuery,
	}, logger.Named(base, "finder"))

	tg := notifier.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, logger.Named(base, "telegram"))

	return &pipeline{
		config:    cfg,
		logger:    base,
		finder:    f,
		evaluator: evaluator,
		notifier:  tg,
		journal:   journal.New(afero.NewOsFs(), cfg.Report.Path),
	}, nil
}

func (p *pipeline) runner(n cycle.Notifier) *cycle.Runner {
	return cycle.New(p.finder, p.evaluator, n, p.journal, logger.Named(p.logger, "cycle"),
		cycle.WithEvaluationDelay(p.config.Cycle.EvaluationDelay),
	)
}

// lockReport takes an exclusive process lock next to the report log.
func (p *pipeline) lockReport() (*flock.Flock, error) {
	path, err := filepath.Abs(p.journal.Path() + ".lock")
	if err != nil {
		return nil, err
	}

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("report log %s is used by another %s process", p.journal.Path(), app)
	}

	return lock, nil
}
