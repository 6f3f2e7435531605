// Package finder turns a list of search queries into job candidates.
package finder

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/jobs"
	"github.com/spigell/job-hunter/internal/logger"
)

// Searcher returns result URLs for a query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]string, error)
}

// TextExtractor returns the visible text of a page.
type TextExtractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

// DefaultQueries are site-restricted searches for HR openings in Manaus.
var DefaultQueries = []string{
	`site:gupy.io/job "Recursos Humanos" "Manaus" -remoto`,
	`site:br.indeed.com "Recursos Humanos" "Manaus"`,
	`site:infojobs.com.br "Recursos Humanos" "Manaus"`,
	`site:catho.com.br "Recursos Humanos" "Manaus"`,
	`site:portaldoholanda.com.br "vaga" "Manaus" "RH"`,
	`site:amazonempregos.com.br "RH" "Manaus"`,
	`site:boards.greenhouse.io "Recursos Humanos" "Manaus"`,
	`site:jobs.lever.co "Recursos Humanos" "Manaus"`,
}

type Config struct {
	Queries         []string
	ResultsPerQuery int
}

type Finder struct {
	searcher  Searcher
	extractor TextExtractor
	queries   []string
	perQuery  int
	logger    *zap.Logger
}

func New(searcher Searcher, extractor TextExtractor, cfg Config, logger *zap.Logger) *Finder {
	perQuery := cfg.ResultsPerQuery
	if perQuery <= 0 {
		perQuery = 3
	}

	return &Finder{
		searcher:  searcher,
		extractor: extractor,
		queries:   append([]string(nil), cfg.Queries...),
		perQuery:  perQuery,
		logger:    logger,
	}
}

// Find runs every query and extracts text for each result. Failures are logged
// and skipped, so Find never fails as a whole. URLs are not deduplicated.
func (f *Finder) Find(ctx context.Context) []jobs.Candidate {
	var candidates []jobs.Candidate

	for _, query := range f.queries {
		if ctx.Err() != nil {
			f.logger.Warn("search interrupted", zap.Error(ctx.Err()), zap.Int("collected", len(candidates)))
			return candidates
		}

		f.logger.Info("searching", zap.String("query", query))

		urls, err := f.searcher.Search(ctx, query, f.perQuery)
		if err != nil {
			f.logger.Warn("search failed", zap.String("query", query), zap.Error(err))
			continue
		}

		for _, url := range urls {
			if ctx.Err() != nil {
				break
			}

			f.logger.Info("extracting", zap.String(logger.FieldURL, url))

			text, err := f.extractor.Extract(ctx, url)
			if err != nil {
				f.logger.Warn("extraction failed. It will be skipped.", zap.String(logger.FieldURL, url), zap.Error(err))
				continue
			}
			if text == "" {
				continue
			}

			candidates = append(candidates, jobs.NewCandidate(url, text))
		}
	}

	f.logger.Info("search completed",
		zap.Int("queries", len(f.queries)),
		zap.Int("candidates", len(candidates)),
	)

	return candidates
}
