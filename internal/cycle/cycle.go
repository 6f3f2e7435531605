// Package cycle runs one search, evaluate and report pass.
package cycle

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spigell/job-hunter/internal/jobs"
)

const DefaultEvaluationDelay = 2 * time.Second

type Finder interface {
	Find(ctx context.Context) []jobs.Candidate
}

type Evaluator interface {
	Evaluate(ctx context.Context, url, text string) *jobs.Evaluation
}

type Notifier interface {
	Report(ctx context.Context, batch jobs.Batch)
}

type Journal interface {
	Append(at time.Time, entries []jobs.Evaluation) error
}

// Result summarises a finished cycle.
type Result struct {
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Candidates int           `json:"candidates"`
	Approved   int           `json:"approved"`
	Err        error         `json:"-"`
}

type Runner struct {
	finder    Finder
	evaluator Evaluator
	notifier  Notifier
	journal   Journal
	delay     time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

type Option func(*Runner)

// WithEvaluationDelay sets the pause between two evaluator calls.
func WithEvaluationDelay(d time.Duration) Option {
	return func(r *Runner) { r.delay = d }
}

// WithClock replaces time.Now, used for report headings.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

func New(finder Finder, evaluator Evaluator, notifier Notifier, journal Journal, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		finder:    finder,
		evaluator: evaluator,
		notifier:  notifier,
		journal:   journal,
		delay:     DefaultEvaluationDelay,
		now:       time.Now,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes a cycle. Panics are recovered and reported through Result.Err.
func (r *Runner) Run(ctx context.Context) (res Result) {
	res.StartedAt = r.now()
	r.logger.Info("cycle started")

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("cycle panicked: %v", p)
			r.logger.Error("cycle aborted", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
		}
		res.Duration = r.now().Sub(res.StartedAt)
		r.logger.Info("cycle finished",
			zap.Int("candidates", res.Candidates),
			zap.Int("approved", res.Approved),
			zap.Duration("duration", res.Duration),
			zap.Error(res.Err),
		)
	}()

	candidates := r.finder.Find(ctx)
	res.Candidates = len(candidates)
	r.logger.Info("search finished", zap.Int("candidates", len(candidates)))

	batch, err := r.evaluate(ctx, candidates)
	if err != nil {
		res.Err = err
	}
	res.Approved = batch.Len()

	r.report(ctx, batch)

	return res
}

func (r *Runner) evaluate(ctx context.Context, candidates []jobs.Candidate) (jobs.Batch, error) {
	batch := jobs.Batch{}
	if len(candidates) == 0 {
		return batch, nil
	}

	var pause *rate.Limiter
	for i, candidate := range candidates {
		err := ctx.Err()
		if pause != nil {
			err = pause.Wait(ctx)
		}
		if err != nil {
			r.logger.Warn("evaluation interrupted", zap.Int("evaluated", i), zap.Error(err))
			return batch, fmt.Errorf("evaluate candidates: %w", err)
		}

		if evaluation := r.evaluator.Evaluate(ctx, candidate.URL, candidate.Text); evaluation != nil {
			batch = append(batch, *evaluation)
		}

		pause = r.pause()
	}

	return batch, nil
}

// pause returns a limiter whose only token is already spent, so Wait blocks
// for the full delay counted from the end of the previous call.
func (r *Runner) pause() *rate.Limiter {
	if r.delay <= 0 {
		return nil
	}

	l := rate.NewLimiter(rate.Every(r.delay), 1)
	l.Allow()
	return l
}

func (r *Runner) report(ctx context.Context, batch jobs.Batch) {
	if batch.Len() > 0 {
		if err := r.journal.Append(r.now(), batch); err != nil {
			r.logger.Error("failed to write report log", zap.Error(err))
		}
	}

	r.notifier.Report(ctx, batch)
}
