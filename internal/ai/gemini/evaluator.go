package gemini

import (
	"context"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/ai"
	"github.com/spigell/job-hunter/internal/jobs"
	"github.com/spigell/job-hunter/internal/logger"
	"github.com/spigell/job-hunter/internal/utils"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

type EvaluatorConfig struct {
	Profile         string
	RejectionMarker string
	MaxLogLength    int
}

// Evaluator asks Gemini whether a job fits the profile and passes the answer
// through untouched unless it carries the rejection marker.
type Evaluator struct {
	generator contentGenerator
	profile   string
	marker    string
	maxLogLen int
	logger    *zap.Logger
}

var _ ai.Evaluator = (*Evaluator)(nil)

func NewEvaluator(generator contentGenerator, cfg EvaluatorConfig, logger *zap.Logger) *Evaluator {
	profile := strings.TrimSpace(cfg.Profile)
	if profile == "" {
		profile = ai.DefaultProfile
	}

	marker := strings.TrimSpace(cfg.RejectionMarker)
	if marker == "" {
		marker = ai.DefaultRejectionMarker
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLength
	}

	return &Evaluator{
		generator: generator,
		profile:   profile,
		marker:    marker,
		maxLogLen: maxLogLen,
		logger:    logger,
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, url, text string) *jobs.Evaluation {
	text = jobs.Truncate(text, jobs.MaxTextRunes)
	prompt := buildPrompt(e.profile, url, text, e.marker)

	e.logger.Debug("gemini generate content request",
		zap.String(logger.FieldURL, url),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		e.logger.Warn("AI evaluation failed", zap.String(logger.FieldURL, url), zap.Error(err))
		return nil
	}

	e.logger.Debug("gemini generate content response",
		zap.String(logger.FieldURL, url),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	if strings.TrimSpace(raw) == "" {
		e.logger.Info("job rejected by AI provider", zap.String(logger.FieldURL, url), zap.String("reason", "empty response"))
		return nil
	}

	if isRejected(raw, e.marker) {
		e.logger.Info("job rejected by AI provider", zap.String(logger.FieldURL, url), zap.String("reason", "rejection marker"))
		return nil
	}

	e.logger.Info("job approved by AI", zap.String(logger.FieldURL, url))

	return &jobs.Evaluation{URL: url, Text: raw}
}

func buildPrompt(profile, url, text, marker string) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Profile:\n{{PROFILE}}\n\nJob URL: {{JOB_URL}}\n\nJob text:\n{{JOB_TEXT}}\n\nReply {{REJECTION_MARKER}} if the job does not fit."
	}

	// single pass, so placeholders inside the job text stay literal
	return strings.NewReplacer(
		"{{PROFILE}}", profile,
		"{{JOB_URL}}", url,
		"{{JOB_TEXT}}", text,
		"{{REJECTION_MARKER}}", marker,
	).Replace(template)
}

func isRejected(response, marker string) bool {
	return strings.Contains(strings.ToUpper(response), strings.ToUpper(marker))
}
