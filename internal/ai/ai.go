// Package ai defines how job candidates are scored by a language model.
package ai

import (
	"context"

	"github.com/spigell/job-hunter/internal/jobs"
)

const (
	// DefaultRejectionMarker is the word the model answers with for jobs that do not fit.
	DefaultRejectionMarker = "DISCARD"

	DefaultProfile = `- Level: Senior Analyst, Senior Supervisor, Supervisor, Manager, Director or HRBP (HR Business Partner).
- Location: on-site in Manaus, Amazonas (AM) is mandatory and the main focus. Consider remote roles only when they are an exceptional fit; Manaus roles always come first.
- Key skills: degree in HR management, Sienge, Trello, leading large teams (300+ employees), structuring HR processes.`
)

// Evaluator decides whether a job posting fits the candidate profile.
// A nil result means the job was rejected or could not be evaluated.
type Evaluator interface {
	Evaluate(ctx context.Context, url, text string) *jobs.Evaluation
}
