// Package jobs holds the values that flow through one search cycle.
package jobs

// MaxTextRunes bounds the job text handed to the evaluator.
const MaxTextRunes = 4000

// Candidate is a fetched job posting that has not been evaluated yet.
type Candidate struct {
	URL  string
	Text string
}

// NewCandidate builds a candidate, truncating text to MaxTextRunes.
func NewCandidate(url, text string) Candidate {
	return Candidate{URL: url, Text: Truncate(text, MaxTextRunes)}
}

// Evaluation is the approved model output for one candidate. Text is written
// verbatim to both the report log and the chat.
type Evaluation struct {
	URL  string
	Text string
}

// Batch is the ordered set of evaluations produced by one cycle.
type Batch []Evaluation

func (b Batch) Len() int { return len(b) }

// Truncate cuts s to at most limit runes.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	// fast path: byte length bounds rune count
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
