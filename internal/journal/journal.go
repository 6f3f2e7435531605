// Package journal keeps an append-only markdown log of approved jobs.
package journal

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/spigell/job-hunter/internal/jobs"
)

const DefaultPath = "job_reports.md"

type Journal struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

func New(fs afero.Fs, path string) *Journal {
	if path == "" {
		path = DefaultPath
	}
	return &Journal{fs: fs, path: path}
}

func (j *Journal) Path() string { return j.path }

// Heading renders the section title for a cycle that finished at at.
func Heading(at time.Time) string {
	return fmt.Sprintf("\n\n## Search of %s\n\n", at.Format("02/01/2006 15:04"))
}

// Append writes one section with every evaluation text. An empty slice
// leaves the file untouched.
func (j *Journal) Append(at time.Time, entries []jobs.Evaluation) error {
	if len(entries) == 0 {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := j.fs.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report log %s: %w", j.path, err)
	}

	if _, err := f.WriteString(section(at, entries)); err != nil {
		_ = f.Close()
		return fmt.Errorf("write report log %s: %w", j.path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close report log %s: %w", j.path, err)
	}

	return nil
}

func section(at time.Time, entries []jobs.Evaluation) string {
	size := len(Heading(at))
	for _, e := range entries {
		size += len(e.Text) + 2
	}

	buf := make([]byte, 0, size)
	buf = append(buf, Heading(at)...)
	for _, e := range entries {
		buf = append(buf, e.Text...)
		buf = append(buf, "\n\n"...)
	}

	return string(buf)
}
