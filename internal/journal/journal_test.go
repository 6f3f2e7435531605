package journal

import (
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/job-hunter/internal/jobs"
)

func TestHeading(t *testing.T) {
	at := time.Date(2024, time.March, 5, 8, 7, 0, 0, time.UTC)
	assert.Equal(t, "\n\n## Search of 05/03/2024 08:07\n\n", Heading(at))
}

func TestAppendWritesSection(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "reports.md")
	at := time.Date(2024, time.March, 5, 18, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(at, []jobs.Evaluation{{Text: "first"}, {Text: "second"}}))

	data, err := afero.ReadFile(fs, "reports.md")
	require.NoError(t, err)
	assert.Equal(t, "\n\n## Search of 05/03/2024 18:00\n\nfirst\n\nsecond\n\n", string(data))
}

func TestAppendKeepsPreviousSections(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, DefaultPath, []byte("old"), 0o644))

	j := New(fs, "")
	require.NoError(t, j.Append(time.Date(2024, 1, 2, 20, 0, 0, 0, time.UTC), []jobs.Evaluation{{Text: "new"}}))

	data, err := afero.ReadFile(fs, DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, "old\n\n## Search of 02/01/2024 20:00\n\nnew\n\n", string(data))
}

func TestAppendEmptyDoesNotTouchFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "reports.md")

	require.NoError(t, j.Append(time.Now(), nil))

	exists, err := afero.Exists(fs, "reports.md")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestAppendFailsOnReadOnlyFs(t *testing.T) {
	j := New(afero.NewReadOnlyFs(afero.NewMemMapFs()), "reports.md")

	err := j.Append(time.Now(), []jobs.Evaluation{{Text: "x"}})
	assert.Error(t, err)
}

func TestConcurrentAppendsDoNotInterleave(t *testing.T) {
	fs := afero.NewMemMapFs()
	j := New(fs, "reports.md")
	at := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	entries := []jobs.Evaluation{{Text: "a"}, {Text: "b"}}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, j.Append(at, entries))
		}()
	}
	wg.Wait()

	data, err := afero.ReadFile(fs, "reports.md")
	require.NoError(t, err)

	want := ""
	for i := 0; i < 10; i++ {
		want += "\n\n## Search of 01/01/2024 08:00\n\na\n\nb\n\n"
	}
	assert.Equal(t, want, string(data))
}
