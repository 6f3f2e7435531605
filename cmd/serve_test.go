package cmd

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/server"
)

func TestIdleServerKeepsLivenessAndRejectsRuns(t *testing.T) {
	app := idleServer(1, zap.NewNop()).App()

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, server.RunningText, string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/run", nil))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 503, resp.StatusCode)
}
