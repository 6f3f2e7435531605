package extract

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/jobs"
)

func serve(t *testing.T, contentType, body string, status int) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return srv.URL
}

func TestTextFromHTMLStripsScriptsAndStyles(t *testing.T) {
	page := `<html><head><title>Vaga</title><style>body{color:red}</style>
<script>var tracking = "secret";</script></head>
<body><h1>Gerente   de RH</h1><p>Manaus<br>AM</p><noscript>enable js</noscript><!-- comment --></body></html>`

	text, err := TextFromHTML(strings.NewReader(page))
	require.NoError(t, err)

	assert.Equal(t, "Vaga Gerente de RH Manaus AM", text)
}

func TestTextFromHTMLNormalizesToNFC(t *testing.T) {
	// c + combining cedilla, a + combining tilde
	text, err := TextFromHTML(strings.NewReader("<p>Gesta\u0303o e seguranc\u0327a</p>"))
	require.NoError(t, err)

	assert.Equal(t, "Gest\u00e3o e seguran\u00e7a", text)
}

func TestExtractTruncates(t *testing.T) {
	url := serve(t, "text/html; charset=utf-8", "<p>"+strings.Repeat("vaga ", 2000)+"</p>", http.StatusOK)

	e := New(zap.NewNop(), time.Second, 0)
	text, err := e.Extract(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, jobs.MaxTextRunes, utf8.RuneCountInString(text))
}

func TestExtractDecodesDeclaredCharset(t *testing.T) {
	// "Função" in ISO-8859-1
	url := serve(t, "text/html; charset=iso-8859-1", "<p>Fun\xe7\xe3o</p>", http.StatusOK)

	text, err := New(zap.NewNop(), time.Second, 100).Extract(context.Background(), url)
	require.NoError(t, err)

	assert.Equal(t, "Função", text)
}

func TestExtractErrors(t *testing.T) {
	e := New(zap.NewNop(), time.Second, 0)

	_, err := e.Extract(context.Background(), serve(t, "text/html", "gone", http.StatusNotFound))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad status")

	_, err = e.Extract(context.Background(), serve(t, "text/html", "<script>only()</script>", http.StatusOK))
	assert.True(t, errors.Is(err, ErrNoText), "expected ErrNoText, got %v", err)
}
