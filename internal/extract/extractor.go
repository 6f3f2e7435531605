// Package extract fetches a web page and returns its visible text.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/unicode/norm"

	"github.com/spigell/job-hunter/internal/jobs"
	"github.com/spigell/job-hunter/internal/logger"
	"github.com/spigell/job-hunter/internal/search"
)

// ErrNoText is returned when a page has no visible text left after cleanup.
var ErrNoText = errors.New("no text extracted")

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 5 << 20

type Extractor struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	MaxRunes   int
}

func New(logger *zap.Logger, timeout time.Duration, maxRunes int) *Extractor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxRunes <= 0 || maxRunes > jobs.MaxTextRunes {
		maxRunes = jobs.MaxTextRunes
	}

	return &Extractor{
		logger:     logger,
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  search.UserAgent,
		MaxRunes:   maxRunes,
	}
}

// Extract downloads rawURL and returns at most MaxRunes runes of visible text.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", e.UserAgent)

	e.logger.Debug("make request", zap.String(logger.FieldURL, rawURL))

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("bad status: %s", resp.Status)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("decode page charset: %w", err)
	}

	text, err := TextFromHTML(body)
	if err != nil {
		return "", err
	}

	text = jobs.Truncate(text, e.MaxRunes)
	if text == "" {
		return "", ErrNoText
	}

	return text, nil
}

// TextFromHTML drops script, style and noscript elements and joins the
// remaining text nodes with single spaces.
func TextFromHTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		collectText(n, &b)
	}

	return norm.NFC.String(b.String()), nil
}

func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		for _, word := range strings.Fields(n.Data) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(word)
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}
