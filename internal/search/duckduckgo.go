// Package search queries a web search engine and returns result URLs.
package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	endpoint = "https://html.duckduckgo.com/html/"
	// UserAgent is sent with every search and page request. DuckDuckGo serves
	// an empty page to unknown clients.
	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64)"
)

// Client talks to the DuckDuckGo HTML endpoint. It needs no API key.
type Client struct {
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	Endpoint   string
}

func New(logger *zap.Logger) *Client {
	return &Client{
		logger:   logger,
		Endpoint: endpoint,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		UserAgent: UserAgent,
	}
}

// Search returns up to limit result URLs for query in ranking order.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("User-Agent", c.UserAgent)

	c.logger.Debug("make request", zap.String("url", req.URL.String()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	urls := make([]string, 0, limit)
	doc.Find("a.result__a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}

		target, ok := resultURL(href)
		if !ok {
			c.logger.Debug("skipping search result", zap.String("href", href))
			return true
		}

		urls = append(urls, target)
		return len(urls) < limit
	})

	c.logger.Debug("got search results", zap.String("query", query), zap.Int("count", len(urls)))

	return urls, nil
}

// resultURL unwraps DuckDuckGo redirect links and drops ads and relative links.
func resultURL(href string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	if isDuckDuckGo(u.Host) {
		if !strings.HasPrefix(u.Path, "/l/") {
			return "", false
		}
		target := u.Query().Get("uddg")
		if target == "" {
			return "", false
		}
		if u, err = url.Parse(target); err != nil {
			return "", false
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" || isDuckDuckGo(u.Host) {
		return "", false
	}

	return u.String(), true
}

func isDuckDuckGo(host string) bool {
	host = strings.ToLower(host)
	return host == "duckduckgo.com" || strings.HasSuffix(host, ".duckduckgo.com")
}
