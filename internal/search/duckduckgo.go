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

	"github.com/minewatch/backend/pkg/logger"
)

const duckduckgoEndpoint = "https://html.duckduckgo.com/html/"

// DuckDuckGoBackend scrapes the DuckDuckGo HTML endpoint. It never needs
// credentials, which is why it is the unconditional fallback. The response
// is a single text blob; URL extraction happens downstream in the runner.
type DuckDuckGoBackend struct {
	maxHits    int
	httpClient *http.Client
}

func NewDuckDuckGoBackend(maxHits, timeoutSec int) *DuckDuckGoBackend {
	return &DuckDuckGoBackend{
		maxHits: maxHits,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

func (d *DuckDuckGoBackend) Name() string {
	return "DuckDuckGo"
}

func (d *DuckDuckGoBackend) Run(ctx context.Context, query string) (Response, error) {
	searchURL := fmt.Sprintf("%s?q=%s", duckduckgoEndpoint, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, "GET", searchURL, nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("duckduckgo returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var builder strings.Builder
	count := 0
	doc.Find("div.result").Each(func(i int, s *goquery.Selection) {
		if count >= d.maxHits {
			return
		}

		title := strings.TrimSpace(s.Find("a.result__a").Text())
		snippet := strings.TrimSpace(s.Find(".result__snippet").Text())
		href, _ := s.Find("a.result__a").Attr("href")
		link := resolveRedirect(href)

		if title == "" && snippet == "" {
			return
		}

		builder.WriteString(fmt.Sprintf("%s: %s %s\n", title, snippet, link))
		count++
	})

	text := strings.TrimSpace(builder.String())

	logger.Debug("DuckDuckGo search completed", zap.String("query", query), zap.Int("results", count))

	return Response{RawText: text}, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=... redirect links so the
// blob contains the destination URL.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}

	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}

	if parsed.Scheme == "" {
		return "https:" + href
	}

	return href
}
