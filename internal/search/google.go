package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/minewatch/backend/pkg/logger"
)

const googleEndpoint = "https://www.googleapis.com/customsearch/v1"

// GoogleBackend queries the Google Custom Search JSON API and returns
// structured hits. It requires an API key and a custom search engine id.
type GoogleBackend struct {
	apiKey     string
	cseID      string
	maxHits    int
	httpClient *http.Client
}

func NewGoogleBackend(apiKey, cseID string, maxHits, timeoutSec int) *GoogleBackend {
	return &GoogleBackend{
		apiKey:  apiKey,
		cseID:   cseID,
		maxHits: maxHits,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSec) * time.Second,
		},
	}
}

func (g *GoogleBackend) Name() string {
	return "Google Custom Search"
}

func (g *GoogleBackend) Run(ctx context.Context, query string) (Response, error) {
	params := url.Values{}
	params.Add("key", g.apiKey)
	params.Add("cx", g.cseID)
	params.Add("q", query)
	params.Add("num", fmt.Sprintf("%d", g.maxHits))

	req, err := http.NewRequestWithContext(ctx, "GET", fmt.Sprintf("%s?%s", googleEndpoint, params.Encode()), nil)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("google search returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		Items []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"items"`
	}

	if err := json.Unmarshal(body, &searchResp); err != nil {
		return Response{}, fmt.Errorf("failed to parse response: %w", err)
	}

	hits := make([]Hit, 0, len(searchResp.Items))
	for _, item := range searchResp.Items {
		hits = append(hits, Hit{
			Title:   item.Title,
			Link:    item.Link,
			Snippet: item.Snippet,
		})
	}

	logger.Debug("Google search completed", zap.String("query", query), zap.Int("hits", len(hits)))

	return Response{Hits: hits}, nil
}
