package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/minewatch/backend/pkg/config"
	"github.com/minewatch/backend/pkg/logger"
)

// Select picks the search backend for a run. Google Custom Search is
// preferred when both credentials are present and a single probe query
// succeeds with a non-empty response; otherwise DuckDuckGo is used. The
// returned name is threaded through results and reports so the provider is
// never hidden in package state.
func Select(ctx context.Context, cfg config.SearchConfig) (Backend, string) {
	if cfg.GoogleAPIKey != "" && cfg.GoogleCSEID != "" {
		google := NewGoogleBackend(cfg.GoogleAPIKey, cfg.GoogleCSEID, cfg.MaxHits, cfg.TimeoutSec)

		probe, err := google.Run(ctx, cfg.ProbeQuery)
		if err == nil && !probe.Empty() {
			logger.Info("Using Google Custom Search backend")
			return google, google.Name()
		}

		logger.Warn("Google Custom Search configured but probe failed, falling back",
			zap.String("probe_query", cfg.ProbeQuery),
			zap.Error(err),
		)
	}

	fallback := NewDuckDuckGoBackend(cfg.MaxHits, cfg.TimeoutSec)
	logger.Info("Using DuckDuckGo backend")
	return fallback, fallback.Name()
}
