// Package ingestion turns normalized search results into retrievable text
// units for the per-case vector index.
package ingestion

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/pkg/logger"
)

type Assembler struct {
	chunkSize    int
	chunkOverlap int
}

func NewAssembler(chunkSize, chunkOverlap int) *Assembler {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 5
	}
	return &Assembler{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Assemble converts results into text units. Results with empty content are
// skipped; long content is split into overlapping character windows, each
// carrying the parent result's provenance. Unit ids are sequential across
// the whole pass and are what the model cites.
func (a *Assembler) Assemble(results []models.SearchResult) []models.TextUnit {
	var units []models.TextUnit

	for _, result := range results {
		if result.Content == "" {
			continue
		}

		for _, window := range a.split(result.Content) {
			units = append(units, models.TextUnit{
				ID:    fmt.Sprintf("doc_%d", len(units)),
				Text:  window,
				Link:  result.Link,
				Title: result.Title,
				Query: result.Query,
			})
		}
	}

	logger.Debug("Results assembled into text units",
		zap.Int("results", len(results)),
		zap.Int("units", len(units)),
	)

	return units
}

func (a *Assembler) split(text string) []string {
	runes := []rune(text)
	if len(runes) <= a.chunkSize {
		return []string{text}
	}

	step := a.chunkSize - a.chunkOverlap
	var windows []string
	for start := 0; start < len(runes); start += step {
		end := start + a.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		windows = append(windows, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return windows
}
