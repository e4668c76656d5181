package search

import (
	"sort"
	"strings"

	"github.com/minewatch/backend/internal/storage/models"
)

// Score ranks a result for findings selection: trusted-domain hits get a
// flat bonus of 10, plus one point per risk keyword present in the content.
// This is deliberately a separate stage from the relevant-site sort applied
// at normalization time.
func Score(result models.SearchResult, keywords []string) int {
	score := 0
	if result.IsRelevantSite {
		score += 10
	}

	content := strings.ToLower(result.Content)
	for _, keyword := range keywords {
		if strings.Contains(content, keyword) {
			score++
		}
	}

	return score
}

// SelectFindings scores every result and returns the top-n with a positive
// score, sorted descending. Ties keep their pre-sort order.
func SelectFindings(results []models.SearchResult, keywords []string, n int) []models.SearchResult {
	var findings []models.SearchResult
	for _, result := range results {
		score := Score(result, keywords)
		if score > 0 {
			result.RelevanceScore = score
			findings = append(findings, result)
		}
	}

	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].RelevanceScore > findings[j].RelevanceScore
	})

	if len(findings) > n {
		findings = findings[:n]
	}
	return findings
}
