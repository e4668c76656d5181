package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/backend/internal/storage/models"
)

var testKeywords = []string{"terra indígena", "conflito", "impacto", "multa"}

func TestScore(t *testing.T) {
	t.Run("Trusted domain adds flat bonus", func(t *testing.T) {
		result := models.SearchResult{Content: "sem termos", IsRelevantSite: true}
		assert.Equal(t, 10, Score(result, testKeywords))
	})

	t.Run("One point per keyword present", func(t *testing.T) {
		result := models.SearchResult{Content: "Conflito por sobreposição com terra indígena gerou multa"}
		assert.Equal(t, 3, Score(result, testKeywords))
	})

	t.Run("Keyword matching is case insensitive on content", func(t *testing.T) {
		result := models.SearchResult{Content: "CONFLITO registrado"}
		assert.Equal(t, 1, Score(result, testKeywords))
	})

	t.Run("Bonus and keywords combine", func(t *testing.T) {
		result := models.SearchResult{Content: "impacto ambiental e conflito", IsRelevantSite: true}
		assert.Equal(t, 12, Score(result, testKeywords))
	})

	t.Run("Zero for irrelevant content off trusted domains", func(t *testing.T) {
		result := models.SearchResult{Content: "notícia qualquer"}
		assert.Zero(t, Score(result, testKeywords))
	})
}

func TestSelectFindings(t *testing.T) {
	results := []models.SearchResult{
		{Title: "zero", Content: "nada"},
		{Title: "low", Content: "conflito"},
		{Title: "high", Content: "conflito e impacto", IsRelevantSite: true},
		{Title: "mid", Content: "terra indígena e multa"},
	}

	t.Run("Keeps only positive scores sorted descending", func(t *testing.T) {
		findings := SelectFindings(results, testKeywords, 5)

		require.Len(t, findings, 3)
		assert.Equal(t, "high", findings[0].Title)
		assert.Equal(t, 12, findings[0].RelevanceScore)
		assert.Equal(t, "mid", findings[1].Title)
		assert.Equal(t, "low", findings[2].Title)
	})

	t.Run("Caps at requested count", func(t *testing.T) {
		findings := SelectFindings(results, testKeywords, 1)

		require.Len(t, findings, 1)
		assert.Equal(t, "high", findings[0].Title)
	})

	t.Run("Ties keep pre-sort order", func(t *testing.T) {
		tied := []models.SearchResult{
			{Title: "first", Content: "conflito"},
			{Title: "second", Content: "impacto"},
		}
		findings := SelectFindings(tied, testKeywords, 5)

		require.Len(t, findings, 2)
		assert.Equal(t, "first", findings[0].Title)
		assert.Equal(t, "second", findings[1].Title)
	})

	t.Run("Empty input yields no findings", func(t *testing.T) {
		assert.Empty(t, SelectFindings(nil, testKeywords, 5))
	})
}
