package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/backend/internal/storage/models"
)

func unit(id string) models.TextUnit {
	return models.TextUnit{ID: id, Text: "texto " + id}
}

func TestMemoryIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("Returns nearest entries first", func(t *testing.T) {
		idx, err := NewMemoryProvider().NewIndex(ctx)
		require.NoError(t, err)
		defer idx.Close(ctx)

		err = idx.Insert(ctx, []Entry{
			{Unit: unit("doc_0"), Embedding: []float32{1, 0, 0}},
			{Unit: unit("doc_1"), Embedding: []float32{0, 1, 0}},
			{Unit: unit("doc_2"), Embedding: []float32{0.9, 0.1, 0}},
		})
		require.NoError(t, err)

		matches, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)

		require.Len(t, matches, 2)
		assert.Equal(t, "doc_0", matches[0].Unit.ID)
		assert.Equal(t, "doc_2", matches[1].Unit.ID)
		assert.Greater(t, matches[0].Score, matches[1].Score)
	})

	t.Run("TopK larger than entry count returns everything", func(t *testing.T) {
		idx, _ := NewMemoryProvider().NewIndex(ctx)
		defer idx.Close(ctx)

		require.NoError(t, idx.Insert(ctx, []Entry{
			{Unit: unit("doc_0"), Embedding: []float32{1, 0}},
		}))

		matches, err := idx.Search(ctx, []float32{1, 0}, 8)
		require.NoError(t, err)
		assert.Len(t, matches, 1)
	})

	t.Run("Rejects empty embeddings", func(t *testing.T) {
		idx, _ := NewMemoryProvider().NewIndex(ctx)
		defer idx.Close(ctx)

		err := idx.Insert(ctx, []Entry{{Unit: unit("doc_0"), Embedding: nil}})
		assert.Error(t, err)
	})

	t.Run("Rejects mismatched dimensions", func(t *testing.T) {
		idx, _ := NewMemoryProvider().NewIndex(ctx)
		defer idx.Close(ctx)

		require.NoError(t, idx.Insert(ctx, []Entry{
			{Unit: unit("doc_0"), Embedding: []float32{1, 0, 0}},
		}))

		err := idx.Insert(ctx, []Entry{{Unit: unit("doc_1"), Embedding: []float32{1, 0}}})
		assert.Error(t, err)

		_, err = idx.Search(ctx, []float32{1, 0}, 1)
		assert.Error(t, err)
	})

	t.Run("Zero vector scores zero", func(t *testing.T) {
		idx, _ := NewMemoryProvider().NewIndex(ctx)
		defer idx.Close(ctx)

		require.NoError(t, idx.Insert(ctx, []Entry{
			{Unit: unit("doc_0"), Embedding: []float32{0, 0, 0}},
		}))

		matches, err := idx.Search(ctx, []float32{1, 0, 0}, 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Zero(t, matches[0].Score)
	})

	t.Run("Each provider call yields an isolated index", func(t *testing.T) {
		provider := NewMemoryProvider()

		a, _ := provider.NewIndex(ctx)
		b, _ := provider.NewIndex(ctx)

		require.NoError(t, a.Insert(ctx, []Entry{
			{Unit: unit("doc_0"), Embedding: []float32{1, 0}},
		}))
		require.NoError(t, b.Insert(ctx, []Entry{
			{Unit: unit("other"), Embedding: []float32{0, 1}},
		}))

		matches, err := b.Search(ctx, []float32{0, 1}, 5)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "other", matches[0].Unit.ID)
	})
}
