// Package vector provides the ephemeral per-case semantic index. One index
// is built for a single analysis pass and discarded afterwards; nothing is
// shared across cases.
package vector

import (
	"context"

	"github.com/minewatch/backend/internal/storage/models"
)

// Entry pairs a text unit with its embedding.
type Entry struct {
	Unit      models.TextUnit
	Embedding []float32
}

// Match is one retrieved unit with its similarity score.
type Match struct {
	Unit  models.TextUnit
	Score float32
}

// Index is a throwaway semantic index scoped to one analysis pass. Close
// releases whatever the provider allocated (for Milvus, the collection).
type Index interface {
	Insert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, embedding []float32, topK int) ([]Match, error)
	Close(ctx context.Context) error
}

// Provider hands out fresh indexes, one per case.
type Provider interface {
	NewIndex(ctx context.Context) (Index, error)
}
