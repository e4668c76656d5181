package vector

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/storage/models"
	"github.com/minewatch/backend/pkg/logger"
)

// MilvusProvider backs the ephemeral index with a Milvus server. Each case
// gets its own collection, dropped when the index is closed, so the
// no-cross-case-persistence contract holds here too.
type MilvusProvider struct {
	client client.Client
	dim    int
}

func NewMilvusProvider(endpoint string, dim int) (*MilvusProvider, error) {
	c, err := client.NewGrpcClient(context.Background(), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus index provider initialized", zap.String("endpoint", endpoint))

	return &MilvusProvider{client: c, dim: dim}, nil
}

func (p *MilvusProvider) Close() error {
	return p.client.Close()
}

func (p *MilvusProvider) NewIndex(ctx context.Context) (Index, error) {
	name := "case_units_" + strings.ReplaceAll(uuid.New().String(), "-", "")

	schema := &entity.Schema{
		CollectionName: name,
		Description:    "Ephemeral per-case text unit embeddings",
		Fields: []*entity.Field{
			{
				Name:       "unit_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{"max_length": "64"},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", p.dim),
				},
			},
			{
				Name:       "text",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "4096"},
			},
			{
				Name:       "link",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "title",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
			{
				Name:       "query",
				DataType:   entity.FieldTypeVarChar,
				TypeParams: map[string]string{"max_length": "512"},
			},
		},
	}

	if err := p.client.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.L2, 128)
	if err != nil {
		return nil, fmt.Errorf("failed to build index params: %w", err)
	}
	if err := p.client.CreateIndex(ctx, name, "embedding", idx, false); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	if err := p.client.LoadCollection(ctx, name, false); err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	return &milvusIndex{client: p.client, collection: name, dim: p.dim}, nil
}

type milvusIndex struct {
	client     client.Client
	collection string
	dim        int
}

func (m *milvusIndex) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	ids := make([]string, len(entries))
	embeddings := make([][]float32, len(entries))
	texts := make([]string, len(entries))
	links := make([]string, len(entries))
	titles := make([]string, len(entries))
	queries := make([]string, len(entries))

	for i, entry := range entries {
		ids[i] = entry.Unit.ID
		embeddings[i] = entry.Embedding
		texts[i] = entry.Unit.Text
		links[i] = entry.Unit.Link
		titles[i] = entry.Unit.Title
		queries[i] = entry.Unit.Query
	}

	_, err := m.client.Insert(
		ctx,
		m.collection,
		"",
		entity.NewColumnVarChar("unit_id", ids),
		entity.NewColumnFloatVector("embedding", m.dim, embeddings),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnVarChar("link", links),
		entity.NewColumnVarChar("title", titles),
		entity.NewColumnVarChar("query", queries),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entries: %w", err)
	}

	if err := m.client.Flush(ctx, m.collection, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	return nil
}

func (m *milvusIndex) Search(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	sp, err := entity.NewIndexIvfFlatSearchParam(16)
	if err != nil {
		return nil, fmt.Errorf("failed to build search params: %w", err)
	}

	searchResult, err := m.client.Search(
		ctx,
		m.collection,
		[]string{},
		"",
		[]string{"unit_id", "text", "link", "title", "query"},
		[]entity.Vector{entity.FloatVector(embedding)},
		"embedding",
		entity.L2,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	var matches []Match
	for _, sr := range searchResult {
		idCol := sr.Fields.GetColumn("unit_id")
		textCol := sr.Fields.GetColumn("text")
		linkCol := sr.Fields.GetColumn("link")
		titleCol := sr.Fields.GetColumn("title")
		queryCol := sr.Fields.GetColumn("query")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := idCol.Get(i)
			text, _ := textCol.Get(i)
			link, _ := linkCol.Get(i)
			title, _ := titleCol.Get(i)
			query, _ := queryCol.Get(i)

			matches = append(matches, Match{
				Unit: models.TextUnit{
					ID:    id.(string),
					Text:  text.(string),
					Link:  link.(string),
					Title: title.(string),
					Query: query.(string),
				},
				Score: sr.Scores[i],
			})
		}
	}

	return matches, nil
}

func (m *milvusIndex) Close(ctx context.Context) error {
	if err := m.client.DropCollection(ctx, m.collection); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
