package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/metrics"
	"github.com/minewatch/backend/pkg/circuitbreaker"
	"github.com/minewatch/backend/pkg/logger"
	"github.com/minewatch/backend/pkg/retry"
)

type Client struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// CompletionRequest describes one chat completion. A nil Temperature falls
// back to the client default; a pointer keeps an explicit zero requestable.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  *float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func NewClient(apiKey, model, embeddingModel string, temperature float32, maxTokens int) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	temperature := c.effectiveTemperature(req)

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			metrics.LLMTokensUsed.WithLabelValues(c.model, "prompt").Add(float64(resp.Usage.PromptTokens))
			metrics.LLMTokensUsed.WithLabelValues(c.model, "completion").Add(float64(resp.Usage.CompletionTokens))

			result, err = completionResult(resp)
			return err
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *Client) effectiveTemperature(req CompletionRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.temperature
}

// completionResult maps the provider response, rejecting responses the
// provider returned without any choice.
func completionResult(resp openai.ChatCompletionResponse) (*CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("completion returned no choices")
	}

	return &CompletionResponse{
		Content: resp.Choices[0].Message.Content,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			if len(resp.Data) == 0 {
				return fmt.Errorf("embedding response contained no data")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

func (c *Client) GenerateBatchEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var embeddings [][]float32

	batchSize := 100
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := texts[i:end]

		err := c.cb.Execute(ctx, func() error {
			return retry.Do(ctx, c.retryConfig, func() error {
				resp, err := c.client.CreateEmbeddings(
					ctx,
					openai.EmbeddingRequest{
						Input: batch,
						Model: openai.EmbeddingModel(c.embeddingModel),
					},
				)

				if err != nil {
					return fmt.Errorf("failed to generate batch embeddings: %w", err)
				}

				if len(resp.Data) != len(batch) {
					return fmt.Errorf("embedding response had %d entries for %d inputs", len(resp.Data), len(batch))
				}

				for _, data := range resp.Data {
					embedding := make([]float32, len(data.Embedding))
					copy(embedding, data.Embedding)
					embeddings = append(embeddings, embedding)
				}

				return nil
			})
		})

		if err != nil {
			return nil, err
		}
	}

	logger.Debug("Batch embeddings generated", zap.Int("count", len(embeddings)))

	return embeddings, nil
}

// analystSystemPrompt demands structured extraction with per-unit citations.
// Portuguese on purpose: the sources and the report audience are Brazilian.
const analystSystemPrompt = `Você é um analista especializado em mineração e impactos socioambientais.
Analise cuidadosamente o contexto fornecido sobre o processo minerário.

INSTRUÇÕES IMPORTANTES:
1. Extraia TODAS as informações relevantes do contexto, especialmente:
   - Tipo de minério e substâncias
   - Status atual do projeto (pesquisa, lavra, etc.)
   - Localização específica (município, coordenadas se disponível)
   - QUALQUER menção a impactos socioambientais, incluindo:
     * Sobreposição com Terras Indígenas (CITE O NOME DA TI)
     * Conflitos com comunidades tradicionais
     * Questões ambientais (desmatamento, poluição, etc.)
     * Ações do Ministério Público
     * Multas ou sanções ambientais
     * Acidentes ou incidentes
     * Protestos ou manifestações

2. Para cada informação importante, indique de qual documento ela veio usando [Fonte: doc_X].

3. Se encontrar informações sobre terras indígenas, comunidades afetadas ou impactos
ambientais, descreva-os em detalhes, não apenas mencione sua existência.`

// AnalyzeCase runs the analyst prompt over the retrieved context. Low
// temperature keeps repeated runs close to deterministic.
func (c *Client) AnalyzeCase(ctx context.Context, question, contextBlock string) (string, error) {
	userPrompt := fmt.Sprintf("Contexto disponível:\n%s\n\nPergunta: %s\n\nResposta estruturada com citação das fontes:", contextBlock, question)

	temperature := float32(0.1)
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: analystSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  &temperature,
		MaxTokens:    2048,
	})
	if err != nil {
		return "", fmt.Errorf("failed to analyze case: %w", err)
	}

	logger.Info("Case analysis generated", zap.Int("summary_length", len(resp.Content)))

	return resp.Content, nil
}
