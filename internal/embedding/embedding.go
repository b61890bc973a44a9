package embedding

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"dublin-rag/internal/config"
	"dublin-rag/internal/helper"
	"dublin-rag/internal/models"
)

// placeholder token for OpenAI compatible servers that do not check it
const localToken = "local"

// NewEmbedder creates the embedder for the configured provider
func NewEmbedder(llmConfig *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	log.Debug().Interface("config", map[string]string{
		"provider":        llmConfig.Provider,
		"base_url":        llmConfig.BaseURL,
		"embedding_model": llmConfig.Model,
	}).Msg("Creating embedder")

	client, err := newClient(llmConfig)
	if err != nil {
		return nil, fmt.Errorf("init embedding client: %w", err)
	}
	return NewEmbedderWithClient(client, llmConfig.BatchSize)
}

// NewEmbedderWithClient wraps any embedding client with batching
func NewEmbedderWithClient(client embeddings.EmbedderClient, batchSize int) (*embeddings.EmbedderImpl, error) {
	opts := []embeddings.Option{embeddings.WithStripNewLines(false)}
	if batchSize > 0 {
		opts = append(opts, embeddings.WithBatchSize(batchSize))
	}
	embedder, err := embeddings.NewEmbedder(client, opts...)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return embedder, nil
}

func newClient(llmConfig *config.LLMConfig) (embeddings.EmbedderClient, error) {
	switch llmConfig.Provider {
	case config.ProviderOllama:
		return ollama.New(
			ollama.WithServerURL(llmConfig.BaseURL),
			ollama.WithModel(llmConfig.Model),
		)
	case config.ProviderOpenAI:
		opts := []openai.Option{
			openai.WithModel(llmConfig.Model),
			openai.WithEmbeddingModel(llmConfig.Model),
			openai.WithToken(token(llmConfig.Key)),
		}
		if llmConfig.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(llmConfig.BaseURL))
		}
		return openai.New(opts...)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", llmConfig.Provider)
	}
}

func token(key string) string {
	key = strings.TrimPrefix(key, "Bearer ")
	if key == "" {
		return localToken
	}
	return key
}

// Manifest describes the embedding function of cfg as recorded in an index
func Manifest(cfg *config.Config) models.Manifest {
	return models.Manifest{
		EmbeddingProvider: cfg.EmbedLLM.Provider,
		EmbeddingModel:    cfg.EmbedLLM.Model,
		ChunkSize:         cfg.RAG.ChunkSize,
		ChunkOverlap:      cfg.RAG.ChunkOverlap,
	}
}

// GenerateEmbedding embeds all chunks and returns them as index entries.
// Either every chunk is embedded or an error is returned.
func GenerateEmbedding(ctx context.Context, embedder embeddings.Embedder, chunks []models.Chunk) ([]models.Entry, error) {
	if len(chunks) == 0 {
		log.Info().Msg("No chunks to embed")
		return nil, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	dim := len(vectors[0])
	entries := make([]models.Entry, len(chunks))
	for i, chunk := range chunks {
		if len(vectors[i]) == 0 || len(vectors[i]) != dim {
			return nil, fmt.Errorf("chunk %d of %s: vector dimension %d, expected %d", chunk.ChunkID, chunk.Source, len(vectors[i]), dim)
		}
		entries[i] = models.Entry{
			ID:        helper.ChunkID(chunk.Source, chunk.PageNumber, chunk.ChunkID),
			Content:   chunk.Content,
			Metadata:  CreateMetadata(chunk),
			Embedding: vectors[i],
		}
	}
	return entries, nil
}

// CreateMetadata returns the index metadata of a chunk
func CreateMetadata(chunk models.Chunk) map[string]string {
	return map[string]string{
		models.MetaSource: chunk.Source,
		models.MetaPage:   strconv.Itoa(chunk.PageNumber),
		models.MetaChunk:  strconv.Itoa(chunk.ChunkID),
		models.MetaStart:  strconv.Itoa(chunk.Start),
	}
}
