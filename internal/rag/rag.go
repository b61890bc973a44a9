package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"

	"dublin-rag/internal/config"
	"dublin-rag/internal/embedding"
	"dublin-rag/internal/llmservice"
	"dublin-rag/internal/models"
)

// Store is the read side of the vector index
type Store interface {
	Search(ctx context.Context, embedding []float32, k int, where map[string]string) ([]schema.Document, error)
	Manifest(ctx context.Context) (*models.Manifest, error)
}

type RAG struct {
	embedder  embeddings.Embedder
	store     Store
	llm       llms.Model
	prompt    prompts.PromptTemplate
	topK      int
	embedding models.Manifest
	callOpts  []llms.CallOption
}

// QueryOptions override the configured retrieval for a single question
type QueryOptions struct {
	// K is the number of chunks to retrieve, the configured top_k when zero.
	K int
	// Where restricts retrieval by exact metadata match, e.g. {"source": "file.pdf"}.
	Where map[string]string
	// Model overrides the inference model.
	Model string
}

func NewRAG(embedder embeddings.Embedder, store Store, llm llms.Model, cfg *config.Config) *RAG {
	return &RAG{
		embedder:  embedder,
		store:     store,
		llm:       llm,
		prompt:    prompts.NewPromptTemplate(models.PromptTemplate, []string{"question", "context"}),
		topK:      cfg.RAG.TopK,
		embedding: embedding.Manifest(cfg),
		callOpts:  llmservice.CallOptions(&cfg.InferenceLLM),
	}
}

func (r *RAG) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	return r.QueryWithOptions(ctx, question, QueryOptions{})
}

// QueryWithOptions retrieves the chunks closest to question, renders them into
// the prompt and returns the model's answer as is.
func (r *RAG) QueryWithOptions(ctx context.Context, question string, opts QueryOptions) (*models.PromptResponse, error) {
	if strings.TrimSpace(question) == "" {
		return nil, models.ErrEmptyQuestion
	}

	docs, err := r.Retrieve(ctx, question, opts)
	if err != nil {
		return nil, err
	}

	contextText := BuildContext(docs)
	prompt, err := r.RenderPrompt(question, contextText)
	if err != nil {
		return nil, err
	}

	callOpts := r.callOpts
	if opts.Model != "" {
		callOpts = append(append([]llms.CallOption(nil), callOpts...), llms.WithModel(opts.Model))
	}
	answer, err := llmservice.GenerateContent(ctx, r.llm, prompt, callOpts...)
	if err != nil {
		return nil, err
	}

	return &models.PromptResponse{
		Query:   question,
		Source:  Sources(docs),
		Content: answer,
		Context: contextText,
	}, nil
}

// Retrieve embeds question and returns the nearest chunks, most similar first.
// It fails with models.ErrEmbeddingMismatch when the index was built with a
// different embedding model.
func (r *RAG) Retrieve(ctx context.Context, question string, opts QueryOptions) ([]schema.Document, error) {
	indexed, err := r.store.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	if indexed != nil && !indexed.SameEmbedding(r.embedding) {
		return nil, fmt.Errorf("%w: index uses %s/%s, configured %s/%s", models.ErrEmbeddingMismatch,
			indexed.EmbeddingProvider, indexed.EmbeddingModel, r.embedding.EmbeddingProvider, r.embedding.EmbeddingModel)
	}

	queryEmbedding, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if indexed != nil && indexed.Dimension > 0 && len(queryEmbedding) != indexed.Dimension {
		return nil, fmt.Errorf("%w: index dimension %d, question embedding dimension %d",
			models.ErrEmbeddingMismatch, indexed.Dimension, len(queryEmbedding))
	}

	k := opts.K
	if k <= 0 {
		k = r.topK
	}
	docs, err := r.store.Search(ctx, queryEmbedding, k, opts.Where)
	if err != nil {
		return nil, err
	}

	for i, doc := range docs {
		log.Debug().
			Int("rank", i+1).
			Float32("score", doc.Score).
			Interface("source", doc.Metadata[models.MetaSource]).
			Interface("page", doc.Metadata[models.MetaPage]).
			Msg("Retrieved chunk")
	}
	return docs, nil
}

// RenderPrompt fills the fixed template with question and context verbatim
func (r *RAG) RenderPrompt(question, contextText string) (string, error) {
	prompt, err := r.prompt.Format(map[string]any{
		"question": question,
		"context":  contextText,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return prompt, nil
}

// BuildContext joins the chunk texts in retrieval order
func BuildContext(docs []schema.Document) string {
	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.PageContent
	}
	return strings.Join(texts, models.ContextSeparator)
}

// Sources lists the distinct source files of docs in retrieval order
func Sources(docs []schema.Document) string {
	var out []string
	seen := make(map[string]bool)
	for _, doc := range docs {
		source, _ := doc.Metadata[models.MetaSource].(string)
		if source == "" || seen[source] {
			continue
		}
		seen[source] = true
		out = append(out, source)
	}
	return strings.Join(out, ", ")
}
