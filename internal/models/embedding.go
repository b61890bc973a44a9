package models

import "time"

// Page is the extracted text of one page of a source document
type Page struct {
	Source string
	Number int
	Text   string
}

// Chunk represents a parsed chunk with metadata
type Chunk struct {
	Content    string
	Source     string
	PageNumber int
	ChunkID    int
	// Start is the offset of the chunk in the page text, in code points.
	Start int
}

// Entry is a chunk together with its embedding as written to the vector index
type Entry struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// Manifest records how an index was built. It is stored next to the index
// and checked before the index is queried or extended.
type Manifest struct {
	EmbeddingProvider string    `yaml:"embedding_provider"`
	EmbeddingModel    string    `yaml:"embedding_model"`
	Dimension         int       `yaml:"dimension"`
	ChunkSize         int       `yaml:"chunk_size"`
	ChunkOverlap      int       `yaml:"chunk_overlap"`
	CreatedAt         time.Time `yaml:"created_at"`
	UpdatedAt         time.Time `yaml:"updated_at"`
}

// SameEmbedding reports whether both manifests use the same embedding function.
func (m Manifest) SameEmbedding(other Manifest) bool {
	return m.EmbeddingProvider == other.EmbeddingProvider && m.EmbeddingModel == other.EmbeddingModel
}

type PromptResponse struct {
	Query   string
	Source  string
	Content string
	// Context is the retrieved text that was placed in the prompt.
	Context string
}
