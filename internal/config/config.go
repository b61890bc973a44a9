package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	BackendChromem  = "chromem"
	BackendPgvector = "pgvector"

	DefaultOllamaURL      = "http://localhost:11434"
	DefaultEmbeddingModel = "all-minilm"
	DefaultInferenceModel = "llama3"
	DefaultIndexPath      = "dublin_chroma"
	DefaultCollection     = "dublin"
	DefaultSourceDir      = "data"
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 4
	DefaultBatchSize      = 32

	envPrefix = "DUBLINRAG_"
)

// DefaultSeparators are tried in order: paragraph, line, sentence, word, character.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type Config struct {
	LogLevel     string         `yaml:"log_level"`
	EmbedLLM     LLMConfig      `yaml:"embed_llm"`
	InferenceLLM LLMConfig      `yaml:"inference_llm"`
	RAG          RAGConfig      `yaml:"rag"`
	VectorDB     VectorDBConfig `yaml:"vector_db"`
	Database     DatabaseConfig `yaml:"database"`
}

type LLMConfig struct {
	Provider    string   `yaml:"provider"`
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	Key         string   `yaml:"key"`
	BatchSize   int      `yaml:"batch_size"`
	Temperature *float64 `yaml:"temperature"`
}

type RAGConfig struct {
	SourceDir     string   `yaml:"source_dir"`
	ChunkSize     int      `yaml:"chunk_size"`
	ChunkOverlap  int      `yaml:"chunk_overlap"`
	Separators    []string `yaml:"separators"`
	TopK          int      `yaml:"top_k"`
	EncryptionKey string   `yaml:"encryption_key"`
}

type VectorDBConfig struct {
	Backend    string `yaml:"backend"`
	Path       string `yaml:"path"`
	Collection string `yaml:"collection"`
	Compress   bool   `yaml:"compress"`
}

type DatabaseConfig struct {
	DSN   string `yaml:"dsn"`
	Debug bool   `yaml:"debug"`
}

// Default returns a config for a local Ollama and an on-disk chromem index.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// LoadConfig reads the YAML file at path, applies .env and environment
// overrides and fills in defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault behaves like LoadConfig but falls back to Default when the
// file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = &Config{}
		if err := cfg.finish(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return cfg, err
}

func (c *Config) finish() error {
	// a missing .env is fine
	_ = godotenv.Load()
	c.applyEnv()
	c.ApplyDefaults()
	return c.Validate()
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	if host, ok := os.LookupEnv("OLLAMA_HOST"); ok && host != "" {
		if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
			host = "http://" + host
		}
		for _, llm := range []*LLMConfig{&c.EmbedLLM, &c.InferenceLLM} {
			if llm.Provider == "" || llm.Provider == ProviderOllama {
				llm.BaseURL = host
			}
		}
	}
	setString(&c.LogLevel, envPrefix+"LOG_LEVEL")
	setString(&c.EmbedLLM.Model, envPrefix+"EMBED_MODEL")
	setString(&c.EmbedLLM.Key, envPrefix+"EMBED_KEY")
	setString(&c.InferenceLLM.Model, envPrefix+"LLM_MODEL")
	setString(&c.InferenceLLM.Key, envPrefix+"LLM_KEY")
	setString(&c.VectorDB.Backend, envPrefix+"BACKEND")
	setString(&c.VectorDB.Path, envPrefix+"INDEX_DIR")
	setString(&c.VectorDB.Collection, envPrefix+"COLLECTION")
	setString(&c.Database.DSN, envPrefix+"DSN")
	setString(&c.RAG.EncryptionKey, envPrefix+"ENCRYPTION_KEY")
	setString(&c.RAG.SourceDir, envPrefix+"SOURCE_DIR")
}

// ApplyDefaults fills every zero value with its default.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	c.EmbedLLM.applyDefaults(DefaultEmbeddingModel)
	c.InferenceLLM.applyDefaults(DefaultInferenceModel)
	if c.EmbedLLM.BatchSize <= 0 {
		c.EmbedLLM.BatchSize = DefaultBatchSize
	}

	if c.RAG.SourceDir == "" {
		c.RAG.SourceDir = DefaultSourceDir
	}
	if c.RAG.ChunkSize <= 0 {
		c.RAG.ChunkSize = DefaultChunkSize
	}
	// an unset overlap gets the default, capped at a fifth of the chunk size;
	// a negative one disables overlap
	switch {
	case c.RAG.ChunkOverlap == 0:
		c.RAG.ChunkOverlap = min(DefaultChunkOverlap, c.RAG.ChunkSize/5)
	case c.RAG.ChunkOverlap < 0:
		c.RAG.ChunkOverlap = 0
	}
	if len(c.RAG.Separators) == 0 {
		c.RAG.Separators = append([]string(nil), DefaultSeparators...)
	}
	if c.RAG.TopK <= 0 {
		c.RAG.TopK = DefaultTopK
	}

	if c.VectorDB.Backend == "" {
		c.VectorDB.Backend = BackendChromem
	}
	if c.VectorDB.Path == "" {
		c.VectorDB.Path = DefaultIndexPath
	}
	if c.VectorDB.Collection == "" {
		c.VectorDB.Collection = DefaultCollection
	}
}

func (l *LLMConfig) applyDefaults(model string) {
	if l.Provider == "" {
		l.Provider = ProviderOllama
	}
	if l.BaseURL == "" && l.Provider == ProviderOllama {
		l.BaseURL = DefaultOllamaURL
	}
	if l.Model == "" {
		l.Model = model
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	for name, llm := range map[string]LLMConfig{"embed_llm": c.EmbedLLM, "inference_llm": c.InferenceLLM} {
		switch llm.Provider {
		case ProviderOllama, ProviderOpenAI:
		default:
			return fmt.Errorf("%s.provider: unknown provider %q", name, llm.Provider)
		}
		if llm.Model == "" {
			return fmt.Errorf("%s.model is required", name)
		}
	}
	if c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		return fmt.Errorf("rag.chunk_overlap (%d) must be smaller than rag.chunk_size (%d)", c.RAG.ChunkOverlap, c.RAG.ChunkSize)
	}
	if n := len(c.RAG.EncryptionKey); n != 0 && n != 32 {
		return fmt.Errorf("rag.encryption_key must be 32 bytes, got %d", n)
	}
	switch c.VectorDB.Backend {
	case BackendChromem:
	case BackendPgvector:
		if c.Database.DSN == "" {
			return errors.New("database.dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("vector_db.backend: unknown backend %q", c.VectorDB.Backend)
	}
	return nil
}
