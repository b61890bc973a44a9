package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"

	"dublin-rag/internal/embedding"
	"dublin-rag/internal/models"
	"dublin-rag/internal/parser"
)

// Store is the write side of the vector index
type Store interface {
	Add(ctx context.Context, entries []models.Entry) error
	DeleteSource(ctx context.Context, source string) error
	Reset(ctx context.Context) error
	Manifest(ctx context.Context) (*models.Manifest, error)
	SaveManifest(ctx context.Context, manifest models.Manifest) error
}

type RunOptions struct {
	// Reset drops the whole collection before writing.
	Reset bool
	// DryRun extracts and splits only.
	DryRun bool
}

// Report summarises one indexing run
type Report struct {
	Files   []string         `json:"files"`
	Skipped []string         `json:"skipped,omitempty"`
	Failed  map[string]error `json:"-"`
	Pages   int              `json:"pages"`
	Chunks  []models.Chunk   `json:"-"`
	Entries int              `json:"entries"`
}

// FailedFiles returns the failures as text, keyed by file
func (r *Report) FailedFiles() map[string]string {
	out := make(map[string]string, len(r.Failed))
	for file, err := range r.Failed {
		out[file] = err.Error()
	}
	return out
}

type Indexer struct {
	extractor parser.Extractor
	splitter  *parser.Splitter
	embedder  embeddings.Embedder
	store     Store
	manifest  models.Manifest
	now       func() time.Time
}

// New returns an Indexer. manifest describes the active embedding function and
// chunking and is recorded in the index after every successful run.
func New(extractor parser.Extractor, splitter *parser.Splitter, embedder embeddings.Embedder, store Store, manifest models.Manifest) *Indexer {
	return &Indexer{
		extractor: extractor,
		splitter:  splitter,
		embedder:  embedder,
		store:     store,
		manifest:  manifest,
		now:       time.Now,
	}
}

// Run indexes source, a PDF file or a directory of PDFs. Files that cannot be
// read are reported in Report.Failed and do not stop the run. Chunks are only
// written once all of them are embedded; entries of re-indexed files replace
// the previous ones.
func (ix *Indexer) Run(ctx context.Context, source string, opts RunOptions) (*Report, error) {
	files, skipped, err := parser.ListSources(source)
	if err != nil {
		return nil, err
	}
	report := &Report{Skipped: skipped, Failed: make(map[string]error)}
	log.Info().Str("source", source).Int("files", len(files)).Int("skipped", len(skipped)).Msg("Loading documents")

	for _, file := range files {
		log.Info().Str("file", file).Msg("Loading")
		pages, err := ix.extractor.Extract(file)
		if err != nil {
			log.Error().Err(err).Str("file", file).Msg("Failed to load document")
			report.Failed[file] = err
			continue
		}
		// page sources are the bare file name, whatever the extractor set
		name := filepath.Base(file)
		for i := range pages {
			pages[i].Source = name
		}
		report.Files = append(report.Files, file)
		report.Pages += len(pages)
		report.Chunks = append(report.Chunks, ix.splitter.SplitPages(pages)...)
	}
	log.Info().Int("pages", report.Pages).Int("chunks", len(report.Chunks)).Msg("Created chunks")

	if opts.DryRun {
		return report, nil
	}
	if len(report.Chunks) == 0 {
		return report, fmt.Errorf("%s: %w", source, models.ErrNoDocuments)
	}

	existing, err := ix.store.Manifest(ctx)
	if err != nil {
		return report, err
	}
	if existing != nil && !opts.Reset && !existing.SameEmbedding(ix.manifest) {
		return report, fmt.Errorf("%w: index uses %s/%s, configured %s/%s, re-index with reset",
			models.ErrEmbeddingMismatch, existing.EmbeddingProvider, existing.EmbeddingModel,
			ix.manifest.EmbeddingProvider, ix.manifest.EmbeddingModel)
	}

	entries, err := embedding.GenerateEmbedding(ctx, ix.embedder, report.Chunks)
	if err != nil {
		return report, err
	}
	dim := len(entries[0].Embedding)
	if existing != nil && !opts.Reset && existing.Dimension > 0 && existing.Dimension != dim {
		return report, fmt.Errorf("%w: index dimension %d, embedder returned %d",
			models.ErrEmbeddingMismatch, existing.Dimension, dim)
	}

	if opts.Reset {
		if err := ix.store.Reset(ctx); err != nil {
			return report, err
		}
		existing = nil
	} else {
		for _, file := range report.Files {
			if err := ix.store.DeleteSource(ctx, filepath.Base(file)); err != nil {
				return report, err
			}
		}
	}

	if err := ix.store.Add(ctx, entries); err != nil {
		return report, err
	}
	report.Entries = len(entries)

	manifest := ix.manifest
	manifest.Dimension = dim
	manifest.UpdatedAt = ix.now().UTC()
	manifest.CreatedAt = manifest.UpdatedAt
	if existing != nil && !existing.CreatedAt.IsZero() {
		manifest.CreatedAt = existing.CreatedAt
	}
	if err := ix.store.SaveManifest(ctx, manifest); err != nil {
		return report, err
	}

	log.Info().Int("entries", report.Entries).Int("failed", len(report.Failed)).Msg("Indexed chunks")
	return report, nil
}
