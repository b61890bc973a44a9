package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dublin-rag/internal/chromemdb"
	"dublin-rag/internal/models"
	"dublin-rag/internal/parser"
)

// fakeExtractor serves pages by file name; files listed in broken fail
type fakeExtractor struct {
	pages  map[string][]models.Page
	broken map[string]bool
}

func (f *fakeExtractor) Extract(path string) ([]models.Page, error) {
	name := filepath.Base(path)
	if f.broken[name] {
		return nil, errors.New("malformed xref table")
	}
	return f.pages[name], nil
}

// letterEmbedder maps text to its letter histogram, which is deterministic
type letterEmbedder struct {
	calls int
	err   error
}

func (e *letterEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	v := make([]float32, 27)
	v[26] = 1
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
	}
	return v, nil
}

var testManifest = models.Manifest{
	EmbeddingProvider: "ollama",
	EmbeddingModel:    "all-minilm",
	ChunkSize:         40,
	ChunkOverlap:      10,
}

type fixture struct {
	dir       string
	extractor *fakeExtractor
	embedder  *letterEmbedder
	store     *chromemdb.VectorDBManager
	indexer   *Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	pages := map[string][]models.Page{
		"dublin.pdf": {
			{Number: 1, Text: "The Dublin Regulation determines which member state is responsible for an asylum claim."},
			{Number: 2, Text: "Transfers take place within six months."},
		},
		"annex.pdf": {
			{Number: 1, Text: "Eurodac stores fingerprints."},
		},
	}
	for name := range pages {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	store, err := chromemdb.NewVectorDBManager(filepath.Join(t.TempDir(), "dublin_chroma"), "dublin", false, "")
	require.NoError(t, err)

	f := &fixture{
		dir:       dir,
		extractor: &fakeExtractor{pages: pages, broken: map[string]bool{}},
		embedder:  &letterEmbedder{},
		store:     store,
	}
	f.indexer = New(f.extractor, parser.NewSplitter(40, 10, nil), f.embedder, store, testManifest)
	f.indexer.now = func() time.Time { return time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC) }
	return f
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	n, err := f.store.Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestRunIndexesDirectory(t *testing.T) {
	f := newFixture(t)

	report, err := f.indexer.Run(context.Background(), f.dir, RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(f.dir, "annex.pdf"), filepath.Join(f.dir, "dublin.pdf")}, report.Files)
	assert.Equal(t, []string{filepath.Join(f.dir, "notes.txt")}, report.Skipped)
	assert.Empty(t, report.Failed)
	assert.Equal(t, 3, report.Pages)
	assert.Equal(t, len(report.Chunks), report.Entries)
	assert.Equal(t, report.Entries, f.count(t))
	for _, c := range report.Chunks {
		assert.LessOrEqual(t, len([]rune(c.Content)), 40)
		assert.Contains(t, []string{"annex.pdf", "dublin.pdf"}, c.Source)
	}

	manifest, err := f.store.Manifest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, manifest)
	assert.Equal(t, "all-minilm", manifest.EmbeddingModel)
	assert.Equal(t, 27, manifest.Dimension)
	assert.Equal(t, 40, manifest.ChunkSize)
	assert.Equal(t, f.indexer.now(), manifest.UpdatedAt)
}

func TestRunTwiceReplacesEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.indexer.Run(ctx, f.dir, RunOptions{})
	require.NoError(t, err)
	first := f.count(t)

	_, err = f.indexer.Run(ctx, f.dir, RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, first, f.count(t), "re-indexing replaces entries instead of duplicating them")

	// a shorter version of a document leaves no stale chunks behind
	f.extractor.pages["dublin.pdf"] = []models.Page{{Number: 1, Text: "Short."}}
	report, err := f.indexer.Run(ctx, filepath.Join(f.dir, "dublin.pdf"), RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Entries)

	vec, err := f.embedder.EmbedQuery(ctx, "Short.")
	require.NoError(t, err)
	docs, err := f.store.Search(ctx, vec, 100, map[string]string{models.MetaSource: "dublin.pdf"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Short.", docs[0].PageContent)
}

func TestRunResetDropsOtherSources(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.indexer.Run(ctx, f.dir, RunOptions{})
	require.NoError(t, err)

	report, err := f.indexer.Run(ctx, filepath.Join(f.dir, "annex.pdf"), RunOptions{Reset: true})
	require.NoError(t, err)
	assert.Equal(t, report.Entries, f.count(t))
}

func TestRunIsolatesBrokenFiles(t *testing.T) {
	f := newFixture(t)
	f.extractor.broken["annex.pdf"] = true

	report, err := f.indexer.Run(context.Background(), f.dir, RunOptions{})
	require.NoError(t, err)

	require.Contains(t, report.Failed, filepath.Join(f.dir, "annex.pdf"))
	assert.Equal(t, map[string]string{filepath.Join(f.dir, "annex.pdf"): "malformed xref table"}, report.FailedFiles())
	assert.Equal(t, []string{filepath.Join(f.dir, "dublin.pdf")}, report.Files)
	assert.Greater(t, f.count(t), 0)
}

func TestRunAllFilesBroken(t *testing.T) {
	f := newFixture(t)
	f.extractor.broken["annex.pdf"] = true
	f.extractor.broken["dublin.pdf"] = true

	report, err := f.indexer.Run(context.Background(), f.dir, RunOptions{})
	assert.ErrorIs(t, err, models.ErrNoDocuments)
	assert.Len(t, report.Failed, 2)
	assert.Zero(t, f.count(t))
}

func TestRunEmbeddingFailureWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.embedder.err = errors.New("connection refused")

	_, err := f.indexer.Run(context.Background(), f.dir, RunOptions{})
	assert.ErrorContains(t, err, "connection refused")

	assert.Zero(t, f.count(t))
	manifest, err := f.store.Manifest(context.Background())
	require.NoError(t, err)
	assert.Nil(t, manifest)
}

func TestRunDryRun(t *testing.T) {
	f := newFixture(t)

	report, err := f.indexer.Run(context.Background(), f.dir, RunOptions{DryRun: true})
	require.NoError(t, err)

	assert.NotEmpty(t, report.Chunks)
	assert.Zero(t, report.Entries)
	assert.Zero(t, f.embedder.calls)
	assert.Zero(t, f.count(t))
}

func TestRunEmbeddingMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SaveManifest(ctx, models.Manifest{EmbeddingProvider: "ollama", EmbeddingModel: "nomic-embed-text", Dimension: 768}))

	_, err := f.indexer.Run(ctx, f.dir, RunOptions{})
	assert.ErrorIs(t, err, models.ErrEmbeddingMismatch)
	assert.Zero(t, f.embedder.calls)

	_, err = f.indexer.Run(ctx, f.dir, RunOptions{Reset: true})
	require.NoError(t, err)
	manifest, err := f.store.Manifest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "all-minilm", manifest.EmbeddingModel)
	assert.Equal(t, 27, manifest.Dimension)
}

func TestRunUnsupportedSource(t *testing.T) {
	f := newFixture(t)

	_, err := f.indexer.Run(context.Background(), filepath.Join(f.dir, "notes.txt"), RunOptions{})
	assert.ErrorIs(t, err, models.ErrUnsupportedFile)
}

func TestIndexedChunkIsRetrievedByIdenticalText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.indexer.Run(ctx, f.dir, RunOptions{})
	require.NoError(t, err)

	target := report.Chunks[len(report.Chunks)-1]
	vec, err := f.embedder.EmbedQuery(ctx, target.Content)
	require.NoError(t, err)
	docs, err := f.store.Search(ctx, vec, 1, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, target.Content, docs[0].PageContent)
	assert.InDelta(t, 1.0, docs[0].Score, 1e-5)
}
