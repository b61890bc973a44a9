package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/schema"
	"gopkg.in/yaml.v3"

	"dublin-rag/internal/helper"
	"dublin-rag/internal/models"
)

const manifestSuffix = ".manifest.yaml"

// VectorDBManager encapsulates the chromem-go database operations for one
// collection. With an empty path the database lives in memory only.
type VectorDBManager struct {
	db             *chromem.DB
	collection     *chromem.Collection
	dbPath         string
	collectionName string
	compress       bool
	encryptionKey  string
	manifest       *models.Manifest
}

// NewVectorDBManager opens (or creates) the database at dbPath and its collection
func NewVectorDBManager(dbPath, collectionName string, compress bool, encryptionKey string) (*VectorDBManager, error) {
	var db *chromem.DB
	if dbPath == "" {
		db = chromem.NewDB()
	} else {
		if err := helper.CreateFolder(dbPath); err != nil {
			return nil, err
		}
		var err error
		db, err = chromem.NewPersistentDB(dbPath, compress)
		if err != nil {
			return nil, fmt.Errorf("failed to open database %s: %w", dbPath, err)
		}
	}

	m := &VectorDBManager{
		db:             db,
		dbPath:         dbPath,
		collectionName: collectionName,
		compress:       compress,
		encryptionKey:  encryptionKey,
	}
	if err := m.getOrCreateCollection(); err != nil {
		return nil, err
	}
	manifest, err := m.readManifest(m.manifestPath())
	if err != nil {
		return nil, err
	}
	m.manifest = manifest
	return m, nil
}

func (m *VectorDBManager) getOrCreateCollection() error {
	// embeddings are always computed by the caller, the collection never embeds
	c, err := m.db.GetOrCreateCollection(m.collectionName, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create/get collection: %w", err)
	}
	m.collection = c
	return nil
}

// Add writes entries to the collection, overwriting entries with the same ID
func (m *VectorDBManager) Add(ctx context.Context, entries []models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID:        e.ID,
			Content:   e.Content,
			Metadata:  e.Metadata,
			Embedding: e.Embedding,
		}
	}
	if err := m.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}
	return nil
}

// DeleteSource removes every entry whose source metadata equals source
func (m *VectorDBManager) DeleteSource(ctx context.Context, source string) error {
	if err := m.collection.Delete(ctx, map[string]string{models.MetaSource: source}, nil); err != nil {
		return fmt.Errorf("failed to delete entries of %s: %w", source, err)
	}
	return nil
}

// Reset drops the collection and its manifest and starts an empty one
func (m *VectorDBManager) Reset(ctx context.Context) error {
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := m.getOrCreateCollection(); err != nil {
		return err
	}
	return m.removeManifest()
}

func (m *VectorDBManager) removeManifest() error {
	if m.dbPath != "" {
		if err := os.Remove(m.manifestPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove manifest: %w", err)
		}
	}
	m.manifest = nil
	return nil
}

func (m *VectorDBManager) Count(ctx context.Context) (int, error) {
	return m.collection.Count(), nil
}

// Search returns the k entries most similar to embedding, best first.
// where restricts the candidates by exact metadata match.
func (m *VectorDBManager) Search(ctx context.Context, embedding []float32, k int, where map[string]string) ([]schema.Document, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	count := m.collection.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}

	results, err := m.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: embedding,
		NResults:       min(k, count),
		Where:          where,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	docs := make([]schema.Document, 0, len(results))
	for _, r := range results {
		meta := make(map[string]any, len(r.Metadata)+1)
		for key, v := range r.Metadata {
			meta[key] = v
		}
		meta["id"] = r.ID
		docs = append(docs, schema.Document{
			PageContent: r.Content,
			Metadata:    meta,
			Score:       r.Similarity,
		})
	}
	return docs, nil
}

// Manifest returns the manifest of the collection, or nil if it was never indexed
func (m *VectorDBManager) Manifest(ctx context.Context) (*models.Manifest, error) {
	if m.manifest == nil {
		return nil, nil
	}
	out := *m.manifest
	return &out, nil
}

func (m *VectorDBManager) SaveManifest(ctx context.Context, manifest models.Manifest) error {
	if m.dbPath != "" {
		if err := writeManifest(m.manifestPath(), manifest); err != nil {
			return err
		}
	}
	m.manifest = &manifest
	return nil
}

// Export writes the collection to filePath, encrypted when an encryption key
// is configured. The manifest is written next to it.
func (m *VectorDBManager) Export(ctx context.Context, filePath string) error {
	if filePath == "" {
		return fmt.Errorf("export path is required")
	}

	log.Debug().
		Str("collection", m.collectionName).
		Str("file", filePath).
		Bool("compress", m.compress).
		Bool("encrypted", m.encryptionKey != "").
		Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	if m.manifest != nil {
		if err := writeManifest(filePath+manifestSuffix, *m.manifest); err != nil {
			return err
		}
	}
	return nil
}

// Import replaces the collection with the one stored in filePath by Export.
// Entries and manifest of the current collection are discarded; a snapshot
// without a manifest leaves the collection without one.
func (m *VectorDBManager) Import(ctx context.Context, filePath string) error {
	manifest, err := m.readManifest(filePath + manifestSuffix)
	if err != nil {
		return err
	}

	// decode into a scratch database first so a bad snapshot leaves the index untouched
	scratch := chromem.NewDB()
	if err := scratch.ImportFromFile(filePath, m.encryptionKey, m.collectionName); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if scratch.GetCollection(m.collectionName, nil) == nil {
		return fmt.Errorf("collection %s not found in %s", m.collectionName, filePath)
	}

	// chromem only writes the imported documents, old ones would survive on disk
	if err := m.db.DeleteCollection(m.collectionName); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := m.db.ImportFromFile(filePath, m.encryptionKey, m.collectionName); err != nil {
		if cerr := m.getOrCreateCollection(); cerr != nil {
			log.Error().Err(cerr).Msg("Failed to recreate collection")
		}
		return fmt.Errorf("failed to import database: %w", err)
	}
	c := m.db.GetCollection(m.collectionName, nil)
	if c == nil {
		return fmt.Errorf("collection %s not found in %s", m.collectionName, filePath)
	}
	m.collection = c

	if manifest != nil {
		return m.SaveManifest(ctx, *manifest)
	}
	return m.removeManifest()
}

// Close is a no-op, chromem persists on every write
func (m *VectorDBManager) Close() error {
	return nil
}

func (m *VectorDBManager) manifestPath() string {
	return filepath.Join(m.dbPath, m.collectionName+manifestSuffix)
}

func (m *VectorDBManager) readManifest(path string) (*models.Manifest, error) {
	if m.dbPath == "" && path == m.manifestPath() {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest models.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return &manifest, nil
}

func writeManifest(path string, manifest models.Manifest) error {
	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
