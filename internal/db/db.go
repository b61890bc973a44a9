package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	pgvector "github.com/pgvector/pgvector-go"
	"github.com/tmc/langchaingo/schema"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"dublin-rag/internal/models"
)

type Chunk struct {
	bun.BaseModel `bun:"table:rag_chunks,alias:c"`
	Collection    string            `bun:"collection,pk"`
	ID            string            `bun:"id,pk"`
	Source        string            `bun:"source,notnull"`
	Content       string            `bun:"content,notnull"`
	Metadata      map[string]string `bun:"metadata,type:jsonb"`
	Embedding     pgvector.Vector   `bun:"embedding,notnull,type:vector"`
	Score         float32           `bun:"score,scanonly"`
}

type Manifest struct {
	bun.BaseModel     `bun:"table:rag_manifests,alias:m"`
	Collection        string    `bun:"collection,pk"`
	EmbeddingProvider string    `bun:"embedding_provider,notnull"`
	EmbeddingModel    string    `bun:"embedding_model,notnull"`
	Dimension         int       `bun:"dimension"`
	ChunkSize         int       `bun:"chunk_size"`
	ChunkOverlap      int       `bun:"chunk_overlap"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func ConnectDB(dsn string) *sql.DB {
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

func InitDB(ctx context.Context, db *bun.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	for _, model := range []interface{}{(*Chunk)(nil), (*Manifest)(nil)} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	_, err := db.NewCreateIndex().
		Model((*Chunk)(nil)).
		Index("rag_chunks_source_idx").
		IfNotExists().
		Column("collection", "source").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// Store keeps one collection of index entries in Postgres with pgvector
type Store struct {
	db         *bun.DB
	collection string
}

// NewStore creates the schema if needed and returns a store for collection
func NewStore(ctx context.Context, db *bun.DB, collection string) (*Store, error) {
	if err := InitDB(ctx, db); err != nil {
		return nil, err
	}
	return newStore(db, collection), nil
}

func newStore(db *bun.DB, collection string) *Store {
	return &Store{db: db, collection: collection}
}

func (s *Store) Add(ctx context.Context, entries []models.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]Chunk, len(entries))
	for i, e := range entries {
		rows[i] = Chunk{
			Collection: s.collection,
			ID:         e.ID,
			Source:     e.Metadata[models.MetaSource],
			Content:    e.Content,
			Metadata:   e.Metadata,
			Embedding:  pgvector.NewVector(e.Embedding),
		}
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (collection, id) DO UPDATE").
			Set("source = EXCLUDED.source").
			Set("content = EXCLUDED.content").
			Set("metadata = EXCLUDED.metadata").
			Set("embedding = EXCLUDED.embedding").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("insert %d chunks: %w", len(rows), err)
		}
		return nil
	})
}

func (s *Store) DeleteSource(ctx context.Context, source string) error {
	_, err := s.db.NewDelete().
		Model((*Chunk)(nil)).
		Where("collection = ?", s.collection).
		Where("source = ?", source).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete chunks of %s: %w", source, err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*Chunk)(nil)).Where("collection = ?", s.collection).Exec(ctx); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		if _, err := tx.NewDelete().Model((*Manifest)(nil)).Where("collection = ?", s.collection).Exec(ctx); err != nil {
			return fmt.Errorf("delete manifest: %w", err)
		}
		return nil
	})
}

func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*Chunk)(nil)).Where("collection = ?", s.collection).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func (s *Store) searchQuery(dest *[]Chunk, embedding []float32, k int, where map[string]string) *bun.SelectQuery {
	vec := pgvector.NewVector(embedding)
	q := s.db.NewSelect().
		Model(dest).
		Column("c.id", "c.source", "c.content", "c.metadata").
		ColumnExpr("1 - (c.embedding <=> ?) AS score", vec).
		Where("c.collection = ?", s.collection)

	keys := make([]string, 0, len(where))
	for key := range where {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		q = q.Where("c.metadata ->> ? = ?", key, where[key])
	}

	return q.OrderExpr("c.embedding <=> ?", vec).Limit(k)
}

// Search returns the k chunks closest to embedding by cosine distance
func (s *Store) Search(ctx context.Context, embedding []float32, k int, where map[string]string) ([]schema.Document, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("query embedding is empty")
	}
	if k <= 0 {
		return nil, nil
	}
	var rows []Chunk
	if err := s.searchQuery(&rows, embedding, k, where).Scan(ctx); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	docs := make([]schema.Document, 0, len(rows))
	for _, row := range rows {
		meta := make(map[string]any, len(row.Metadata)+1)
		for key, v := range row.Metadata {
			meta[key] = v
		}
		meta["id"] = row.ID
		docs = append(docs, schema.Document{
			PageContent: row.Content,
			Metadata:    meta,
			Score:       row.Score,
		})
	}
	return docs, nil
}

func (s *Store) Manifest(ctx context.Context) (*models.Manifest, error) {
	var rec Manifest
	err := s.db.NewSelect().Model(&rec).Where("collection = ?", s.collection).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return &models.Manifest{
		EmbeddingProvider: rec.EmbeddingProvider,
		EmbeddingModel:    rec.EmbeddingModel,
		Dimension:         rec.Dimension,
		ChunkSize:         rec.ChunkSize,
		ChunkOverlap:      rec.ChunkOverlap,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

func (s *Store) SaveManifest(ctx context.Context, manifest models.Manifest) error {
	rec := &Manifest{
		Collection:        s.collection,
		EmbeddingProvider: manifest.EmbeddingProvider,
		EmbeddingModel:    manifest.EmbeddingModel,
		Dimension:         manifest.Dimension,
		ChunkSize:         manifest.ChunkSize,
		ChunkOverlap:      manifest.ChunkOverlap,
		CreatedAt:         manifest.CreatedAt,
		UpdatedAt:         manifest.UpdatedAt,
	}
	_, err := s.db.NewInsert().
		Model(rec).
		On("CONFLICT (collection) DO UPDATE").
		Set("embedding_provider = EXCLUDED.embedding_provider").
		Set("embedding_model = EXCLUDED.embedding_model").
		Set("dimension = EXCLUDED.dimension").
		Set("chunk_size = EXCLUDED.chunk_size").
		Set("chunk_overlap = EXCLUDED.chunk_overlap").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
