package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dublin-rag/internal/chromemdb"
	"dublin-rag/internal/config"
	"dublin-rag/internal/db"
	"dublin-rag/internal/embedding"
	"dublin-rag/internal/indexer"
	"dublin-rag/internal/llmservice"
	"dublin-rag/internal/models"
	"dublin-rag/internal/rag"
)

const configFilePath = "./configs/config.yaml"

// store is what the commands need from either vector index backend
type store interface {
	indexer.Store
	rag.Store
	Count(ctx context.Context) (int, error)
	Close() error
}

type app struct {
	configPath string
	logLevel   string
	timeout    time.Duration

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "dublin-rag",
		Short: "Answer questions about the Dublin Regulation from its PDFs",
		Long: `Indexes the Dublin Regulation PDFs into a local vector index and answers
questions with a locally hosted LLM, grounded in the retrieved passages.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", configFilePath, "path to the YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error), overrides the config")
	flags.DurationVar(&a.timeout, "timeout", 0, "abort the command after this long, 0 for no limit")

	root.AddCommand(
		newIndexCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newTUICmd(a),
		newExportCmd(a),
		newImportCmd(a),
		newStatsCmd(a),
	)
	return root
}

func (a *app) setup() error {
	setupLogger(zerolog.InfoLevel)

	cfg, err := config.LoadOrDefault(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)

	log.Debug().Interface("config", redacted(cfg)).Msg("Loaded config")
	return nil
}

// setupLogger writes human readable logs to stderr so that answers on stdout stay clean
func setupLogger(level zerolog.Level) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()
}

// redacted returns a copy of cfg without secrets, for logging
func redacted(cfg *config.Config) config.Config {
	out := *cfg
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return "***"
	}
	out.EmbedLLM.Key = mask(out.EmbedLLM.Key)
	out.InferenceLLM.Key = mask(out.InferenceLLM.Key)
	out.RAG.EncryptionKey = mask(out.RAG.EncryptionKey)
	out.Database.DSN = mask(out.Database.DSN)
	return out
}

// withTimeout applies --timeout to the command context
func (a *app) withTimeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.timeout > 0 {
		return context.WithTimeout(ctx, a.timeout)
	}
	return context.WithCancel(ctx)
}

// openStore opens the configured vector index backend
func (a *app) openStore(ctx context.Context) (store, error) {
	vcfg := a.cfg.VectorDB
	switch vcfg.Backend {
	case config.BackendPgvector:
		bunDB := db.NewDB(db.ConnectDB(a.cfg.Database.DSN), a.cfg.Database.Debug)
		s, err := db.NewStore(ctx, bunDB, vcfg.Collection)
		if err != nil {
			bunDB.Close()
			return nil, fmt.Errorf("failed to open pgvector store: %w", err)
		}
		return s, nil
	default:
		s, err := chromemdb.NewVectorDBManager(vcfg.Path, vcfg.Collection, vcfg.Compress, a.cfg.RAG.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
		return s, nil
	}
}

// openChromem opens the chromem index, which is the only backend with snapshots
func (a *app) openChromem() (*chromemdb.VectorDBManager, error) {
	vcfg := a.cfg.VectorDB
	if vcfg.Backend != config.BackendChromem {
		return nil, fmt.Errorf("snapshots are only supported by the %s backend, configured %s", config.BackendChromem, vcfg.Backend)
	}
	return chromemdb.NewVectorDBManager(vcfg.Path, vcfg.Collection, vcfg.Compress, a.cfg.RAG.EncryptionKey)
}

// newRAG wires the answerer to the configured services and store
func (a *app) newRAG(s store) (*rag.RAG, error) {
	embedder, err := embedding.NewEmbedder(&a.cfg.EmbedLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	llm, err := llmservice.NewLLM(&a.cfg.InferenceLLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm: %w", err)
	}
	return rag.NewRAG(embedder, s, llm, a.cfg), nil
}

// timedAnswerer applies --timeout to each question of an interactive session
type timedAnswerer struct {
	rag     *rag.RAG
	timeout time.Duration
}

func (t timedAnswerer) Query(ctx context.Context, question string) (*models.PromptResponse, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	return t.rag.Query(ctx, question)
}
