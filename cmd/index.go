package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"dublin-rag/internal/embedding"
	"dublin-rag/internal/helper"
	"dublin-rag/internal/indexer"
	"dublin-rag/internal/parser"
)

func newIndexCmd(a *app) *cobra.Command {
	var (
		source string
		opts   indexer.RunOptions
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index PDF documents into the vector index",
		Long: `Loads a PDF file or every PDF in a directory, splits the pages into
overlapping chunks, embeds them and stores them in the vector index.
Re-indexing a file replaces its previous entries.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if source == "" {
				source = a.cfg.RAG.SourceDir
			}
			ctx, cancel := a.withTimeout(cmd)
			defer cancel()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			embedder, err := embedding.NewEmbedder(&a.cfg.EmbedLLM)
			if err != nil {
				return fmt.Errorf("failed to initialize embedder: %w", err)
			}

			ix := indexer.New(
				parser.NewPDFExtractor(),
				parser.NewSplitterFromConfig(a.cfg),
				embedder,
				s,
				embedding.Manifest(a.cfg),
			)
			report, err := ix.Run(ctx, source, opts)
			if report != nil {
				printReport(cmd, report, opts.DryRun)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "PDF file or directory of PDFs (default from rag.source_dir)")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "drop the whole index before writing")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "extract and split only, do not embed or write")
	return cmd
}

func printReport(cmd *cobra.Command, report *indexer.Report, dryRun bool) {
	out := cmd.OutOrStdout()
	if dryRun {
		helper.PrettyPrint(out, report.Chunks)
	}

	fmt.Fprintf(out, "Files indexed: %d\n", len(report.Files))
	fmt.Fprintf(out, "Files skipped: %d\n", len(report.Skipped))
	fmt.Fprintf(out, "Pages loaded:  %d\n", report.Pages)
	fmt.Fprintf(out, "Chunks:        %d\n", len(report.Chunks))
	if !dryRun {
		fmt.Fprintf(out, "Entries added: %d\n", report.Entries)
	}

	failed := report.FailedFiles()
	if len(failed) == 0 {
		return
	}
	files := make([]string, 0, len(failed))
	for file := range failed {
		files = append(files, file)
	}
	sort.Strings(files)
	fmt.Fprintf(out, "Files failed:  %d\n", len(failed))
	for _, file := range files {
		fmt.Fprintf(out, "  %s: %s\n", file, failed[file])
	}
}
