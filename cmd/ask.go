package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dublin-rag/internal/models"
	"dublin-rag/internal/rag"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		k           int
		source      string
		model       string
		showContext bool
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a single question",
		Long: `Retrieves the chunks closest to the question and asks the model to
answer from them only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd)
			defer cancel()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := a.newRAG(s)
			if err != nil {
				return err
			}

			opts := rag.QueryOptions{K: k, Model: model}
			if source != "" {
				opts.Where = map[string]string{models.MetaSource: source}
			}
			resp, err := r.QueryWithOptions(ctx, strings.Join(args, " "), opts)
			if err != nil {
				return err
			}

			printAnswer(cmd, resp, showContext)
			return nil
		},
	}
	cmd.Flags().IntVarP(&k, "top-k", "k", 0, "number of chunks to retrieve (default from rag.top_k)")
	cmd.Flags().StringVar(&source, "source", "", "only retrieve chunks of this file name")
	cmd.Flags().StringVar(&model, "model", "", "override the inference model")
	cmd.Flags().BoolVar(&showContext, "show-context", false, "print the retrieved context")
	return cmd
}

func printAnswer(cmd *cobra.Command, resp *models.PromptResponse, showContext bool) {
	out := cmd.OutOrStdout()
	if showContext {
		fmt.Fprintf(out, "Context:\n%s\n\n", resp.Context)
	}
	fmt.Fprintln(out, resp.Content)
	if resp.Source != "" {
		fmt.Fprintf(out, "\nSources: %s\n", resp.Source)
	}
}
