package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		out      string
		compress bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the index to a snapshot file",
		Long: `Writes the collection to a single file, encrypted when rag.encryption_key
is set. The index manifest is written next to it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd)
			defer cancel()

			if cmd.Flags().Changed("compress") {
				a.cfg.VectorDB.Compress = compress
			}
			s, err := a.openChromem()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Export(ctx, out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported collection %s to %s\n", a.cfg.VectorDB.Collection, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "snapshot file to write")
	cmd.Flags().BoolVar(&compress, "compress", false, "gzip the snapshot")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the index with a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd)
			defer cancel()

			s, err := a.openChromem()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Import(ctx, in); err != nil {
				return err
			}
			n, err := s.Count(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d entries into collection %s\n", n, a.cfg.VectorDB.Collection)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "snapshot file to read")
	_ = cmd.MarkFlagRequired("in")
	return cmd
}
