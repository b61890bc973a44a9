package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number of indexed entries and the index manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.withTimeout(cmd)
			defer cancel()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			n, err := s.Count(ctx)
			if err != nil {
				return err
			}
			manifest, err := s.Manifest(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Backend:    %s\n", a.cfg.VectorDB.Backend)
			fmt.Fprintf(out, "Collection: %s\n", a.cfg.VectorDB.Collection)
			fmt.Fprintf(out, "Entries:    %d\n", n)
			if manifest == nil {
				fmt.Fprintln(out, "Manifest:   none, the index was never written")
				return nil
			}
			data, err := yaml.Marshal(manifest)
			if err != nil {
				return fmt.Errorf("failed to encode manifest: %w", err)
			}
			fmt.Fprintf(out, "Manifest:\n%s", data)
			return nil
		},
	}
}
