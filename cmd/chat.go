package main

import (
	"github.com/spf13/cobra"

	"dublin-rag/internal/ui"
)

func newChatCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Ask questions in a loop on the terminal",
		Long:  `Reads one question per line until 'exit' or 'quit'. Each question is answered on its own.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := a.newRAG(s)
			if err != nil {
				return err
			}
			return ui.Chat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), timedAnswerer{rag: r, timeout: a.timeout})
		},
	}
}

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Chat with the documents in a terminal UI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			r, err := a.newRAG(s)
			if err != nil {
				return err
			}
			return ui.Run(ctx, timedAnswerer{rag: r, timeout: a.timeout})
		},
	}
}
