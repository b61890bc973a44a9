package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const ChatPrompt = "Your question (or 'exit'): "

// Chat runs the line-oriented question loop until exit, quit or end of input.
// A failed question prints the error in place of the answer and the loop goes on.
func Chat(ctx context.Context, in io.Reader, out io.Writer, answerer Answerer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, ChatPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		if IsExit(question) {
			return nil
		}
		if question == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := answerer.Query(ctx, question)
		if err != nil {
			fmt.Fprintf(out, "\nError: %v\n\n", err)
			continue
		}
		fmt.Fprintf(out, "\nAnswer:\n%s\n", resp.Content)
		if resp.Source != "" {
			fmt.Fprintf(out, "Sources: %s\n", resp.Source)
		}
		fmt.Fprintln(out)
	}
}
