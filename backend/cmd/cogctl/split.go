package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"cogbot/backend/internal/chunker"
	"cogbot/backend/internal/constants"
)

const chunkDivider = "----- %d/%d (%d chars) -----"

func newSplitCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "split [file]",
		Short: "Split text into Discord-sized chunks",
		Long: `Split reads text from a file (or stdin) and prints the chunks the bot
would send, separated by a divider line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read input: %w", err)
			}

			chunks, err := chunker.Split(string(data), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for i, c := range chunks {
				fmt.Fprintf(out, chunkDivider+"\n", i+1, len(chunks), len([]rune(c)))
				fmt.Fprintln(out, c)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", constants.DefaultChunkLimit, "maximum characters per chunk")
	return cmd
}
