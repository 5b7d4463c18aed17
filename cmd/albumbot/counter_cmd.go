package main

import (
	"fmt"

	"github.com/quailyquaily/albumbot/album"
	"github.com/quailyquaily/albumbot/internal/logutil"
	"github.com/spf13/cobra"
)

func newCounterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "counter",
		Short: "Inspect the album code counter",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the last issued code and the next one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			stack, err := openAlbumStack(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = stack.Close() }()

			current, err := stack.Allocator.Current(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(w, "key: %s\n", stack.Allocator.CounterKey())
			_, _ = fmt.Fprintf(w, "value: %d\n", current)
			if current > 0 {
				_, _ = fmt.Fprintf(w, "last: %s\n", album.FormatCode(current))
			}
			_, _ = fmt.Fprintf(w, "next: %s\n", album.FormatCode(current+1))
			return nil
		},
	})
	return cmd
}
