package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quailyquaily/albumbot/internal/logutil"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newAlbumCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "album",
		Short: "Inspect and remove published albums",
	}
	cmd.AddCommand(newAlbumGetCmd())
	cmd.AddCommand(newAlbumDeleteCmd())
	return cmd
}

func newAlbumGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <code>",
		Short: "Print the record stored under an album code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "yaml" && format != "json" {
				return fmt.Errorf("invalid --format %q (want yaml|json)", format)
			}
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			stack, err := openAlbumStack(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer func() { _ = stack.Close() }()

			rec, err := stack.Publisher.Lookup(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			var out []byte
			switch format {
			case "json":
				out, err = json.MarshalIndent(rec, "", "  ")
				out = append(out, '\n')
			default:
				out, err = yaml.Marshal(rec)
			}
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().String("format", "yaml", "Output format: yaml|json.")
	return cmd
}

func newAlbumDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <code>",
		Short: "Delete the record stored under an album code",
		Args:  cobra.ExactArgs(1),
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

			code := strings.TrimSpace(args[0])
			if _, err := stack.Publisher.Lookup(cmd.Context(), code); err != nil {
				return err
			}
			if err := stack.Publisher.Delete(cmd.Context(), 0, code); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", code)
			return nil
		},
	}
}
