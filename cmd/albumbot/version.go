package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

// Set through -ldflags "-X main.version=...". Unset values fall back to the
// module and VCS stamps in the binary's build info.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Date      string `json:"date,omitempty"`
	GoVersion string `json:"go_version"`
}

func currentBuildInfo() buildInfo {
	info := buildInfo{
		Version:   strings.TrimSpace(version),
		GoVersion: runtime.Version(),
	}
	if c := strings.TrimSpace(commit); c != "none" {
		info.Commit = c
	}
	if d := strings.TrimSpace(date); d != "unknown" {
		info.Date = d
	}
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	if (info.Version == "" || info.Version == "dev") && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
			}
		case "vcs.time":
			if info.Date == "" {
				info.Date = s.Value
			}
		}
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return info
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and build details",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentBuildInfo()
			w := cmd.OutOrStdout()
			if short, _ := cmd.Flags().GetBool("short"); short {
				_, err := fmt.Fprintln(w, info.Version)
				return err
			}
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, _ = fmt.Fprintf(w, "albumbot %s\n", info.Version)
			if info.Commit != "" {
				_, _ = fmt.Fprintf(w, "commit: %s\n", info.Commit)
			}
			if info.Date != "" {
				_, _ = fmt.Fprintf(w, "date: %s\n", info.Date)
			}
			_, _ = fmt.Fprintf(w, "go: %s\n", info.GoVersion)
			return nil
		},
	}
	cmd.Flags().Bool("short", false, "Print only the version string.")
	cmd.Flags().Bool("json", false, "Print build details as JSON.")
	return cmd
}
