package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/cmd/maactl/internal/build"
	"github.com/haivivi/maafw/pkg/maa"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Show the maactl build and, when the library can be loaded with the
selected profile, the MaaFramework version.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := build.Current()
		if p, err := currentProfile(); err == nil {
			if err := loadLibrary(p); err == nil {
				info.Library, _ = maa.Version()
			}
		} else if maa.Loaded() {
			info.Library, _ = maa.Version()
		}

		if structured() {
			return printResult(cmd, info)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, build.String())
		if info.Library != "" {
			fmt.Fprintf(out, "  library: MaaFramework %s\n", info.Library)
		}
		if verbose {
			fmt.Fprintf(out, "  go:      %s\n", info.Go)
			if cfg, err := GetConfig(); err == nil {
				fmt.Fprintf(out, "  config:  %s\n", cfg.Path())
			} else {
				fmt.Fprintf(out, "  config:  (unavailable: %v)\n", err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
