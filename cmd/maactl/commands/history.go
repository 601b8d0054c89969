package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haivivi/maafw/pkg/cli"
	"github.com/haivivi/maafw/pkg/history"
)

var (
	historyLimit int
	historyEntry string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded runs",
	Long: `Inspect runs recorded by 'maactl run' for the selected profile.

Runs are addressed by id or by any unique id prefix.

Examples:
  maactl history list --limit 5
  maactl history show 0190c2f4
  maactl history show 0190c2f4 -q '.nodes | map(.name)'
  maactl history delete 0190c2f4`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List runs, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := historyStore()
		if err != nil {
			return err
		}
		defer h.Close()

		runs, err := h.List(cmd.Context(), history.ListOptions{Limit: historyLimit, Entry: historyEntry})
		if err != nil {
			return err
		}
		if structured() {
			return printResult(cmd, runs)
		}
		if len(runs) == 0 {
			styles.PrintInfo(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		rows := make([]cli.Row, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, cli.Row{
				cli.ShortID(r.ID),
				r.Started.Local().Format("2006-01-02 15:04:05"),
				r.Entry,
				styles.Status(r.Status),
				cli.FormatDuration(r.Duration),
			})
		}
		styles.Table(cmd.OutOrStdout(), cli.Row{"ID", "STARTED", "ENTRY", "STATUS", "DURATION"}, rows)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := historyStore()
		if err != nil {
			return err
		}
		defer h.Close()

		run, err := h.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printResult(cmd, run)
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete one run",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := historyStore()
		if err != nil {
			return err
		}
		defer h.Close()

		run, err := h.Resolve(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := h.Delete(cmd.Context(), run.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run %s deleted.\n", run.ID)
		return nil
	},
}

func historyStore() (*history.Store, error) {
	p, err := currentProfile()
	if err != nil {
		return nil, err
	}
	return openHistory(p)
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs (0 for all)")
	historyListCmd.Flags().StringVar(&historyEntry, "entry", "", "only runs of this entry node")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDeleteCmd)
	rootCmd.AddCommand(historyCmd)
}
