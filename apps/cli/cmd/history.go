package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/restpipe/packages/history"
)

var (
	historyLimit int
	historyStats bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show calls recorded in the history store",
	Long: `Show the most recent calls recorded by --history (or history: in the config
file, or RESTPIPE_HISTORY). Failed calls show their error kind.`,
	Example: `  restpipe history --history calls.db
  restpipe history --limit 50 -o json
  restpipe history --stats`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of calls to show")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Show counts per outcome instead of calls")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if cfg.History == "" {
		return configError(errors.New("no history store configured; pass --history or set RESTPIPE_HISTORY"))
	}
	if historyLimit < 1 {
		return usageError(fmt.Errorf("limit must be at least 1"))
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		return configError(err)
	}
	defer store.Close()

	formatter := newFormatter(cmd)
	if historyStats {
		stats, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		formatter.FormatStats(stats)
		return nil
	}

	entries, err := store.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	formatter.FormatHistory(entries)
	return nil
}
