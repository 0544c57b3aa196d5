package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tcphotos/pkg/checkpoint"
	"tcphotos/pkg/logger"
	"tcphotos/pkg/ui"
)

var historyLimit int

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently downloaded photos",
	Long: `Show the photos recorded by previous download runs, newest first.

The history is kept in a small SQLite database next to the other
application data. It is informational only: whether a photo is
downloaded again is decided by the file on disk.`,
	Example: `  # Last 20 downloads
  tcphotos history

  # Last 100 downloads
  tcphotos history --limit 100`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil, "")
		if err != nil {
			return err
		}
		log, err := initLogger(cfg)
		if err != nil {
			return err
		}
		return runHistory(cmd.Context(), ui.Output(), cfg.History.Path, historyLimit, log)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show (0 for all)")
}

func runHistory(ctx context.Context, w io.Writer, path string, limit int, log logger.Logger) error {
	ledger, err := checkpoint.Open(ctx, path, log)
	if err != nil {
		return err
	}
	defer ledger.Close()

	entries, err := ledger.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		ui.PrintInfo("No downloads recorded yet", ledger.Path())
		return nil
	}

	rows := make([]ui.HistoryRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, ui.HistoryRow{
			When:   e.DownloadedAt,
			PostID: e.PostID,
			Index:  e.Index,
			Title:  e.Title,
			Path:   e.Path,
		})
	}
	ui.RenderHistory(w, rows)

	if total, err := ledger.Count(ctx); err == nil && total > len(entries) {
		fmt.Fprintf(w, "Showing %d of %d recorded downloads.\n", len(entries), total)
	}
	return nil
}
