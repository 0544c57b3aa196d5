package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"tcphotos/pkg/metadata"
	"tcphotos/pkg/ui"
)

// cleanCmd represents the clean command
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove metadata files whose photo was deleted",
	Long: `Remove .metadata.txt files left behind after their photo was deleted
from the output directory. Photos are never touched.`,
	Example: `  tcphotos clean --output ./photos`,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(nil, "")
		if err != nil {
			return err
		}
		log, err := initLogger(cfg)
		if err != nil {
			return err
		}

		removed, err := metadata.CleanOrphaned(cfg.Output.Directory)
		if err != nil {
			return err
		}
		log.WithField("removed", removed).Debug("Orphaned metadata cleaned")
		if removed == 0 {
			ui.PrintInfo("Nothing to clean", cfg.Output.Directory)
			return nil
		}
		ui.PrintSuccess("Removed orphaned metadata files: " + strconv.Itoa(removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
