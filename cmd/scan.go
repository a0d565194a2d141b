package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/privacypilot/internal/inventory"
	"github.com/ziadkadry99/privacypilot/internal/progress"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover common trackers and add them to the inventory",
	Long:  `Seeds the tracker inventory with commonly found trackers when it holds fewer than two entries.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, docs, err := openDocStore(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		store := inventory.NewStore(docs)
		added, err := store.Rescan(context.Background(), progress.NewReporter("Scanning trackers"))
		if err != nil {
			return fmt.Errorf("scanning: %w", err)
		}

		total, err := store.Count(context.Background())
		if err != nil {
			return err
		}
		if added == 0 {
			fmt.Printf("Inventory already populated (%d trackers), nothing added.\n", total)
			return nil
		}
		fmt.Printf("Added %d trackers (%d in inventory).\n", added, total)

		if verbose {
			trackers, err := store.List(context.Background(), inventory.ListFilter{})
			if err != nil {
				return err
			}
			for _, t := range trackers {
				fmt.Printf("  %-12s %-24s %s\n", t.Name, t.Domain, t.Category)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
