package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print active twin count and total event count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, backend, err := openRuntime()
		if err != nil {
			return err
		}
		defer backend.Close()

		stats, err := rt.Stats(rootCtx)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc, err := json.MarshalIndent(map[string]interface{}{
				"active_twins": stats.ActiveTwins,
				"total_events": stats.TotalEvents,
			}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		}

		fmt.Printf("active_twins=%d total_events=%d\n", stats.ActiveTwins, stats.TotalEvents)
		return nil
	},
}
