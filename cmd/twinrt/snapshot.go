package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/twin"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot <id>",
	Short: "Snapshot a twin's current state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := twin.ParseID(args[0])
		if err != nil {
			return err
		}

		rt, backend, err := openRuntime()
		if err != nil {
			return err
		}
		defer backend.Close()

		if err := rt.SnapshotTwin(rootCtx, id); err != nil {
			return err
		}
		fmt.Printf("snapshotted %s\n", id)
		return nil
	},
}
