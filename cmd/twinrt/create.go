package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <class>",
	Short: "Create a new twin of the given class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, backend, err := openRuntime()
		if err != nil {
			return err
		}
		defer backend.Close()

		id, err := rt.CreateTwin(rootCtx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(id.String())
		return nil
	},
}
