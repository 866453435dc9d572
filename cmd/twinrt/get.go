package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/twin"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a twin's properties as JSON",
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

		h, err := rt.GetTwin(rootCtx, id)
		if err != nil {
			return err
		}

		out := map[string]interface{}{
			"id":              h.ID().String(),
			"class":           h.ClassName(),
			"is_hypothetical": h.IsHypothetical(),
			"properties":      propertiesToJSON(h.AllProperties()),
		}
		enc, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(enc))
		return nil
	},
}
