package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/config"
)

var configInitCmd = &cobra.Command{
	Use:   "config-init <path>",
	Short: "Write a starter config.yaml with the default settings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefaultConfig(args[0]); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", args[0])
		return nil
	},
}
