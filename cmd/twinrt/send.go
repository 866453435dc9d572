package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/message"
	"github.com/twinlab/twinrt/internal/twin"
)

var sendCmd = &cobra.Command{
	Use:   "send <id> <message-text>",
	Short: "Parse and dispatch a message using the diagnostic message syntax (§4.2)",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := twin.ParseID(args[0])
		if err != nil {
			return err
		}

		msg, err := message.Parse(strings.Join(args[1:], " "))
		if err != nil {
			return err
		}

		rt, backend, err := openRuntime()
		if err != nil {
			return err
		}
		defer backend.Close()

		result, err := rt.SendMessage(rootCtx, id, &msg)
		if err != nil {
			return err
		}
		fmt.Println(result.Render())
		return nil
	},
}
