package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/twin"
)

var telemetryCmd = &cobra.Command{
	Use:   "telemetry <id> key=val [key=val...]",
	Short: "Ingest telemetry readings for a twin",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := twin.ParseID(args[0])
		if err != nil {
			return err
		}

		readings := make(map[string]float64, len(args)-1)
		for _, pair := range args[1:] {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("twinrt: malformed reading %q (want key=value)", pair)
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("twinrt: reading %q: %w", pair, err)
			}
			readings[k] = f
		}

		rt, backend, err := openRuntime()
		if err != nil {
			return err
		}
		defer backend.Close()

		return rt.UpdateTelemetry(rootCtx, id, readings)
	},
}
