package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/config"
	"github.com/twinlab/twinrt/internal/eventbus"
	"github.com/twinlab/twinrt/internal/registry"
	"github.com/twinlab/twinrt/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the eviction task and block until signaled",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := openStore()
		if err != nil {
			return err
		}
		defer backend.Close()

		bus := eventbus.New()
		meter := telemetry.NewMeter("github.com/twinlab/twinrt/cmd/twinrt")
		bus.Register(meter)

		settings := config.GetSettings()
		rt := registry.New(backend, registry.Config{
			EvictionTimeout:    settings.EvictionTimeout,
			EvictionInterval:   settings.EvictionInterval,
			SnapshotOnEviction: settings.SnapshotOnEviction,
			MaxActiveTwins:     settings.MaxActiveTwins,
		}, bus)

		cancel := rt.StartEvictionTask(rootCtx)
		defer cancel()

		log.Printf("twinrt: serving (backend=%s, eviction every %s)", backendFlag, settings.EvictionInterval)
		<-rootCtx.Done()
		log.Printf("twinrt: shutting down")
		return nil
	},
}
