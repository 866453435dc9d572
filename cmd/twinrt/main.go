// Command twinrt is the thin operator CLI for the digital twin runtime
// (§4.8): create/get/telemetry/send/snapshot/stats/serve, each a direct
// call into internal/registry. It exists for operability, not because
// the CLI is part of the runtime's core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twinlab/twinrt/internal/config"
	"github.com/twinlab/twinrt/internal/registry"
	"github.com/twinlab/twinrt/internal/store"
	"github.com/twinlab/twinrt/internal/store/boltstore"
	"github.com/twinlab/twinrt/internal/store/memstore"
)

var (
	backendFlag    string
	dataDirFlag    string
	configFileFlag string
	jsonOutput     bool

	// rootCtx is canceled on SIGINT/SIGTERM, mirroring cmd/bd's
	// signal-aware context in PersistentPreRun.
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "twinrt",
	Short: "twinrt - a digital twin runtime",
	Long:  "An operator CLI over the digital twin runtime: lazily-loaded, event-sourced twins with snapshotting and idle eviction.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		if err := config.Initialize(configFileFlag); err != nil {
			return fmt.Errorf("twinrt: initialize config: %w", err)
		}
		if !cmd.Flags().Changed("backend") {
			if b := config.GetString(config.KeyBackend); b != "" {
				backendFlag = b
			}
		}
		if !cmd.Flags().Changed("data-dir") {
			if d := config.GetString(config.KeyDataDir); d != "" {
				dataDirFlag = d
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "memory", "storage backend: memory or bolt")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "./twinrt-data", "directory holding the bolt database (backend=bolt only)")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "path to a twinrt YAML config file")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format (read by stats only)")

	rootCmd.AddCommand(createCmd, getCmd, telemetryCmd, sendCmd, snapshotCmd, statsCmd, serveCmd, configInitCmd)
}

// openStore opens the backend named by backendFlag. Callers are
// responsible for closing it.
func openStore() (store.Store, error) {
	switch backendFlag {
	case "memory":
		return memstore.New(), nil
	case "bolt":
		if err := os.MkdirAll(dataDirFlag, 0o750); err != nil {
			return nil, fmt.Errorf("twinrt: create data dir %s: %w", dataDirFlag, err)
		}
		return boltstore.Open(filepath.Join(dataDirFlag, "twinrt.db"))
	default:
		return nil, fmt.Errorf("twinrt: unknown backend %q (want memory or bolt)", backendFlag)
	}
}

// openRuntime opens the configured backend and wraps it in a Runtime
// built from the loaded Settings.
func openRuntime() (*registry.Runtime, store.Store, error) {
	backend, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	settings := config.GetSettings()
	rt := registry.New(backend, registry.Config{
		EvictionTimeout:    settings.EvictionTimeout,
		EvictionInterval:   settings.EvictionInterval,
		SnapshotOnEviction: settings.SnapshotOnEviction,
		MaxActiveTwins:     settings.MaxActiveTwins,
	}, nil)
	return rt, backend, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
