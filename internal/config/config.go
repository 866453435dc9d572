// Package config loads the Runtime's tunables (§4.6 Configuration)
// through github.com/spf13/viper: typed keys, defaults registered at
// Initialize time, an optional YAML file, and environment variable
// overrides under the TWINRT_ prefix.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Runtime tunable keys (§4.6).
const (
	KeyEvictionTimeout    = "eviction.timeout"
	KeyEvictionInterval   = "eviction.interval"
	KeySnapshotOnEviction = "eviction.snapshot-on-eviction"
	KeyMaxActiveTwins     = "eviction.max-active-twins"
	KeyBackend            = "storage.backend"
	KeyDataDir            = "storage.data-dir"
)

// v is the package-level viper instance. It is nil until Initialize is
// called; every Get* helper tolerates that by returning the zero
// value rather than panicking on a nil dereference.
var v *viper.Viper

// Settings is the typed view of the registered keys above (§2.1).
type Settings struct {
	EvictionTimeout    time.Duration
	EvictionInterval   time.Duration
	SnapshotOnEviction bool
	MaxActiveTwins     int
	Backend            string
	DataDir            string
}

// Initialize registers defaults, binds the TWINRT_ environment prefix,
// and optionally loads configFile (a YAML document) if non-empty.
// Called once, from cmd/twinrt's root command, before any subcommand
// reads configuration, so every subcommand observes the same settings.
func Initialize(configFile string) error {
	v = viper.New()
	registerDefaults()

	v.SetEnvPrefix("TWINRT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}
	return nil
}

func registerDefaults() {
	v.SetDefault(KeyEvictionTimeout, "5m")
	v.SetDefault(KeyEvictionInterval, "1m")
	v.SetDefault(KeySnapshotOnEviction, true)
	v.SetDefault(KeyMaxActiveTwins, 0)
	v.SetDefault(KeyBackend, "memory")
	v.SetDefault(KeyDataDir, "./twinrt-data")
}

// GetSettings returns the current runtime configuration. If Initialize
// has not been called, it returns defaults equivalent to an empty
// Initialize("") call.
func GetSettings() Settings {
	if v == nil {
		_ = Initialize("")
	}
	return Settings{
		EvictionTimeout:    GetDuration(KeyEvictionTimeout),
		EvictionInterval:   GetDuration(KeyEvictionInterval),
		SnapshotOnEviction: GetBool(KeySnapshotOnEviction),
		MaxActiveTwins:     GetInt(KeyMaxActiveTwins),
		Backend:            GetString(KeyBackend),
		DataDir:            GetString(KeyDataDir),
	}
}

// GetString reads key as a string, or "" if config was never initialized.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool reads key as a bool, or false if config was never initialized.
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt reads key as an int, or 0 if config was never initialized.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration reads key as a time.Duration, or 0 if config was never
// initialized.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// defaultConfigDocument is the literal document WriteDefaultConfig emits,
// independent of whatever keys registerDefaults happens to set in viper.
type defaultConfigDocument struct {
	Eviction struct {
		Timeout         string `yaml:"timeout"`
		Interval        string `yaml:"interval"`
		SnapshotOnEvict bool   `yaml:"snapshot-on-eviction"`
		MaxActiveTwins  int    `yaml:"max-active-twins"`
	} `yaml:"eviction"`
	Storage struct {
		Backend string `yaml:"backend"`
		DataDir string `yaml:"data-dir"`
	} `yaml:"storage"`
}

// WriteDefaultConfig writes a commented-free starter config.yaml to path,
// for an operator who wants a file to edit rather than TWINRT_* env vars.
// Unlike Initialize's read path, which lets viper parse YAML internally,
// this is an explicit marshal through gopkg.in/yaml.v3 so the emitted
// document has a known, stable shape regardless of viper's defaults.
func WriteDefaultConfig(path string) error {
	var doc defaultConfigDocument
	doc.Eviction.Timeout = "5m"
	doc.Eviction.Interval = "1m"
	doc.Eviction.SnapshotOnEvict = true
	doc.Eviction.MaxActiveTwins = 0
	doc.Storage.Backend = "memory"
	doc.Storage.DataDir = "./twinrt-data"

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("config: marshal default document: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
