package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsApplyWithoutAFile(t *testing.T) {
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	settings := GetSettings()
	if settings.EvictionTimeout != 5*time.Minute {
		t.Errorf("EvictionTimeout = %v, want 5m", settings.EvictionTimeout)
	}
	if settings.EvictionInterval != time.Minute {
		t.Errorf("EvictionInterval = %v, want 1m", settings.EvictionInterval)
	}
	if !settings.SnapshotOnEviction {
		t.Errorf("SnapshotOnEviction = false, want true")
	}
	if settings.MaxActiveTwins != 0 {
		t.Errorf("MaxActiveTwins = %d, want 0", settings.MaxActiveTwins)
	}
	if settings.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", settings.Backend)
	}
}

func TestYamlFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "twinrt.yaml")
	content := "eviction:\n  timeout: 30s\n  max-active-twins: 1000\nstorage:\n  backend: bolt\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	settings := GetSettings()
	if settings.EvictionTimeout != 30*time.Second {
		t.Errorf("EvictionTimeout = %v, want 30s", settings.EvictionTimeout)
	}
	if settings.MaxActiveTwins != 1000 {
		t.Errorf("MaxActiveTwins = %d, want 1000", settings.MaxActiveTwins)
	}
	if settings.Backend != "bolt" {
		t.Errorf("Backend = %q, want bolt", settings.Backend)
	}
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TWINRT_STORAGE_BACKEND", "bolt")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	if got := GetString(KeyBackend); got != "bolt" {
		t.Errorf("Backend = %q, want bolt (from env)", got)
	}
}

func TestWriteDefaultConfigProducesALoadableDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "twinrt.yaml")

	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig failed: %v", err)
	}

	if err := Initialize(path); err != nil {
		t.Fatalf("Initialize(%s) failed: %v", path, err)
	}

	settings := GetSettings()
	if settings.EvictionTimeout != 5*time.Minute {
		t.Errorf("EvictionTimeout = %v, want 5m", settings.EvictionTimeout)
	}
	if settings.Backend != "memory" {
		t.Errorf("Backend = %q, want memory", settings.Backend)
	}
}

func TestGettersTolerateUninitializedConfig(t *testing.T) {
	v = nil
	if got := GetString(KeyBackend); got != "" {
		t.Errorf("GetString before Initialize = %q, want empty", got)
	}
	if got := GetBool(KeySnapshotOnEviction); got != false {
		t.Errorf("GetBool before Initialize = %v, want false", got)
	}
	if got := GetInt(KeyMaxActiveTwins); got != 0 {
		t.Errorf("GetInt before Initialize = %d, want 0", got)
	}
	if got := GetDuration(KeyEvictionTimeout); got != 0 {
		t.Errorf("GetDuration before Initialize = %v, want 0", got)
	}
}
