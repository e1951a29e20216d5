package store

import (
	"path/filepath"
	"testing"
)

func TestConfigurationDefaultMaximumCacheSize(t *testing.T) {
	cfg := NewConfiguration(Open(filepath.Join(t.TempDir(), "config.txt")))
	if got := cfg.MaximumCacheSize(); got != DefaultMaximumCacheSize {
		t.Errorf("MaximumCacheSize() = %d, want default %d", got, DefaultMaximumCacheSize)
	}
}

func TestConfigurationSetMaximumCacheSize(t *testing.T) {
	cfg := NewConfiguration(Open(filepath.Join(t.TempDir(), "config.txt")))
	if err := cfg.SetMaximumCacheSize(2048); err != nil {
		t.Fatalf("SetMaximumCacheSize() error = %v", err)
	}
	if got := cfg.MaximumCacheSize(); got != 2048 {
		t.Errorf("MaximumCacheSize() = %d, want 2048", got)
	}
}

func TestConfigurationRejectsSizeBelowMinimum(t *testing.T) {
	cfg := NewConfiguration(Open(filepath.Join(t.TempDir(), "config.txt")))
	if err := cfg.SetMaximumCacheSize(0); err == nil {
		t.Error("SetMaximumCacheSize(0) = nil error, want rejection")
	}
}
