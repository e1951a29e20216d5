package cache

import (
	"testing"
	"time"

	"github.com/frerich/clcache/internal/store"
)

func openTestFacade(t *testing.T) *Facade {
	t.Helper()
	f, err := Open(Options{
		Root:               t.TempDir(),
		MaxManifestEntries: DefaultMaxManifestEntries,
		LockTimeout:        time.Second,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestFacadeOpenCloseReleasesStatsLock(t *testing.T) {
	root := t.TempDir()

	f1, err := Open(Options{Root: root, LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("first Open() error = %v", err)
	}
	f1.Stats.Increment(store.StatCallsTotal)
	if err := f1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	f2, err := Open(Options{Root: root, LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	defer f2.Close()

	if got := f2.Stats.Get(store.StatCallsTotal); got != 1 {
		t.Errorf("StatCallsTotal after reopen = %d, want 1", got)
	}
}

func TestFacadeOpenTimesOutWhileStatsHeld(t *testing.T) {
	root := t.TempDir()

	holder, err := Open(Options{Root: root, LockTimeout: time.Second})
	if err != nil {
		t.Fatalf("holder Open() error = %v", err)
	}
	defer holder.Close()

	_, err = Open(Options{Root: root, LockTimeout: 50 * time.Millisecond})
	if err == nil {
		t.Fatal("second Open() succeeded while the first still held the stats lock")
	}
}

func TestFacadeMaybeEvictTriggersAtMaximum(t *testing.T) {
	f := openTestFacade(t)
	if err := f.Config.SetMaximumCacheSize(store.MinimumCacheSize); err != nil {
		t.Fatalf("SetMaximumCacheSize() error = %v", err)
	}
	f.Stats.Set(store.StatCacheSize, store.MinimumCacheSize)

	if err := f.MaybeEvict(); err != nil {
		t.Fatalf("MaybeEvict() error = %v", err)
	}
}
