package cache

import (
	"testing"

	"github.com/frerich/clcache/internal/common"
)

func TestManifestRepositorySetGetRoundTrip(t *testing.T) {
	repo := NewManifestRepository(t.TempDir(), 0, nil)
	m := &Manifest{Entries: []ManifestEntry{
		{IncludeFiles: []string{"?\\foo.h"}, IncludesContentHash: "abc", ObjectHash: "obj1"},
	}}

	if err := repo.Set("deadbeef", m); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, ok := repo.Get("deadbeef")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if len(got.Entries) != 1 || got.Entries[0].ObjectHash != "obj1" {
		t.Errorf("Get() = %#v", got)
	}
}

func TestManifestRepositoryGetMissingIsAbsent(t *testing.T) {
	repo := NewManifestRepository(t.TempDir(), 0, nil)
	if _, ok := repo.Get("nonexistent"); ok {
		t.Error("Get() on missing manifest ok = true, want false")
	}
}

func TestManifestInsertMRUEvictsOldest(t *testing.T) {
	m := &Manifest{}
	for i := 0; i < 3; i++ {
		m.InsertMRU(ManifestEntry{ObjectHash: string(rune('a' + i))}, 2)
	}
	if len(m.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(m.Entries))
	}
	if m.Entries[0].ObjectHash != "c" || m.Entries[1].ObjectHash != "b" {
		t.Errorf("Entries = %#v, want MRU order [c, b]", m.Entries)
	}
}

func TestManifestTouchMRUReorders(t *testing.T) {
	m := &Manifest{Entries: []ManifestEntry{
		{ObjectHash: "a"}, {ObjectHash: "b"}, {ObjectHash: "c"},
	}}
	m.TouchMRU(2)
	want := []string{"c", "a", "b"}
	for i, e := range m.Entries {
		if e.ObjectHash != want[i] {
			t.Errorf("Entries = %#v, want %#v", m.Entries, want)
			break
		}
	}
}

func TestIncludesContentHashInvariantUnderReorderAndDuplication(t *testing.T) {
	a := IncludesContentHash([]string{"h1", "h2", "h1"})
	b := IncludesContentHash([]string{"h2", "h1"})
	if a != b {
		t.Errorf("IncludesContentHash not invariant: %q != %q", a, b)
	}
}

func TestManifestRepositoryRejectsVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	repo := NewManifestRepository(dir, 0, nil)

	stale := `{"version": 1, "entries": []}`
	if err := common.WriteFileAtomic(repo.pathFor("deadbeef"), []byte(stale)); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}

	if _, ok := repo.Get("deadbeef"); ok {
		t.Error("Get() accepted a manifest written by a different format version")
	}
}
