package common

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomicRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	if err := WriteFileAtomic(path, []byte("payload")); err != nil {
		t.Fatalf("WriteFileAtomic() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "payload" {
		t.Errorf("contents = %q, %v", got, err)
	}
}

func TestCopyOrHardLinkFileFallsBackToCopy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := CopyOrHardLinkFile(src, dst, false); err != nil {
		t.Fatalf("CopyOrHardLinkFile() error = %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil || string(got) != "data" {
		t.Errorf("contents = %q, %v", got, err)
	}
}

func TestCopyOrHardLinkFilePreferHardLink(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := CopyOrHardLinkFile(src, dst, true); err != nil {
		t.Fatalf("CopyOrHardLinkFile() error = %v", err)
	}
	srcInfo, _ := os.Stat(src)
	dstInfo, _ := os.Stat(dst)
	if !os.SameFile(srcInfo, dstInfo) {
		t.Error("CopyOrHardLinkFile(preferHardLink=true) did not hard-link on same filesystem")
	}
}

func TestReplaceFileExt(t *testing.T) {
	if got := ReplaceFileExt("main.cpp", ".obj"); got != "main.obj" {
		t.Errorf("ReplaceFileExt() = %q, want main.obj", got)
	}
}
