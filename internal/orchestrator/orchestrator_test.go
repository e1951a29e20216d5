package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/frerich/clcache/internal/cache"
	"github.com/frerich/clcache/internal/common"
)

// fakeCompiler stands in for cl.exe: it "compiles" by writing objBody
// to the requested /Fo destination (or a default name) and otherwise
// echoes back canned output.
type fakeCompiler struct {
	invocations int
	objBody     string
	stdout      string
	exitCode    int
}

func (f *fakeCompiler) Invoke(cwd, compilerPath string, argv []string, env []string) (int, []byte, []byte, error) {
	f.invocations++
	obj := filepath.Join(cwd, "main.obj")
	for i, a := range argv {
		if len(a) >= 3 && a[:3] == "/Fo" {
			obj = a[3:]
		}
		_ = i
	}
	if f.exitCode == 0 {
		_ = os.WriteFile(obj, []byte(f.objBody), 0o644)
	}
	return f.exitCode, []byte(f.stdout), nil, nil
}

func newTestOrchestrator(t *testing.T, compiler *fakeCompiler) (*Orchestrator, *cache.Facade) {
	t.Helper()
	facade, err := cache.Open(cache.Options{
		Root:               t.TempDir(),
		MaxManifestEntries: cache.DefaultMaxManifestEntries,
		LockTimeout:        time.Second,
	})
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = facade.Close() })

	orch := New(facade, compiler, Options{
		CompilerPath: writeSource(t, t.TempDir(), "cl.exe", "fake compiler"), // CompilerIdentity stats this file
		NoDirect:     true, // no-direct needs no /showIncludes plumbing from the fake compiler
		Logger:       &common.Logger{},
	})
	return orch, facade
}

func writeSource(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestRunNoDirectMissThenHit(t *testing.T) {
	compiler := &fakeCompiler{objBody: "compiled-object", stdout: ""}
	orch, _ := newTestOrchestrator(t, compiler)

	cwd := t.TempDir()
	writeSource(t, cwd, "main.cpp", "int main(){}")

	first := orch.Run(cwd, []string{"/c", "main.cpp"})
	if first.ExitCode != 0 {
		t.Fatalf("first Run() exitCode = %d, stderr = %s", first.ExitCode, first.Stderr)
	}
	objPath := filepath.Join(cwd, "main.obj")
	if _, err := os.Stat(objPath); err != nil {
		t.Fatalf("object file missing after first Run(): %v", err)
	}
	firstInvocations := compiler.invocations
	if firstInvocations < 1 {
		t.Fatalf("expected at least one real-compiler invocation on a miss, got %d", firstInvocations)
	}

	_ = os.Remove(objPath)
	second := orch.Run(cwd, []string{"/c", "main.cpp"})
	if second.ExitCode != 0 {
		t.Fatalf("second Run() exitCode = %d", second.ExitCode)
	}
	if _, err := os.Stat(objPath); err != nil {
		t.Fatalf("object file not replayed from cache on hit: %v", err)
	}
	// The preprocessing call happens on every request; only the full
	// compile invocation should be skipped on a hit, so invocations
	// should not have doubled.
	if compiler.invocations >= firstInvocations*2 {
		t.Errorf("invocations = %d, want fewer than %d (cache hit should skip the real compile)", compiler.invocations, firstInvocations*2)
	}
}

// directFakeCompiler is like fakeCompiler but also emits a /showIncludes
// note for a fixed header, so direct mode has a header set to record in
// the manifest.
type directFakeCompiler struct {
	invocations int
	objBody     string
	header      string
}

func (f *directFakeCompiler) Invoke(cwd, compilerPath string, argv []string, env []string) (int, []byte, []byte, error) {
	f.invocations++
	obj := filepath.Join(cwd, "main.obj")
	for _, a := range argv {
		if len(a) >= 3 && a[:3] == "/Fo" {
			obj = a[3:]
		}
	}
	_ = os.WriteFile(obj, []byte(f.objBody), 0o644)
	stdout := "Note: including file: " + f.header + "\r\n"
	return 0, []byte(stdout), nil, nil
}

func newDirectTestOrchestrator(t *testing.T, compiler *directFakeCompiler) *Orchestrator {
	t.Helper()
	facade, err := cache.Open(cache.Options{
		Root:               t.TempDir(),
		MaxManifestEntries: cache.DefaultMaxManifestEntries,
		LockTimeout:        time.Second,
	})
	if err != nil {
		t.Fatalf("cache.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = facade.Close() })

	return New(facade, compiler, Options{
		CompilerPath: writeSource(t, t.TempDir(), "cl.exe", "fake compiler"), // CompilerIdentity stats this file
		NoDirect:     false,
		Logger:       &common.Logger{},
	})
}

// TestRunDirectModeSourceEditForcesMiss guards against regressing the
// manifest hash back to a pure path transform: a source-body edit that
// touches no header must select a fresh manifest bucket and recompile,
// never replay the pre-edit object.
func TestRunDirectModeSourceEditForcesMiss(t *testing.T) {
	cwd := t.TempDir()
	headerPath := writeSource(t, cwd, "stable.h", "int stable();")
	writeSource(t, cwd, "main.cpp", `#include "stable.h"`+"\nint main(){}")

	compiler := &directFakeCompiler{objBody: "compiled-object-v1", header: headerPath}
	orch := newDirectTestOrchestrator(t, compiler)

	first := orch.Run(cwd, []string{"/c", "main.cpp"})
	if first.ExitCode != 0 {
		t.Fatalf("first Run() exitCode = %d, stderr = %s", first.ExitCode, first.Stderr)
	}
	if compiler.invocations != 1 {
		t.Fatalf("expected exactly one real-compiler invocation on a miss, got %d", compiler.invocations)
	}

	// Edit the source body only; stable.h is untouched.
	writeSource(t, cwd, "main.cpp", `#include "stable.h"`+"\nint main(){ return 1; }")
	compiler.objBody = "compiled-object-v2"

	objPath := filepath.Join(cwd, "main.obj")
	second := orch.Run(cwd, []string{"/c", "main.cpp"})
	if second.ExitCode != 0 {
		t.Fatalf("second Run() exitCode = %d, stderr = %s", second.ExitCode, second.Stderr)
	}
	if compiler.invocations != 2 {
		t.Fatalf("invocations = %d, want 2 (source edit must force a miss, not a stale replay)", compiler.invocations)
	}
	body, err := os.ReadFile(objPath)
	if err != nil {
		t.Fatalf("ReadFile(objPath) error = %v", err)
	}
	if string(body) != "compiled-object-v2" {
		t.Errorf("object content = %q, want freshly compiled %q (got a stale pre-edit replay instead)", body, "compiled-object-v2")
	}
}

func TestRunForwardsAnalysisErrorsUnchanged(t *testing.T) {
	compiler := &fakeCompiler{exitCode: 0, stdout: "linked"}
	orch, _ := newTestOrchestrator(t, compiler)

	cwd := t.TempDir()
	writeSource(t, cwd, "main.cpp", "int main(){}")

	result := orch.Run(cwd, []string{"main.cpp"}) // no /c => linking, uncacheable
	if string(result.Stdout) != "linked" {
		t.Errorf("Stdout = %q, want the forwarded compiler's output", result.Stdout)
	}
	if compiler.invocations != 1 {
		t.Errorf("invocations = %d, want exactly 1 forwarded call", compiler.invocations)
	}
}
