package orchestrator

import (
	"errors"
	"os"
	"strings"

	"github.com/frerich/clcache/internal/cache"
	"github.com/frerich/clcache/internal/cmdline"
	"github.com/frerich/clcache/internal/common"
	"github.com/frerich/clcache/internal/includes"
	"github.com/frerich/clcache/internal/store"
)

var errPreprocessFailed = errors.New("clcache: preprocessing invocation exited non-zero")

// joinNormalized renders the normalized (hash-stable) command line as a
// single string suitable for mixing into a key hash.
func joinNormalized(argv []string) string {
	var b strings.Builder
	for _, a := range cmdline.NormalizeForHash(argv) {
		b.WriteString(a)
		b.WriteByte('\x1f')
	}
	return b.String()
}

// compileResult is the outcome of one real-compiler invocation, plus
// whatever /showIncludes notes it produced.
type compileResult struct {
	exitCode int
	stdout   []byte
	stderr   []byte
	includes []string
}

// hasShowIncludes reports whether argv already requests /showIncludes,
// so the orchestrator does not print duplicate notes to the caller.
func hasShowIncludes(argv []string) bool {
	for _, a := range argv {
		body := strings.TrimPrefix(strings.TrimPrefix(a, "/"), "-")
		if strings.EqualFold(body, "showIncludes") {
			return true
		}
	}
	return false
}

// runRealCompile invokes the real compiler for r, optionally injecting
// /showIncludes to recover the header set for the manifest (direct
// mode). Injected notes are stripped back out of stdout before
// returning, per spec.md §4.K.
func (o *Orchestrator) runRealCompile(r request, wantIncludes bool) (compileResult, error) {
	argv := r.argv
	injected := false
	if wantIncludes && !hasShowIncludes(argv) {
		argv = append(append([]string{}, argv...), "/showIncludes")
		injected = true
	}

	exitCode, stdout, stderr, err := o.compiler.Invoke(r.cwd, o.opts.CompilerPath, argv, cmdline.ForwardedEnviron())
	if err != nil {
		return compileResult{}, err
	}

	result := compileResult{exitCode: exitCode, stdout: stdout, stderr: stderr}
	if !wantIncludes {
		return result, nil
	}

	sourceAbs := o.sourceAbs(r)
	parsed := includes.Parse(stdout, sourceAbs, injected)
	result.includes = parsed.Includes
	result.stdout = parsed.FilteredOut
	return result, nil
}

// replay installs a cached artifact at the request's object-file
// destination and returns the captured output as if the compiler had
// just run.
func (o *Orchestrator) replay(r request, artifact *cache.CompilerArtifact) Result {
	if err := common.CopyOrHardLinkFile(artifact.ObjectPath, o.objectAbs(r), true); err != nil {
		o.opts.Logger.Error("cache hit but could not install object file:", err)
		return o.forwardUnchanged(r.cwd, r.argv)
	}
	return Result{ExitCode: 0, Stdout: []byte(artifact.Stdout), Stderr: []byte(artifact.Stderr)}
}

// tryArtifactHit attempts to serve objectHash from the artifact
// repository under its shard lock. A nil return means "not present";
// the caller falls through to a miss.
func (o *Orchestrator) tryArtifactHit(r request, objectHash string) *Result {
	lk := o.facade.ArtifactLock(objectHash)
	release, err := lk.Acquire(o.facade.LockTimeout())
	if err != nil {
		o.opts.Logger.Error(err)
		return nil
	}
	defer release()

	if !o.facade.Artifacts.HasEntry(objectHash) {
		return nil
	}
	artifact, err := o.facade.Artifacts.GetEntry(objectHash)
	if err != nil {
		return nil
	}
	o.facade.Stats.RegisterHit()
	result := o.replay(r, artifact)
	return &result
}

// storeArtifact records a fresh artifact under objectHash's shard lock
// and bumps the non-resettable size/entry counters, then triggers an
// eviction check (spec.md §4.J "Post-cache-write cleanup").
func (o *Orchestrator) storeArtifact(r request, objectHash string, stdout, stderr []byte) error {
	lk := o.facade.ArtifactLock(objectHash)
	release, err := lk.Acquire(o.facade.LockTimeout())
	if err != nil {
		return err
	}
	defer release()

	if err := o.facade.Artifacts.SetEntry(objectHash, o.objectAbs(r), stdout, stderr); err != nil {
		return err
	}

	if info, statErr := os.Stat(o.objectAbs(r)); statErr == nil {
		o.facade.Stats.Add(store.StatCacheSize, info.Size())
	}
	o.facade.Stats.Add(store.StatCacheEntries, 1)

	if err := o.facade.MaybeEvict(); err != nil {
		o.opts.Logger.Error("eviction pass failed:", err)
	}
	return nil
}
