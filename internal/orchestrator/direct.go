package orchestrator

import (
	"github.com/frerich/clcache/internal/cache"
	"github.com/frerich/clcache/internal/common"
)

// processDirect implements spec.md §4.J's direct-mode flow: a manifest
// keyed on (compiler identity, normalized command line, source file
// content) lists candidate header sets in MRU order; the first entry
// whose headers still hash the way they did when it was recorded is a
// hit. Hashing the source file's own content into the key (rather than
// just its path, spec.md §4.G: "the manifest hash is
// fileHash(sourceFile, additionalData)") means an edit to the source
// body alone — without touching any header — lands in a different
// manifest bucket instead of silently replaying a stale object.
func (o *Orchestrator) processDirect(r request) Result {
	identity, err := common.CompilerIdentity(o.opts.CompilerPath)
	if err != nil {
		return o.forwardUnchanged(r.cwd, r.argv)
	}
	sourceHash, err := common.FileHash(o.sourceAbs(r), "")
	if err != nil {
		return o.forwardUnchanged(r.cwd, r.argv)
	}
	manifestHash := common.StringHash(identity + "|" + joinNormalized(r.argv) + "|" + sourceHash)

	mlock := o.facade.ManifestLock(manifestHash)
	release, err := mlock.Acquire(o.facade.LockTimeout())
	if err != nil {
		o.opts.Logger.Error(err)
		return o.forwardUnchanged(r.cwd, r.argv)
	}
	defer release()

	manifest, found := o.facade.Manifests.Get(manifestHash)
	if manifest == nil {
		manifest = &cache.Manifest{}
	}

	for idx, entry := range manifest.Entries {
		if !o.entryMatchesDisk(entry) {
			continue
		}
		manifest.TouchMRU(idx)
		if err := o.facade.Manifests.Set(manifestHash, manifest); err != nil {
			o.opts.Logger.Error("could not persist manifest:", err)
		}
		if hit := o.tryArtifactHit(r, entry.ObjectHash); hit != nil {
			return *hit
		}
		// The manifest remembered this header set, but the artifact it
		// pointed at is gone: the entry survived eviction of the object.
		o.facade.Stats.RegisterMiss("evicted")
		return o.compileDirectMiss(r, identity, sourceHash, manifestHash, manifest)
	}

	subclass := "source-changed"
	if found {
		subclass = "header-changed"
	}
	o.facade.Stats.RegisterMiss(subclass)
	return o.compileDirectMiss(r, identity, sourceHash, manifestHash, manifest)
}

// entryMatchesDisk reports whether every header entry recalls matches
// the current on-disk content, by expanding each folded path and
// recombining their content hashes (spec.md §4.A/§4.G).
func (o *Orchestrator) entryMatchesDisk(entry cache.ManifestEntry) bool {
	hashes := make([]string, 0, len(entry.IncludeFiles))
	for _, folded := range entry.IncludeFiles {
		path, err := common.ExpandPath(folded, o.opts.BaseDir)
		if err != nil {
			return false
		}
		h, err := common.FileHash(path, "")
		if err != nil {
			return false
		}
		hashes = append(hashes, h)
	}
	return cache.IncludesContentHash(hashes) == entry.IncludesContentHash
}

// compileDirectMiss runs the real compiler with /showIncludes injected,
// records the discovered header set as a new MRU manifest entry, and
// stores the resulting object as a fresh artifact.
func (o *Orchestrator) compileDirectMiss(r request, identity, sourceHash, manifestHash string, manifest *cache.Manifest) Result {
	cr, err := o.runRealCompile(r, true)
	if err != nil {
		o.opts.Logger.Error("could not invoke real compiler:", err)
		return Result{ExitCode: 1, Stderr: []byte(err.Error())}
	}
	result := Result{ExitCode: cr.exitCode, Stdout: cr.stdout, Stderr: cr.stderr}
	if cr.exitCode != 0 {
		return result
	}

	folded := make([]string, 0, len(cr.includes))
	hashes := make([]string, 0, len(cr.includes))
	for _, inc := range cr.includes {
		h, err := common.FileHash(inc, "")
		if err != nil {
			continue // header vanished between compile and record; next run will miss cleanly
		}
		folded = append(folded, common.FoldPath(inc, o.opts.BaseDir))
		hashes = append(hashes, h)
	}
	combined := cache.IncludesContentHash(hashes)
	objectHash := common.StringHash(identity + "|" + combined + "|" + sourceHash)

	if err := o.storeArtifact(r, objectHash, cr.stdout, cr.stderr); err != nil {
		o.opts.Logger.Error("could not store artifact:", err)
		return result
	}

	manifest.InsertMRU(cache.ManifestEntry{
		IncludeFiles:        folded,
		IncludesContentHash: combined,
		ObjectHash:          objectHash,
	}, cache.DefaultMaxManifestEntries)
	if err := o.facade.Manifests.Set(manifestHash, manifest); err != nil {
		o.opts.Logger.Error("could not persist manifest:", err)
	}
	return result
}
