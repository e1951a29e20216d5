package cache

import (
	"path/filepath"
	"time"

	"github.com/frerich/clcache/internal/common"
	"github.com/frerich/clcache/internal/lock"
	"github.com/frerich/clcache/internal/store"
)

// Facade owns the manifest repository (G), artifact repository (H),
// statistics and configuration (E), and implements the composite lock
// and eviction policy (spec.md §4.I). Aggregates them behind one type
// with one Open/Close lifecycle the way NoccServer aggregates
// SrcFileCache/ObjFileCache/Stats/ActiveClients.
type Facade struct {
	Root    string
	Logger  *common.Logger
	Manifests *ManifestRepository
	Artifacts *ArtifactRepository
	Stats     *store.Statistics
	Config    *store.Configuration

	statsDict *store.Dict
	cfgDict   *store.Dict

	lockTimeout   time.Duration
	releaseStats  func()
}

// Options configures a Facade at process start.
type Options struct {
	Root           string
	MaxManifestEntries int
	PreferHardLink bool
	LockTimeout    time.Duration
	Logger         *common.Logger
}

// Open loads (or initializes) the on-disk layout under opts.Root
// (spec.md §3's directory layout) and returns an aggregated Facade.
// Since statsDict/cfgDict are load-on-open, save-on-close in-memory
// copies (spec.md §4.D), Open acquires the statistics lock for the
// Facade's whole lifetime so a concurrent process's read-modify-write
// cycle cannot be interleaved with this one's; Close releases it.
// Callers must Close to persist any mutations and release the lock.
func Open(opts Options) (*Facade, error) {
	statsLock := lock.New(opts.Root, "stats")
	release, err := statsLock.Acquire(opts.LockTimeout)
	if err != nil {
		return nil, err
	}

	statsDict := store.Open(filepath.Join(opts.Root, "stats.txt"))
	cfgDict := store.Open(filepath.Join(opts.Root, "config.txt"))

	return &Facade{
		Root:         opts.Root,
		Logger:       opts.Logger,
		Manifests:    NewManifestRepository(opts.Root, opts.MaxManifestEntries, opts.Logger),
		Artifacts:    NewArtifactRepository(opts.Root, opts.PreferHardLink, opts.Logger),
		Stats:        store.NewStatistics(statsDict),
		Config:       store.NewConfiguration(cfgDict),
		statsDict:    statsDict,
		cfgDict:      cfgDict,
		lockTimeout:  opts.LockTimeout,
		releaseStats: release,
	}, nil
}

// Close persists statistics and configuration if dirty, then releases
// the statistics lock acquired by Open.
func (f *Facade) Close() error {
	defer f.releaseStats()
	if err := f.Stats.Close(); err != nil {
		return err
	}
	return f.Config.Close()
}

// ManifestLock returns the named lock guarding the shard containing manifestHash.
func (f *Facade) ManifestLock(manifestHash string) *lock.Lock {
	return lock.New(f.Manifests.ShardDir(manifestHash), "manifest-shard-"+shardHex(manifestHash))
}

// ArtifactLock returns the named lock guarding the shard containing artifact key.
func (f *Facade) ArtifactLock(key string) *lock.Lock {
	return lock.New(f.Artifacts.ShardDir(key), "object-shard-"+shardHex(key))
}

// LockTimeout is the configured per-acquisition timeout (spec.md §5).
func (f *Facade) LockTimeout() time.Duration { return f.lockTimeout }

// AcquireComposite acquires every manifest-shard lock and every
// artifact-shard lock, in ascending shard order, per spec.md §4.I. The
// statistics lock is not part of this set: Open already holds it for
// this Facade's entire lifetime, so a second acquisition here would
// self-deadlock. Used by the administrative clean and clear commands
// and by MaybeEvict, which must serialize against every concurrent
// per-request operation.
func (f *Facade) AcquireComposite() (release func(), err error) {
	var all []*lock.Lock
	for _, h := range f.Manifests.AllShardHexes() {
		all = append(all, lock.New(filepath.Join(f.Root, "manifests", h), "manifest-shard-"+h))
	}
	for _, h := range f.Artifacts.AllShardHexes() {
		all = append(all, lock.New(filepath.Join(f.Root, "objects", h), "object-shard-"+h))
	}
	return lock.AcquireAll(all, f.lockTimeout)
}

// Clean implements spec.md §4.I's eviction policy: free at least 10% of
// target to amortize subsequent compiles, split 10%/90% between
// manifests and artifacts, then update the non-resettable CacheSize /
// CacheEntries counters.
func (f *Facade) Clean(targetBytes int64) error {
	currentSize := f.Stats.Get(store.StatCacheSize)
	if currentSize < targetBytes {
		return nil
	}

	effective := int64(0.9 * float64(targetBytes))
	manifestBudget := int64(0.1 * float64(effective))
	artifactBudget := effective - manifestBudget

	manifestBytes, err := f.Manifests.Clean(manifestBudget)
	if err != nil {
		return err
	}
	entries, artifactBytes, err := f.Artifacts.Clean(artifactBudget)
	if err != nil {
		return err
	}

	f.Stats.Set(store.StatCacheSize, manifestBytes+artifactBytes)
	f.Stats.Set(store.StatCacheEntries, int64(entries))
	return nil
}

// MaybeEvict enqueues an eviction pass if current size has reached the
// configured maximum, per spec.md §4.J "Post-cache-write cleanup".
// Called outside the per-key shard lock, under the full composite lock.
func (f *Facade) MaybeEvict() error {
	if f.Stats.Get(store.StatCacheSize) < f.Config.MaximumCacheSize() {
		return nil
	}
	release, err := f.AcquireComposite()
	if err != nil {
		return err
	}
	defer release()
	return f.Clean(f.Config.MaximumCacheSize())
}
