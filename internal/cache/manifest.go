package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frerich/clcache/internal/common"
)

// DefaultMaxManifestEntries is spec.md §8's "configured maximum (default 100)".
const DefaultMaxManifestEntries = 100

// ManifestEntry is the triple from spec.md §3: which headers (already
// base-dir-folded), which combined content hash, and which artifact key.
type ManifestEntry struct {
	IncludeFiles        []string `json:"includeFiles"`
	IncludesContentHash string   `json:"includesContentHash"`
	ObjectHash          string   `json:"objectHash"`
}

// Manifest is an ordered, MRU-first sequence of entries, bounded by maxEntries.
type Manifest struct {
	Entries []ManifestEntry
}

type manifestFile struct {
	Version int             `json:"version"`
	Entries []ManifestEntry `json:"entries"`
}

// ManifestRepository stores per-source manifests, sharded by the first
// two hex characters of the manifest hash (spec.md §4.G).
type ManifestRepository struct {
	root       string
	maxEntries int
	logger     *common.Logger
}

func NewManifestRepository(root string, maxEntries int, logger *common.Logger) *ManifestRepository {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxManifestEntries
	}
	return &ManifestRepository{root: root, maxEntries: maxEntries, logger: logger}
}

func (r *ManifestRepository) pathFor(manifestHash string) string {
	return filepath.Join(r.root, "manifests", shardHex(manifestHash), manifestHash+".json")
}

// ShardDir returns the directory a given manifest hash's shard lives in,
// used by the facade to derive a per-shard lock name.
func (r *ManifestRepository) ShardDir(manifestHash string) string {
	return filepath.Join(r.root, "manifests", shardHex(manifestHash))
}

// AllShardHexes lists every possible shard prefix, for composing the full cache lock.
func (r *ManifestRepository) AllShardHexes() []string { return allShardHexes() }

// Get returns the stored manifest, or (nil, false) if absent, corrupt,
// or written by a different ManifestFormatVersion (spec.md §3 invariant:
// "reading a file whose version does not match ... yields absent, not
// an error").
func (r *ManifestRepository) Get(manifestHash string) (*Manifest, bool) {
	raw, err := os.ReadFile(r.pathFor(manifestHash))
	if err != nil {
		return nil, false
	}
	var onDisk manifestFile
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return nil, false
	}
	if onDisk.Version != common.ManifestFormatVersion {
		return nil, false
	}
	return &Manifest{Entries: onDisk.Entries}, true
}

// Set persists m via temp-file-plus-rename, truncating to maxEntries
// from the front (newest-first) if needed.
func (r *ManifestRepository) Set(manifestHash string, m *Manifest) error {
	entries := m.Entries
	if len(entries) > r.maxEntries {
		entries = entries[:r.maxEntries]
	}
	raw, err := json.MarshalIndent(manifestFile{Version: common.ManifestFormatVersion, Entries: entries}, "", "  ")
	if err != nil {
		return err
	}
	return common.WriteFileAtomic(r.pathFor(manifestHash), raw)
}

// InsertMRU inserts entry at position 0, evicting the oldest entry when
// the bound is reached (spec.md §4.J processDirect miss handling).
func (m *Manifest) InsertMRU(entry ManifestEntry, maxEntries int) {
	m.Entries = append([]ManifestEntry{entry}, m.Entries...)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[:maxEntries]
	}
}

// TouchMRU moves the entry at idx to position 0, used on a manifest hit.
func (m *Manifest) TouchMRU(idx int) {
	if idx <= 0 || idx >= len(m.Entries) {
		return
	}
	entry := m.Entries[idx]
	m.Entries = append(m.Entries[:idx], m.Entries[idx+1:]...)
	m.Entries = append([]ManifestEntry{entry}, m.Entries...)
}

// IncludesContentHash hashes the sorted, deduplicated list of per-file
// content hashes, joined with ",". Invariant under reordering and
// duplication of the input (spec.md §3, §8).
func IncludesContentHash(fileHashes []string) string {
	dedup := make(map[string]bool, len(fileHashes))
	unique := make([]string, 0, len(fileHashes))
	for _, h := range fileHashes {
		if !dedup[h] {
			dedup[h] = true
			unique = append(unique, h)
		}
	}
	sort.Strings(unique)
	return common.StringHash(strings.Join(unique, ","))
}

type manifestFileInfo struct {
	path  string
	size  int64
	atime int64
}

// Clean performs atime-MRU retention: keep the newest-accessed
// manifests up to targetBytes, delete the rest, and return the
// retained byte total (spec.md §4.G Clean).
func (r *ManifestRepository) Clean(targetBytes int64) (retainedBytes int64, err error) {
	var all []manifestFileInfo
	for _, shard := range allShardHexes() {
		dir := filepath.Join(r.root, "manifests", shard)
		entries, readErr := os.ReadDir(dir)
		if readErr != nil {
			continue
		}
		for _, de := range entries {
			if de.IsDir() {
				continue
			}
			info, statErr := de.Info()
			if statErr != nil {
				continue
			}
			all = append(all, manifestFileInfo{
				path:  filepath.Join(dir, de.Name()),
				size:  info.Size(),
				atime: atimeOf(info),
			})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].atime > all[j].atime }) // newest first

	for _, f := range all {
		if retainedBytes+f.size <= targetBytes {
			retainedBytes += f.size
			continue
		}
		if err := os.Remove(f.path); err != nil && r.logger != nil {
			r.logger.Error("manifest clean: could not remove", f.path, err)
		}
	}
	return retainedBytes, nil
}
