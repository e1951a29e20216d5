package cache

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/frerich/clcache/internal/common"
)

// CompilerArtifact is the triple from spec.md §3: an object file plus
// captured stdout/stderr. The output bytes are stored exactly as the
// RealCompiler returned them; no encoding conversion happens here or in
// OSCompiler.
type CompilerArtifact struct {
	ObjectPath string // path to the cached object file; caller installs it at the destination
	Stdout     string
	Stderr     string // empty string if stderr.txt was never written (spec.md §4.H getEntry rule)
}

// ArtifactRepository stores compiled objects plus captured output,
// sharded by the first two hex characters of the artifact key
// (spec.md §4.H). Shape follows internal/server/file-cache.go and
// obj-cache.go's FileCache/ObjFileCache sharding and atime bookkeeping.
type ArtifactRepository struct {
	root            string
	preferHardLink  bool
	logger          *common.Logger
}

func NewArtifactRepository(root string, preferHardLink bool, logger *common.Logger) *ArtifactRepository {
	return &ArtifactRepository{root: root, preferHardLink: preferHardLink, logger: logger}
}

func (r *ArtifactRepository) entryDir(key string) string {
	return filepath.Join(r.root, "objects", shardHex(key), key)
}

// ShardDir returns the directory a given artifact key's shard lives in.
func (r *ArtifactRepository) ShardDir(key string) string {
	return filepath.Join(r.root, "objects", shardHex(key))
}

func (r *ArtifactRepository) AllShardHexes() []string { return allShardHexes() }

func (r *ArtifactRepository) objectPath(key string) string { return filepath.Join(r.entryDir(key), "object") }
func (r *ArtifactRepository) outputPath(key string) string { return filepath.Join(r.entryDir(key), "output.txt") }
func (r *ArtifactRepository) stderrPath(key string) string { return filepath.Join(r.entryDir(key), "stderr.txt") }

// HasEntry tests for output.txt, the file written last by SetEntry, so
// a reader never observes a directory that contains "object" but not
// yet "output.txt" (spec.md §4.H / write discipline invariant).
func (r *ArtifactRepository) HasEntry(key string) bool {
	_, err := os.Stat(r.outputPath(key))
	return err == nil
}

// SetEntry installs srcObjectPath as key's cached object (hard-linked
// when preferHardLink allows and the filesystem permits, falling back
// to a copy), then writes stdout (always) and stderr (only if
// non-empty). output.txt is written last so HasEntry's existence check
// only ever observes "nothing" or "everything".
func (r *ArtifactRepository) SetEntry(key string, srcObjectPath string, stdout, stderr []byte) error {
	if err := common.CopyOrHardLinkFile(srcObjectPath, r.objectPath(key), r.preferHardLink); err != nil {
		return err
	}
	if len(stderr) > 0 {
		if err := common.WriteFileAtomic(r.stderrPath(key), stderr); err != nil {
			return err
		}
	}
	return common.WriteFileAtomic(r.outputPath(key), stdout)
}

// GetEntry reads back the artifact triple. Missing stderr.txt yields an
// empty Stderr, never an error.
func (r *ArtifactRepository) GetEntry(key string) (*CompilerArtifact, error) {
	stdout, err := os.ReadFile(r.outputPath(key))
	if err != nil {
		return nil, err
	}
	stderr, err := os.ReadFile(r.stderrPath(key))
	if err != nil {
		stderr = nil // absent stderr.txt => empty string, not an error
	}
	_ = common.TouchFile(r.objectPath(key)) // keep atime-based eviction ordering meaningful on replay
	return &CompilerArtifact{
		ObjectPath: r.objectPath(key),
		Stdout:     string(stdout),
		Stderr:     string(stderr),
	}, nil
}

type artifactInfo struct {
	dir   string
	size  int64
	atime int64
}

// Clean performs atime-LRU eviction: delete oldest-accessed entries
// until the running total drops below targetBytes, returning the
// retained entry count and byte total (spec.md §4.H Clean).
func (r *ArtifactRepository) Clean(targetBytes int64) (entriesRetained int, bytesRetained int64, err error) {
	var all []artifactInfo
	for _, shard := range allShardHexes() {
		shardDir := filepath.Join(r.root, "objects", shard)
		entries, readErr := os.ReadDir(shardDir)
		if readErr != nil {
			continue
		}
		for _, de := range entries {
			if !de.IsDir() {
				continue
			}
			dir := filepath.Join(shardDir, de.Name())
			objInfo, statErr := os.Stat(filepath.Join(dir, "object"))
			if statErr != nil {
				continue
			}
			all = append(all, artifactInfo{dir: dir, size: objInfo.Size(), atime: atimeOf(objInfo)})
		}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].atime < all[j].atime }) // oldest first

	total := int64(0)
	for _, a := range all {
		total += a.size
	}

	i := 0
	removed := 0
	for total >= targetBytes && i < len(all) {
		if err := os.RemoveAll(all[i].dir); err != nil && r.logger != nil {
			r.logger.Error("artifact clean: could not remove", all[i].dir, err)
		} else {
			total -= all[i].size
			removed++
		}
		i++
	}

	return len(all) - removed, total, nil
}
