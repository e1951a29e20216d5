//go:build unix

package cache

import (
	"os"
	"syscall"
)

// atimeOf extracts the access time from a POSIX stat_t, falling back
// to ModTime if the underlying Sys() isn't a *syscall.Stat_t. Eviction
// orders by atime because that's what "recently used" means for a
// cache entry that may be read many times without being rewritten.
func atimeOf(info os.FileInfo) int64 {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return int64(stat.Atim.Sec)
	}
	return info.ModTime().Unix()
}
