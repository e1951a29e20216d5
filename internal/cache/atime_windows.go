//go:build windows

package cache

import (
	"os"
	"syscall"
)

// atimeOf reads the NTFS access timestamp cached in the
// Win32FileAttributeData os.Lstat already populated, falling back to
// ModTime if Sys() doesn't hold one (e.g. a synthetic FileInfo in a test).
func atimeOf(info os.FileInfo) int64 {
	if data, ok := info.Sys().(*syscall.Win32FileAttributeData); ok {
		return data.LastAccessTime.Nanoseconds() / 1e9
	}
	return info.ModTime().Unix()
}
