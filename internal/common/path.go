package common

import (
	"errors"
	"strings"
)

// FoldPlaceholder is the single reserved character substituted for a
// configured base directory in portable (folded) paths.
const FoldPlaceholder = "?"

// ErrBaseDirNotConfigured is returned by ExpandPath when it encounters
// a folded path but no base directory was configured.
var ErrBaseDirNotConfigured = errors.New("clcache: folded path without configured base-dir")

// NormalizePath lowercases, converts back- to forward-slashes, collapses
// doubled separators and strips a trailing separator (except at root).
// It makes two paths that name the same file on this platform compare equal.
func NormalizePath(path string) string {
	path = strings.ToLower(path)
	path = strings.ReplaceAll(path, `\`, "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}

// FoldPath replaces a configured absolute baseDir prefix (case-insensitive)
// in path with FoldPlaceholder, so that builds rooted at different
// absolute locations produce identical, portable manifest entries.
// baseDir == "" disables folding; path is returned normalized but untouched.
func FoldPath(path string, baseDir string) string {
	norm := NormalizePath(path)
	if baseDir == "" {
		return norm
	}
	normBase := NormalizePath(baseDir)
	if strings.HasPrefix(norm, normBase) {
		return FoldPlaceholder + norm[len(normBase):]
	}
	return norm
}

// ExpandPath reverses FoldPath. It fails loudly (per spec.md §4.A) if
// path starts with FoldPlaceholder but baseDir is empty.
func ExpandPath(path string, baseDir string) (string, error) {
	if !strings.HasPrefix(path, FoldPlaceholder) {
		return path, nil
	}
	if baseDir == "" {
		return "", ErrBaseDirNotConfigured
	}
	return NormalizePath(baseDir) + path[len(FoldPlaceholder):], nil
}
