// Package common holds small, dependency-free helpers shared by every
// other clcache package: content hashing, path normalization and
// base-dir folding, atomic file writes, logging and the env/flag
// combinator used by cmd/clcache.
package common

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// FileHash hashes the contents of path, optionally mixing in extra
// (already UTF-8 encoded) bytes before finalizing. It returns
// os.ErrNotExist-wrapped errors unchanged so callers can check with
// os.IsNotExist.
func FileHash(path string, extra string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	if extra != "" {
		h.Write([]byte(extra))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// StringHash hashes the UTF-8 bytes of s.
func StringHash(s string) string {
	h := md5.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}

// CompilerIdentity hashes the triple (mtime, size, implementation
// version) of the compiler binary at path. Any compiler upgrade, or a
// change of ImplementationVersion, therefore invalidates every entry
// produced by a prior identity.
func CompilerIdentity(path string) (string, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	return StringHash(fmt.Sprintf("%d|%d|%s", stat.ModTime().UnixNano(), stat.Size(), ImplementationVersion)), nil
}
