// Package lock wraps an OS-provided advisory file lock as the
// cross-process mutual exclusion primitive from spec.md §4.F. Go has
// no portable named-mutex primitive analogous to a Windows kernel
// mutex, so a lock file under the cache root plays the same role: the
// path IS the name, and the same path always maps to the same lock
// across processes — gofrs/flock additionally survives an abandoned
// holder (a crashed process) exactly like spec.md's "abandoned mutexes
// are acquired silently" requirement, since the OS releases the flock
// automatically when the holding process dies.
package lock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/frerich/clcache/internal/common"
)

// ErrTimeout names both the lock and the timeout, to aid diagnosis per
// spec.md §4.F / §7.
type ErrTimeout struct {
	Name    string
	Timeout time.Duration
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("clcache: timed out after %s waiting for lock %q", e.Timeout, e.Name)
}

// Lock is a single named cross-process mutex, backed by a flock file.
type Lock struct {
	name string
	dir  string
	fl   *flock.Flock
}

// New creates a lock named name, persisted under dir (typically the
// cache root plus a shard subdirectory). The file itself never needs
// meaningful content; only its existence and the OS lock on it matter.
// dir is not required to exist yet: Acquire creates it on demand, since
// a shard directory's first lock is commonly acquired before anything
// has ever written an entry into that shard.
func New(dir, name string) *Lock {
	path := filepath.Join(dir, "."+common.StringHash(name)+".lock")
	return &Lock{name: name, dir: dir, fl: flock.New(path)}
}

// Acquire blocks until the lock is held or timeout elapses, returning a
// release function. Callers MUST defer the release function on every
// exit path (spec.md §4.F "guaranteed release on any exit path").
func (l *Lock) Acquire(timeout time.Duration) (release func(), err error) {
	if err := os.MkdirAll(l.dir, 0o777); err != nil {
		return func() {}, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	locked, err := l.fl.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil || !locked {
		return func() {}, &ErrTimeout{Name: l.name, Timeout: timeout}
	}
	return func() { _ = l.fl.Unlock() }, nil
}
