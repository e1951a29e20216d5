package lock

import "time"

// AcquireAll acquires every lock in locks, in order, and returns a
// single release function that releases them in reverse order — the
// fixed total ordering spec.md §4.I requires of the composite cache
// lock (shard index ascending) to prevent deadlock against per-request
// operations that acquire a subset of the same locks, also ascending.
//
// If any acquisition fails, every lock already held is released before
// returning the error.
func AcquireAll(locks []*Lock, timeout time.Duration) (release func(), err error) {
	released := make([]func(), 0, len(locks))
	unwind := func() {
		for i := len(released) - 1; i >= 0; i-- {
			released[i]()
		}
	}

	for _, l := range locks {
		rel, acqErr := l.Acquire(timeout)
		if acqErr != nil {
			unwind()
			return func() {}, acqErr
		}
		released = append(released, rel)
	}

	return unwind, nil
}
