package lock

import (
	"testing"
	"time"
)

func TestAcquireReleaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "example")

	release, err := l.Acquire(time.Second)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	release()

	release2, err := l.Acquire(time.Second)
	if err != nil {
		t.Fatalf("second Acquire() error = %v", err)
	}
	release2()
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	dir := t.TempDir()
	name := "contended"

	holder := New(dir, name)
	release, err := holder.Acquire(time.Second)
	if err != nil {
		t.Fatalf("holder Acquire() error = %v", err)
	}
	defer release()

	contender := New(dir, name)
	_, err = contender.Acquire(50 * time.Millisecond)
	if err == nil {
		t.Fatal("contender Acquire() succeeded while lock was held")
	}
	if _, ok := err.(*ErrTimeout); !ok {
		t.Errorf("err = %T, want *ErrTimeout", err)
	}
}

func TestAcquireAllUnwindsOnFailure(t *testing.T) {
	dir := t.TempDir()

	blocked := New(dir, "third")
	releaseBlocked, err := blocked.Acquire(time.Second)
	if err != nil {
		t.Fatalf("blocked Acquire() error = %v", err)
	}
	defer releaseBlocked()

	locks := []*Lock{New(dir, "first"), New(dir, "second"), New(dir, "third")}
	_, err = AcquireAll(locks, 50*time.Millisecond)
	if err == nil {
		t.Fatal("AcquireAll() succeeded despite a held lock in the set")
	}

	// first and second must have been released by the unwind: a fresh
	// acquisition of either should succeed immediately.
	release, err := New(dir, "first").Acquire(time.Second)
	if err != nil {
		t.Fatalf("first lock was not released by AcquireAll's unwind: %v", err)
	}
	release()
}
