// Package store implements the persistent JSON dictionary (spec.md
// §4.D) underlying both the statistics counters and the cache-size
// configuration setting (§4.E).
package store

import (
	"encoding/json"
	"os"

	"github.com/frerich/clcache/internal/common"
)

// Dict is a load-on-open / save-on-close JSON dictionary of int64
// values, persisted as pretty-printed, sorted-key JSON. Loading a
// missing or malformed file yields an empty dict rather than an error,
// matching spec.md's "best-effort load" rule.
type Dict struct {
	path  string
	data  map[string]int64
	dirty bool
}

// Open loads path, or starts empty if it is absent or unparsable.
func Open(path string) *Dict {
	d := &Dict{path: path, data: map[string]int64{}}
	raw, err := os.ReadFile(path)
	if err != nil {
		return d
	}
	_ = json.Unmarshal(raw, &d.data) // malformed => left empty, no error surfaced
	return d
}

// Get returns the value for key, or 0 if absent.
func (d *Dict) Get(key string) int64 {
	return d.data[key]
}

// Set assigns value to key, marking the dict dirty.
func (d *Dict) Set(key string, value int64) {
	if d.data[key] == value {
		return
	}
	d.data[key] = value
	d.dirty = true
}

// Add increments key by delta and returns the new value.
func (d *Dict) Add(key string, delta int64) int64 {
	v := d.data[key] + delta
	d.data[key] = v
	if delta != 0 {
		d.dirty = true
	}
	return v
}

// DeleteExcept removes every key not in keep (Get then reports 0 for
// it), marking the dict dirty if a removed key held a non-zero value.
func (d *Dict) DeleteExcept(keep map[string]bool) {
	for k := range d.data {
		if !keep[k] {
			if d.data[k] != 0 {
				d.dirty = true
			}
			delete(d.data, k)
		}
	}
}

// Close writes the dict back to disk via temp-file-plus-rename, but
// only if it is dirty (spec.md §4.D).
func (d *Dict) Close() error {
	if !d.dirty {
		return nil
	}
	raw, err := json.MarshalIndent(d.data, "", "  ")
	if err != nil {
		return err
	}
	if err := common.WriteFileAtomic(d.path, raw); err != nil {
		return err
	}
	d.dirty = false
	return nil
}
