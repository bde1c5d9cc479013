// Package dict implements a copy-on-write immutable sorted dictionary
// keyed by byte strings, storing arcp.Region handles as values — spec.md's
// second ARCP-cell consumer alongside package array. Entries are kept
// sorted by key so Get/Has can binary search, following
// original_source/src/dict.c's adict, which keeps its items array sorted
// for the same reason. As in package array, every structural change
// builds a fresh body and publishes it with a single CompareAndSwap; nothing
// ever mutates a published body in place.
package dict

import (
	"sort"
	"sync/atomic"

	"github.com/orizon-lang/orizon-arcp"
)

type entry struct {
	key   string
	value arcp.Cell
}

// body is one immutable, key-sorted snapshot of a dictionary's contents.
type body struct {
	entries []entry
}

func (b *body) find(key string) (int, bool) {
	i := sort.Search(len(b.entries), func(i int) bool { return b.entries[i].key >= key })
	if i < len(b.entries) && b.entries[i].key == key {
		return i, true
	}
	return i, false
}

func (b *body) release() {
	for i := range b.entries {
		b.entries[i].value.Store(nil)
	}
}

type pair struct {
	key   string
	value *arcp.Region
}

func (b *body) snapshot() []pair {
	out := make([]pair, len(b.entries))
	for i, e := range b.entries {
		out[i] = pair{key: e.key, value: e.value.LoadPhantom()}
	}
	return out
}

func newBody(pairs []pair) *body {
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	b := &body{entries: make([]entry, len(pairs))}
	for i, p := range pairs {
		b.entries[i].key = p.key
		b.entries[i].value.Init(p.value)
	}
	return b
}

// Dict is a mutable handle onto an immutable, copy-on-write sorted
// dictionary body.
type Dict struct {
	version atomic.Pointer[body]
}

// New returns an empty dictionary.
func New() *Dict {
	d := &Dict{}
	d.version.Store(&body{})
	return d
}

// Len returns the number of entries.
func (d *Dict) Len() int {
	return len(d.version.Load().entries)
}

// Has reports whether key is present.
func (d *Dict) Has(key []byte) bool {
	_, ok := d.version.Load().find(string(key))
	return ok
}

// Get returns the value stored at key as a strong handle. A missing key is
// reported as arcp.ErrKeyNotFound rather than a nil value, since nil is
// itself a legal stored value (spec.md §4.5: lookup failure "signals
// 'not found' by a distinct out-of-band code, not by null").
func (d *Dict) Get(key []byte) (*arcp.Region, error) {
	b := d.version.Load()
	i, ok := b.find(string(key))
	if !ok {
		return nil, arcp.ErrKeyNotFound
	}
	return b.entries[i].value.Load(), nil
}

// GetPhantom is Get without affecting the value's refcount.
func (d *Dict) GetPhantom(key []byte) (*arcp.Region, error) {
	b := d.version.Load()
	i, ok := b.find(string(key))
	if !ok {
		return nil, arcp.ErrKeyNotFound
	}
	return b.entries[i].value.LoadPhantom(), nil
}

// Put inserts or replaces the value at key, taking a store-count
// reference on value.
func (d *Dict) Put(key []byte, value *arcp.Region) {
	k := string(key)
	for {
		old := d.version.Load()
		pairs := old.snapshot()
		i, ok := old.find(k)
		if ok {
			pairs[i].value = value
		} else {
			pairs = append(pairs, pair{key: k, value: value})
		}
		next := newBody(pairs)
		if d.version.CompareAndSwap(old, next) {
			old.release()
			return
		}
		next.release()
	}
}

// Del removes key, returning false if it was not present.
func (d *Dict) Del(key []byte) bool {
	k := string(key)
	for {
		old := d.version.Load()
		i, ok := old.find(k)
		if !ok {
			return false
		}
		pairs := old.snapshot()
		pairs = append(pairs[:i], pairs[i+1:]...)
		next := newBody(pairs)
		if d.version.CompareAndSwap(old, next) {
			old.release()
			return true
		}
		next.release()
	}
}

// Keys returns every key currently in the dictionary, in sorted order.
func (d *Dict) Keys() [][]byte {
	b := d.version.Load()
	out := make([][]byte, len(b.entries))
	for i, e := range b.entries {
		out[i] = []byte(e.key)
	}
	return out
}

// Dup returns a new, independent dictionary over the same entries, each
// with its own fresh store-count — the Go counterpart of adict_dup.
func (d *Dict) Dup() *Dict {
	b := d.version.Load()
	nd := &Dict{}
	nd.version.Store(newBody(b.snapshot()))
	return nd
}
