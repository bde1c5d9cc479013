// Package array implements a copy-on-write immutable array of arcp.Region
// handles: spec.md's array consumer on top of the ARCP cell primitive.
// Each element slot is its own arcp.Cell holding one store-count on the
// element region; every structural change builds an entirely new backing
// body and installs it with a single CompareAndSwap, the same
// "never mutate published state, replace it" discipline the teacher's
// Vector[T] (internal/stdlib/collections/vector.go) uses for its simpler,
// non-shared slice operations.
package array

import (
	"sort"
	"sync/atomic"
	"unsafe"

	"github.com/orizon-lang/orizon-arcp"
)

// body is one immutable snapshot of an array's contents. Once built and
// published into an Array's version pointer, a body is never mutated
// again; every exported Array method that changes contents builds a fresh
// body and swaps it in.
type body struct {
	cells []arcp.Cell
}

func newBody(elems []*arcp.Region) *body {
	b := &body{cells: make([]arcp.Cell, len(elems))}
	for i, e := range elems {
		b.cells[i].Init(e)
	}
	return b
}

// release drops this body's store-count claim on every element. Called
// once a body has been displaced from an Array's version pointer and
// nothing else can still be reading it.
func (b *body) release() {
	for i := range b.cells {
		b.cells[i].Store(nil)
	}
}

func (b *body) snapshot() []*arcp.Region {
	out := make([]*arcp.Region, len(b.cells))
	for i := range b.cells {
		out[i] = b.cells[i].LoadPhantom()
	}
	return out
}

// Array is a mutable handle onto an immutable, copy-on-write body. Reads
// never block writers and writers never block readers: every write builds
// a new body off of a snapshot and installs it with one CompareAndSwap.
type Array struct {
	version atomic.Pointer[body]
}

// New returns an array containing elems, taking a store-count reference on
// each.
func New(elems ...*arcp.Region) *Array {
	a := &Array{}
	a.version.Store(newBody(elems))
	return a
}

// Len returns the current element count.
func (a *Array) Len() int {
	return len(a.version.Load().cells)
}

// LoadPhantom returns the element at i without affecting its refcount, or
// nil if i is out of range.
func (a *Array) LoadPhantom(i int) *arcp.Region {
	b := a.version.Load()
	if i < 0 || i >= len(b.cells) {
		return nil
	}
	return b.cells[i].LoadPhantom()
}

// Load returns the element at i as a strong handle the caller must
// release, or nil if i is out of range.
func (a *Array) Load(i int) *arcp.Region {
	b := a.version.Load()
	if i < 0 || i >= len(b.cells) {
		return nil
	}
	return b.cells[i].Load()
}

// First returns the first element as a strong handle, or nil if empty.
func (a *Array) First() *arcp.Region { return a.Load(0) }

// Last returns the last element as a strong handle, or nil if empty.
func (a *Array) Last() *arcp.Region {
	b := a.version.Load()
	if len(b.cells) == 0 {
		return nil
	}
	return b.cells[len(b.cells)-1].Load()
}

// mutate retries f against successive snapshots of the array's contents
// until it can publish the result with a single CompareAndSwap, then
// releases the body it displaced. Using CAS here rather than an
// unconditional Swap matters: two concurrent mutators racing a plain Swap
// would have the second one silently clobber the first's change (refcounts
// would still balance, the update would just vanish). f may be called more
// than once and must be side-effect free beyond building its return value.
func (a *Array) mutate(f func(elems []*arcp.Region) []*arcp.Region) {
	for {
		old := a.version.Load()
		next := newBody(f(old.snapshot()))
		if a.version.CompareAndSwap(old, next) {
			old.release()
			return
		}
		next.release()
	}
}

// Store replaces the element at i in place.
func (a *Array) Store(i int, region *arcp.Region) {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		if i < 0 || i >= len(elems) {
			panic("array: Store index out of range")
		}
		elems[i] = region
		return elems
	})
}

// StoreFirst replaces the first element.
func (a *Array) StoreFirst(region *arcp.Region) { a.Store(0, region) }

// StoreLast replaces the last element.
func (a *Array) StoreLast(region *arcp.Region) {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		if len(elems) == 0 {
			panic("array: StoreLast on an empty array")
		}
		elems[len(elems)-1] = region
		return elems
	})
}

// Insert places region at index i, shifting later elements up.
func (a *Array) Insert(i int, region *arcp.Region) {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		if i < 0 || i > len(elems) {
			panic("array: Insert index out of range")
		}
		next := make([]*arcp.Region, 0, len(elems)+1)
		next = append(next, elems[:i]...)
		next = append(next, region)
		next = append(next, elems[i:]...)
		return next
	})
}

// Append adds region to the end.
func (a *Array) Append(region *arcp.Region) {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		return append(elems, region)
	})
}

// Prepend adds region to the front.
func (a *Array) Prepend(region *arcp.Region) {
	a.Insert(0, region)
}

// Remove deletes the element at i, returning false if i is out of range.
func (a *Array) Remove(i int) bool {
	if i < 0 || i >= a.Len() {
		return false
	}
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		if i >= len(elems) {
			return elems
		}
		next := make([]*arcp.Region, 0, len(elems)-1)
		next = append(next, elems[:i]...)
		next = append(next, elems[i+1:]...)
		return next
	})
	return true
}

// Pop removes and returns the last element, or nil if empty. It acquires
// the returned handle before releasing the displaced body, since that
// release is what would otherwise drop the last store-count keeping the
// popped element alive.
func (a *Array) Pop() *arcp.Region {
	for {
		old := a.version.Load()
		n := len(old.cells)
		if n == 0 {
			return nil
		}
		popped := old.cells[n-1].LoadPhantom().Acquire()
		next := newBody(old.snapshot()[:n-1])
		if a.version.CompareAndSwap(old, next) {
			old.release()
			return popped
		}
		next.release()
		popped.Release()
	}
}

// Shift removes and returns the first element, or nil if empty, with the
// same acquire-before-release ordering as Pop.
func (a *Array) Shift() *arcp.Region {
	for {
		old := a.version.Load()
		n := len(old.cells)
		if n == 0 {
			return nil
		}
		shifted := old.cells[0].LoadPhantom().Acquire()
		next := newBody(old.snapshot()[1:])
		if a.version.CompareAndSwap(old, next) {
			old.release()
			return shifted
		}
		next.release()
		shifted.Release()
	}
}

// Reverse reverses the array in place.
func (a *Array) Reverse() {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
			elems[i], elems[j] = elems[j], elems[i]
		}
		return elems
	})
}

// SortByPointer orders elements by their pointer identity, giving a
// deterministic but content-blind order useful for deduplicating against
// another array sorted the same way.
func (a *Array) SortByPointer() {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		sort.Slice(elems, func(i, j int) bool { return ptrOf(elems[i]) < ptrOf(elems[j]) })
		return elems
	})
}

// Sort orders elements using less, called with phantom-loaded regions —
// less must not retain them past the call.
func (a *Array) Sort(less func(x, y *arcp.Region) bool) {
	a.mutate(func(elems []*arcp.Region) []*arcp.Region {
		sort.Slice(elems, func(i, j int) bool { return less(elems[i], elems[j]) })
		return elems
	})
}

// SortContext is Sort with an extra context value threaded through, for
// comparators that need access to state beyond the two regions being
// compared.
func (a *Array) SortContext(ctx any, less func(ctx any, x, y *arcp.Region) bool) {
	a.Sort(func(x, y *arcp.Region) bool { return less(ctx, x, y) })
}

// setSearch binary searches elems, which must already be in pointer order
// (spec.md §4.4: the set operations "require a pointer-sorted array"), for
// region's insertion point. The returned bool reports an exact match at
// that index.
func setSearch(elems []*arcp.Region, region *arcp.Region) (int, bool) {
	target := ptrOf(region)
	i := sort.Search(len(elems), func(i int) bool { return ptrOf(elems[i]) >= target })
	return i, i < len(elems) && elems[i] == region
}

// SetContains reports whether region is present, by binary search over a
// pointer-sorted array.
func (a *Array) SetContains(region *arcp.Region) bool {
	_, ok := setSearch(a.version.Load().snapshot(), region)
	return ok
}

// SetAdd inserts region at its pointer-ordered position iff it is not
// already present, preserving the array's pointer order.
func (a *Array) SetAdd(region *arcp.Region) bool {
	elems := a.version.Load().snapshot()
	i, ok := setSearch(elems, region)
	if ok {
		return false
	}
	a.Insert(i, region)
	return true
}

// SetRemove removes region from its pointer-ordered position, reporting
// whether it was present.
func (a *Array) SetRemove(region *arcp.Region) bool {
	elems := a.version.Load().snapshot()
	i, ok := setSearch(elems, region)
	if !ok {
		return false
	}
	return a.Remove(i)
}

// Dup returns a new, independent Array over the same elements, each with
// its own fresh store-count. Every Dup-prefixed operation spec.md
// describes (DupInsert, DupAppend, and so on) is this call followed by the
// equivalent in-place method on the copy — composing the two avoids
// duplicating every mutating algorithm's body under a second name.
func (a *Array) Dup() *Array {
	return New(a.version.Load().snapshot()...)
}

func ptrOf(r *arcp.Region) uintptr {
	return uintptr(unsafe.Pointer(r))
}
