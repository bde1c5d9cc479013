package arcp

import "sync/atomic"

// Region is any object whose lifetime is managed by this package. It
// carries a packed refcount word (spec.md §3.1), an optional destructor
// run exactly once when both store-count and use-count reach zero, and a
// lazily-created weak reference.
//
// target is only meaningful when this Region is itself acting as a weak
// reference stub (see WeakRef, NewRegion's sibling constructor newWeakStub):
// it is a raw, non-owning pointer at the region the stub weakly refers to.
// A plain data Region never populates it. Modelling a weak reference as
// "a Region with one extra field" mirrors the original's
// arcp_weakref_stub_t, which is itself laid out as a Region header plus a
// target pointer.
type Region struct {
	refcount atomic.Uint32
	weak     Cell
	target   atomic.Pointer[Region]
	destroy  func()
}

// NewRegion returns a standalone region with one use-count owned by the
// caller and no store-count, ready to be published into a Cell with
// Init/Store/Swap/CAS. destroy, if non-nil, runs exactly once when the
// region's refcount reaches zero.
func NewRegion(destroy func()) *Region {
	r := &Region{destroy: destroy}
	r.refcount.Store(packRefcount(0, 1, false))
	return r
}

// StoreCount returns the region's current store-count. Intended for tests
// and diagnostics; the value can be stale the instant it is read.
func (r *Region) StoreCount() uint32 {
	store, _, _ := unpackRefcount(r.refcount.Load())
	return store
}

// UseCount returns the region's current use-count, with the same
// staleness caveat as StoreCount.
func (r *Region) UseCount() uint32 {
	_, use, _ := unpackRefcount(r.refcount.Load())
	return use
}

// urefs applies storeDelta/useDelta to the packed refcount word in one CAS
// loop (spec.md §3.1's __arcp_urefs). It reports whether this call is the
// one that took the refcount to (0, 0, unlocked) and so is responsible for
// running finalize — the destroy-lock bit latches permanently once set, so
// at most one caller ever observes true for a given region.
//
// Every legitimate caller holds an outstanding store-count or use-count
// contribution it is retiring (or is installing a fresh one on a region
// it already holds live), so the protocol never has a legitimate call
// observe a region that is already at (0, 0, locked) — every contribution
// still outstanding at that point would have kept the word off zero. A
// call that does observe locked here can only be caller misuse (a double
// Release, a Release without a matching Acquire, or a Store/Init against
// a region that has already been destroyed): spec.md §7 calls these
// preconditions-of-use and leaves them undefined behaviour in the
// original; this port promotes them to a panic rather than silently
// corrupting the refcount word.
func (r *Region) urefs(storeDelta, useDelta int32) bool {
	for {
		old := r.refcount.Load()
		store, use, locked := unpackRefcount(old)
		if locked {
			panic("arcp: refcount operation on an already-destroyed region")
		}
		newStore := uint32(int32(store) + storeDelta)
		newUse := uint32(int32(use) + useDelta)
		win := false
		newLocked := locked
		if !locked && newStore == 0 && newUse == 0 {
			newLocked = true
			win = true
		}
		next := packRefcount(newStore, newUse, newLocked)
		if r.refcount.CompareAndSwap(old, next) {
			return win
		}
	}
}

// tryAcquire adds one use-count iff the region has not already been
// destroyed. It is the primitive WeakRef.Load needs and a plain urefs(0,1)
// cannot provide: once the destroy-lock bit is set the region is gone and
// must never have its use-count bumped again, even though the Go runtime
// keeps its memory alive for as long as anything still points at it.
func (r *Region) tryAcquire() bool {
	for {
		old := r.refcount.Load()
		store, use, locked := unpackRefcount(old)
		if locked {
			return false
		}
		next := packRefcount(store, use+1, false)
		if r.refcount.CompareAndSwap(old, next) {
			return true
		}
	}
}

// Acquire adds one use-count and returns the region itself, for call sites
// that want to hand out an additional strong handle to a region they
// already hold live (spec.md §4.1). It panics if called on a region that
// has already been destroyed, since that can only mean the caller's own
// "live" handle was stale.
func (r *Region) Acquire() *Region {
	if r == nil {
		return nil
	}
	if !r.tryAcquire() {
		panic("arcp: Acquire on a destroyed region")
	}
	return r
}

// Release gives back one use-count, running the region's destructor and
// severing its weak reference if this was the last outstanding reference.
func (r *Region) Release() {
	release(r)
}

// release is the package-internal form of Release, shared by Cell's load
// cancellation and CAS failure paths.
func release(r *Region) {
	if r == nil {
		return
	}
	if r.urefs(0, -1) {
		r.finalize()
	}
}

// finalize runs exactly once per region, the instant its refcount reaches
// (0, 0, unlocked). It runs the user destructor, then severs any weak
// reference created against this region so concurrent WeakRef.Load calls
// observe the region as gone instead of racing the destructor.
func (r *Region) finalize() {
	if r.destroy != nil {
		r.destroy()
	}
	stub := r.weak.Swap(nil)
	if stub != nil {
		stub.target.Store(nil)
		stub.Release()
	}
}

// WeakRef is a weak reference: it can be upgraded back to a strong handle
// with Load as long as the target region has not yet been destroyed, and
// otherwise reports that the target is gone. A WeakRef shares nothing with
// its target's own refcounting beyond the one store-count the target's
// region holds on the stub while it is alive (spec.md §3.2).
type WeakRef struct {
	stub *Region
}

// WeakRef returns the region's weak reference, lazily creating it on
// first use. Every call against the same region returns a handle to the
// same underlying stub.
func (r *Region) WeakRef() *WeakRef {
	for {
		if existing := r.weak.LoadPhantom(); existing != nil {
			return &WeakRef{stub: existing}
		}
		stub := newWeakStub(r)
		// Installed via a raw slot CAS rather than Cell.CAS: the stub's
		// initial (1, 0) word already accounts for the one store-count
		// r.weak is about to hold, so the generic Cell path's extra
		// urefs(1, 0) on install must be skipped here (see newWeakStub).
		if r.weak.s.CompareAndSwap(nil, &regionSlot{region: stub}) {
			return &WeakRef{stub: stub}
		}
		// Lost the race: the loser's stub is simply dropped, there is
		// nothing to free explicitly, Go's GC reclaims it.
	}
}

// newWeakStub builds a region acting as a weak-reference stub targeting
// target. Unlike NewRegion, a stub starts at store-count 1 and use-count 0:
// that store-count is the one reference the target's weak cell holds on it
// once WeakRef installs it with a raw slot CAS, which, unlike Cell.CAS,
// adds no store-count of its own — this mirrors
// arcp_region_init_weakref constructing its stub with
// ARCP_REFCOUNT_INIT(1, 0) instead of going through the general init path.
func newWeakStub(target *Region) *Region {
	stub := &Region{}
	stub.refcount.Store(packRefcount(1, 0, false))
	stub.target.Store(target)
	return stub
}

// Load upgrades the weak reference back to a strong handle, or returns nil
// if the target has already been destroyed.
func (w *WeakRef) Load() *Region {
	target := w.stub.target.Load()
	if target == nil {
		return nil
	}
	if !target.tryAcquire() {
		return nil
	}
	return target
}

// Upgrade is Load with the failure case reported as ErrWeakUpgradeFailed
// instead of a bare nil, for call sites that want to propagate the reason
// through Go's error-handling idiom (errors.Is) rather than branch on a
// nil check directly.
func (w *WeakRef) Upgrade() (*Region, error) {
	r := w.Load()
	if r == nil {
		return nil, ErrWeakUpgradeFailed
	}
	return r, nil
}

// LoadRelease is Load followed by releasing the weak reference's own
// claim implied by having been asked to upgrade — supplied because
// original_source/src/rcp.c exposes arcp_weakref_load_release as a
// distinct entry point from arcp_weakref_load for callers that are
// upgrading and discarding the weak handle in the same step. Since a Go
// WeakRef is an ordinary garbage-collected value with no store-count of
// its own to give up, this is equivalent to Load; it exists so ports of
// call sites that used arcp_weakref_load_release keep a direct
// counterpart to call.
func (w *WeakRef) LoadRelease() *Region {
	return w.Load()
}
