package arcp

import "sync/atomic"

// pendingBits is the width of the pending-count packed alongside a cell's
// region pointer. spec.md §3.3/§9 ties this width to
// log2(alignof(*Region)) on the original's raw tagged pointers (3 bits on
// 64-bit); this port
// replaces tag-bit punning with an immutable boxed slot (see regionSlot)
// per spec.md §9's invitation to express tagging as "a first-class
// tagged-pointer helper rather than ad-hoc macros", but keeps the same
// narrow width so the saturation/spin behaviour in spec.md §8 is preserved.
const pendingBits = 3

// pendingMask is both the widest legal pending-count and, when a cell's
// count reads exactly this value, the "too many concurrent loaders, spin"
// sentinel (spec.md §3.3).
const pendingMask = uint32(1)<<pendingBits - 1

// regionSlot is the immutable value a Cell atomically swaps: a region
// pointer paired with the pending-count owed against it. Cell never mutates
// a regionSlot in place; every transition allocates a new one and installs
// it with a single CompareAndSwap/Swap/Store.
type regionSlot struct {
	region  *Region
	pending uint32
}

// Cell is an atomic reference-counted pointer cell (spec.md §3.3, §4.1): it
// holds a region plus a pending-count of use-count contributions not yet
// migrated into that region's own refcount word. The zero Cell holds nil.
type Cell struct {
	s atomic.Pointer[regionSlot]
}

// Init publishes region into a fresh cell, adding one store-count
// contribution. Must only be called on a Cell no other goroutine can
// observe yet (spec.md: "publishes with release semantics").
func (c *Cell) Init(region *Region) {
	if region != nil {
		region.urefs(1, 0)
	}
	c.s.Store(&regionSlot{region: region})
}

// LoadPhantom returns the cell's region without touching any refcount. The
// caller must not retain it past a point where a concurrent Store/Swap/CAS
// could run (spec.md §4.1).
func (c *Cell) LoadPhantom() *Region {
	s := c.s.Load()
	if s == nil {
		return nil
	}
	return s.region
}

// Load returns the cell's region with one use-count owed to the caller, or
// nil. This is the ABA-free load algorithm of spec.md §4.1: the caller
// first reserves a pending-count unit on the cell, migrates that unit into
// the region's own use-count, then tries to retract the cell-side
// reservation. If a concurrent Store/Swap/CAS has already displaced the
// region (and so already migrated the reservation as part of its own
// transfer), the retraction is skipped and the extra migration is
// cancelled instead — the caller still ends up owning exactly one
// use-count.
func (c *Cell) Load() *Region {
	var cur *regionSlot
	var b backoff
	for {
		cur = c.s.Load()
		if cur == nil || cur.region == nil {
			return nil
		}
		if cur.pending == pendingMask {
			b.wait()
			continue
		}
		next := &regionSlot{region: cur.region, pending: cur.pending + 1}
		if c.s.CompareAndSwap(cur, next) {
			cur = next
			break
		}
	}
	target := cur.region
	target.urefs(0, 1)
	for {
		now := c.s.Load()
		if now == nil || now.region != target || now.pending == 0 {
			release(target)
			break
		}
		next := &regionSlot{region: target, pending: now.pending - 1}
		if c.s.CompareAndSwap(now, next) {
			break
		}
	}
	return target
}

// Store unconditionally replaces the cell's region, transferring new's
// store-count in and retiring the displaced region's store-count plus
// whatever pending use-counts the cell owed it.
func (c *Cell) Store(region *Region) {
	if region != nil {
		region.urefs(1, 0)
	}
	old := c.s.Swap(&regionSlot{region: region})
	retireDisplaced(old)
}

// Swap is like Store but returns the displaced region as a strong handle
// (one use-count owed to the caller), or nil.
func (c *Cell) Swap(region *Region) *Region {
	if region != nil {
		region.urefs(1, 0)
	}
	old := c.s.Swap(&regionSlot{region: region})
	if old == nil || old.region == nil {
		return nil
	}
	if old.region.urefs(-1, int32(old.pending)+1) {
		old.region.finalize()
	}
	return old.region
}

// retireDisplaced folds a displaced slot's store-count and pending
// use-counts back into its region's refcount word, destroying it if that
// brings both counts to zero.
func retireDisplaced(old *regionSlot) {
	if old == nil || old.region == nil {
		return
	}
	if old.region.urefs(-1, int32(old.pending)) {
		old.region.finalize()
	}
}

// CAS installs next iff the cell currently holds expect, retiring expect's
// store-count and pending use-counts as Store does on success. It does not
// write the observed value back into expect on failure (spec.md §9 Open
// Question: this is a deliberate deviation from a typical compare-exchange
// contract, matching the original's arcp_cas exactly).
func (c *Cell) CAS(expect, next *Region) bool {
	if next != nil {
		next.urefs(1, 0)
	}
	for {
		cur := c.s.Load()
		var curRegion *Region
		if cur != nil {
			curRegion = cur.region
		}
		if curRegion != expect {
			if next != nil {
				if next.urefs(-1, 0) {
					next.finalize()
				}
			}
			return false
		}
		if c.s.CompareAndSwap(cur, &regionSlot{region: next}) {
			if expect != nil {
				// The caller holds a reference to expect, so this transfer
				// cannot bring its refcount to zero.
				expect.urefs(-1, int32(cur.pending))
			}
			return true
		}
	}
}

// CASRelease is CAS plus: it always releases the caller's own reference to
// next as part of the same update that gives next's store-count to the
// cell (on both success and failure), and always releases the caller's
// own reference to expect once the transfer is resolved (on success,
// folded into the same refcount update that retires expect's displaced
// store-count and pending use-counts; on failure, a plain release), so a
// CAS-retry loop can hand both regions to this call without a separate
// Release either way. Matches original_source/src/rcp.c's
// arcp_cas_release exactly.
func (c *Cell) CASRelease(expect, next *Region) bool {
	if next != nil {
		next.urefs(1, -1)
	}
	for {
		cur := c.s.Load()
		var curRegion *Region
		if cur != nil {
			curRegion = cur.region
		}
		if curRegion != expect {
			if next != nil {
				if next.urefs(-1, 0) {
					next.finalize()
				}
			}
			release(expect)
			return false
		}
		if c.s.CompareAndSwap(cur, &regionSlot{region: next}) {
			if expect != nil {
				if expect.urefs(-1, int32(cur.pending)-1) {
					expect.finalize()
				}
			}
			return true
		}
	}
}
