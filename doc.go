// Package arcp implements an atomic reference-counted pointer: a lock-free
// cell that holds a region, tracks strong ("use") and storage ("store")
// ownership separately, and bridges to a weak reference that can be
// upgraded back to a strong handle as long as the target is still alive.
//
// A Region is any heap object that wants refcounted lifetime management. It
// carries a destructor, a packed refcount word, and a lazily-initialized
// weak reference. Cells are the only way a Region's store-count changes;
// its use-count changes through Acquire/Release and through the operations
// that hand out or consume strong handles (Cell.Load, Cell.Swap,
// Cell.CASRelease, WeakRef.Load). Destruction runs exactly once, driven
// entirely by the refcount protocol in this package — never by the garbage
// collector, hazard pointers or epoch reclamation.
package arcp
