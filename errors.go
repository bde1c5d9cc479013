package arcp

import "errors"

// ErrAllocationFailed is wrapped into the error package allocator returns
// when the OS refuses to map fresh pages for an allocation.
var ErrAllocationFailed = errors.New("arcp: allocation failed")

// ErrWeakUpgradeFailed is returned by WeakRef.Upgrade when the target
// region has already been destroyed. WeakRef.Load reports the same
// condition with a plain nil return instead, matching spec.md §4.1's
// weakref_load contract exactly.
var ErrWeakUpgradeFailed = errors.New("arcp: weak reference target already destroyed")

// ErrKeyNotFound is returned by dictionary lookups for a key that is not
// present. It is distinct from a stored nil value.
var ErrKeyNotFound = errors.New("arcp: key not found")
