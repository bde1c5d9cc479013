package arcp

import (
	"errors"
	"sync"
	"testing"
)

func TestWeakRefUpgradeBeforeDestroy(t *testing.T) {
	r := NewRegion(nil)
	w := r.WeakRef()

	got := w.Load()
	if got != r {
		t.Fatalf("Load got %p, want %p", got, r)
	}
	got.Release()
	r.Release()
}

func TestWeakRefUpgradeAfterDestroyFails(t *testing.T) {
	r := NewRegion(nil)
	w := r.WeakRef()
	r.Release()

	if got := w.Load(); got != nil {
		t.Fatalf("Load on a destroyed target returned %p, want nil", got)
	}
}

func TestWeakRefUpgradeReportsErrAfterDestroy(t *testing.T) {
	r := NewRegion(nil)
	w := r.WeakRef()
	r.Release()

	got, err := w.Upgrade()
	if got != nil || !errors.Is(err, ErrWeakUpgradeFailed) {
		t.Fatalf("Upgrade() = %p, %v, want nil, ErrWeakUpgradeFailed", got, err)
	}
}

func TestWeakRefSameStubEveryCall(t *testing.T) {
	r := NewRegion(nil)
	w1 := r.WeakRef()
	w2 := r.WeakRef()
	if w1.stub != w2.stub {
		t.Fatal("WeakRef returned two different stubs for the same region")
	}
	r.Release()
}

func TestWeakRefLoadRaceAgainstDestroy(t *testing.T) {
	for i := 0; i < 256; i++ {
		r := NewRegion(nil)
		w := r.WeakRef()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Release()
		}()
		go func() {
			defer wg.Done()
			if got := w.Load(); got != nil {
				got.Release()
			}
		}()
		wg.Wait()
	}
}
