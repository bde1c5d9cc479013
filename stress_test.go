package arcp

import (
	"context"
	"testing"

	"golang.org/x/sync/errgroup"
)

// TestStressWeakUpgradeRace drives many goroutines racing a weak-reference
// upgrade against a concurrent destroy (spec.md §8 scenario S2), using
// errgroup to fan out workers and collect the first failure instead of
// hand-rolling a WaitGroup plus error channel.
func TestStressWeakUpgradeRace(t *testing.T) {
	const rounds = 2000
	const upgraders = 8

	for i := 0; i < rounds; i++ {
		r := NewRegion(nil)
		w := r.WeakRef()

		g, _ := errgroup.WithContext(context.Background())
		g.Go(func() error {
			r.Release()
			return nil
		})
		for u := 0; u < upgraders; u++ {
			g.Go(func() error {
				if got := w.Load(); got != nil {
					got.Release()
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
}

// TestStressCellStoreChurn races many Store calls against many Load calls
// on a single cell (spec.md §8 scenario S1 generalized to concurrency),
// checking the cell never panics and every Load either returns nil or a
// region that had not yet been destroyed at the moment it was retrieved.
func TestStressCellStoreChurn(t *testing.T) {
	var c Cell
	c.Init(NewRegion(nil))

	g, _ := errgroup.WithContext(context.Background())
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 500; j++ {
				r := NewRegion(nil)
				c.Store(r)
				r.Release()
			}
			return nil
		})
	}
	for i := 0; i < 32; i++ {
		g.Go(func() error {
			for j := 0; j < 500; j++ {
				if got := c.Load(); got != nil {
					got.Release()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}
