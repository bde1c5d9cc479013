package queue

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/orizon-lang/orizon-arcp"
)

func TestQueue_Basic(t *testing.T) {
	q := New()
	a := arcp.NewRegion(nil)
	b := arcp.NewRegion(nil)
	q.Enqueue(a)
	q.Enqueue(b)

	got := q.Dequeue()
	if got != a {
		t.Fatalf("got %p, want %p", got, a)
	}
	got.Release()

	got = q.Dequeue()
	if got != b {
		t.Fatalf("got %p, want %p", got, b)
	}
	got.Release()

	if q.Dequeue() != nil {
		t.Fatal("expected empty queue")
	}
}

func TestQueue_PeekAndCompareDequeue(t *testing.T) {
	q := New()
	a := arcp.NewRegion(nil)
	q.Enqueue(a)

	if p := q.Peek(); p != a {
		t.Fatalf("Peek got %p, want %p", p, a)
	}

	other := arcp.NewRegion(nil)
	if q.CompareDequeue(other) {
		t.Fatal("CompareDequeue succeeded against the wrong expectation")
	}
	other.Release()

	if !q.CompareDequeue(a) {
		t.Fatal("CompareDequeue failed against the correct head")
	}
	if q.Dequeue() != nil {
		t.Fatal("expected empty queue after CompareDequeue")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New()
	var produced, consumed uint64
	producers := 4
	consumers := 4
	itemsPerProducer := 2000

	var wgProd sync.WaitGroup
	wgProd.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wgProd.Done()
			for i := 0; i < itemsPerProducer; i++ {
				q.Enqueue(arcp.NewRegion(nil))
				atomic.AddUint64(&produced, 1)
			}
		}()
	}

	done := make(chan struct{})
	var wgCons sync.WaitGroup
	wgCons.Add(consumers)
	for c := 0; c < consumers; c++ {
		go func() {
			defer wgCons.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				if item := q.Dequeue(); item != nil {
					item.Release()
					atomic.AddUint64(&consumed, 1)
				}
			}
		}()
	}

	wgProd.Wait()
	total := uint64(producers * itemsPerProducer)
	for atomic.LoadUint64(&consumed) < total {
		if item := q.Dequeue(); item != nil {
			item.Release()
			atomic.AddUint64(&consumed, 1)
		}
	}
	close(done)
	wgCons.Wait()

	if produced != consumed {
		t.Fatalf("mismatch produced=%d consumed=%d", produced, consumed)
	}
}
