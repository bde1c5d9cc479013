package array

import (
	"sync"
	"testing"

	"github.com/orizon-lang/orizon-arcp"
)

func TestArray_BasicMutation(t *testing.T) {
	a := arcp.NewRegion(nil)
	b := arcp.NewRegion(nil)
	arr := New(a, b)

	if arr.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", arr.Len())
	}
	if arr.LoadPhantom(0) != a || arr.LoadPhantom(1) != b {
		t.Fatal("unexpected initial contents")
	}

	c := arcp.NewRegion(nil)
	arr.Append(c)
	if arr.Len() != 3 || arr.LoadPhantom(2) != c {
		t.Fatal("Append did not take effect")
	}

	popped := arr.Pop()
	if popped != c {
		t.Fatalf("Pop got %p, want %p", popped, c)
	}
	popped.Release()
	if arr.Len() != 2 {
		t.Fatalf("Len() after Pop = %d, want 2", arr.Len())
	}
}

func TestArray_InsertRemove(t *testing.T) {
	a := arcp.NewRegion(nil)
	b := arcp.NewRegion(nil)
	c := arcp.NewRegion(nil)
	arr := New(a, c)
	arr.Insert(1, b)

	if arr.LoadPhantom(0) != a || arr.LoadPhantom(1) != b || arr.LoadPhantom(2) != c {
		t.Fatal("Insert placed elements incorrectly")
	}

	if !arr.Remove(1) {
		t.Fatal("Remove reported failure")
	}
	if arr.Len() != 2 || arr.LoadPhantom(1) != c {
		t.Fatal("Remove left unexpected contents")
	}
}

func TestArray_DupIsIndependent(t *testing.T) {
	a := arcp.NewRegion(nil)
	arr := New(a)
	dup := arr.Dup()

	extra := arcp.NewRegion(nil)
	dup.Append(extra)

	if arr.Len() != 1 {
		t.Fatalf("original array mutated via its Dup, len=%d", arr.Len())
	}
	if dup.Len() != 2 {
		t.Fatalf("dup.Len() = %d, want 2", dup.Len())
	}
}

func TestArray_SetOperations(t *testing.T) {
	a := arcp.NewRegion(nil)
	arr := New()
	if !arr.SetAdd(a) {
		t.Fatal("SetAdd on a fresh element should succeed")
	}
	if arr.SetAdd(a) {
		t.Fatal("SetAdd on a duplicate element should fail")
	}
	if !arr.SetContains(a) {
		t.Fatal("SetContains should report the added element")
	}
	if !arr.SetRemove(a) {
		t.Fatal("SetRemove should report success for a present element")
	}
	if arr.SetContains(a) {
		t.Fatal("element should be gone after SetRemove")
	}
}

func TestArray_ConcurrentAppendPreservesEveryWrite(t *testing.T) {
	arr := New()
	var wg sync.WaitGroup
	n := 200
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			arr.Append(arcp.NewRegion(nil))
		}()
	}
	wg.Wait()

	if arr.Len() != n {
		t.Fatalf("Len() = %d, want %d (a concurrent Append was lost)", arr.Len(), n)
	}
}
