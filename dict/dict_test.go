package dict

import (
	"errors"
	"sync"
	"testing"

	"github.com/orizon-lang/orizon-arcp"
)

func TestDict_PutGetDel(t *testing.T) {
	d := New()
	v1 := arcp.NewRegion(nil)
	v2 := arcp.NewRegion(nil)

	d.Put([]byte("alpha"), v1)
	d.Put([]byte("beta"), v2)

	if !d.Has([]byte("alpha")) || !d.Has([]byte("beta")) {
		t.Fatal("expected both keys present")
	}
	if got, err := d.Get([]byte("alpha")); err != nil || got != v1 {
		t.Fatalf("Get(alpha) = %p, %v", got, err)
	}
	got, _ := d.Get([]byte("alpha"))
	got.Release()

	if !d.Del([]byte("alpha")) {
		t.Fatal("Del(alpha) should have succeeded")
	}
	if d.Has([]byte("alpha")) {
		t.Fatal("alpha should be gone")
	}
	if d.Del([]byte("alpha")) {
		t.Fatal("Del(alpha) should fail the second time")
	}
	if _, err := d.Get([]byte("alpha")); !errors.Is(err, arcp.ErrKeyNotFound) {
		t.Fatalf("Get(alpha) after Del: err = %v, want ErrKeyNotFound", err)
	}
}

func TestDict_PutReplacesExistingKey(t *testing.T) {
	d := New()
	v1 := arcp.NewRegion(nil)
	v2 := arcp.NewRegion(nil)

	d.Put([]byte("k"), v1)
	d.Put([]byte("k"), v2)

	if d.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", d.Len())
	}
	got, err := d.GetPhantom([]byte("k"))
	if err != nil || got != v2 {
		t.Fatalf("Get(k) = %p, want %p", got, v2)
	}
}

func TestDict_KeysSorted(t *testing.T) {
	d := New()
	d.Put([]byte("charlie"), arcp.NewRegion(nil))
	d.Put([]byte("alpha"), arcp.NewRegion(nil))
	d.Put([]byte("bravo"), arcp.NewRegion(nil))

	keys := d.Keys()
	want := []string{"alpha", "bravo", "charlie"}
	for i, k := range keys {
		if string(k) != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, k, want[i])
		}
	}
}

func TestDict_DupIsIndependent(t *testing.T) {
	d := New()
	d.Put([]byte("a"), arcp.NewRegion(nil))
	dup := d.Dup()

	dup.Put([]byte("b"), arcp.NewRegion(nil))
	if d.Len() != 1 {
		t.Fatalf("original dict mutated via its Dup, len=%d", d.Len())
	}
	if dup.Len() != 2 {
		t.Fatalf("dup.Len() = %d, want 2", dup.Len())
	}
}

func TestDict_ConcurrentPutDistinctKeysPreservesEveryWrite(t *testing.T) {
	d := New()
	var wg sync.WaitGroup
	n := 200
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Put([]byte{byte(i), byte(i >> 8)}, arcp.NewRegion(nil))
		}()
	}
	wg.Wait()

	if d.Len() != n {
		t.Fatalf("Len() = %d, want %d (a concurrent Put was lost)", d.Len(), n)
	}
}
