package dheap

import (
	"testing"
	"unsafe"
)

type counter struct {
	destroyed *int
	value     int
}

func (c *counter) Destroy() {
	*c.destroyed++
}

type node struct {
	value int
	next  Handle[node]
}

type fireOnDestroy struct {
	fire func()
}

func (f *fireOnDestroy) Destroy() {
	if f.fire != nil {
		f.fire()
	}
}

func TestMakeAndCollectReclaimsUnreachable(t *testing.T) {
	h := NewHeap()

	destroyed := 0

	root := Make(h, counter{destroyed: &destroyed, value: 1})
	if root == nil {
		t.Fatal("Make returned nil")
	}

	// a Make'd object whose root handle is released has no remaining
	// reference and is swept on the next collection.
	stray := Make(h, counter{destroyed: &destroyed, value: 2})
	stray.Release()

	h.Collect()

	if destroyed != 1 {
		t.Fatalf("expected exactly the unreferenced object's destructor to run once, got %d", destroyed)
	}

	if root.IsNull() || root.Get().value != 1 {
		t.Fatal("root handle was incorrectly swept")
	}
}

func TestRootKeepsAllocationAlive(t *testing.T) {
	h := NewHeap()

	destroyed := 0
	root := Make(h, counter{destroyed: &destroyed})

	h.Collect()
	h.Collect()

	if destroyed != 0 {
		t.Fatalf("rooted allocation was destroyed, count=%d", destroyed)
	}

	root.Release()
	h.Collect()

	if destroyed != 1 {
		t.Fatalf("expected destructor to run once root was released and collected, got %d", destroyed)
	}
}

func TestCycleIsCollected(t *testing.T) {
	h := NewHeap()

	a := Make(h, node{value: 1})
	b := Make(h, node{value: 2})

	a.Get().next.Assign(b)
	b.Get().next.Assign(a)

	a.Release()
	b.Release()

	h.Collect()

	snap := h.DebugSnapshot()
	if snap.LiveAllocations != 0 {
		t.Fatalf("expected the a<->b cycle to be fully collected once both roots are released, %d allocations still live", snap.LiveAllocations)
	}
}

func TestCycleSurvivesWhileExternallyRooted(t *testing.T) {
	h := NewHeap()

	a := Make(h, node{value: 1})
	b := Make(h, node{value: 2})

	a.Get().next.Assign(b)
	b.Get().next.Assign(a)

	// b is only reachable through a's embedded handle now.
	b.Release()

	h.Collect()

	snap := h.DebugSnapshot()
	if snap.LiveAllocations != 2 {
		t.Fatalf("expected both nodes of the cycle to survive while a is still rooted, got %d live", snap.LiveAllocations)
	}
}

func TestReachabilityThroughArrayElement(t *testing.T) {
	h := NewHeap()

	destroyed := 0

	target := Make(h, counter{destroyed: &destroyed})

	arr := MakeArray[Handle[counter]](h, 4)
	if arr == nil {
		t.Fatal("MakeArray returned nil")
	}

	arr.Get().Assign(target)

	target.Release()

	h.Collect()

	if destroyed != 0 {
		t.Fatalf("object reachable through an array element was incorrectly destroyed, count=%d", destroyed)
	}
}

func TestDestructorDuringSweepCanAllocate(t *testing.T) {
	h := NewHeap()

	var spawned *Handle[counter]
	spawnedDestroyed := 0

	trigger := Make(h, fireOnDestroy{fire: func() {
		spawned = Make(h, counter{destroyed: &spawnedDestroyed, value: 7})
	}})
	trigger.Release()

	h.Collect()

	if spawned == nil {
		t.Fatal("destructor running during sweep did not observe its Make call taking effect")
	}

	if spawned.IsNull() {
		t.Fatal("allocation performed during a destructor returned a null handle")
	}

	if spawnedDestroyed != 0 {
		t.Fatalf("object allocated during sweep was reclaimed in the same pass it was created in, got destroyed=%d", spawnedDestroyed)
	}

	// spawned is a root handle held by this test, so it must remain
	// reachable across a second, unrelated collection.
	h.Collect()

	if spawnedDestroyed != 0 || spawned.IsNull() || spawned.Get().value != 7 {
		t.Fatalf("object allocated during sweep did not survive a subsequent collect(), destroyed=%d", spawnedDestroyed)
	}
}

func TestCollectBeforeExpandOption(t *testing.T) {
	h := NewHeap(WithCollectBeforeExpand(true))

	if !h.CollectBeforeExpand() {
		t.Fatal("WithCollectBeforeExpand(true) did not take effect")
	}

	destroyed := 0

	first := Make(h, counter{destroyed: &destroyed})
	first.Release()

	// Every counter occupies at least one chunk, so allocating as many
	// counters as the first page has locations cannot fit in that page.
	locations := h.Stats().Locations

	for i := 0; i < locations; i++ {
		c := Make(h, counter{destroyed: &destroyed})
		c.Release()
	}

	if destroyed == 0 {
		t.Fatal("expected at least one collection to have run while expanding")
	}
}

func TestHandleArithmeticStaysInAllocation(t *testing.T) {
	h := NewHeap()

	arr := MakeArray[int](h, 4)
	if arr == nil {
		t.Fatal("MakeArray returned nil")
	}

	next, err := arr.Add(1)
	if err != nil {
		t.Fatalf("in-bounds Add failed: %v", err)
	}

	if next.IsNull() {
		t.Fatal("in-bounds Add produced a null handle")
	}

	diff, err := next.Diff(arr)
	if err != nil || diff != 1 {
		t.Fatalf("Diff = %d, %v, want 1, nil", diff, err)
	}

	negDiff, err := arr.Diff(next)
	if err != nil || negDiff != -1 {
		t.Fatalf("Diff = %d, %v, want -1, nil", negDiff, err)
	}

	if _, err := arr.Add(100); err == nil {
		t.Fatal("expected out-of-bounds Add to report an error")
	}
}

func TestPointerToTracksAnExistingAllocation(t *testing.T) {
	h := NewHeap()

	root := Make(h, counter{value: 7})

	alias := PointerTo(h, root.Get())
	if alias.IsNull() || alias.Get().value != 7 {
		t.Fatal("PointerTo did not observe the existing allocation")
	}

	alias.Release()
	root.Release()
}

func TestWithMinPageSizeAndGrowthFactorAreHonored(t *testing.T) {
	h := NewHeap(WithMinPageSize(1<<20), WithPageGrowthFactor(1.0))

	root := Make(h, counter{value: 1})
	if root == nil {
		t.Fatal("Make returned nil")
	}

	stats := h.Stats()
	if stats.Pages != 1 {
		t.Fatalf("expected exactly one page to have been created, got %d", stats.Pages)
	}

	// counter's chunk size is its own size, so the page's total size is
	// its location count times that.
	if uintptr(stats.Locations)*unsafe.Sizeof(counter{}) < 1<<20 {
		t.Fatalf("expected the page to honor the configured minimum size of %d bytes, got %d locations", 1<<20, stats.Locations)
	}

	root.Release()
}

func TestCloseRunsAllRemainingDestructors(t *testing.T) {
	h := NewHeap()

	destroyed := 0
	Make(h, counter{destroyed: &destroyed})
	Make(h, counter{destroyed: &destroyed})

	h.Close()

	if destroyed != 2 {
		t.Fatalf("expected Close to run every remaining destructor, got %d", destroyed)
	}
}
