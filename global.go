package dheap

import "sync"

var (
	globalOnce sync.Once
	globalHeap *Heap
)

// Global returns a process-wide default Heap, lazily constructed on first
// use with default Config. It exists for small programs and examples that
// do not want to thread a *Heap through every call; production code
// constructing more than one logically distinct heap should call NewHeap
// directly instead.
func Global() *Heap {
	globalOnce.Do(func() {
		globalHeap = NewHeap()
	})

	return globalHeap
}
