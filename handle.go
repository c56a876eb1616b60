package dheap

import "unsafe"

// Destructible is implemented by types that need cleanup when a deferred
// heap determines their allocation is unreachable. Types that do not
// implement it are treated as trivially destructible and never tracked by
// the destructor registry.
//
// Destroy may observe other Handles it holds already nulled out: the
// collector breaks a reference cycle by nulling every unreached handle
// before running any destructor in the cycle, so a Destroy method must
// tolerate a nil Get() from any Handle field.
type Destructible interface {
	Destroy()
}

// Handle is a managed, cycle-safe smart pointer to a T allocated by Make,
// MakeArray, or PointerTo. The zero Handle[T] is not usable; always obtain
// one from those constructors or NewHandle.
//
// Where a *Handle[T] value itself resides determines how its owning Heap
// tracks it: a Handle living in ordinary Go memory (a local variable, a
// field of a Go-heap struct) is a root. A Handle living inside a Heap page
// -- for instance an element of an array made with
// MakeArray[Handle[U]](heap, n) -- is an interior handle of that page's
// allocation, and is only reachable (and only kept alive) through it.
type Handle[T any] struct {
	heap   *Heap
	target unsafe.Pointer
	lvl    int
}

func (h *Handle[T]) address() unsafe.Pointer    { return unsafe.Pointer(h) }
func (h *Handle[T]) targetAddr() unsafe.Pointer { return h.target }
func (h *Handle[T]) setTarget(p unsafe.Pointer) { h.target = p }
func (h *Handle[T]) level() int                 { return h.lvl }
func (h *Handle[T]) setLevel(l int)             { h.lvl = l }

// selfBinder is implemented by *Handle[T] itself, letting generic code in
// alloc.go register a Handle value that was placement-constructed inside
// a page (as happens for MakeArray[Handle[U]]) without needing to know T.
type selfBinder interface {
	bindSelf(*Heap)
}

func (h *Handle[T]) bindSelf(heap *Heap) {
	h.heap = heap
	heap.enregister(h)
}

// newBoundHandle allocates a fresh Handle[T] on the Go heap, points it at
// target, and registers it with heap (as a root, since a freshly allocated
// Go value never resides inside one of the heap's own pages).
func newBoundHandle[T any](heap *Heap, target unsafe.Pointer) *Handle[T] {
	hd := &Handle[T]{heap: heap, target: target}
	heap.enregister(hd)

	return hd
}

// NewHandle returns a null Handle[T] registered with heap.
func NewHandle[T any](heap *Heap) *Handle[T] {
	return newBoundHandle[T](heap, nil)
}

// PointerTo wraps an already-managed T (one whose address lies inside heap
// or that the caller otherwise guarantees will outlive the handle) without
// allocating a new object, mirroring deferred_ptr<T>::pointer_to.
func PointerTo[T any](heap *Heap, obj *T) *Handle[T] {
	return newBoundHandle[T](heap, unsafe.Pointer(obj))
}

// Get dereferences the handle, returning nil if it is null.
func (h *Handle[T]) Get() *T {
	if h == nil || h.target == nil {
		return nil
	}

	return (*T)(h.target)
}

// IsNull reports whether the handle currently points at nothing.
func (h *Handle[T]) IsNull() bool {
	return h == nil || h.target == nil
}

// Reset nulls the handle's target without affecting its registration.
func (h *Handle[T]) Reset() {
	h.target = nil
}

// Assign points h at the same object src does, without changing h's own
// registration -- h remains whatever category (root or interior) it was
// constructed as.
func (h *Handle[T]) Assign(src *Handle[T]) {
	if src == nil {
		h.target = nil
		return
	}

	h.target = src.target
}

// Equal reports whether h and other point at the same address.
func (h *Handle[T]) Equal(other *Handle[T]) bool {
	return h.target == other.target
}

// Compare orders h and other by raw target address: -1, 0, or 1.
func (h *Handle[T]) Compare(other *Handle[T]) int {
	a, b := uintptr(h.target), uintptr(other.target)

	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Release deregisters h from its heap. Call it when a root handle is no
// longer needed; an interior handle never needs this, since it is removed
// automatically when Collect frees the allocation containing it.
func (h *Handle[T]) Release() {
	h.heap.deregister(h)
}
