package dheap

import (
	"unsafe"

	"github.com/orizon-lang/dheap/internal/gpage"
)

// Add returns a new Handle[T] offset by count elements of T from h,
// bounds-checked against h's own allocation when Config.DebugArithmetic is
// set (the default). It fails for a null h unconditionally: there is no
// allocation to bound the result against.
func (h *Handle[T]) Add(count int) (*Handle[T], error) {
	if h.target == nil {
		return nil, arithmeticError("NULL_ARITHMETIC", "cannot perform pointer arithmetic on a null handle")
	}

	var zero T

	elemSize := unsafe.Sizeof(zero)
	newTarget := unsafe.Add(h.target, count*int(elemSize))

	if h.heap.cfg.DebugArithmetic {
		if err := h.heap.checkArithmetic(h.target, newTarget); err != nil {
			return nil, err
		}
	}

	return newBoundHandle[T](h.heap, newTarget), nil
}

// Sub is equivalent to h.Add(-count).
func (h *Handle[T]) Sub(count int) (*Handle[T], error) {
	return h.Add(-count)
}

// Diff returns the number of T elements between h and other (h - other),
// requiring both to point within the same allocation when
// Config.DebugArithmetic is set.
func (h *Handle[T]) Diff(other *Handle[T]) (int, error) {
	if h.target == nil && other.target == nil {
		return 0, nil
	}

	if h.target == nil || other.target == nil {
		return 0, arithmeticError("NULL_DIFF", "cannot subtract handles when exactly one is null")
	}

	if h.heap.cfg.DebugArithmetic {
		if err := h.heap.checkArithmetic(other.target, h.target); err != nil {
			return 0, err
		}
	}

	var zero T

	elemSize := unsafe.Sizeof(zero)

	// uintptr subtraction wraps unsigned when h.target < other.target, so
	// the difference is computed in a signed width before dividing.
	byteDiff := int64(uintptr(h.target)) - int64(uintptr(other.target))

	return int(byteDiff / int64(elemSize)), nil
}

// checkArithmetic verifies that newP still falls within the same
// allocation orig started in: same owning page, same allocation start
// location. The page's one-past-the-end sentinel byte makes this accept
// the always-legal one-past-the-end address of a single allocation.
func (h *Heap) checkArithmetic(orig, newP unsafe.Pointer) error {
	origPage, origInfo := h.findInfo(orig)
	if origPage == nil {
		return arithmeticError("CORRUPT_HANDLE", "handle does not point into any allocation owned by this heap")
	}

	newPage, newInfo := h.findInfo(newP)
	if newPage != origPage || newInfo.Found == gpage.NotInRange {
		return arithmeticError("LEAVE_ALLOCATION", "pointer arithmetic left the allocation's page")
	}

	if newInfo.StartLocation != origInfo.StartLocation {
		return arithmeticError("LEAVE_ALLOCATION", "pointer arithmetic moved into a different allocation")
	}

	return nil
}
