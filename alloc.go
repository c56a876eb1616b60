package dheap

import (
	"reflect"
	"unsafe"
)

// bindHandleFields walks rv (a freshly placement-constructed value sitting
// at some address inside a Heap page) and registers every Handle[_] found
// at or within it, recursively through struct fields and fixed-size
// arrays. This is what lets a type embed a Handle[U] field directly (by
// value, not by Go pointer) and have that field tracked as an interior
// handle the same as a standalone MakeArray[Handle[U]] element would be --
// the mechanism scenario 5's "array whose elements are themselves
// handles" relies on, generalized to struct fields too.
//
// A Handle[_] value is never descended into further: its own fields
// (heap, target, lvl) are bookkeeping, not nested payload.
func bindHandleFields(heap *Heap, rv reflect.Value) {
	switch rv.Kind() {
	case reflect.Struct:
		// rv.Addr().Interface() would panic here for a struct reached
		// through an unexported field, since reflect marks such values
		// read-only. Rebuilding a fresh Value from the raw address (which
		// is always available once CanAddr is true) sidesteps that,
		// letting a caller's Handle[_] fields stay unexported.
		if rv.CanAddr() {
			ptr := unsafe.Pointer(rv.UnsafeAddr())
			if b, ok := reflect.NewAt(rv.Type(), ptr).Interface().(selfBinder); ok {
				b.bindSelf(heap)
				return
			}
		}

		for i := 0; i < rv.NumField(); i++ {
			bindHandleFields(heap, rv.Field(i))
		}
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			bindHandleFields(heap, rv.Index(i))
		}
	}
}

// reflectAt builds an addressable reflect.Value of type T backed by the
// memory at ptr, so bindHandleFields can walk and register its fields
// without copying it.
func reflectAt[T any](ptr unsafe.Pointer) reflect.Value {
	var zero T

	return reflect.NewAt(reflect.TypeOf(zero), ptr).Elem()
}

// destructorThunkFor returns a destructor.Thunk that invokes Destroy on a
// *T at the given address, or nil if T does not implement Destructible
// (matching the specification's "trivial destructor types are never
// registered").
func destructorThunkFor[T any]() func(unsafe.Pointer) {
	var zero T
	if _, ok := any(&zero).(Destructible); !ok {
		return nil
	}

	return func(p unsafe.Pointer) {
		if d, ok := any((*T)(p)).(Destructible); ok {
			d.Destroy()
		}
	}
}

// Make allocates room for one T in heap, runs and removes any stale
// destructor record covering that memory (a defensive step: Collect runs
// an allocation's destructor before freeing it, so normally there is
// none), copies value into the new storage, registers any Handle[_]
// fields value carries (including value itself, if T is a Handle type)
// as interior handles, registers a destructor if T is non-trivially
// destructible, and returns a root handle to it. It returns nil if the
// heap has no memory available for the allocation.
func Make[T any](heap *Heap, value T) *Handle[T] {
	elemSize := unsafe.Sizeof(value)

	p, ok := heap.allocate(elemSize, 1)
	if !ok {
		return nil
	}

	heap.dtors.Run(p, unsafe.Add(p, elemSize))

	*(*T)(p) = value

	bindHandleFields(heap, reflectAt[T](p))

	if thunk := destructorThunkFor[T](); thunk != nil {
		heap.dtors.Store(p, elemSize, 1, thunk)
	}

	return newBoundHandle[T](heap, p)
}

// MakeArray allocates room for n contiguously stored, default-initialized
// T values in heap and returns a root handle to the first element. It
// returns nil if the heap has no memory available for the allocation, and
// panics if n is not positive.
func MakeArray[T any](heap *Heap, n int) *Handle[T] {
	if n <= 0 {
		fatal("INVALID_ARRAY_LENGTH", "MakeArray requires a positive element count")
	}

	var zero T

	elemSize := unsafe.Sizeof(zero)
	count := uintptr(n)

	p, ok := heap.allocate(elemSize, count)
	if !ok {
		return nil
	}

	end := unsafe.Add(p, elemSize*count)
	heap.dtors.Run(p, end)

	for i := uintptr(0); i < count; i++ {
		elem := unsafe.Add(p, i*elemSize)
		*(*T)(elem) = zero

		bindHandleFields(heap, reflectAt[T](elem))
	}

	if thunk := destructorThunkFor[T](); thunk != nil {
		heap.dtors.Store(p, elemSize, count, thunk)
	}

	return newBoundHandle[T](heap, p)
}
