// Package dheap implements a deferred (tracing, garbage-collected) heap: a
// managed, cycle-safe smart pointer facility for Go values allocated
// through a Heap rather than the ordinary Go allocator.
//
// Application code allocates typed objects with Make and MakeArray and
// receives a *Handle[T] that behaves like a pointer but is tracked by the
// Heap itself. When the caller invokes Collect (or, with
// SetCollectBeforeExpand, before the Heap adds a new page) the Heap
// performs a stop-the-world mark-and-sweep collection, running the registered
// Destructible.Destroy method of every allocation no longer reachable from
// a root handle, in a well-defined (but not construction- or
// destruction-order-based) sequence.
//
// The design is single-threaded by construction: a Heap has no internal
// locking, and concurrent use of one Heap from multiple goroutines is
// undefined behavior, not merely discouraged. There is no compaction, no
// incremental or generational collection, and no reachability tracing
// through raw, unregistered pointers -- only Handles enregistered with a
// Heap participate in mark-and-sweep.
//
// Handles allocated inside a Heap-managed array (for example, via
// MakeArray[Handle[T]]) are themselves tracked as interior handles and
// participate in reachability the same as any other handle; handles that
// live in ordinary Go memory (a local variable, a struct on the Go heap)
// are tracked as roots. This classification is decided purely by where a
// *Handle[T] value itself resides, per Heap.enregister, not by how it was
// constructed or copied.
//
// Go has no destructors invoked at scope exit, unlike the C++ design this
// package is modeled on. Handle.Release is the explicit substitute: call
// it when a root handle is no longer needed, the same way callers call
// Close on a file. Interior handles need no such call -- they are removed
// automatically when Collect frees the allocation that contains them.
//
// Because a Heap's pages are backed by memory obtained outside Go's own
// allocator (see internal/gpage), objects placed in them are opaque to
// Go's runtime garbage collector: it will not trace pointers embedded
// inside a managed object's fields. Only this package's own Collect
// traces those pointers, via registered Handles. A managed T should
// therefore avoid embedding raw Go-managed references (slices, maps,
// strings, channels, interfaces holding Go-heap data) whose only
// remaining reference lives inside a Heap page, or keep an independent
// root reference to them for Go's own GC to see.
package dheap
