// Package destructor implements the deferred heap's destructor registry:
// an ordered list of (address, element size, element count, thunk)
// records for allocations whose type has a non-trivial destructor.
package destructor

import (
	"fmt"
	"unsafe"
)

// Thunk invokes the proper destructor for one object given its address.
// Trivially-destructible types never get a Thunk registered for them.
type Thunk func(unsafe.Pointer)

// Record is one registered destructor entry.
type Record struct {
	Address     unsafe.Pointer
	Thunk       Thunk
	ElementSize uintptr
	Count       uintptr
}

// run invokes the thunk for every element in the record.
func (r Record) run() {
	for i := uintptr(0); i < r.Count; i++ {
		elem := unsafe.Add(r.Address, i*r.ElementSize)
		r.Thunk(elem)
	}
}

// Registry holds the live destructor records for one heap.
type Registry struct {
	records []Record
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Store appends one record. The caller must ensure no existing record's
// address equals addr unless that record has already been removed by a
// prior Run.
func (r *Registry) Store(addr unsafe.Pointer, elementSize, count uintptr, thunk Thunk) {
	r.records = append(r.records, Record{
		Address:     addr,
		ElementSize: elementSize,
		Count:       count,
		Thunk:       thunk,
	})
}

// IsStored reports whether addr matches some registered record.
func (r *Registry) IsStored(addr unsafe.Pointer) bool {
	for _, rec := range r.records {
		if rec.Address == addr {
			return true
		}
	}

	return false
}

// Len reports the number of live records, mainly for diagnostics.
func (r *Registry) Len() int {
	return len(r.records)
}

// RunAll empties the registry, then invokes every previously registered
// thunk on every element address. A record stored by a thunk during RunAll
// stays registered. Used at heap teardown.
func (r *Registry) RunAll() {
	records := r.records
	r.records = nil

	for _, rec := range records {
		rec.run()
	}
}

// Run moves every record whose address lies in [begin, end) out of the
// live list before invoking any thunk, so that a thunk which reenters the
// registry (e.g. by allocating) never observes a partially mutated list.
// It reports whether at least one record was run.
func (r *Registry) Run(begin, end unsafe.Pointer) bool {
	var toRun []Record

	// Zero-capacity slice expression forces append to allocate a fresh
	// backing array instead of overwriting r.records in place, which
	// would alias toRun's still-unread entries on later iterations.
	kept := r.records[:0:0]

	for _, rec := range r.records {
		addr := uintptr(rec.Address)
		if uintptr(begin) <= addr && addr < uintptr(end) {
			toRun = append(toRun, rec)
		} else {
			kept = append(kept, rec)
		}
	}

	r.records = kept

	for _, rec := range toRun {
		rec.run()
	}

	return len(toRun) > 0
}

// DebugString renders the registry's live records, mirroring the
// original implementation's destructors::debug_print as a structured
// string rather than a stdout write.
func (r *Registry) DebugString() string {
	s := "destructor registry: "
	if len(r.records) == 0 {
		return s + "empty"
	}

	for i, rec := range r.records {
		if i > 0 {
			s += ", "
		}

		s += recordString(rec)
	}

	return s
}

func recordString(rec Record) string {
	return fmt.Sprintf("%p(n=%d,size=%d)", rec.Address, rec.Count, rec.ElementSize)
}
