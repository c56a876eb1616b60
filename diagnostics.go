package dheap

import "fmt"

// DebugSnapshot is a structured, point-in-time view of a Heap's internal
// bookkeeping, replacing the original implementation's stdout-oriented
// debug_print with something a caller can inspect or log.
type DebugSnapshot struct {
	Pages             int
	Locations         int
	LiveAllocations   int
	RootHandles       int
	InteriorHandles   int
	DestructorRecords int
	Destructors       string
}

// DebugSnapshot captures the heap's current shape: page and location
// counts, live allocation count, and root/interior handle counts.
func (h *Heap) DebugSnapshot() DebugSnapshot {
	snap := DebugSnapshot{
		Pages:             len(h.pages),
		RootHandles:       len(h.roots),
		DestructorRecords: h.dtors.Len(),
		Destructors:       h.dtors.DebugString(),
	}

	for _, pg := range h.pages {
		locations := pg.page.Locations()
		snap.Locations += locations
		snap.InteriorHandles += len(pg.handles)

		for i := 0; i < locations; i++ {
			if pg.page.LocationInfo(i).IsStart {
				snap.LiveAllocations++
			}
		}
	}

	return snap
}

// Stats is a lightweight summary of a Heap's page and allocation counts,
// cheaper to compute than DebugSnapshot since it skips the per-location
// live-allocation scan.
type Stats struct {
	Pages     int
	Locations int
	Roots     int
}

// Stats reports page, location, and root-handle counts without scanning
// every location for liveness, mirroring the teacher allocator's own
// cheap Stats accessor alongside its fuller debug snapshot.
func (h *Heap) Stats() Stats {
	stats := Stats{Pages: len(h.pages), Roots: len(h.roots)}

	for _, pg := range h.pages {
		stats.Locations += pg.page.Locations()
	}

	return stats
}

// String renders the snapshot in a single line, grounded on the original
// implementation's one-line-per-page debug_print format.
func (s DebugSnapshot) String() string {
	return fmt.Sprintf(
		"dheap: pages=%d locations=%d live=%d roots=%d interior=%d destructors=%d",
		s.Pages, s.Locations, s.LiveAllocations, s.RootHandles, s.InteriorHandles, s.DestructorRecords,
	)
}
