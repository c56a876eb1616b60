package dheap

import (
	"unsafe"

	"github.com/orizon-lang/dheap/internal/gpage"
)

// Collect runs one full stop-the-world mark-and-sweep pass: every
// allocation unreachable from a root handle is swept, running its
// destructor (if any) before the backing chunks are freed.
//
// Marking proceeds in BFS levels rather than recursion, so that a cycle of
// any length terminates: level 1 is every allocation directly reachable
// from a root, level 2 is everything reachable from a level-1 handle not
// already marked, and so on until a level adds nothing new. An interior
// handle whose level never advances past 0 is unreached and is nulled
// before any destructor runs, so destructors can never observe a
// half-collected cycle through a live-looking but doomed handle.
func (h *Heap) Collect() {
	h.collecting = true
	defer func() { h.collecting = false }()

	for _, pg := range h.pages {
		pg.marks.SetAll(false)

		for _, hd := range pg.handles {
			hd.setLevel(0)
		}
	}

	level := 1

	for r := range h.roots {
		h.mark(r.targetAddr(), level)
	}

	for {
		level++

		advanced := false

		for _, pg := range h.pages {
			for _, hd := range pg.handles {
				if hd.level() == level-1 {
					h.mark(hd.targetAddr(), level)
					advanced = true
				}
			}
		}

		if !advanced {
			break
		}
	}

	for _, pg := range h.pages {
		for _, hd := range pg.handles {
			if hd.level() == 0 {
				hd.setTarget(nil)
			}
		}
	}

	freed := h.sweep()

	if h.logger != nil {
		h.logger.Printf("dheap: collect complete: %d pages scanned, %d allocations freed", len(h.pages), freed)
	}
}

// mark finds the allocation containing p (if any), marks its start
// location, and advances the level of any interior handle that lives
// inside that same allocation and has not yet been reached.
func (h *Heap) mark(p unsafe.Pointer, level int) {
	if p == nil {
		return
	}

	for _, pg := range h.pages {
		info := pg.page.ContainsInfo(p)
		if info.Found == gpage.NotInRange {
			continue
		}

		if info.Found == gpage.InRangeUnallocated {
			fatal("MARK_UNALLOCATED", "attempted to mark a handle target that is not part of any live allocation")
		}

		pg.marks.Set(info.StartLocation, true)

		for _, hd := range pg.handles {
			hdInfo := pg.page.ContainsInfo(hd.address())
			if hdInfo.Found == gpage.NotInRange {
				continue
			}

			if hdInfo.StartLocation == info.StartLocation && hd.level() == 0 {
				hd.setLevel(level)
			}
		}

		return
	}
}

// sweep deallocates every allocation whose start location was not marked,
// running its destructor record first, and reports the number freed.
func (h *Heap) sweep() int {
	freed := 0

	for _, pg := range h.pages {
		locations := pg.page.Locations()

		for i := 0; i < locations; i++ {
			info := pg.page.LocationInfo(i)
			if !info.IsStart || pg.marks.Get(i) {
				continue
			}

			end := h.nextStartOrEnd(pg, i)

			h.dtors.Run(info.Pointer, end)
			pg.removeHandlesInRange(info.Pointer, end)
			pg.page.Deallocate(info.Pointer)

			freed++
		}
	}

	return freed
}

// nextStartOrEnd returns the address of the next allocation start after
// location i in pg, or the page's one-past-the-end address if there is
// none, bounding the destructor range for the allocation starting at i.
func (h *Heap) nextStartOrEnd(pg *dhpage, i int) unsafe.Pointer {
	locations := pg.page.Locations()

	for j := i + 1; j < locations; j++ {
		if info := pg.page.LocationInfo(j); info.IsStart {
			return info.Pointer
		}
	}

	return pg.page.LocationInfo(locations).Pointer
}
