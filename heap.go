package dheap

import (
	"log"
	"unsafe"

	"github.com/orizon-lang/dheap/internal/destructor"
	"github.com/orizon-lang/dheap/internal/gpage"
	"github.com/orizon-lang/dheap/internal/markbits"
)

// handleRef is the type-erased view of a *Handle[T] that the heap's
// bookkeeping needs: its own storage address (for root/interior
// classification and removal), the address it currently points at, and the
// transient mark level used by Collect.
type handleRef interface {
	address() unsafe.Pointer
	targetAddr() unsafe.Pointer
	setTarget(unsafe.Pointer)
	level() int
	setLevel(int)
}

// dhpage couples one gpage.Page with the mark bitmap and interior-handle
// list the collector needs for it.
type dhpage struct {
	page    *gpage.Page
	marks   *markbits.Bits
	handles []handleRef
}

func newDHPage(elemSize, minElems uintptr, minPageSize uintptr, growthFactor float64) (*dhpage, error) {
	pg, err := gpage.NewWithGrowth(elemSize, int(minElems), minPageSize, growthFactor)
	if err != nil {
		return nil, err
	}

	return &dhpage{
		page:  pg,
		marks: markbits.New(pg.Locations()),
	}, nil
}

// removeHandle removes ref from this page's interior handle list by
// swapping it with the last element, matching the original's vector-based
// unordered removal.
func (pg *dhpage) removeHandle(ref handleRef) bool {
	for i, hd := range pg.handles {
		if hd == ref {
			last := len(pg.handles) - 1
			pg.handles[i] = pg.handles[last]
			pg.handles = pg.handles[:last]

			return true
		}
	}

	return false
}

// removeHandlesInRange drops every interior handle whose own storage
// address falls in [begin, end) from this page's handle list. Called when
// an allocation is swept: any handle that lived inside it stops existing
// as a handle the moment its backing chunks are freed, whatever its
// target was pointing at.
func (pg *dhpage) removeHandlesInRange(begin, end unsafe.Pointer) {
	// Zero-capacity slice expression forces append to allocate a fresh
	// backing array instead of overwriting pg.handles in place, which
	// would alias entries the range loop below hasn't read yet.
	kept := pg.handles[:0:0]

	for _, hd := range pg.handles {
		addr := uintptr(hd.address())
		if uintptr(begin) <= addr && addr < uintptr(end) {
			continue
		}

		kept = append(kept, hd)
	}

	pg.handles = kept
}

// Heap is a deferred, tracing, mark-and-sweep garbage-collected heap. The
// zero value is not usable; construct one with NewHeap.
//
// A Heap is not safe for concurrent use by multiple goroutines. None of
// its methods, nor the methods of the Handle values it produces, take any
// lock.
type Heap struct {
	cfg        Config
	pages      []*dhpage
	roots      map[handleRef]struct{}
	dtors      *destructor.Registry
	logger     *log.Logger
	destroying bool
	collecting bool
}

// NewHeap constructs an empty Heap configured by opts.
func NewHeap(opts ...Option) *Heap {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Heap{
		cfg:    cfg,
		roots:  make(map[handleRef]struct{}),
		dtors:  destructor.NewRegistry(),
		logger: cfg.Logger,
	}
}

// SetCollectBeforeExpand changes Config.CollectBeforeExpand after
// construction.
func (h *Heap) SetCollectBeforeExpand(v bool) { h.cfg.CollectBeforeExpand = v }

// CollectBeforeExpand reports the current Config.CollectBeforeExpand.
func (h *Heap) CollectBeforeExpand() bool { return h.cfg.CollectBeforeExpand }

// findInfo scans every page for one containing ptr, returning the owning
// page (nil if none) and the page's classification of ptr.
func (h *Heap) findInfo(ptr unsafe.Pointer) (*dhpage, gpage.ContainsInfoResult) {
	if ptr == nil {
		return nil, gpage.ContainsInfoResult{Found: gpage.NotInRange}
	}

	for _, pg := range h.pages {
		info := pg.page.ContainsInfo(ptr)
		if info.Found != gpage.NotInRange {
			return pg, info
		}
	}

	return nil, gpage.ContainsInfoResult{Found: gpage.NotInRange}
}

// pageFor returns the page whose backing storage contains addr, or nil if
// addr does not fall within any page owned by this heap.
func (h *Heap) pageFor(addr unsafe.Pointer) *dhpage {
	if addr == nil {
		return nil
	}

	for _, pg := range h.pages {
		if pg.page.Contains(addr) {
			return pg
		}
	}

	return nil
}

// enregister classifies ref by the address of the handle value itself: if
// that address falls inside one of this heap's pages, ref becomes an
// interior handle of that page; otherwise it becomes a root.
func (h *Heap) enregister(ref handleRef) {
	if h.destroying {
		fatal("ENREGISTER_DURING_TEARDOWN", "attempted to construct a handle while its heap is tearing down")
	}

	if pg := h.pageFor(ref.address()); pg != nil {
		pg.handles = append(pg.handles, ref)
		return
	}

	if _, exists := h.roots[ref]; exists {
		fatal("DOUBLE_ENREGISTER", "handle is already registered as a root")
	}

	h.roots[ref] = struct{}{}
}

// deregister removes ref from wherever it was registered. It panics if ref
// was never registered, matching the invariant that every live Handle is
// tracked exactly once.
func (h *Heap) deregister(ref handleRef) {
	if h.destroying {
		return
	}

	if _, exists := h.roots[ref]; exists {
		delete(h.roots, ref)
		return
	}

	if pg := h.pageFor(ref.address()); pg != nil && pg.removeHandle(ref) {
		return
	}

	fatal("DEREGISTER_UNKNOWN", "attempted to deregister a handle that was never registered")
}

// allocate reserves room for n contiguous elements of elemSize bytes,
// expanding the heap with a new page if no existing page has room. It
// reports false only when the backing page layer itself refuses a new
// page (out of memory).
//
// If called while a Collect is in progress -- which happens when a
// destructor running during sweep allocates -- the new allocation's start
// location is marked live immediately, so the sweep under way never
// reaches it and reclaims it in the same pass it was created in.
func (h *Heap) allocate(elemSize, n uintptr) (unsafe.Pointer, bool) {
	if p, ok := h.allocateFromExistingPages(elemSize, n); ok {
		h.markIfCollecting(p)
		return p, true
	}

	if h.cfg.CollectBeforeExpand {
		h.Collect()

		if p, ok := h.allocateFromExistingPages(elemSize, n); ok {
			h.markIfCollecting(p)
			return p, true
		}
	}

	pg, err := newDHPage(elemSize, n, h.cfg.MinPageSize, h.cfg.PageGrowthFactor)
	if err != nil {
		if h.logger != nil {
			memErr := memoryError("PAGE_EXPAND_FAILED", err.Error())
			h.logger.Printf("dheap: %v", memErr)
		}

		return nil, false
	}

	h.pages = append(h.pages, pg)

	p, ok := pg.page.Allocate(elemSize, n)
	if !ok {
		fatal("ALLOC_INVARIANT", "a freshly created page failed to satisfy the allocation it was sized for")
	}

	h.markIfCollecting(p)

	return p, true
}

// markIfCollecting sets p's allocation-start mark bit the moment it is
// allocated, but only while a Collect is in progress. A reentrant
// allocation made by a destructor during sweep would otherwise have its
// mark bit left at the false value every location started that
// collection with, making the sweep loop free it later in the very same
// pass it was born in.
func (h *Heap) markIfCollecting(p unsafe.Pointer) {
	if !h.collecting || p == nil {
		return
	}

	pg, info := h.findInfo(p)
	if pg != nil && info.Found != gpage.NotInRange {
		pg.marks.Set(info.StartLocation, true)
	}
}

func (h *Heap) allocateFromExistingPages(elemSize, n uintptr) (unsafe.Pointer, bool) {
	for _, pg := range h.pages {
		if p, ok := pg.page.Allocate(elemSize, n); ok {
			return p, true
		}
	}

	return nil, false
}

// Close tears the heap down: every root and interior handle is nulled,
// every remaining destructor thunk runs exactly once (in registration
// order, as RunAll), and every page's backing storage is released. The
// heap must not be used afterward.
func (h *Heap) Close() {
	if h.destroying {
		return
	}

	h.destroying = true

	for r := range h.roots {
		r.setTarget(nil)
	}

	for _, pg := range h.pages {
		for _, hd := range pg.handles {
			hd.setTarget(nil)
		}
	}

	h.dtors.RunAll()

	for _, pg := range h.pages {
		pg.page.Close()
	}

	h.pages = nil
	h.roots = nil
}
