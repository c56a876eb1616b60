// Package gpage implements the page-based raw storage layer that backs a
// deferred heap: a fixed-size byte buffer divided into equal-sized chunks,
// with per-location metadata tracking which chunks begin, continue, or are
// free of an allocation.
package gpage

import (
	"unsafe"
)

// locationState is the per-chunk bookkeeping a Page keeps.
type locationState uint8

const (
	stateFree locationState = iota
	stateStart
	stateMiddle
)

// Found classifies where a pointer falls relative to a Page's storage.
type Found int

const (
	NotInRange Found = iota
	InRangeUnallocated
	InRangeAllocatedMiddle
	InRangeAllocatedStart
)

// MinPageSize is the smallest total size a Page will ever request from its
// backing allocator, matching the "at least 4096 bytes" floor from the
// specification that motivates this package.
const MinPageSize = 4096

// MinChunkSize is the smallest chunk granularity a Page will use.
const MinChunkSize = 4

// sentinelBytes is the padding appended to every allocation's byte span so
// that a one-past-the-end pointer always lands inside an allocated chunk,
// and so two adjacent allocations never produce indistinguishable pointers.
const sentinelBytes = 1

// Page is a fixed-size chunked byte buffer with allocation tracking.
//
// A Page never moves or grows once constructed; the dheap package's Heap
// creates a new Page when no existing one can satisfy a request.
type Page struct {
	backing   []byte
	release   func()
	base      uintptr
	chunkSize uintptr
	states    []locationState
}

// DefaultGrowthFactor is the multiplier New applies to the requested
// footprint when sizing a page's backing storage, matching the "overshoot
// so the next few allocations of similar size don't force a new page"
// rule from the specification.
const DefaultGrowthFactor = 2.62

// New creates a Page sized to comfortably hold at least minElems objects of
// size hintSize, using DefaultGrowthFactor and MinPageSize as the growth
// factor and size floor. Equivalent to calling NewWithGrowth with those two
// defaults.
func New(hintSize uintptr, minElems int) (*Page, error) {
	return NewWithGrowth(hintSize, minElems, MinPageSize, DefaultGrowthFactor)
}

// NewWithGrowth creates a Page sized to comfortably hold at least minElems
// objects of size hintSize: total size is at least growthFactor times the
// requested footprint (but never under minPageSize), and the chunk size is
// the hinted element size (but never under MinChunkSize). A minPageSize or
// growthFactor of zero falls back to MinPageSize/DefaultGrowthFactor
// respectively.
func NewWithGrowth(hintSize uintptr, minElems int, minPageSize uintptr, growthFactor float64) (*Page, error) {
	if hintSize == 0 {
		hintSize = MinChunkSize
	}

	if minElems < 1 {
		minElems = 1
	}

	if minPageSize == 0 {
		minPageSize = MinPageSize
	}

	if growthFactor <= 0 {
		growthFactor = DefaultGrowthFactor
	}

	chunkSize := hintSize
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}

	wanted := uintptr(float64(hintSize) * float64(minElems) * growthFactor)
	total := wanted

	// Whatever the growth factor, the page must fit one allocation of
	// minElems elements plus its sentinel byte.
	if need := hintSize*uintptr(minElems) + sentinelBytes; total < need {
		total = need
	}

	floor := systemPageSize()
	if floor < minPageSize {
		floor = minPageSize
	}

	if total < floor {
		total = floor
	}

	// Round the total up to a whole number of chunks.
	locations := (total + chunkSize - 1) / chunkSize
	total = locations * chunkSize

	backing, release, err := allocateBacking(total)
	if err != nil {
		return nil, err
	}

	return &Page{
		backing:   backing,
		release:   release,
		base:      uintptr(unsafe.Pointer(unsafe.SliceData(backing))),
		chunkSize: chunkSize,
		states:    make([]locationState, locations),
	}, nil
}

// Close releases the Page's backing storage. It must not be called while
// any allocation from the page is still reachable.
func (p *Page) Close() {
	if p.release != nil {
		p.release()
		p.release = nil
	}
}

// Locations returns the number of chunk locations in the page.
func (p *Page) Locations() int {
	return len(p.states)
}

// ChunkSize returns the page's chunk granularity.
func (p *Page) ChunkSize() uintptr {
	return p.chunkSize
}

// locationPointer returns the address of location i (one past the last
// valid index is a legal argument: it yields the one-past-the-end address).
func (p *Page) locationPointer(i int) unsafe.Pointer {
	return unsafe.Pointer(p.base + uintptr(i)*p.chunkSize)
}

// locationIndex returns the chunk index that addr falls within, and
// whether addr lies within [base, base+size) at all.
func (p *Page) locationIndex(addr uintptr) (int, bool) {
	size := uintptr(len(p.states)) * p.chunkSize
	if addr < p.base || addr >= p.base+size {
		return 0, false
	}

	return int((addr - p.base) / p.chunkSize), true
}

// Allocate reserves enough contiguous chunks to hold n elements of size
// elemSize (plus one sentinel byte), marking the first chunk as the
// allocation start and the rest as middle. It returns nil, false if no
// sufficiently long run of free chunks exists.
func (p *Page) Allocate(elemSize uintptr, n uintptr) (unsafe.Pointer, bool) {
	if elemSize == 0 || n == 0 {
		return nil, false
	}

	need := elemSize*n + sentinelBytes
	chunksNeeded := (need + p.chunkSize - 1) / p.chunkSize

	run := 0
	start := -1

	for i, st := range p.states {
		if st == stateFree {
			if run == 0 {
				start = i
			}

			run++

			if uintptr(run) >= chunksNeeded {
				for j := start; j < start+run; j++ {
					if j == start {
						p.states[j] = stateStart
					} else {
						p.states[j] = stateMiddle
					}
				}

				return p.locationPointer(start), true
			}
		} else {
			run = 0
			start = -1
		}
	}

	return nil, false
}

// Deallocate marks the allocation starting at startPtr (and its trailing
// middle chunks) free again. It returns false if startPtr does not address
// an allocation start.
func (p *Page) Deallocate(startPtr unsafe.Pointer) bool {
	idx, ok := p.locationIndex(uintptr(startPtr))
	if !ok || p.states[idx] != stateStart {
		return false
	}

	p.states[idx] = stateFree

	for i := idx + 1; i < len(p.states) && p.states[i] == stateMiddle; i++ {
		p.states[i] = stateFree
	}

	return true
}

// Contains reports whether ptr lies within this page's backing storage.
func (p *Page) Contains(ptr unsafe.Pointer) bool {
	_, ok := p.locationIndex(uintptr(ptr))
	return ok
}

// ContainsInfoResult is the answer to a ContainsInfo query.
type ContainsInfoResult struct {
	Found         Found
	StartLocation int
	Pointer       unsafe.Pointer
}

// ContainsInfo classifies ptr relative to this page's allocations. For a
// pointer into the middle of an allocation, StartLocation walks backward to
// the allocation's start location so that two pointers into the same
// allocation can be recognized as such.
func (p *Page) ContainsInfo(ptr unsafe.Pointer) ContainsInfoResult {
	idx, ok := p.locationIndex(uintptr(ptr))
	if !ok {
		return ContainsInfoResult{Found: NotInRange}
	}

	switch p.states[idx] {
	case stateFree:
		return ContainsInfoResult{Found: InRangeUnallocated, StartLocation: idx, Pointer: ptr}
	case stateStart:
		return ContainsInfoResult{Found: InRangeAllocatedStart, StartLocation: idx, Pointer: ptr}
	default: // stateMiddle
		start := idx
		for start > 0 && p.states[start] == stateMiddle {
			start--
		}

		return ContainsInfoResult{Found: InRangeAllocatedMiddle, StartLocation: start, Pointer: ptr}
	}
}

// LocationInfoResult is the answer to a LocationInfo query.
type LocationInfoResult struct {
	Pointer unsafe.Pointer
	IsStart bool
}

// LocationInfo reports whether location i begins an allocation, and the
// address of that location. i == Locations() is legal and yields the
// one-past-the-end address of the page.
func (p *Page) LocationInfo(i int) LocationInfoResult {
	return LocationInfoResult{
		Pointer: p.locationPointer(i),
		IsStart: i < len(p.states) && p.states[i] == stateStart,
	}
}
