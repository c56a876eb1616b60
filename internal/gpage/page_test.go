package gpage

import "testing"

func TestPage(t *testing.T) {
	t.Run("NewSizing", func(t *testing.T) {
		pg, err := New(8, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer pg.Close()

		if pg.ChunkSize() < MinChunkSize {
			t.Errorf("chunk size %d below minimum %d", pg.ChunkSize(), MinChunkSize)
		}

		if uintptr(pg.Locations())*pg.ChunkSize() < MinPageSize {
			t.Errorf("page total size below minimum %d", MinPageSize)
		}
	})

	t.Run("AllocateAndDeallocate", func(t *testing.T) {
		pg, err := New(8, 4)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer pg.Close()

		p, ok := pg.Allocate(8, 1)
		if !ok || p == nil {
			t.Fatal("allocation failed")
		}

		info := pg.ContainsInfo(p)
		if info.Found != InRangeAllocatedStart {
			t.Errorf("expected InRangeAllocatedStart, got %v", info.Found)
		}

		if !pg.Deallocate(p) {
			t.Fatal("deallocate failed")
		}

		info = pg.ContainsInfo(p)
		if info.Found != InRangeUnallocated {
			t.Errorf("expected InRangeUnallocated after deallocate, got %v", info.Found)
		}
	})

	t.Run("MiddleLocationWalksBackToStart", func(t *testing.T) {
		pg, err := New(8, 4)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer pg.Close()

		p, ok := pg.Allocate(8, 4)
		if !ok {
			t.Fatal("allocation failed")
		}

		startInfo := pg.ContainsInfo(p)

		midPtr := pg.locationPointer(startInfo.StartLocation + 1)
		midInfo := pg.ContainsInfo(midPtr)
		if midInfo.Found != InRangeAllocatedMiddle {
			t.Fatalf("expected InRangeAllocatedMiddle, got %v", midInfo.Found)
		}

		if midInfo.StartLocation != startInfo.StartLocation {
			t.Errorf("middle location resolved to start %d, want %d", midInfo.StartLocation, startInfo.StartLocation)
		}
	})

	t.Run("AllocateFailsWhenFull", func(t *testing.T) {
		pg, err := New(4096, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer pg.Close()

		total := uintptr(pg.Locations()) * pg.ChunkSize()

		if _, ok := pg.Allocate(total*2, 1); ok {
			t.Error("expected allocation larger than the page to fail")
		}
	})

	t.Run("NewWithGrowthHonorsCustomFloorAndFactor", func(t *testing.T) {
		pg, err := NewWithGrowth(8, 1, 65536, 1.0)
		if err != nil {
			t.Fatalf("NewWithGrowth: %v", err)
		}
		defer pg.Close()

		if uintptr(pg.Locations())*pg.ChunkSize() < 65536 {
			t.Errorf("page total size below requested floor %d", 65536)
		}
	})

	t.Run("NotInRange", func(t *testing.T) {
		pg, err := New(8, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer pg.Close()

		other, err := New(8, 1)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		defer other.Close()

		p, _ := other.Allocate(8, 1)
		if pg.Contains(p) {
			t.Error("page should not contain a pointer from a different page")
		}

		if pg.ContainsInfo(p).Found != NotInRange {
			t.Error("expected NotInRange for a pointer from a different page")
		}
	})
}
