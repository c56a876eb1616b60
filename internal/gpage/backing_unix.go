//go:build unix

package gpage

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// systemPageSize mirrors internal/runtime's practice of asking the system
// for its real page granularity instead of hardcoding 4096 everywhere.
func systemPageSize() uintptr {
	if sz := unix.Getpagesize(); sz > 0 {
		return uintptr(sz)
	}

	return MinPageSize
}

// allocateBacking reserves anonymous, private memory for a Page using
// mmap, the same facility the teacher's asyncio package reaches for via
// golang.org/x/sys/unix on unix build targets.
func allocateBacking(size uintptr) ([]byte, func(), error) {
	buf, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, nil, fmt.Errorf("gpage: mmap %d bytes: %w", size, err)
	}

	release := func() {
		_ = unix.Munmap(buf)
	}

	return buf, release, nil
}
