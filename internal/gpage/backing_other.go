//go:build !unix

package gpage

// systemPageSize has no golang.org/x/sys/unix to query on non-unix build
// targets, so it falls back to the spec's own floor.
func systemPageSize() uintptr {
	return MinPageSize
}

// allocateBacking falls back to ordinary Go-heap storage on build targets
// where mmap is unavailable, mirroring the teacher's
// internal/runtime/asyncio fallback files (e.g. zerocopy_windows_file.go)
// that drop to a portable path when the unix syscall path doesn't apply.
func allocateBacking(size uintptr) ([]byte, func(), error) {
	buf := make([]byte, size)
	return buf, func() {}, nil
}
