//go:build windows

package allocator

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/orizon-lang/orizon-arcp"
)

// systemMap is the Windows half of the OS-served path: VirtualAlloc in
// place of the mmap anonymous-map syscall allocator_unix.go uses, exactly what
// the teacher's own systemAlloc comment names as the Windows counterpart
// ("VirtualAlloc on Windows or mmap on Linux").
func systemMap(size int) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(size), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, fmt.Errorf("allocator: VirtualAlloc %d bytes: %w: %w", size, arcp.ErrAllocationFailed, err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// systemUnmap releases a mapping obtained from systemMap. VirtualFree's
// MEM_RELEASE mode requires addr to be exactly the reservation's base
// address and size to be 0 — it frees the whole region in one shot and
// cannot be used to shrink it, so this must only be called with the full
// buffer systemMap returned.
func systemUnmap(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&buf[0]))
	if err := windows.VirtualFree(addr, 0, windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("allocator: VirtualFree: %w", err)
	}
	return nil
}

// systemShrink releases the trailing sub-range tail of a still-live
// mapping, for TryRealloc's in-place OS-shrink path. Unlike systemUnmap,
// tail's address is never the reservation's base address, so MEM_RELEASE
// cannot apply here; MEM_DECOMMIT accepts an arbitrary page-aligned
// sub-range with an explicit size and leaves the rest of the reservation
// (and its address range) intact.
func systemShrink(tail []byte) error {
	if len(tail) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&tail[0]))
	if err := windows.VirtualFree(addr, uintptr(len(tail)), windows.MEM_DECOMMIT); err != nil {
		return fmt.Errorf("allocator: VirtualFree MEM_DECOMMIT: %w", err)
	}
	return nil
}
