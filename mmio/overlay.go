package mmio

import (
	"fmt"
	"unsafe"

	"github.com/ardnew/mcuhal/pkg"
)

// At returns the register block T located at the physical address addr.
// It is only meaningful on targets where addr is directly addressable,
// i.e. bare-metal builds.
func At[T any](addr uintptr) *T {
	return (*T)(unsafe.Pointer(addr))
}

// Overlay returns the register block T laid over mem at byte offset off.
// The region must be large enough for T and word aligned.
func Overlay[T any](mem []byte, off uintptr) (*T, error) {
	var zero T
	size := unsafe.Sizeof(zero)
	if off > uintptr(len(mem)) || uintptr(len(mem))-off < size {
		return nil, fmt.Errorf("overlay %d bytes at +%#x of %d: %w",
			size, off, len(mem), pkg.ErrInvalidAddress)
	}
	p := unsafe.Pointer(&mem[off])
	if uintptr(p)%4 != 0 {
		return nil, fmt.Errorf("overlay at %p: unaligned: %w", p, pkg.ErrInvalidAddress)
	}
	return (*T)(p), nil
}
