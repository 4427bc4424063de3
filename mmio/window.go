package mmio

import (
	"fmt"
	"unsafe"

	"github.com/ardnew/mcuhal/pkg"
)

// Window is a contiguous range of register address space backed by host
// memory. Addresses passed to its methods are bus addresses, not offsets.
type Window struct {
	base uintptr
	mem  []byte

	unmap func() error
}

// NewWindow wraps mem as the register range starting at bus address base.
// It is used for register files held in ordinary memory.
func NewWindow(base uintptr, mem []byte) *Window {
	return &Window{base: base, mem: mem}
}

// Base returns the bus address of the first byte of the window.
func (w *Window) Base() uintptr {
	return w.base
}

// Size returns the length of the window in bytes.
func (w *Window) Size() uintptr {
	return uintptr(len(w.mem))
}

// Bytes returns the memory backing the window.
func (w *Window) Bytes() []byte {
	return w.mem
}

// Contains reports whether the n bytes at addr lie inside the window.
func (w *Window) Contains(addr, n uintptr) bool {
	return addr >= w.base && n <= w.Size() && addr-w.base <= w.Size()-n
}

// Reg32 returns the 32-bit register at bus address addr.
func (w *Window) Reg32(addr uintptr) (*U32, error) {
	if addr%4 != 0 {
		return nil, fmt.Errorf("register %#x: unaligned: %w", addr, pkg.ErrInvalidAddress)
	}
	if !w.Contains(addr, 4) {
		return nil, fmt.Errorf("register %#x outside [%#x, %#x): %w",
			addr, w.base, w.base+w.Size(), pkg.ErrInvalidAddress)
	}
	return (*U32)(unsafe.Pointer(&w.mem[addr-w.base])), nil
}

// Close releases the window. Registers obtained from it must not be used
// afterwards.
func (w *Window) Close() error {
	if w.unmap == nil {
		return nil
	}
	err := w.unmap()
	w.unmap = nil
	w.mem = nil
	return err
}

// View returns the register block T located at bus address addr inside w.
func View[T any](w *Window, addr uintptr) (*T, error) {
	if addr < w.base {
		return nil, fmt.Errorf("block %#x below window %#x: %w", addr, w.base, pkg.ErrInvalidAddress)
	}
	return Overlay[T](w.mem, addr-w.base)
}
