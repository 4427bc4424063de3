package mmio

import (
	"sync/atomic"
	"unsafe"
)

// U32 is a 32-bit memory-mapped register.
//
// Every access is a single word-sized atomic load or store, which the
// compiler may neither elide, merge nor reorder with other register
// accesses. Read-modify-write helpers are not atomic with respect to the
// hardware or to interrupt handlers touching the same register.
type U32 struct {
	v uint32
}

// Load reads the register.
func (r *U32) Load() uint32 {
	return atomic.LoadUint32(&r.v)
}

// Store writes the register.
func (r *U32) Store(v uint32) {
	atomic.StoreUint32(&r.v, v)
}

// SetBits sets the bits in mask with a read-modify-write.
func (r *U32) SetBits(mask uint32) {
	r.Store(r.Load() | mask)
}

// ClearBits clears the bits in mask with a read-modify-write.
func (r *U32) ClearBits(mask uint32) {
	r.Store(r.Load() &^ mask)
}

// ToggleBits inverts the bits in mask with a read-modify-write.
func (r *U32) ToggleBits(mask uint32) {
	r.Store(r.Load() ^ mask)
}

// HasBits reports whether every bit in mask is set.
func (r *U32) HasBits(mask uint32) bool {
	return r.Load()&mask == mask
}

// HasAny reports whether at least one bit in mask is set.
func (r *U32) HasAny(mask uint32) bool {
	return r.Load()&mask != 0
}

// LoadBits returns the register value masked by mask.
func (r *U32) LoadBits(mask uint32) uint32 {
	return r.Load() & mask
}

// StoreBits replaces the bits selected by mask with the corresponding bits of v.
func (r *U32) StoreBits(mask, v uint32) {
	r.Store(r.Load()&^mask | v&mask)
}

// Addr returns the address of the register.
func (r *U32) Addr() uintptr {
	return uintptr(unsafe.Pointer(r))
}

// R32 is a 32-bit register whose value is a named bit-set type. It has the
// same layout as [U32].
type R32[T ~uint32] struct {
	v uint32
}

// Load reads the register.
func (r *R32[T]) Load() T {
	return T(atomic.LoadUint32(&r.v))
}

// Store writes the register.
func (r *R32[T]) Store(v T) {
	atomic.StoreUint32(&r.v, uint32(v))
}

// SetBits sets the bits in mask with a read-modify-write.
func (r *R32[T]) SetBits(mask T) {
	r.Store(r.Load() | mask)
}

// ClearBits clears the bits in mask with a read-modify-write.
func (r *R32[T]) ClearBits(mask T) {
	r.Store(r.Load() &^ mask)
}

// HasBits reports whether every bit in mask is set.
func (r *R32[T]) HasBits(mask T) bool {
	return r.Load()&mask == mask
}

// HasAny reports whether at least one bit in mask is set.
func (r *R32[T]) HasAny(mask T) bool {
	return r.Load()&mask != 0
}

// StoreBits replaces the bits selected by mask with the corresponding bits of v.
func (r *R32[T]) StoreBits(mask, v T) {
	r.Store(r.Load()&^mask | v&mask)
}

// U32 returns the register as an untyped [U32].
func (r *R32[T]) U32() *U32 {
	return (*U32)(unsafe.Pointer(r))
}
