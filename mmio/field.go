package mmio

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

// Mask returns a mask of width bits starting at bit shift.
func Mask[T constraints.Unsigned](shift, width uint) T {
	if width == 0 {
		return 0
	}
	all := ^T(0)
	if width >= uint(unsafe.Sizeof(all))*8 {
		return all << shift
	}
	return (T(1)<<width - 1) << shift
}

// Field extracts the width-bit field at shift from v.
func Field[T constraints.Unsigned](v T, shift, width uint) T {
	return (v & Mask[T](shift, width)) >> shift
}

// Encode places x into the width-bit field at shift. Bits of x beyond width
// are discarded.
func Encode[T constraints.Unsigned](x T, shift, width uint) T {
	return (x << shift) & Mask[T](shift, width)
}

// Insert returns v with the width-bit field at shift replaced by x.
func Insert[T constraints.Unsigned](v, x T, shift, width uint) T {
	m := Mask[T](shift, width)
	return v&^m | (x<<shift)&m
}
