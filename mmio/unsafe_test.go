package mmio

import "unsafe"

func unsafeBytes(w []uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&w[0])), len(w)*4)
}
