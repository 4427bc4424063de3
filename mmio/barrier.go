//go:build !(tinygo && cortexm)

package mmio

import "sync/atomic"

var fence uint32

// Barrier orders every register access issued before it against every
// access issued after it. On hosted builds a sequentially consistent atomic
// operation provides the ordering.
func Barrier() {
	atomic.AddUint32(&fence, 1)
}
