//go:build tinygo && cortexm

package mmio

import "device/arm"

// Barrier completes outstanding memory accesses and flushes the pipeline
// (DSB followed by ISB), as required after changing NVIC or SCB state.
func Barrier() {
	arm.Asm("dsb 0xF")
	arm.Asm("isb 0xF")
}
