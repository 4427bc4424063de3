// Package mmio provides typed access to memory-mapped peripheral registers.
//
// A peripheral is described by a struct whose fields are [U32] or [R32]
// registers in datasheet order, with blank array fields for reserved gaps:
//
//	type Regs struct {
//	    CTRL mmio.U32      // 0x00
//	    STAT mmio.R32[Stat] // 0x04
//	    _    [2]uint32
//	    DATA mmio.U32      // 0x10
//	}
//
// The struct is then placed over the hardware with [At] on bare-metal
// targets, over a window mapped from /dev/mem with [Map] and [View] on a
// Linux host, or simply allocated in ordinary memory for tests.
//
// [Layout] recovers register names and offsets from such a struct, which is
// how tools print and address registers by name.
package mmio
