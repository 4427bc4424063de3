// Package cortexm provides the ARMv6-M (Cortex-M0/M0+) core peripherals
// shared by every supported chip: the nested vectored interrupt controller
// and the system control block.
//
// Configuration changes are followed by [mmio.Barrier] so they take effect
// before the next instruction.
package cortexm

import (
	"fmt"

	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// Core peripheral base addresses.
const (
	NVICBase uintptr = 0xE000_E100
	SCBBase  uintptr = 0xE000_ED00
)

// MaxIRQ is the number of external interrupts on ARMv6-M.
const MaxIRQ = 32

// PriorityBits is the number of implemented priority bits. Priorities use
// the top bits of each byte.
const PriorityBits = 2

// IRQ is an external interrupt number.
type IRQ uint8

// IRQMask has bit n set for interrupt n.
type IRQMask uint32

// Mask returns the single-bit mask for irq.
func (irq IRQ) Mask() IRQMask {
	irq.check()
	return 1 << irq
}

func (irq IRQ) check() {
	if irq >= MaxIRQ {
		panic(fmt.Sprintf("cortexm: IRQ %d out of range", irq))
	}
}

// NVICRegs is the NVIC register block. ISER/ICER hold the SETENA/CLRENA
// bits and ISPR/ICPR the SETPEND/CLRPEND bits; writing one sets or clears,
// writing zero has no effect. IPR is word-accessible only on ARMv6-M.
type NVICRegs struct {
	ISER mmio.R32[IRQMask] // 0x000 SETENA
	_    [31]uint32
	ICER mmio.R32[IRQMask] // 0x080 CLRENA
	_    [31]uint32
	ISPR mmio.R32[IRQMask] // 0x100 SETPEND
	_    [31]uint32
	ICPR mmio.R32[IRQMask] // 0x180 CLRPEND
	_    [31]uint32
	IABR mmio.R32[IRQMask] // 0x200 Active
	_    [63]uint32
	IPR  [MaxIRQ / 4]mmio.U32 // 0x300 Priority, one byte per IRQ
}

// NVIC enables, pends and prioritizes external interrupts.
type NVIC struct {
	Regs *NVICRegs
}

// NewNVIC returns a wrapper for regs.
func NewNVIC(regs *NVICRegs) *NVIC {
	return &NVIC{Regs: regs}
}

// Enable enables irq.
func (n *NVIC) Enable(irq IRQ) {
	n.Regs.ISER.Store(irq.Mask())
	mmio.Barrier()
	pkg.LogDebug(pkg.ComponentNVIC, "enable", "irq", irq)
}

// Disable disables irq. No handler for irq runs after Disable returns.
func (n *NVIC) Disable(irq IRQ) {
	n.Regs.ICER.Store(irq.Mask())
	mmio.Barrier()
	pkg.LogDebug(pkg.ComponentNVIC, "disable", "irq", irq)
}

// IsEnabled reports whether irq is enabled.
func (n *NVIC) IsEnabled(irq IRQ) bool {
	return n.Regs.ISER.HasBits(irq.Mask())
}

// SetPending pends irq.
func (n *NVIC) SetPending(irq IRQ) {
	n.Regs.ISPR.Store(irq.Mask())
	mmio.Barrier()
}

// ClearPending removes the pending state of irq.
func (n *NVIC) ClearPending(irq IRQ) {
	n.Regs.ICPR.Store(irq.Mask())
	mmio.Barrier()
}

// IsPending reports whether irq is pending.
func (n *NVIC) IsPending(irq IRQ) bool {
	return n.Regs.ISPR.HasBits(irq.Mask())
}

// IsActive reports whether the handler for irq is running or preempted.
func (n *NVIC) IsActive(irq IRQ) bool {
	return n.Regs.IABR.HasBits(irq.Mask())
}

// SetPriority sets the priority of irq. Lower values are more urgent; only
// the top [PriorityBits] bits are implemented.
func (n *NVIC) SetPriority(irq IRQ, prio uint8) {
	irq.check()
	shift := uint(irq%4) * 8
	n.Regs.IPR[irq/4].StoreBits(mmio.Mask[uint32](shift, 8), uint32(prio)<<shift)
	mmio.Barrier()
	pkg.LogDebug(pkg.ComponentNVIC, "priority", "irq", irq, "prio", prio)
}

// Priority returns the priority of irq.
func (n *NVIC) Priority(irq IRQ) uint8 {
	irq.check()
	return uint8(mmio.Field(n.Regs.IPR[irq/4].Load(), uint(irq%4)*8, 8))
}
