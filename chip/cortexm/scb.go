package cortexm

import (
	"fmt"

	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// SCBRegs is the ARMv6-M system control block.
type SCBRegs struct {
	CPUID mmio.U32 // 0x00 CPU identification, read-only
	ICSR  mmio.U32 // 0x04 Interrupt control and state
	VTOR  mmio.U32 // 0x08 Vector table offset
	AIRCR mmio.U32 // 0x0C Application interrupt and reset control
	SCR   mmio.U32 // 0x10 System control
	CCR   mmio.U32 // 0x14 Configuration and control, read-only
	_     uint32   // SHPR1 is not implemented on ARMv6-M
	SHPR2 mmio.U32 // 0x1C SVCall priority
	SHPR3 mmio.U32 // 0x20 PendSV and SysTick priority
	SHCSR mmio.U32 // 0x24 System handler control and state
}

// ICSR bits.
const (
	ICSRNMIPendSet     = 1 << 31
	ICSRPendSVSet      = 1 << 28
	ICSRPendSVClr      = 1 << 27
	ICSRPendSTSet      = 1 << 26
	ICSRPendSTClr      = 1 << 25
	ICSRISRPreempt     = 1 << 23
	ICSRISRPending     = 1 << 22
	ICSRVectPendingPos = 12
	ICSRVectActiveMask = 0x1FF
)

// AIRCR bits.
const (
	AIRCRVectKey       = 0x05FA << 16
	AIRCREndianness    = 1 << 15
	AIRCRSysResetReq   = 1 << 2
	AIRCRVectClrActive = 1 << 1
)

// SCR bits.
const (
	SCRSleepOnExit = 1 << 1
	SCRSleepDeep   = 1 << 2
	SCRSevOnPend   = 1 << 4
)

// CCR bits.
const (
	CCRUnalignTrp = 1 << 3
	CCRStkAlign   = 1 << 9
)

// SHCSRSVCallPended is set while an SVCall is pending.
const SHCSRSVCallPended = 1 << 15

// VTORAlign is the required vector table alignment.
const VTORAlign = 0x100

// Exception is a system exception number.
type Exception uint8

// Exceptions with configurable priority.
const (
	SVCall  Exception = 11
	PendSV  Exception = 14
	SysTick Exception = 15
)

// CPUID is the decoded CPUID register.
type CPUID struct {
	Implementer  uint8
	Variant      uint8
	Architecture uint8
	PartNo       uint16
	Revision     uint8
}

var partNames = map[uint16]string{
	0xC20: "Cortex-M0",
	0xC21: "Cortex-M1",
	0xC23: "Cortex-M3",
	0xC24: "Cortex-M4",
	0xC27: "Cortex-M7",
	0xC60: "Cortex-M0+",
	0xD20: "Cortex-M23",
	0xD21: "Cortex-M33",
}

// DecodeCPUID splits a CPUID register value.
func DecodeCPUID(v uint32) CPUID {
	return CPUID{
		Implementer:  uint8(mmio.Field(v, 24, 8)),
		Variant:      uint8(mmio.Field(v, 20, 4)),
		Architecture: uint8(mmio.Field(v, 16, 4)),
		PartNo:       uint16(mmio.Field(v, 4, 12)),
		Revision:     uint8(mmio.Field(v, 0, 4)),
	}
}

// Name returns the core name, or the part number if unknown.
func (c CPUID) Name() string {
	if name, ok := partNames[c.PartNo]; ok {
		return name
	}
	return fmt.Sprintf("part %#03x", c.PartNo)
}

func (c CPUID) String() string {
	return fmt.Sprintf("%s r%dp%d", c.Name(), c.Variant, c.Revision)
}

// SCB wraps the system control block.
type SCB struct {
	Regs *SCBRegs
}

// NewSCB returns a wrapper for regs.
func NewSCB(regs *SCBRegs) *SCB {
	return &SCB{Regs: regs}
}

// CPUID reads and decodes CPUID.
func (s *SCB) CPUID() CPUID {
	return DecodeCPUID(s.Regs.CPUID.Load())
}

// SetVectorTable relocates the vector table to addr.
func (s *SCB) SetVectorTable(addr uint32) error {
	if addr%VTORAlign != 0 {
		return fmt.Errorf("vector table at %#08x: %w", addr, pkg.ErrInvalidAddress)
	}
	s.Regs.VTOR.Store(addr)
	mmio.Barrier()
	return nil
}

// VectorTable returns the vector table address.
func (s *SCB) VectorTable() uint32 {
	return s.Regs.VTOR.Load()
}

// SystemReset requests a system reset. On hardware the core resets after
// the write completes.
func (s *SCB) SystemReset() {
	pkg.LogWarn(pkg.ComponentSCB, "system reset requested")
	mmio.Barrier()
	s.Regs.AIRCR.Store(AIRCRVectKey | AIRCRSysResetReq)
	mmio.Barrier()
}

// PendSV sets or clears the PendSV pending state.
func (s *SCB) PendSV(pend bool) {
	if pend {
		s.Regs.ICSR.Store(ICSRPendSVSet)
	} else {
		s.Regs.ICSR.Store(ICSRPendSVClr)
	}
	mmio.Barrier()
}

// PendSysTick sets or clears the SysTick pending state.
func (s *SCB) PendSysTick(pend bool) {
	if pend {
		s.Regs.ICSR.Store(ICSRPendSTSet)
	} else {
		s.Regs.ICSR.Store(ICSRPendSTClr)
	}
	mmio.Barrier()
}

// PendSVPending reports whether PendSV is pending.
func (s *SCB) PendSVPending() bool {
	return s.Regs.ICSR.HasBits(ICSRPendSVSet)
}

// ActiveVector returns the exception number being handled, 0 in thread mode.
func (s *SCB) ActiveVector() uint32 {
	return s.Regs.ICSR.LoadBits(ICSRVectActiveMask)
}

// SetSleepOnExit selects whether the core sleeps on return to thread mode.
func (s *SCB) SetSleepOnExit(on bool) {
	if on {
		s.Regs.SCR.SetBits(SCRSleepOnExit)
	} else {
		s.Regs.SCR.ClearBits(SCRSleepOnExit)
	}
	mmio.Barrier()
}

// SetDeepSleep selects deep sleep for WFI and WFE.
func (s *SCB) SetDeepSleep(on bool) {
	if on {
		s.Regs.SCR.SetBits(SCRSleepDeep)
	} else {
		s.Regs.SCR.ClearBits(SCRSleepDeep)
	}
	mmio.Barrier()
}

func (s *SCB) priorityField(exc Exception) (*mmio.U32, uint, error) {
	switch exc {
	case SVCall:
		return &s.Regs.SHPR2, 24, nil
	case PendSV:
		return &s.Regs.SHPR3, 16, nil
	case SysTick:
		return &s.Regs.SHPR3, 24, nil
	}
	return nil, 0, fmt.Errorf("priority of exception %d: %w", exc, pkg.ErrNotSupported)
}

// SetSystemPriority sets the priority of a system exception.
func (s *SCB) SetSystemPriority(exc Exception, prio uint8) error {
	reg, shift, err := s.priorityField(exc)
	if err != nil {
		return err
	}
	reg.StoreBits(mmio.Mask[uint32](shift, 8), uint32(prio)<<shift)
	mmio.Barrier()
	return nil
}

// SystemPriority returns the priority of a system exception.
func (s *SCB) SystemPriority(exc Exception) (uint8, error) {
	reg, shift, err := s.priorityField(exc)
	if err != nil {
		return 0, err
	}
	return uint8(mmio.Field(reg.Load(), shift, 8)), nil
}
