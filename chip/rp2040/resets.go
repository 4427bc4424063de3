package rp2040

import (
	"context"
	"fmt"

	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// ResetsRegs is the RESETS register block.
type ResetsRegs struct {
	RESET      mmio.U32 // 0x00 Reset control, 1 holds the block in reset
	WDSEL      mmio.U32 // 0x04 Blocks reset by the watchdog
	RESET_DONE mmio.U32 // 0x08 Blocks out of reset and ready
}

// Reset bits, shared by RESET, WDSEL and RESET_DONE.
const (
	ResetADC       = 1 << 0
	ResetBusCtrl   = 1 << 1
	ResetDMA       = 1 << 2
	ResetI2C0      = 1 << 3
	ResetI2C1      = 1 << 4
	ResetIOBank0   = 1 << 5
	ResetIOQSPI    = 1 << 6
	ResetJTAG      = 1 << 7
	ResetPadsBank0 = 1 << 8
	ResetPadsQSPI  = 1 << 9
	ResetPIO0      = 1 << 10
	ResetPIO1      = 1 << 11
	ResetPLLSys    = 1 << 12
	ResetPLLUSB    = 1 << 13
	ResetPWM       = 1 << 14
	ResetRTC       = 1 << 15
	ResetSPI0      = 1 << 16
	ResetSPI1      = 1 << 17
	ResetSysCfg    = 1 << 18
	ResetSysInfo   = 1 << 19
	ResetTBMan     = 1 << 20
	ResetTimer     = 1 << 21
	ResetUART0     = 1 << 22
	ResetUART1     = 1 << 23
	ResetUSBCtrl   = 1 << 24

	ResetAll = 1<<25 - 1
)

// Resets controls the subsystem resets.
type Resets struct {
	Regs *ResetsRegs
}

// NewResets returns a wrapper for regs.
func NewResets(regs *ResetsRegs) *Resets {
	return &Resets{Regs: regs}
}

// Reset holds the blocks in mask in reset.
func (r *Resets) Reset(mask uint32) {
	pkg.LogDebug(pkg.ComponentReset, "reset", "mask", fmt.Sprintf("%#07x", mask))
	r.Regs.RESET.SetBits(mask & ResetAll)
}

// Unreset releases the blocks in mask from reset without waiting.
func (r *Resets) Unreset(mask uint32) {
	pkg.LogDebug(pkg.ComponentReset, "unreset", "mask", fmt.Sprintf("%#07x", mask))
	r.Regs.RESET.ClearBits(mask & ResetAll)
}

// Done reports whether every block in mask is out of reset.
func (r *Resets) Done(mask uint32) bool {
	return r.Regs.RESET_DONE.HasBits(mask & ResetAll)
}

// UnresetWait releases the blocks in mask and waits until RESET_DONE reports
// all of them ready.
func (r *Resets) UnresetWait(ctx context.Context, mask uint32) error {
	r.Unreset(mask)
	if err := mmio.WaitBits(ctx, &r.Regs.RESET_DONE, mask&ResetAll); err != nil {
		return fmt.Errorf("unreset %#07x: %w", mask, err)
	}
	return nil
}

// Cycle puts the blocks in mask through a full reset.
func (r *Resets) Cycle(ctx context.Context, mask uint32) error {
	r.Reset(mask)
	return r.UnresetWait(ctx, mask)
}
