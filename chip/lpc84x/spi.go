package lpc84x

import (
	"context"
	"fmt"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// SPIRegs is the SPI0/SPI1 register block.
type SPIRegs struct {
	CFG      mmio.U32          // 0x000 Configuration
	DLY      mmio.U32          // 0x004 Delay
	STAT     mmio.R32[SPIStat] // 0x008 Status
	INTENSET mmio.U32          // 0x00C Interrupt enable set
	INTENCLR mmio.U32          // 0x010 Interrupt enable clear
	RXDAT    mmio.U32          // 0x014 Receive data
	TXDATCTL mmio.U32          // 0x018 Transmit data with control
	TXDAT    mmio.U32          // 0x01C Transmit data
	TXCTL    mmio.U32          // 0x020 Transmit control
	DIV      mmio.U32          // 0x024 Clock divider
	INTSTAT  mmio.U32          // 0x028 Interrupt status
}

// CFG bits.
const (
	SPICfgEnable   = 1 << 0
	SPICfgMaster   = 1 << 2
	SPICfgLSBF     = 1 << 3
	SPICfgCPHA     = 1 << 4
	SPICfgCPOL     = 1 << 5
	SPICfgLoop     = 1 << 7
	SPICfgSPOLPos  = 8 // SPOL0..SPOL3, one bit per select
	SPICfgSPOLMask = 0xF << SPICfgSPOLPos
)

// DLY fields, each 4 bits.
const (
	SPIDlyPrePos      = 0
	SPIDlyPostPos     = 4
	SPIDlyFramePos    = 8
	SPIDlyTransferPos = 12
)

// SPIStat is the value of the STAT register.
type SPIStat uint32

// STAT bits. RxOverrun through SSD are write-one-to-clear; writing
// EndTransfer forces the end of the current transfer.
const (
	SPIStatRxReady     SPIStat = 1 << 0
	SPIStatTxReady     SPIStat = 1 << 1
	SPIStatRxOverrun   SPIStat = 1 << 2
	SPIStatTxUnderrun  SPIStat = 1 << 3
	SPIStatSSA         SPIStat = 1 << 4
	SPIStatSSD         SPIStat = 1 << 5
	SPIStatStalled     SPIStat = 1 << 6
	SPIStatEndTransfer SPIStat = 1 << 7
	SPIStatMasterIdle  SPIStat = 1 << 8

	SPIStatClearable = SPIStatRxOverrun | SPIStatTxUnderrun | SPIStatSSA | SPIStatSSD
)

// TXDATCTL and TXCTL control bits. The data field occupies bits 0-15 of
// TXDATCTL only.
const (
	SPITxSSELPos   = 16 // TXSSEL0_N..TXSSEL3_N, active low
	SPITxSSELMask  = 0xF << SPITxSSELPos
	SPITxEOT       = 1 << 20
	SPITxEOF       = 1 << 21
	SPITxRxIgnore  = 1 << 22
	SPITxLenPos    = 24 // Frame length minus one
	SPITxLenMask   = 0xF << SPITxLenPos
	SPIRxDataMask  = 0xFFFF
	SPIRxSOT       = 1 << 20
	spiMaxSelects  = 4
	spiFrameWidth  = 16
	spiMaxDivider  = 0xFFFF
	spiMaxDlyValue = 0xF
)

// SPITxControl encodes the control half of TXDATCTL for frame f.
func SPITxControl(f hal.Frame) uint32 {
	ssel := uint32(0xF) &^ (1 << f.Device)
	v := mmio.Encode(ssel, SPITxSSELPos, 4) |
		mmio.Encode(uint32(f.Bits)-1, SPITxLenPos, 4)
	if f.EOT {
		v |= SPITxEOT
	}
	if f.IgnoreRX {
		v |= SPITxRxIgnore
	}
	return v
}

// SPIConfig configures an SPI controller. The zero value selects a master
// in mode 0, MSB first, with the divider at 1.
type SPIConfig struct {
	Slave    bool  // Operate as slave instead of master
	Mode     uint8 // Clock polarity and phase, 0-3
	LSBFirst bool
	Loopback bool

	// Divider is the DIV register value; SCK = PCLK / (Divider + 1).
	Divider uint16

	// SelectActiveHigh has bit n set when select n is active high.
	SelectActiveHigh uint8

	// Delays in SPI clocks, each 0-15.
	PreDelay      uint8
	PostDelay     uint8
	FrameDelay    uint8
	TransferDelay uint8
}

// SPIDivider returns the smallest DIV value giving an SCK no faster than hz
// from a peripheral clock of pclk.
func SPIDivider(pclk, hz uint32) (uint16, error) {
	if pclk == 0 || hz == 0 {
		return 0, fmt.Errorf("spi divider %d/%d: %w", pclk, hz, pkg.ErrInvalidParameter)
	}
	div := (pclk + hz - 1) / hz
	if div == 0 {
		div = 1
	}
	if div-1 > spiMaxDivider {
		return 0, fmt.Errorf("spi divider for %d Hz from %d Hz: %w", hz, pclk, pkg.ErrNotSupported)
	}
	return uint16(div - 1), nil
}

// SPI is a synchronous wrapper around an SPI register block.
type SPI struct {
	Regs *SPIRegs
	port SPIPort
}

// NewSPI returns a wrapper for regs.
func NewSPI(regs *SPIRegs) *SPI {
	return &SPI{Regs: regs, port: SPIPort{regs: regs}}
}

// Configure disables the controller, programs it from cfg and enables it.
func (s *SPI) Configure(cfg SPIConfig) error {
	if cfg.Mode > 3 {
		return fmt.Errorf("spi mode %d: %w", cfg.Mode, pkg.ErrInvalidParameter)
	}
	if cfg.SelectActiveHigh > 0xF {
		return fmt.Errorf("spi select polarity %#x: %w", cfg.SelectActiveHigh, pkg.ErrInvalidParameter)
	}
	for _, d := range [...]uint8{cfg.PreDelay, cfg.PostDelay, cfg.FrameDelay, cfg.TransferDelay} {
		if d > spiMaxDlyValue {
			return fmt.Errorf("spi delay %d: %w", d, pkg.ErrInvalidParameter)
		}
	}

	s.Disable()

	var c uint32
	if !cfg.Slave {
		c |= SPICfgMaster
	}
	if cfg.LSBFirst {
		c |= SPICfgLSBF
	}
	if cfg.Mode&1 != 0 {
		c |= SPICfgCPHA
	}
	if cfg.Mode&2 != 0 {
		c |= SPICfgCPOL
	}
	if cfg.Loopback {
		c |= SPICfgLoop
	}
	c |= mmio.Encode(uint32(cfg.SelectActiveHigh), SPICfgSPOLPos, 4)

	s.Regs.DIV.Store(uint32(cfg.Divider))
	s.Regs.DLY.Store(uint32(cfg.PreDelay)<<SPIDlyPrePos |
		uint32(cfg.PostDelay)<<SPIDlyPostPos |
		uint32(cfg.FrameDelay)<<SPIDlyFramePos |
		uint32(cfg.TransferDelay)<<SPIDlyTransferPos)
	s.Regs.CFG.Store(c)
	s.Regs.STAT.Store(SPIStatClearable)
	s.Regs.CFG.SetBits(SPICfgEnable)

	pkg.LogDebug(pkg.ComponentSPI, "configured",
		"base", fmt.Sprintf("%#x", s.Regs.CFG.Addr()), "mode", cfg.Mode, "div", cfg.Divider)
	return nil
}

// Enable turns the controller on.
func (s *SPI) Enable() {
	s.Regs.CFG.SetBits(SPICfgEnable)
}

// Disable turns the controller off.
func (s *SPI) Disable() {
	s.Regs.CFG.ClearBits(SPICfgEnable)
}

// Enabled reports whether the controller is on.
func (s *SPI) Enabled() bool {
	return s.Regs.CFG.HasBits(SPICfgEnable)
}

// Status returns the STAT register.
func (s *SPI) Status() SPIStat {
	return s.Regs.STAT.Load()
}

// ClearStatus acknowledges the write-one-to-clear flags in mask.
func (s *SPI) ClearStatus(mask SPIStat) {
	s.Regs.STAT.Store(mask & SPIStatClearable)
}

// Port returns the port used by [hal.SPI] engines.
func (s *SPI) Port() *SPIPort {
	return &s.port
}

// Transfer sends bits bits from w to device while receiving into r, waiting
// for the hardware between frames. Either buffer may be nil: a nil w sends
// zero frames, a nil r discards received data. The select is released after
// the last frame.
func (s *SPI) Transfer(ctx context.Context, device uint8, w, r []uint16, bits uint32) error {
	if bits == 0 || device >= spiMaxSelects {
		return fmt.Errorf("spi transfer of %d bits to %d: %w", bits, device, pkg.ErrInvalidParameter)
	}
	frames := int((bits + spiFrameWidth - 1) / spiFrameWidth)
	if (w != nil && len(w) < frames) || (r != nil && len(r) < frames) {
		return fmt.Errorf("spi transfer of %d frames: %w", frames, pkg.ErrInvalidParameter)
	}

	stat := s.Regs.STAT.U32()
	for i := 0; i < frames; i++ {
		n := uint8(spiFrameWidth)
		if rem := bits - uint32(i)*spiFrameWidth; rem < spiFrameWidth {
			n = uint8(rem)
		}
		var data uint16
		if w != nil {
			data = w[i]
		}
		if err := mmio.WaitBits(ctx, stat, uint32(SPIStatTxReady)); err != nil {
			return fmt.Errorf("spi frame %d: %w", i, err)
		}
		s.port.Write(data, hal.Frame{
			Bits:     n,
			Device:   device,
			EOT:      i == frames-1,
			IgnoreRX: r == nil,
		})
		if r == nil {
			continue
		}
		if err := mmio.WaitBits(ctx, stat, uint32(SPIStatRxReady)); err != nil {
			return fmt.Errorf("spi frame %d: %w", i, err)
		}
		r[i] = s.port.Read() & uint16(mmio.Mask[uint32](0, uint(n)))
	}
	return nil
}

// SPIPort implements [hal.SPIPort] over the SPI registers.
type SPIPort struct {
	regs *SPIRegs
}

// Ready reads STAT once.
func (p *SPIPort) Ready() (rx, tx bool) {
	st := p.regs.STAT.Load()
	return st&SPIStatRxReady != 0, st&SPIStatTxReady != 0
}

// Read returns the received frame from RXDAT.
func (p *SPIPort) Read() uint16 {
	return uint16(p.regs.RXDAT.Load() & SPIRxDataMask)
}

// Write stores data and the frame control in one TXDATCTL write.
func (p *SPIPort) Write(data uint16, f hal.Frame) {
	p.regs.TXDATCTL.Store(SPITxControl(f) | uint32(data))
}

// Width returns 16, the maximum LEN+1.
func (p *SPIPort) Width() uint8 {
	return spiFrameWidth
}

// Devices returns 4, the number of select outputs.
func (p *SPIPort) Devices() uint8 {
	return spiMaxSelects
}
