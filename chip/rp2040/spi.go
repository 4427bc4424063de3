package rp2040

import (
	"context"
	"fmt"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// SPIRegs is the PL022 SSP register block.
type SPIRegs struct {
	SSPCR0   mmio.U32            // 0x00 Control 0
	SSPCR1   mmio.U32            // 0x04 Control 1
	SSPDR    mmio.U32            // 0x08 Data
	SSPSR    mmio.R32[SSPStatus] // 0x0C Status
	SSPCPSR  mmio.U32            // 0x10 Clock prescale
	SSPIMSC  mmio.U32            // 0x14 Interrupt mask set/clear
	SSPRIS   mmio.U32            // 0x18 Raw interrupt status
	SSPMIS   mmio.U32            // 0x1C Masked interrupt status
	SSPICR   mmio.U32            // 0x20 Interrupt clear
	SSPDMACR mmio.U32            // 0x24 DMA control
}

// SSPCR0 fields.
const (
	SSPCr0DSSPos = 0 // Data size minus one, 3-15
	SSPCr0FRFPos = 4 // Frame format, 0 for Motorola SPI
	SSPCr0SPO    = 1 << 6
	SSPCr0SPH    = 1 << 7
	SSPCr0SCRPos = 8 // Serial clock rate
	SSPCr0DSSMsk = 0xF << SSPCr0DSSPos
)

// SSPCR1 bits.
const (
	SSPCr1LBM = 1 << 0
	SSPCr1SSE = 1 << 1
	SSPCr1MS  = 1 << 2
	SSPCr1SOD = 1 << 3
)

// SSPStatus is the value of SSPSR.
type SSPStatus uint32

// SSPSR bits.
const (
	SSPStatusTFE SSPStatus = 1 << 0 // Transmit FIFO empty
	SSPStatusTNF SSPStatus = 1 << 1 // Transmit FIFO not full
	SSPStatusRNE SSPStatus = 1 << 2 // Receive FIFO not empty
	SSPStatusRFF SSPStatus = 1 << 3 // Receive FIFO full
	SSPStatusBSY SSPStatus = 1 << 4
)

// Interrupt bits shared by SSPIMSC, SSPRIS and SSPMIS. Only ROR and RT can
// be cleared through SSPICR.
const (
	SSPIntROR = 1 << 0
	SSPIntRT  = 1 << 1
	SSPIntRX  = 1 << 2
	SSPIntTX  = 1 << 3
)

// SSPDMACR bits.
const (
	SSPDmaRX = 1 << 0
	SSPDmaTX = 1 << 1
)

const (
	sspMinBits     = 4
	sspMaxBits     = 16
	sspMinPrescale = 2
	sspMaxPrescale = 254
	sspMaxSCR      = 255
)

// SPIConfig configures a PL022. The zero value selects a master in mode 0
// with 8-bit frames, driving the hardware chip select for device 0.
type SPIConfig struct {
	ClockHz   uint32 // clk_peri
	Frequency uint32 // Maximum SCK rate, 0 for clk_peri/2
	Mode      uint8  // Clock polarity and phase, 0-3
	DataBits  uint8  // Native frame size, 4-16
	Slave     bool
	Loopback  bool

	// Select, if set, drives chip selects in software for Devices devices.
	// The PL022 cannot select per frame, so the select stays asserted from
	// the first frame to a drained end-of-transfer frame.
	Select  func(device uint8, active bool)
	Devices uint8
}

// SPIClock returns the prescaler and serial clock rate giving the fastest
// SCK no faster than hz from clk, and that rate.
func SPIClock(clk, hz uint32) (cpsdvsr, scr, actual uint32, err error) {
	if clk == 0 || hz == 0 {
		return 0, 0, 0, fmt.Errorf("spi clock %d from %d Hz: %w", hz, clk, pkg.ErrInvalidParameter)
	}
	for ps := uint64(sspMinPrescale); ps <= sspMaxPrescale; ps += 2 {
		div := (uint64(clk) + ps*uint64(hz) - 1) / (ps * uint64(hz))
		if div == 0 {
			div = 1
		}
		if div-1 <= sspMaxSCR {
			return uint32(ps), uint32(div - 1), uint32(uint64(clk) / (ps * div)), nil
		}
	}
	return 0, 0, 0, fmt.Errorf("spi clock %d from %d Hz: %w", hz, clk, pkg.ErrNotSupported)
}

// SPI is a synchronous wrapper around a PL022 register block.
type SPI struct {
	Regs *SPIRegs
	port SPIPort
}

// NewSPI returns a wrapper for regs.
func NewSPI(regs *SPIRegs) *SPI {
	return &SPI{Regs: regs, port: SPIPort{regs: regs, width: 8, size: 8, selected: -1}}
}

// Configure disables the controller, programs it from cfg and enables it.
func (s *SPI) Configure(cfg SPIConfig) error {
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.DataBits < sspMinBits || cfg.DataBits > sspMaxBits {
		return fmt.Errorf("spi data bits %d: %w", cfg.DataBits, pkg.ErrInvalidParameter)
	}
	if cfg.Mode > 3 {
		return fmt.Errorf("spi mode %d: %w", cfg.Mode, pkg.ErrInvalidParameter)
	}
	if cfg.Frequency == 0 {
		cfg.Frequency = cfg.ClockHz / 2
	}
	cpsdvsr, scr, actual, err := SPIClock(cfg.ClockHz, cfg.Frequency)
	if err != nil {
		return err
	}

	s.Disable()

	cr0 := mmio.Encode(uint32(cfg.DataBits-1), SSPCr0DSSPos, 4) |
		mmio.Encode(scr, SSPCr0SCRPos, 8)
	if cfg.Mode&1 != 0 {
		cr0 |= SSPCr0SPH
	}
	if cfg.Mode&2 != 0 {
		cr0 |= SSPCr0SPO
	}
	var cr1 uint32
	if cfg.Slave {
		cr1 |= SSPCr1MS
	}
	if cfg.Loopback {
		cr1 |= SSPCr1LBM
	}
	s.Regs.SSPCPSR.Store(cpsdvsr)
	s.Regs.SSPCR0.Store(cr0)
	s.Regs.SSPCR1.Store(cr1)
	s.Regs.SSPICR.Store(SSPIntROR | SSPIntRT)

	devices := cfg.Devices
	if cfg.Select == nil || devices == 0 {
		devices = 1
	}
	s.port = SPIPort{
		regs:     s.Regs,
		width:    cfg.DataBits,
		size:     cfg.DataBits,
		devices:  devices,
		sel:      cfg.Select,
		selected: -1,
	}
	s.Enable()

	pkg.LogDebug(pkg.ComponentSPI, "configured",
		"base", fmt.Sprintf("%#x", s.Regs.SSPCR0.Addr()),
		"mode", cfg.Mode, "bits", cfg.DataBits, "hz", actual)
	return nil
}

// Enable sets SSE.
func (s *SPI) Enable() {
	s.Regs.SSPCR1.SetBits(SSPCr1SSE)
}

// Disable clears SSE.
func (s *SPI) Disable() {
	s.Regs.SSPCR1.ClearBits(SSPCr1SSE)
}

// Enabled reports whether SSE is set.
func (s *SPI) Enabled() bool {
	return s.Regs.SSPCR1.HasBits(SSPCr1SSE)
}

// Status returns SSPSR.
func (s *SPI) Status() SSPStatus {
	return s.Regs.SSPSR.Load()
}

// Port returns the port used by [hal.SPI] engines.
func (s *SPI) Port() *SPIPort {
	return &s.port
}

// Transfer exchanges bits bits with device in frames of the configured data
// size. A nil w sends zero frames; a nil r discards received data. The chip
// select is released once the controller has drained.
func (s *SPI) Transfer(ctx context.Context, device uint8, w, r []uint16, bits uint32) error {
	width := uint32(s.port.width)
	if bits == 0 || device >= s.port.Devices() {
		return fmt.Errorf("spi transfer of %d bits to %d: %w", bits, device, pkg.ErrInvalidParameter)
	}
	frames := int((bits + width - 1) / width)
	if (w != nil && len(w) < frames) || (r != nil && len(r) < frames) {
		return fmt.Errorf("spi transfer of %d frames: %w", frames, pkg.ErrInvalidParameter)
	}

	for i := 0; i < frames; i++ {
		n := uint8(width)
		if rem := bits - uint32(i)*width; rem < width {
			n = uint8(rem)
		}
		var data uint16
		if w != nil {
			data = w[i]
		}
		if err := mmio.Wait(ctx, s.port.writable); err != nil {
			return fmt.Errorf("spi frame %d: %w", i, err)
		}
		s.port.Write(data, hal.Frame{Bits: n, Device: device, EOT: i == frames-1})
		// The receive FIFO fills on every frame and is drained in step.
		if err := mmio.Wait(ctx, s.port.readable); err != nil {
			return fmt.Errorf("spi frame %d: %w", i, err)
		}
		v := s.port.Read()
		if r != nil {
			r[i] = v & uint16(mmio.Mask[uint32](0, uint(n)))
		}
	}
	if err := mmio.Wait(ctx, s.port.Flush); err != nil {
		return fmt.Errorf("spi drain: %w", err)
	}
	return nil
}

// SPIPort implements [hal.SPIPort] over the PL022 registers.
//
// Every Ready and Flush call reads SSPSR once and never waits. Work that
// needs an idle controller is deferred to the first call that sees TFE set
// and BSY clear:
//
//   - A frame that changes DSS, or moves the select to another device, is
//     held and reported as written; Ready reports tx false until it is sent.
//   - After an end-of-transfer frame the select is released and DSS
//     restored; Ready reports tx false until then, so the next transaction
//     starts with a fresh select edge.
//
// The PL022 always receives, so frames written with IgnoreRX are counted
// and their data discarded one per call. After the last transaction,
// callers poll Flush until it returns true.
type SPIPort struct {
	regs     *SPIRegs
	width    uint8
	size     uint8 // Current DSS+1
	devices  uint8
	sel      func(device uint8, active bool)
	selected int
	discard  int
	release  bool
	idle     bool // TFE set and BSY clear at the last read, nothing written since

	held      bool
	heldData  uint16
	heldFrame hal.Frame
}

// Ready reads SSPSR once, performs any deferred work it allows, and reports
// whether a frame can be read or written.
func (p *SPIPort) Ready() (rx, tx bool) {
	st := p.regs.SSPSR.Load()
	popped := p.service(st)
	rx = st&SSPStatusRNE != 0 && p.discard == 0 && !popped
	tx = st&SSPStatusTNF != 0 && !p.held && !p.release
	return rx, tx
}

func (p *SPIPort) readable() bool {
	rx, _ := p.Ready()
	return rx
}

func (p *SPIPort) writable() bool {
	_, tx := p.Ready()
	return tx
}

// service discards at most one ignored frame and, if st shows the
// controller idle, sends a held frame or completes a pending release. It
// reports whether a frame was discarded.
func (p *SPIPort) service(st SSPStatus) (popped bool) {
	if p.discard > 0 && st&SSPStatusRNE != 0 {
		p.regs.SSPDR.Load()
		p.discard--
		popped = true
	}
	p.idle = st&SSPStatusTFE != 0 && st&SSPStatusBSY == 0
	if !p.idle {
		return popped
	}
	switch {
	case p.held:
		p.held = false
		p.send(p.heldData, p.heldFrame)
	case p.release:
		if p.sel != nil && p.selected >= 0 {
			p.sel(uint8(p.selected), false)
		}
		p.selected = -1
		p.release = false
		if p.size != p.width {
			p.setSize(p.width)
		}
	}
	return popped
}

// Read pops one frame from SSPDR.
func (p *SPIPort) Read() uint16 {
	return uint16(p.regs.SSPDR.Load())
}

// Write queues data as frame f. Frames shorter than four bits go out as
// four-bit frames. A frame that needs a DSS change or a select change while
// the controller is busy is held until a later Ready or Flush sees it idle.
func (p *SPIPort) Write(data uint16, f hal.Frame) {
	f.Bits = max(f.Bits, sspMinBits)
	switching := p.sel != nil && p.selected >= 0 && p.selected != int(f.Device)
	if !p.idle && (f.Bits != p.size || switching) {
		p.held, p.heldData, p.heldFrame = true, data, f
		return
	}
	p.send(data, f)
}

func (p *SPIPort) send(data uint16, f hal.Frame) {
	if f.Bits != p.size {
		p.setSize(f.Bits)
	}
	if p.sel != nil && p.selected != int(f.Device) {
		if p.selected >= 0 {
			p.sel(uint8(p.selected), false)
		}
		p.sel(f.Device, true)
		p.selected = int(f.Device)
	}
	p.regs.SSPDR.Store(uint32(data) & mmio.Mask[uint32](0, uint(f.Bits)))
	p.idle = false
	if f.IgnoreRX {
		p.discard++
	}
	if f.EOT {
		p.release = true
	}
}

// setSize reprograms DSS. The controller must be idle; DSS may only change
// with SSE clear.
func (p *SPIPort) setSize(bits uint8) {
	p.regs.SSPCR1.ClearBits(SSPCr1SSE)
	p.regs.SSPCR0.StoreBits(SSPCr0DSSMsk, uint32(bits-1)<<SSPCr0DSSPos)
	p.regs.SSPCR1.SetBits(SSPCr1SSE)
	p.size = bits
}

// Flush reads SSPSR once and performs any deferred work it allows. It
// returns true when no frame is held, the select is released and every
// ignored frame has been discarded.
func (p *SPIPort) Flush() bool {
	p.service(p.regs.SSPSR.Load())
	return !p.held && !p.release && p.discard == 0
}

// Width returns the configured data size.
func (p *SPIPort) Width() uint8 {
	return p.width
}

// Devices returns the number of selectable devices.
func (p *SPIPort) Devices() uint8 {
	return max(p.devices, 1)
}
