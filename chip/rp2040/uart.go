package rp2040

import (
	"context"
	"fmt"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// UARTRegs is the PL011 UART register block.
type UARTRegs struct {
	UARTDR    mmio.U32 // 0x00 Data, with receive status in bits 8-11
	UARTRSR   mmio.U32 // 0x04 Receive status / error clear
	_         [4]uint32
	UARTFR    mmio.R32[UARTFlag] // 0x18 Flags
	_         uint32
	UARTILPR  mmio.U32 // 0x20 IrDA low-power counter
	UARTIBRD  mmio.U32 // 0x24 Integer baud divisor
	UARTFBRD  mmio.U32 // 0x28 Fractional baud divisor
	UARTLCR_H mmio.U32 // 0x2C Line control
	UARTCR    mmio.U32 // 0x30 Control
	UARTIFLS  mmio.U32 // 0x34 Interrupt FIFO level select
	UARTIMSC  mmio.U32 // 0x38 Interrupt mask set/clear
	UARTRIS   mmio.U32 // 0x3C Raw interrupt status
	UARTMIS   mmio.U32 // 0x40 Masked interrupt status
	UARTICR   mmio.U32 // 0x44 Interrupt clear
	UARTDMACR mmio.U32 // 0x48 DMA control
}

// UARTDR receive status bits.
const (
	UARTDRDataMask = 0xFF
	UARTDRFE       = 1 << 8
	UARTDRPE       = 1 << 9
	UARTDRBE       = 1 << 10
	UARTDROE       = 1 << 11
)

// UARTRSR bits. Any write clears them.
const (
	UARTRSRFE = 1 << 0
	UARTRSRPE = 1 << 1
	UARTRSRBE = 1 << 2
	UARTRSROE = 1 << 3
)

// UARTFlag is the value of UARTFR.
type UARTFlag uint32

// UARTFR bits.
const (
	UARTFlagCTS  UARTFlag = 1 << 0
	UARTFlagDSR  UARTFlag = 1 << 1
	UARTFlagDCD  UARTFlag = 1 << 2
	UARTFlagBusy UARTFlag = 1 << 3
	UARTFlagRXFE UARTFlag = 1 << 4
	UARTFlagTXFF UARTFlag = 1 << 5
	UARTFlagRXFF UARTFlag = 1 << 6
	UARTFlagTXFE UARTFlag = 1 << 7
	UARTFlagRI   UARTFlag = 1 << 8
)

// UARTLCR_H bits and fields.
const (
	UARTLcrBRK      = 1 << 0
	UARTLcrPEN      = 1 << 1
	UARTLcrEPS      = 1 << 2
	UARTLcrSTP2     = 1 << 3
	UARTLcrFEN      = 1 << 4
	UARTLcrWLENPos  = 5 // Word length minus five
	UARTLcrWLENMask = 0x3 << UARTLcrWLENPos
	UARTLcrSPS      = 1 << 7
)

// UARTCR bits.
const (
	UARTCrUARTEN = 1 << 0
	UARTCrSIREN  = 1 << 1
	UARTCrSIRLP  = 1 << 2
	UARTCrLBE    = 1 << 7
	UARTCrTXE    = 1 << 8
	UARTCrRXE    = 1 << 9
	UARTCrDTR    = 1 << 10
	UARTCrRTS    = 1 << 11
	UARTCrRTSEN  = 1 << 14
	UARTCrCTSEN  = 1 << 15
)

// Interrupt bits shared by UARTIMSC, UARTRIS, UARTMIS and UARTICR.
const (
	UARTIntRI  = 1 << 0
	UARTIntCTS = 1 << 1
	UARTIntDCD = 1 << 2
	UARTIntDSR = 1 << 3
	UARTIntRX  = 1 << 4
	UARTIntTX  = 1 << 5
	UARTIntRT  = 1 << 6
	UARTIntFE  = 1 << 7
	UARTIntPE  = 1 << 8
	UARTIntBE  = 1 << 9
	UARTIntOE  = 1 << 10
	UARTIntAll = 1<<11 - 1

	UARTIntErrors = UARTIntFE | UARTIntPE | UARTIntBE | UARTIntOE
)

const uartMaxIBRD = 0xFFFF

// Parity selects the parity bit.
type Parity uint8

// Parity settings.
const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// UARTConfig configures a PL011. Zero fields select 115200 baud, 8 data
// bits, no parity, one stop bit and FIFOs enabled.
type UARTConfig struct {
	BaudRate    uint32
	ClockHz     uint32 // clk_peri
	DataBits    uint8  // 5 to 8
	Parity      Parity
	StopBits    uint8 // 1 or 2
	Loopback    bool
	FlowControl bool // Hardware RTS/CTS
	DisableFIFO bool
}

// UARTDivisors returns the integer and fractional baud divisors for baud
// from clk, clamped to the PL011 range, and the rate they produce.
func UARTDivisors(clk, baud uint32) (ibrd, fbrd, actual uint32, err error) {
	if clk == 0 || baud == 0 {
		return 0, 0, 0, fmt.Errorf("baud %d from %d Hz: %w", baud, clk, pkg.ErrInvalidParameter)
	}
	div := uint32(8 * uint64(clk) / uint64(baud))
	ibrd = div >> 7
	switch {
	case ibrd == 0:
		ibrd, fbrd = 1, 0
	case ibrd >= uartMaxIBRD:
		ibrd, fbrd = uartMaxIBRD, 0
	default:
		fbrd = (div&0x7F + 1) / 2
	}
	actual = uint32(4 * uint64(clk) / uint64(64*ibrd+fbrd))
	return ibrd, fbrd, actual, nil
}

// UART is a synchronous wrapper around a PL011 register block.
type UART struct {
	Regs *UARTRegs
	port UARTPort
}

// NewUART returns a wrapper for regs.
func NewUART(regs *UARTRegs) *UART {
	return &UART{Regs: regs, port: UARTPort{regs: regs}}
}

// Configure disables the UART, programs it from cfg, clears pending status
// and enables it with both directions on.
func (u *UART) Configure(cfg UARTConfig) error {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 115200
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}
	if cfg.DataBits < 5 || cfg.DataBits > 8 {
		return fmt.Errorf("uart data bits %d: %w", cfg.DataBits, pkg.ErrInvalidParameter)
	}
	if cfg.StopBits > 2 {
		return fmt.Errorf("uart stop bits %d: %w", cfg.StopBits, pkg.ErrInvalidParameter)
	}

	lcr := mmio.Encode(uint32(cfg.DataBits-5), UARTLcrWLENPos, 2)
	switch cfg.Parity {
	case ParityNone:
	case ParityEven:
		lcr |= UARTLcrPEN | UARTLcrEPS
	case ParityOdd:
		lcr |= UARTLcrPEN
	default:
		return fmt.Errorf("uart parity %d: %w", cfg.Parity, pkg.ErrInvalidParameter)
	}
	if cfg.StopBits == 2 {
		lcr |= UARTLcrSTP2
	}
	if !cfg.DisableFIFO {
		lcr |= UARTLcrFEN
	}
	ibrd, fbrd, actual, err := UARTDivisors(cfg.ClockHz, cfg.BaudRate)
	if err != nil {
		return err
	}

	u.Regs.UARTCR.Store(0)
	u.Regs.UARTIBRD.Store(ibrd)
	u.Regs.UARTFBRD.Store(fbrd)
	// The divisors are latched by the LCR_H write.
	u.Regs.UARTLCR_H.Store(lcr)
	u.Regs.UARTICR.Store(UARTIntAll)
	u.Regs.UARTRSR.Store(0)

	cr := uint32(UARTCrUARTEN | UARTCrTXE | UARTCrRXE)
	if cfg.Loopback {
		cr |= UARTCrLBE
	}
	if cfg.FlowControl {
		cr |= UARTCrRTSEN | UARTCrCTSEN
	}
	u.Regs.UARTCR.Store(cr)

	pkg.LogDebug(pkg.ComponentUART, "configured",
		"base", fmt.Sprintf("%#x", u.Regs.UARTDR.Addr()),
		"baud", cfg.BaudRate, "actual", actual, "ibrd", ibrd, "fbrd", fbrd)
	return nil
}

// Enabled reports whether the UART is on.
func (u *UART) Enabled() bool {
	return u.Regs.UARTCR.HasBits(UARTCrUARTEN)
}

// Flags returns UARTFR.
func (u *UART) Flags() UARTFlag {
	return u.Regs.UARTFR.Load()
}

// Break drives a continuous break on TX while on is set.
func (u *UART) Break(on bool) {
	if on {
		u.Regs.UARTLCR_H.SetBits(UARTLcrBRK)
	} else {
		u.Regs.UARTLCR_H.ClearBits(UARTLcrBRK)
	}
}

// WriteByte waits for room in the transmit FIFO and queues c.
func (u *UART) WriteByte(ctx context.Context, c byte) error {
	full := u.Regs.UARTFR.U32()
	if err := mmio.WaitClear(ctx, full, uint32(UARTFlagTXFF)); err != nil {
		return fmt.Errorf("uart write: %w", err)
	}
	u.port.WriteByte(c)
	return nil
}

// Write queues p, waiting for FIFO room as needed.
func (u *UART) Write(ctx context.Context, p []byte) (int, error) {
	for i, c := range p {
		if err := u.WriteByte(ctx, c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// ReadByte waits for a received character. A character received with a
// framing, parity or break error is consumed and reported as an error.
func (u *UART) ReadByte(ctx context.Context) (byte, error) {
	if err := mmio.WaitClear(ctx, u.Regs.UARTFR.U32(), uint32(UARTFlagRXFE)); err != nil {
		return 0, fmt.Errorf("uart read: %w", err)
	}
	c, res := u.port.ReadByte()
	if err := res.Err(); err != nil {
		return c, fmt.Errorf("uart read: %w", err)
	}
	return c, nil
}

// Flush waits until the last character has left the shift register.
func (u *UART) Flush(ctx context.Context) error {
	if err := mmio.WaitClear(ctx, u.Regs.UARTFR.U32(), uint32(UARTFlagBusy)); err != nil {
		return fmt.Errorf("uart flush: %w", err)
	}
	return nil
}

// Port returns the port used by [hal.UART] and [hal.BufferedUART].
func (u *UART) Port() *UARTPort {
	return &u.port
}

// UARTPort implements [hal.InterruptPort] over the PL011 registers.
type UARTPort struct {
	regs *UARTRegs
}

// Status reads UARTFR. Line conditions arrive with the character in
// UARTDR and are reported by ReadByte, so Err is always pkg.NoError.
func (p *UARTPort) Status() hal.UARTStatus {
	fr := p.regs.UARTFR.Load()
	return hal.UARTStatus{
		RxReady: fr&UARTFlagRXFE == 0,
		TxReady: fr&UARTFlagTXFF == 0,
	}
}

// ReadByte pops one character from UARTDR and decodes its error bits. OE
// marks the first character after an overrun; the character itself is
// intact but reported with pkg.Overrun.
func (p *UARTPort) ReadByte() (byte, pkg.Result) {
	v := p.regs.UARTDR.Load()
	c := byte(v & UARTDRDataMask)
	switch {
	case v&UARTDRBE != 0:
		return c, pkg.Break
	case v&UARTDRFE != 0:
		return c, pkg.Framing
	case v&UARTDRPE != 0:
		return c, pkg.Parity
	case v&UARTDROE != 0:
		return c, pkg.Overrun
	}
	return c, pkg.NoError
}

// WriteByte writes UARTDR.
func (p *UARTPort) WriteByte(c byte) {
	p.regs.UARTDR.Store(uint32(c))
}

// ClearErrors clears the receive status and the error interrupts.
func (p *UARTPort) ClearErrors() {
	p.regs.UARTRSR.Store(0)
	p.regs.UARTICR.Store(UARTIntErrors)
}

// SetTxInterrupt masks or unmasks the transmit interrupt.
func (p *UARTPort) SetTxInterrupt(enabled bool) {
	if enabled {
		p.regs.UARTIMSC.SetBits(UARTIntTX)
	} else {
		p.regs.UARTIMSC.ClearBits(UARTIntTX)
	}
}
