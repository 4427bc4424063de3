package lpc84x

import (
	"context"
	"fmt"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// USARTRegs is the USART0-USART4 register block.
type USARTRegs struct {
	CFG       mmio.U32            // 0x00 Configuration
	CTL       mmio.U32            // 0x04 Control
	STAT      mmio.R32[USARTStat] // 0x08 Status
	INTENSET  mmio.U32            // 0x0C Interrupt enable set
	INTENCLR  mmio.U32            // 0x10 Interrupt enable clear
	RXDAT     mmio.U32            // 0x14 Receive data
	RXDATSTAT mmio.U32            // 0x18 Receive data with status
	TXDAT     mmio.U32            // 0x1C Transmit data
	BRG       mmio.U32            // 0x20 Baud rate generator
	INTSTAT   mmio.U32            // 0x24 Interrupt status
	OSR       mmio.U32            // 0x28 Oversample selection
	ADDR      mmio.U32            // 0x2C Address
}

// CFG bits and fields.
const (
	USARTCfgEnable       = 1 << 0
	USARTCfgDataLenPos   = 2 // 0: 7 bits, 1: 8 bits, 2: 9 bits
	USARTCfgParityPos    = 4 // 0: none, 2: even, 3: odd
	USARTCfgStopLen      = 1 << 6
	USARTCfgMode32K      = 1 << 7
	USARTCfgCTSEn        = 1 << 9
	USARTCfgSyncEn       = 1 << 11
	USARTCfgLoop         = 1 << 15
	USARTCfgDataLenWidth = 2
	USARTCfgParityWidth  = 2
)

// CTL bits.
const (
	USARTCtlTxBreak  = 1 << 1
	USARTCtlAddrDet  = 1 << 2
	USARTCtlTxDis    = 1 << 6
	USARTCtlAutobaud = 1 << 16
)

// USARTStat is the value of the STAT register.
type USARTStat uint32

// STAT bits. The interrupt flags from DeltaCTS upward, except RxBreak, are
// write-one-to-clear.
const (
	USARTStatRxReady     USARTStat = 1 << 0
	USARTStatRxIdle      USARTStat = 1 << 1
	USARTStatTxReady     USARTStat = 1 << 2
	USARTStatTxIdle      USARTStat = 1 << 3
	USARTStatCTS         USARTStat = 1 << 4
	USARTStatDeltaCTS    USARTStat = 1 << 5
	USARTStatTxDisabled  USARTStat = 1 << 6
	USARTStatOverrun     USARTStat = 1 << 8
	USARTStatRxBreak     USARTStat = 1 << 10
	USARTStatDeltaRxBrk  USARTStat = 1 << 11
	USARTStatStart       USARTStat = 1 << 12
	USARTStatFramingErr  USARTStat = 1 << 13
	USARTStatParityErr   USARTStat = 1 << 14
	USARTStatRxNoise     USARTStat = 1 << 15
	USARTStatAutobaudErr USARTStat = 1 << 16

	USARTStatClearable = USARTStatDeltaCTS | USARTStatOverrun | USARTStatDeltaRxBrk |
		USARTStatStart | USARTStatFramingErr | USARTStatParityErr |
		USARTStatRxNoise | USARTStatAutobaudErr
)

// INTENSET/INTENCLR bits used by the wrappers.
const (
	USARTIntRxReady = 1 << 0
	USARTIntTxReady = 1 << 2
	USARTIntOverrun = 1 << 8
	USARTIntBreak   = 1 << 11
)

// RXDATSTAT bits.
const (
	USARTRxDataMask  = 0x1FF
	USARTRxFramerErr = 1 << 13
	USARTRxParityErr = 1 << 14
	USARTRxNoise     = 1 << 15
)

// Parity selects the parity bit.
type Parity uint8

// Parity settings.
const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

// UARTConfig configures a USART for asynchronous operation. Zero fields
// select 115200 baud, 8 data bits, no parity and one stop bit.
type UARTConfig struct {
	BaudRate uint32
	ClockHz  uint32 // USART function clock feeding the baud generator
	DataBits uint8  // 7, 8 or 9
	Parity   Parity
	StopBits uint8 // 1 or 2
	Loopback bool
}

const (
	defaultBaudRate = 115200
	usartMinOSR     = 4 // Oversampling of OSR+1 = 5 clocks
	usartMaxOSR     = 15
	usartMaxBRG     = 0xFFFF
)

// BaudDivisors finds BRG and OSR values giving the baud rate closest to baud
// from clk, preferring higher oversampling on ties. It returns the divisors
// and the resulting rate.
func BaudDivisors(clk, baud uint32) (brg, osr, actual uint32, err error) {
	if clk == 0 || baud == 0 {
		return 0, 0, 0, fmt.Errorf("baud %d from %d Hz: %w", baud, clk, pkg.ErrInvalidParameter)
	}
	bestErr := ^uint32(0)
	for o := uint32(usartMaxOSR); o >= usartMinOSR; o-- {
		div := uint64(baud) * uint64(o+1)
		b := (uint64(clk) + div/2) / div
		if b == 0 || b-1 > usartMaxBRG {
			continue
		}
		rate := uint32(uint64(clk) / (b * uint64(o+1)))
		e := rate - baud
		if rate < baud {
			e = baud - rate
		}
		if e < bestErr {
			bestErr, brg, osr, actual = e, uint32(b-1), o, rate
		}
	}
	if bestErr == ^uint32(0) {
		return 0, 0, 0, fmt.Errorf("baud %d from %d Hz: %w", baud, clk, pkg.ErrNotSupported)
	}
	return brg, osr, actual, nil
}

// USART is a synchronous wrapper around a USART register block.
type USART struct {
	Regs *USARTRegs
	port USARTPort
}

// NewUSART returns a wrapper for regs.
func NewUSART(regs *USARTRegs) *USART {
	return &USART{Regs: regs, port: USARTPort{regs: regs}}
}

// Configure disables the USART, programs it from cfg and enables it.
func (u *USART) Configure(cfg UARTConfig) error {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = 1
	}

	var c uint32
	switch cfg.DataBits {
	case 7, 8, 9:
		c |= mmio.Encode(uint32(cfg.DataBits-7), USARTCfgDataLenPos, USARTCfgDataLenWidth)
	default:
		return fmt.Errorf("usart data bits %d: %w", cfg.DataBits, pkg.ErrInvalidParameter)
	}
	switch cfg.Parity {
	case ParityNone:
	case ParityEven:
		c |= mmio.Encode[uint32](2, USARTCfgParityPos, USARTCfgParityWidth)
	case ParityOdd:
		c |= mmio.Encode[uint32](3, USARTCfgParityPos, USARTCfgParityWidth)
	default:
		return fmt.Errorf("usart parity %d: %w", cfg.Parity, pkg.ErrInvalidParameter)
	}
	switch cfg.StopBits {
	case 1:
	case 2:
		c |= USARTCfgStopLen
	default:
		return fmt.Errorf("usart stop bits %d: %w", cfg.StopBits, pkg.ErrInvalidParameter)
	}
	if cfg.Loopback {
		c |= USARTCfgLoop
	}
	brg, osr, actual, err := BaudDivisors(cfg.ClockHz, cfg.BaudRate)
	if err != nil {
		return err
	}

	u.Regs.CFG.ClearBits(USARTCfgEnable)
	u.Regs.OSR.Store(osr)
	u.Regs.BRG.Store(brg)
	u.Regs.CTL.Store(0)
	u.Regs.CFG.Store(c)
	u.Regs.STAT.Store(USARTStatClearable)
	u.Regs.CFG.SetBits(USARTCfgEnable)

	pkg.LogDebug(pkg.ComponentUART, "configured",
		"base", fmt.Sprintf("%#x", u.Regs.CFG.Addr()),
		"baud", cfg.BaudRate, "actual", actual, "brg", brg, "osr", osr)
	return nil
}

// Enabled reports whether the USART is on.
func (u *USART) Enabled() bool {
	return u.Regs.CFG.HasBits(USARTCfgEnable)
}

// Status returns the STAT register.
func (u *USART) Status() USARTStat {
	return u.Regs.STAT.Load()
}

// EnableInterrupts sets bits in INTENSET.
func (u *USART) EnableInterrupts(mask uint32) {
	u.Regs.INTENSET.Store(mask)
}

// DisableInterrupts sets bits in INTENCLR.
func (u *USART) DisableInterrupts(mask uint32) {
	u.Regs.INTENCLR.Store(mask)
}

// Break drives a continuous break on TX while on is set.
func (u *USART) Break(on bool) {
	if on {
		u.Regs.CTL.SetBits(USARTCtlTxBreak)
	} else {
		u.Regs.CTL.ClearBits(USARTCtlTxBreak)
	}
}

// WriteByte waits for TXRDY and transmits c.
func (u *USART) WriteByte(ctx context.Context, c byte) error {
	if err := mmio.WaitBits(ctx, u.Regs.STAT.U32(), uint32(USARTStatTxReady)); err != nil {
		return fmt.Errorf("usart write: %w", err)
	}
	u.port.WriteByte(c)
	return nil
}

// Write transmits p, waiting for TXRDY before each character.
func (u *USART) Write(ctx context.Context, p []byte) (int, error) {
	for i, c := range p {
		if err := u.WriteByte(ctx, c); err != nil {
			return i, err
		}
	}
	return len(p), nil
}

// ReadByte waits for RXRDY and returns the received character. A character
// received with a framing or parity error is consumed and reported as an
// error wrapping [pkg.ErrFraming] or [pkg.ErrParity].
func (u *USART) ReadByte(ctx context.Context) (byte, error) {
	if err := mmio.WaitBits(ctx, u.Regs.STAT.U32(), uint32(USARTStatRxReady)); err != nil {
		return 0, fmt.Errorf("usart read: %w", err)
	}
	c, res := u.port.ReadByte()
	if err := res.Err(); err != nil {
		return c, fmt.Errorf("usart read: %w", err)
	}
	return c, nil
}

// Port returns the port used by [hal.UART] and [hal.BufferedUART].
func (u *USART) Port() *USARTPort {
	return &u.port
}

// USARTPort implements [hal.InterruptPort] over the USART registers.
type USARTPort struct {
	regs *USARTRegs
}

// Status reads STAT once. Overrun takes precedence over a break edge;
// framing and parity errors are reported per character by ReadByte.
func (p *USARTPort) Status() hal.UARTStatus {
	st := p.regs.STAT.Load()
	s := hal.UARTStatus{
		RxReady: st&USARTStatRxReady != 0,
		TxReady: st&USARTStatTxReady != 0,
	}
	switch {
	case st&USARTStatOverrun != 0:
		s.Err = pkg.Overrun
	case st&USARTStatDeltaRxBrk != 0:
		s.Err = pkg.Break
	}
	return s
}

// ReadByte pops one character through RXDATSTAT.
func (p *USARTPort) ReadByte() (byte, pkg.Result) {
	v := p.regs.RXDATSTAT.Load()
	c := byte(v & USARTRxDataMask)
	switch {
	case v&USARTRxFramerErr != 0:
		return c, pkg.Framing
	case v&USARTRxParityErr != 0:
		return c, pkg.Parity
	}
	return c, pkg.NoError
}

// WriteByte writes TXDAT.
func (p *USARTPort) WriteByte(c byte) {
	p.regs.TXDAT.Store(uint32(c))
}

// ClearErrors acknowledges every write-one-to-clear status flag.
func (p *USARTPort) ClearErrors() {
	p.regs.STAT.Store(USARTStatClearable)
}

// SetTxInterrupt switches the TXRDY interrupt.
func (p *USARTPort) SetTxInterrupt(enabled bool) {
	if enabled {
		p.regs.INTENSET.Store(USARTIntTxReady)
	} else {
		p.regs.INTENCLR.Store(USARTIntTxReady)
	}
}
