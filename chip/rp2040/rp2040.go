// Package rp2040 provides register maps and wrappers for the Raspberry Pi
// RP2040 PL022 SPI, PL011 UART and RESETS blocks.
//
// Peripherals come out of reset through [Resets] before their registers are
// touched:
//
//	resets := rp2040.NewResets(mmio.At[rp2040.ResetsRegs](rp2040.ResetsBase))
//	err := resets.UnresetWait(ctx, rp2040.ResetUART0)
//	uart := rp2040.NewUART(mmio.At[rp2040.UARTRegs](rp2040.UART0Base))
package rp2040

// Peripheral base addresses.
const (
	ResetsBase uintptr = 0x4000_C000
	UART0Base  uintptr = 0x4003_4000
	UART1Base  uintptr = 0x4003_8000
	SPI0Base   uintptr = 0x4003_C000
	SPI1Base   uintptr = 0x4004_0000
)

// Interrupt numbers.
const (
	IRQSPI0  = 18
	IRQSPI1  = 19
	IRQUART0 = 20
	IRQUART1 = 21
)
