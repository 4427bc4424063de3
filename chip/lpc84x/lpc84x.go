// Package lpc84x provides register maps and wrappers for the NXP LPC84x
// (LPC844/LPC845) SPI and USART peripherals.
//
// Register structs match the layouts in the LPC84x user manual (UM11029).
// Wrappers take a pointer to a register block, obtained with [mmio.At] on
// the target:
//
//	spi := lpc84x.NewSPI(mmio.At[lpc84x.SPIRegs](lpc84x.SPI0Base))
//
// or with [mmio.View] over a mapped window on a host.
package lpc84x

// Peripheral base addresses.
const (
	SPI0Base   uintptr = 0x4005_8000
	SPI1Base   uintptr = 0x4005_C000
	USART0Base uintptr = 0x4006_4000
	USART1Base uintptr = 0x4006_8000
	USART2Base uintptr = 0x4006_C000
	USART3Base uintptr = 0x4007_0000
	USART4Base uintptr = 0x4007_4000
)

// Interrupt numbers.
const (
	IRQSPI0   = 0
	IRQSPI1   = 1
	IRQUSART0 = 3
	IRQUSART1 = 4
	IRQUSART2 = 5
	IRQUSART3 = 30 // Shared with PININT6
	IRQUSART4 = 31 // Shared with PININT7
)
