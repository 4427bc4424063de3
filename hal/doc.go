// Package hal implements the asynchronous transfer engines layered over the
// chip register wrappers.
//
// # Claim, start, progress
//
// Each engine ([SPI], [UART]) owns one peripheral and moves through the
// states of [State]:
//
//	Idle --Claim--> Claimed --Start*--> Transacting* --Progress...Done--> Claimed
//	Claimed --Unclaim--> Idle
//
// Every operation returns a [pkg.Result] by value:
//
//	if spi.Claim() != pkg.Claimed {
//	    return // someone else owns the bus
//	}
//	spi.StartReadWrite(0, tx, rx, 24, true)
//	for spi.Progress() == pkg.Busy {
//	    // do other work
//	}
//	spi.Unclaim()
//
// Progress never waits. It reads the status register once and moves at most
// one frame per direction, so a super-loop or a single interrupt handler can
// drive several engines. There are no retries and no timeouts inside the
// engines.
//
// # Ports
//
// Engines are generic over the port type ([SPIPort], [UARTPort]) so that the
// chip-specific register access is resolved at compile time. Chip packages
// such as [github.com/ardnew/mcuhal/chip/lpc84x] provide the ports.
//
// # Concurrency
//
// Claim and Unclaim are atomic and may race safely. Start and Progress must
// be called from the context that holds the claim. [BufferedUART] splits
// work between an interrupt handler and the main loop through single-producer
// single-consumer ring buffers.
package hal
