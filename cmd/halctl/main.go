// Command halctl inspects the board catalogue and the register maps of the
// supported chips, and reads or writes live peripheral registers through
// /dev/mem or a register snapshot file.
//
//	halctl boards
//	halctl -b pico peripherals
//	halctl -b pico regs uart0
//	halctl -b pico peek uart0.UARTFR
//	halctl -b pico poke spi0.SSPCPSR 2
//	halctl -b pico --mem uart0.bin --mem-base 0x40034000 dump uart0
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
