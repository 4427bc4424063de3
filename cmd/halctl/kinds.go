package main

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ardnew/mcuhal/board"
	"github.com/ardnew/mcuhal/chip/cortexm"
	"github.com/ardnew/mcuhal/chip/lpc84x"
	"github.com/ardnew/mcuhal/chip/rp2040"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

// kinds maps a catalogue peripheral kind to a zero register block of that
// kind, from which the register layout is derived.
var kinds = map[string]func() any{
	"cortexm.nvic":  func() any { return new(cortexm.NVICRegs) },
	"cortexm.scb":   func() any { return new(cortexm.SCBRegs) },
	"lpc84x.spi":    func() any { return new(lpc84x.SPIRegs) },
	"lpc84x.usart":  func() any { return new(lpc84x.USARTRegs) },
	"rp2040.resets": func() any { return new(rp2040.ResetsRegs) },
	"rp2040.spi":    func() any { return new(rp2040.SPIRegs) },
	"rp2040.uart":   func() any { return new(rp2040.UARTRegs) },
}

// kindNames returns the kinds with a known layout, sorted.
func kindNames() []string {
	names := maps.Keys(kinds)
	slices.Sort(names)
	return names
}

// layout returns the register layout of kind. Kinds without a register
// block, such as lpc84x.syscon, report ErrNotSupported.
func layout(kind string) ([]mmio.Register, error) {
	block, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("register layout of %q: %w", kind, pkg.ErrNotSupported)
	}
	return mmio.Layout(block()), nil
}

// registerAt names the register at addr inside p, or returns p+offset.
func registerAt(p *board.Peripheral, addr uintptr) string {
	off := addr - uintptr(p.Base)
	if regs, err := layout(p.Kind); err == nil {
		for _, r := range regs {
			if r.Offset == off {
				return p.Name + "." + r.Name
			}
		}
	}
	return fmt.Sprintf("%s+%#x", p.Name, off)
}
