package hal

import (
	"log/slog"

	"github.com/ardnew/mcuhal/pkg"
)

// Frame describes how a single SPI data frame is transmitted.
type Frame struct {
	Bits     uint8 // Frame length in bits, 1 to the port width
	Device   uint8 // Chip-select index asserted for the frame
	EOT      bool  // Deassert the chip select after this frame
	IgnoreRX bool  // Discard the data received during this frame
}

// SPIPort is the register-level view of an SPI controller that the
// asynchronous engine drives. Chip packages implement it over their
// register blocks.
type SPIPort interface {
	// Ready reads the status register once and reports whether a received
	// frame can be read and whether a frame can be written.
	Ready() (rx, tx bool)

	// Read returns the oldest received frame.
	Read() uint16

	// Write queues a frame for transmission.
	Write(data uint16, f Frame)

	// Width returns the native frame width in bits.
	Width() uint8

	// Devices returns the number of chip selects the controller drives.
	Devices() uint8
}

// SPI is a non-blocking, caller-polled SPI transfer engine.
//
// The caller claims the engine, starts one transaction, then calls
// [SPI.Progress] until it returns [pkg.Done]. Each Progress call reads the
// status register once and moves at most one frame in each direction.
// The engine has no timeout: a transaction nobody progresses stays pending.
type SPI[P SPIPort] struct {
	port P
	owner

	device  uint8
	disable bool
	wbuf    []uint16
	rbuf    []uint16
	wbits   uint32 // Remaining bits to transmit
	rbits   uint32 // Remaining bits to receive
	wpos    int
	rpos    int
}

// NewSPI returns an idle engine driving port.
func NewSPI[P SPIPort](port P) *SPI[P] {
	s := &SPI[P]{port: port}
	s.component = pkg.ComponentSPI
	return s
}

// Port returns the underlying port.
func (s *SPI[P]) Port() P {
	return s.port
}

// State returns the current engine state.
func (s *SPI[P]) State() State {
	return s.load()
}

// Pending returns the number of bits still to be written and read by the
// current transaction.
func (s *SPI[P]) Pending() (write, read uint32) {
	return s.wbits, s.rbits
}

// Claim takes exclusive ownership of an idle engine.
// It returns [pkg.Claimed], or [pkg.InUse] if the engine is not idle.
func (s *SPI[P]) Claim() pkg.Result {
	return s.claim()
}

// Unclaim releases a claimed engine.
// It returns [pkg.Unclaimed], [pkg.Busy] while a transaction is pending, or
// [pkg.Error] if the engine was not claimed.
func (s *SPI[P]) Unclaim() pkg.Result {
	return s.unclaim()
}

// StartWrite transmits bits bits from data to device. The received data is
// discarded. If disable is set, the chip select is released after the last
// frame.
func (s *SPI[P]) StartWrite(device uint8, data []uint16, bits uint32, disable bool) pkg.Result {
	return s.start(TransactingWrite, device, data, nil, bits, disable)
}

// StartRead receives bits bits from device into buf, clocking out zero
// frames.
func (s *SPI[P]) StartRead(device uint8, buf []uint16, bits uint32, disable bool) pkg.Result {
	return s.start(TransactingRead, device, nil, buf, bits, disable)
}

// StartReadWrite transmits bits bits from w while receiving the same number
// of bits into r.
func (s *SPI[P]) StartReadWrite(device uint8, w, r []uint16, bits uint32, disable bool) pkg.Result {
	return s.start(TransactingReadWrite, device, w, r, bits, disable)
}

// frames returns the number of frames needed for bits bits.
func (s *SPI[P]) frames(bits uint32) int {
	width := uint32(s.port.Width())
	return int((bits + width - 1) / width)
}

func (s *SPI[P]) start(kind State, device uint8, w, r []uint16, bits uint32, disable bool) pkg.Result {
	if s.load() != Claimed {
		return pkg.Error
	}
	if bits == 0 || device >= s.port.Devices() {
		return pkg.Error
	}
	n := s.frames(bits)
	if kind != TransactingRead && len(w) < n {
		return pkg.Error
	}
	if kind != TransactingWrite && len(r) < n {
		return pkg.Error
	}

	s.device, s.disable = device, disable
	s.wbuf, s.rbuf = w, r
	s.wpos, s.rpos = 0, 0
	s.wbits = bits
	s.rbits = 0
	if kind != TransactingWrite {
		s.rbits = bits
	}
	if !s.begin(kind) {
		s.reset()
		return pkg.Error
	}
	pkg.LogDebug(pkg.ComponentSPI, "transaction started",
		"kind", kind.String(), "device", device, "bits", bits)
	return pkg.Started
}

func (s *SPI[P]) chunk(remaining uint32) uint8 {
	if width := uint32(s.port.Width()); remaining > width {
		return uint8(width)
	}
	return uint8(remaining)
}

// Progress advances the pending transaction. It returns [pkg.Done] when the
// transaction completes and the engine is back in Claimed, [pkg.Busy] while
// it is still pending, and [pkg.Error] if no transaction is pending.
func (s *SPI[P]) Progress() pkg.Result {
	kind := s.load()
	if !kind.Transacting() {
		return pkg.Error
	}
	rx, tx := s.port.Ready()

	// Receive first: a frame written below can complete immediately and
	// would otherwise overwrite the one waiting in the receive register.
	if rx && s.rbits > 0 {
		n := s.chunk(s.rbits)
		s.rbuf[s.rpos] = s.port.Read() & frameMask(n)
		s.rpos++
		s.rbits -= uint32(n)
	}

	if tx && s.wbits > 0 {
		n := s.chunk(s.wbits)
		last := s.wbits == uint32(n)
		var data uint16
		if kind != TransactingRead {
			data = s.wbuf[s.wpos]
		}
		s.port.Write(data, Frame{
			Bits:     n,
			Device:   s.device,
			EOT:      last && s.disable,
			IgnoreRX: kind == TransactingWrite,
		})
		s.wpos++
		s.wbits -= uint32(n)
	}

	remaining := s.rbits
	if kind == TransactingWrite {
		remaining = s.wbits
	}
	if remaining > 0 {
		return pkg.Busy
	}
	// Progress runs once per frame; skip building attributes when quiet.
	if pkg.Enabled(pkg.ComponentSPI, slog.LevelDebug) {
		pkg.LogDebug(pkg.ComponentSPI, "transaction done",
			"kind", kind.String(), "frames", max(s.wpos, s.rpos))
	}
	s.reset()
	s.finish()
	return pkg.Done
}

func (s *SPI[P]) reset() {
	s.wbuf, s.rbuf = nil, nil
	s.wbits, s.rbits = 0, 0
	s.wpos, s.rpos = 0, 0
	s.device, s.disable = 0, false
}

func frameMask(bits uint8) uint16 {
	if bits >= 16 {
		return 0xFFFF
	}
	return 1<<bits - 1
}
