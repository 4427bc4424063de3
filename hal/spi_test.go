package hal

import (
	"testing"

	"github.com/ardnew/mcuhal/pkg"
)

type spiWrite struct {
	data  uint16
	frame Frame
}

// fakeSPI is a loopback SPI port: every written frame becomes readable on
// the next Ready call unless the port is told to stall.
type fakeSPI struct {
	writes  []spiWrite
	rxq     []uint16
	stallTX bool
	stallRX bool
	reads   int
}

func (f *fakeSPI) Ready() (rx, tx bool) {
	return len(f.rxq) > 0 && !f.stallRX, !f.stallTX
}

func (f *fakeSPI) Read() uint16 {
	v := f.rxq[0]
	f.rxq = f.rxq[1:]
	f.reads++
	return v
}

func (f *fakeSPI) Write(data uint16, fr Frame) {
	f.writes = append(f.writes, spiWrite{data, fr})
	if !fr.IgnoreRX {
		// Return the complement so received data differs from sent data,
		// with junk above the frame length.
		f.rxq = append(f.rxq, ^data|0xF000)
	}
}

func (f *fakeSPI) Width() uint8   { return 16 }
func (f *fakeSPI) Devices() uint8 { return 4 }

func run[P SPIPort](t *testing.T, s *SPI[P], limit int) int {
	t.Helper()
	for i := 1; i <= limit; i++ {
		switch res := s.Progress(); res {
		case pkg.Done:
			return i
		case pkg.Busy:
		default:
			t.Fatalf("Progress() = %v", res)
		}
	}
	t.Fatalf("transaction not done after %d Progress calls", limit)
	return 0
}

func TestSPIClaim(t *testing.T) {
	s := NewSPI(&fakeSPI{})

	if got := s.State(); got != Idle {
		t.Fatalf("State() = %v, want idle", got)
	}
	if got := s.Claim(); got != pkg.Claimed {
		t.Errorf("Claim() = %v, want claimed", got)
	}
	if got := s.State(); got != Claimed {
		t.Errorf("State() = %v, want claimed", got)
	}
	if got := s.Claim(); got != pkg.InUse {
		t.Errorf("second Claim() = %v, want in use", got)
	}
	if got := s.State(); got != Claimed {
		t.Errorf("State() after second Claim = %v, want claimed", got)
	}
	if got := s.Unclaim(); got != pkg.Unclaimed {
		t.Errorf("Unclaim() = %v, want unclaimed", got)
	}
	if got := s.State(); got != Idle {
		t.Errorf("State() after Unclaim = %v, want idle", got)
	}
	if got := s.Unclaim(); got != pkg.Error {
		t.Errorf("Unclaim() while idle = %v, want error", got)
	}
}

func TestSPIUnclaimWhileTransacting(t *testing.T) {
	port := &fakeSPI{stallTX: true}
	s := NewSPI(port)
	s.Claim()
	if got := s.StartWrite(0, []uint16{1}, 8, true); got != pkg.Started {
		t.Fatalf("StartWrite() = %v, want started", got)
	}
	if got := s.Unclaim(); got != pkg.Busy {
		t.Errorf("Unclaim() = %v, want busy", got)
	}
	if got := s.State(); got != TransactingWrite {
		t.Errorf("State() = %v, want transacting write", got)
	}
	if got := s.Claim(); got != pkg.InUse {
		t.Errorf("Claim() = %v, want in use", got)
	}
}

func TestSPIStartRequiresClaim(t *testing.T) {
	s := NewSPI(&fakeSPI{})
	buf := []uint16{0}
	if got := s.StartWrite(0, buf, 16, false); got != pkg.Error {
		t.Errorf("StartWrite() on idle = %v, want error", got)
	}
	if got := s.Progress(); got != pkg.Error {
		t.Errorf("Progress() on idle = %v, want error", got)
	}

	s.Claim()
	if got := s.Progress(); got != pkg.Error {
		t.Errorf("Progress() on claimed = %v, want error", got)
	}
	if got := s.StartWrite(0, buf, 16, false); got != pkg.Started {
		t.Fatalf("StartWrite() = %v, want started", got)
	}
	if got := s.StartRead(0, buf, 16, false); got != pkg.Error {
		t.Errorf("StartRead() while transacting = %v, want error", got)
	}
}

func TestSPIStartValidation(t *testing.T) {
	tests := []struct {
		name  string
		start func(s *SPI[*fakeSPI]) pkg.Result
	}{
		{"zero bits", func(s *SPI[*fakeSPI]) pkg.Result {
			return s.StartWrite(0, []uint16{1}, 0, false)
		}},
		{"short write buffer", func(s *SPI[*fakeSPI]) pkg.Result {
			return s.StartWrite(0, []uint16{1}, 17, false)
		}},
		{"short read buffer", func(s *SPI[*fakeSPI]) pkg.Result {
			return s.StartRead(0, make([]uint16, 2), 33, false)
		}},
		{"short read side", func(s *SPI[*fakeSPI]) pkg.Result {
			return s.StartReadWrite(0, make([]uint16, 2), make([]uint16, 1), 32, false)
		}},
		{"bad device", func(s *SPI[*fakeSPI]) pkg.Result {
			return s.StartWrite(4, []uint16{1}, 8, false)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSPI(&fakeSPI{})
			s.Claim()
			if got := tt.start(s); got != pkg.Error {
				t.Errorf("start = %v, want error", got)
			}
			if got := s.State(); got != Claimed {
				t.Errorf("State() = %v, want claimed", got)
			}
		})
	}
}

func TestSPIReadWriteFrameCount(t *testing.T) {
	tests := []struct {
		bits    uint32
		frames  int
		lastLen uint8
	}{
		{1, 1, 1},
		{8, 1, 8},
		{16, 1, 16},
		{17, 2, 1},
		{24, 2, 8},
		{32, 2, 16},
		{100, 7, 4},
	}
	for _, tt := range tests {
		for _, disable := range []bool{true, false} {
			port := &fakeSPI{}
			s := NewSPI(port)
			s.Claim()
			w := make([]uint16, tt.frames)
			r := make([]uint16, tt.frames)
			for i := range w {
				w[i] = uint16(0x0100 + i)
			}
			if got := s.StartReadWrite(2, w, r, tt.bits, disable); got != pkg.Started {
				t.Fatalf("bits=%d: StartReadWrite() = %v", tt.bits, got)
			}
			run(t, s, 4*tt.frames)

			if len(port.writes) != tt.frames {
				t.Fatalf("bits=%d: %d writes, want %d", tt.bits, len(port.writes), tt.frames)
			}
			for i, wr := range port.writes {
				last := i == tt.frames-1
				if wr.frame.EOT != (last && disable) {
					t.Errorf("bits=%d disable=%v: write %d EOT = %v", tt.bits, disable, i, wr.frame.EOT)
				}
				wantLen := uint8(16)
				if last {
					wantLen = tt.lastLen
				}
				if wr.frame.Bits != wantLen {
					t.Errorf("bits=%d: write %d Bits = %d, want %d", tt.bits, i, wr.frame.Bits, wantLen)
				}
				if wr.frame.Device != 2 || wr.frame.IgnoreRX {
					t.Errorf("bits=%d: write %d frame = %+v", tt.bits, i, wr.frame)
				}
				if wr.data != w[i] {
					t.Errorf("bits=%d: write %d data = %#x, want %#x", tt.bits, i, wr.data, w[i])
				}
			}
			for i := range r {
				want := ^w[i] & frameMask(port.writes[i].frame.Bits)
				if r[i] != want {
					t.Errorf("bits=%d: r[%d] = %#x, want %#x", tt.bits, i, r[i], want)
				}
			}
			if got := s.State(); got != Claimed {
				t.Errorf("State() after Done = %v, want claimed", got)
			}
			if wb, rb := s.Pending(); wb != 0 || rb != 0 {
				t.Errorf("Pending() = %d, %d after Done", wb, rb)
			}
		}
	}
}

func TestSPIReadBeforeWrite(t *testing.T) {
	port := &fakeSPI{}
	s := NewSPI(port)
	s.Claim()
	w := []uint16{0x1111, 0x2222}
	r := make([]uint16, 2)
	s.StartReadWrite(0, w, r, 32, true)

	// First call: nothing to read yet, first frame written.
	if got := s.Progress(); got != pkg.Busy {
		t.Fatalf("Progress() = %v, want busy", got)
	}
	if port.reads != 0 || len(port.writes) != 1 {
		t.Fatalf("after call 1: reads=%d writes=%d", port.reads, len(port.writes))
	}
	// Second call: the echo of frame 0 is read before frame 1 is written.
	if got := s.Progress(); got != pkg.Busy {
		t.Fatalf("Progress() = %v, want busy", got)
	}
	if port.reads != 1 || len(port.writes) != 2 {
		t.Fatalf("after call 2: reads=%d writes=%d", port.reads, len(port.writes))
	}
	if got := s.Progress(); got != pkg.Done {
		t.Fatalf("Progress() = %v, want done", got)
	}
	if r[0] != ^uint16(0x1111) || r[1] != ^uint16(0x2222) {
		t.Errorf("r = %#x", r)
	}
}

func TestSPIWriteOnly(t *testing.T) {
	port := &fakeSPI{}
	s := NewSPI(port)
	s.Claim()
	s.StartWrite(1, []uint16{0xAB, 0xCD}, 24, true)
	if n := run(t, s, 10); n != 2 {
		t.Errorf("Done after %d calls, want 2", n)
	}
	for i, wr := range port.writes {
		if !wr.frame.IgnoreRX {
			t.Errorf("write %d IgnoreRX = false", i)
		}
	}
	if port.reads != 0 {
		t.Errorf("reads = %d, want 0", port.reads)
	}
}

func TestSPIReadOnly(t *testing.T) {
	port := &fakeSPI{}
	s := NewSPI(port)
	s.Claim()
	r := make([]uint16, 2)
	s.StartRead(3, r, 20, false)
	run(t, s, 10)

	if len(port.writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(port.writes))
	}
	for i, wr := range port.writes {
		if wr.data != 0 || wr.frame.IgnoreRX || wr.frame.EOT {
			t.Errorf("dummy write %d = %+v", i, wr)
		}
	}
	if r[0] != 0xFFFF || r[1] != 0x000F {
		t.Errorf("r = %#x, want [0xffff 0xf]", r)
	}
}

func TestSPIStalled(t *testing.T) {
	port := &fakeSPI{stallTX: true}
	s := NewSPI(port)
	s.Claim()
	s.StartWrite(0, []uint16{1}, 16, false)
	for i := 0; i < 5; i++ {
		if got := s.Progress(); got != pkg.Busy {
			t.Fatalf("Progress() = %v, want busy", got)
		}
	}
	if wb, _ := s.Pending(); wb != 16 {
		t.Errorf("Pending() write = %d, want 16", wb)
	}
	port.stallTX = false
	if got := s.Progress(); got != pkg.Done {
		t.Errorf("Progress() = %v, want done", got)
	}
	if got := s.Unclaim(); got != pkg.Unclaimed {
		t.Errorf("Unclaim() = %v, want unclaimed", got)
	}
}

func TestSPIClaimRace(t *testing.T) {
	s := NewSPI(&fakeSPI{})
	results := make(chan pkg.Result, 8)
	for i := 0; i < cap(results); i++ {
		go func() { results <- s.Claim() }()
	}
	claimed := 0
	for i := 0; i < cap(results); i++ {
		if <-results == pkg.Claimed {
			claimed++
		}
	}
	if claimed != 1 {
		t.Errorf("%d concurrent claims succeeded, want 1", claimed)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
		busy bool
	}{
		{Idle, "idle", false},
		{Claimed, "claimed", false},
		{TransactingReadWrite, "transacting read/write", true},
		{TransactingRead, "transacting read", true},
		{TransactingWrite, "transacting write", true},
		{State(9), "unknown", false},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
		if got := tt.s.Transacting(); got != tt.busy {
			t.Errorf("%v.Transacting() = %v, want %v", tt.s, got, tt.busy)
		}
	}
}
