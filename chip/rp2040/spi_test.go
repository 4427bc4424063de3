package rp2040

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	"unsafe"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/mmio"
	"github.com/ardnew/mcuhal/pkg"
)

func TestSPIRegsLayout(t *testing.T) {
	var r SPIRegs
	if size := unsafe.Sizeof(r); size != 0x28 {
		t.Errorf("size = %#x, want 0x28", size)
	}
	if off, _ := mmio.Lookup(&r, "sspdmacr"); off != 0x24 {
		t.Errorf("SSPDMACR at %#x, want 0x24", off)
	}
	if off := unsafe.Offsetof(r.SSPSR); off != 0x0C {
		t.Errorf("SSPSR at %#x, want 0x0c", off)
	}
}

func TestSPIClock(t *testing.T) {
	tests := []struct {
		clk, hz              uint32
		cpsdvsr, scr, actual uint32
		err                  error
	}{
		{125_000_000, 62_500_000, 2, 0, 62_500_000, nil},
		{125_000_000, 1_000_000, 2, 62, 992_063, nil},
		{125_000_000, 400_000, 2, 156, 398_089, nil},
		{125_000_000, 1_000, 0, 0, 0, pkg.ErrNotSupported},
		{0, 1_000, 0, 0, 0, pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.hz), func(t *testing.T) {
			cpsdvsr, scr, actual, err := SPIClock(tt.clk, tt.hz)
			if !errors.Is(err, tt.err) {
				t.Fatalf("SPIClock() error = %v, want %v", err, tt.err)
			}
			if cpsdvsr != tt.cpsdvsr || scr != tt.scr || actual != tt.actual {
				t.Errorf("SPIClock() = %d, %d, %d, want %d, %d, %d",
					cpsdvsr, scr, actual, tt.cpsdvsr, tt.scr, tt.actual)
			}
		})
	}
}

func TestSPIConfigure(t *testing.T) {
	var regs SPIRegs
	s := NewSPI(&regs)
	err := s.Configure(SPIConfig{ClockHz: 125_000_000, Frequency: 1_000_000, Mode: 3, DataBits: 16})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	wantCR0 := uint32(15 | SSPCr0SPO | SSPCr0SPH | 62<<SSPCr0SCRPos)
	if got := regs.SSPCR0.Load(); got != wantCR0 {
		t.Errorf("SSPCR0 = %#x, want %#x", got, wantCR0)
	}
	if got := regs.SSPCPSR.Load(); got != 2 {
		t.Errorf("SSPCPSR = %d, want 2", got)
	}
	if !s.Enabled() || regs.SSPCR1.HasAny(SSPCr1MS) {
		t.Errorf("SSPCR1 = %#x, want enabled master", regs.SSPCR1.Load())
	}
	if w := s.Port().Width(); w != 16 {
		t.Errorf("Width() = %d, want 16", w)
	}
	if d := s.Port().Devices(); d != 1 {
		t.Errorf("Devices() = %d, want 1", d)
	}

	for _, cfg := range []SPIConfig{
		{ClockHz: 1000, DataBits: 3},
		{ClockHz: 1000, DataBits: 17},
		{ClockHz: 1000, Mode: 4},
		{},
	} {
		if err := NewSPI(&SPIRegs{}).Configure(cfg); !errors.Is(err, pkg.ErrInvalidParameter) {
			t.Errorf("Configure(%+v) error = %v", cfg, err)
		}
	}
}

type selectEvent struct {
	device uint8
	active bool
}

func configuredSPI(t *testing.T, regs *SPIRegs, events *[]selectEvent) *SPI {
	t.Helper()
	s := NewSPI(regs)
	err := s.Configure(SPIConfig{
		ClockHz:  125_000_000,
		DataBits: 8,
		Devices:  3,
		Select: func(device uint8, active bool) {
			*events = append(*events, selectEvent{device, active})
		},
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	// SSPDR in ordinary memory reads back the last write, like a loopback.
	regs.SSPSR.Store(SSPStatusTFE | SSPStatusTNF | SSPStatusRNE)
	return s
}

func TestSPITransferSelect(t *testing.T) {
	var regs SPIRegs
	var events []selectEvent
	s := configuredSPI(t, &regs, &events)

	w := []uint16{0xA5, 0x0F}
	r := make([]uint16, 2)
	if err := s.Transfer(context.Background(), 2, w, r, 12); err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if r[0] != 0xA5 || r[1] != 0x0F {
		t.Errorf("r = %#x, want [0xa5 0xf]", r)
	}
	want := []selectEvent{{2, true}, {2, false}}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("select events = %v, want %v", events, want)
	}
	// The 4-bit tail frame resized DSS, and Flush restored it.
	if got := mmio.Field(regs.SSPCR0.Load(), SSPCr0DSSPos, 4); got != 7 {
		t.Errorf("DSS = %d after transfer, want 7", got)
	}
	if !s.Enabled() {
		t.Error("SSE clear after resize")
	}
}

func TestSPIPortDiscardsIgnoredFrames(t *testing.T) {
	var regs SPIRegs
	var events []selectEvent
	s := configuredSPI(t, &regs, &events)
	p := s.Port()

	p.Write(0x11, hal.Frame{Bits: 8, Device: 1, IgnoreRX: true})
	p.Write(0x22, hal.Frame{Bits: 8, Device: 1, IgnoreRX: true, EOT: true})
	if len(events) != 1 || events[0] != (selectEvent{1, true}) {
		t.Fatalf("select events = %v", events)
	}
	// One ignored frame is discarded per call.
	for i := 0; i < 2; i++ {
		if rx, _ := p.Ready(); rx {
			t.Errorf("Ready() call %d reported rx with ignored frames pending", i)
		}
	}
	rx, tx := p.Ready()
	if !rx || !tx {
		t.Errorf("Ready() = %v, %v after discarding", rx, tx)
	}
	if !p.Flush() {
		t.Error("Flush() = false with nothing outstanding")
	}
	if len(events) != 2 || events[1] != (selectEvent{1, false}) {
		t.Errorf("select events = %v, want release of 1", events)
	}

	regs.SSPSR.Store(SSPStatusTNF | SSPStatusBSY)
	p.Write(0x33, hal.Frame{Bits: 8, Device: 0, IgnoreRX: true, EOT: true})
	if p.Flush() {
		t.Error("Flush() = true with a frame in flight")
	}
}

// progress calls Progress n times and fails if any call does not return.
func progress(t *testing.T, engine *hal.SPI[*SPIPort], n int) pkg.Result {
	t.Helper()
	res := make(chan pkg.Result, 1)
	go func() {
		var r pkg.Result
		for i := 0; i < n; i++ {
			r = engine.Progress()
		}
		res <- r
	}()
	select {
	case r := <-res:
		return r
	case <-time.After(time.Second):
		t.Fatalf("Progress() did not return while the controller was busy")
		return pkg.Error
	}
}

func TestSPIPortResizeWhileBusy(t *testing.T) {
	var regs SPIRegs
	var events []selectEvent
	s := configuredSPI(t, &regs, &events)
	engine := hal.NewSPI(s.Port())
	engine.Claim()

	regs.SSPSR.Store(SSPStatusTNF | SSPStatusBSY)
	w := []uint16{0xA5, 0x0C}
	r := make([]uint16, 2)
	if got := engine.StartReadWrite(0, w, r, 12, false); got != pkg.Started {
		t.Fatalf("StartReadWrite() = %v", got)
	}
	if got := progress(t, engine, 3); got != pkg.Busy {
		t.Fatalf("Progress() = %v while busy, want busy", got)
	}
	if got := mmio.Field(regs.SSPCR0.Load(), SSPCr0DSSPos, 4); got != 7 {
		t.Errorf("DSS = %d while busy, want 7", got)
	}
	if got := regs.SSPDR.Load(); got != 0xA5 {
		t.Errorf("SSPDR = %#x, want the 8-bit frame only", got)
	}
	if _, tx := s.Port().Ready(); tx {
		t.Error("Ready() reported tx with a frame held")
	}

	regs.SSPSR.Store(SSPStatusTFE | SSPStatusTNF | SSPStatusRNE)
	if got := progress(t, engine, 2); got != pkg.Done {
		t.Fatalf("Progress() = %v once idle, want done", got)
	}
	if got := mmio.Field(regs.SSPCR0.Load(), SSPCr0DSSPos, 4); got != 3 {
		t.Errorf("DSS = %d after the tail frame, want 3", got)
	}
	if got := regs.SSPDR.Load(); got != 0x0C {
		t.Errorf("SSPDR = %#x, want tail frame 0x0c", got)
	}
	if !s.Enabled() {
		t.Error("SSE clear after resize")
	}
}

func TestSPIEngineBackToBackSelect(t *testing.T) {
	var regs SPIRegs
	var events []selectEvent
	s := configuredSPI(t, &regs, &events)
	engine := hal.NewSPI(s.Port())
	engine.Claim()

	regs.SSPSR.Store(SSPStatusTNF | SSPStatusBSY)
	if engine.StartWrite(0, []uint16{0xAA}, 8, true) != pkg.Started {
		t.Fatal("first StartWrite() failed")
	}
	if got := progress(t, engine, 1); got != pkg.Done {
		t.Fatalf("first Progress() = %v, want done", got)
	}
	if engine.StartWrite(0, []uint16{0x55}, 8, true) != pkg.Started {
		t.Fatal("second StartWrite() failed")
	}
	// The second transaction waits for the first to release its select.
	if got := progress(t, engine, 3); got != pkg.Busy {
		t.Fatalf("second Progress() = %v while busy, want busy", got)
	}
	if len(events) != 1 {
		t.Errorf("select events = %v while busy, want one assert", events)
	}

	regs.SSPSR.Store(SSPStatusTFE | SSPStatusTNF | SSPStatusRNE)
	if got := progress(t, engine, 1); got != pkg.Done {
		t.Fatalf("second Progress() = %v once idle, want done", got)
	}
	for !s.Port().Flush() {
	}
	want := []selectEvent{{0, true}, {0, false}, {0, true}, {0, false}}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("select events = %v, want %v", events, want)
	}
}

func TestSPIPortHoldsDeviceSwitch(t *testing.T) {
	var regs SPIRegs
	var events []selectEvent
	s := configuredSPI(t, &regs, &events)
	p := s.Port()

	regs.SSPSR.Store(SSPStatusTNF | SSPStatusBSY)
	p.Ready()
	p.Write(0x01, hal.Frame{Bits: 8, Device: 0})
	p.Write(0x02, hal.Frame{Bits: 8, Device: 2})
	if got := regs.SSPDR.Load(); got != 0x01 {
		t.Errorf("SSPDR = %#x, want 0x01 while busy", got)
	}
	if p.Flush() {
		t.Error("Flush() = true with a frame held")
	}

	regs.SSPSR.Store(SSPStatusTFE | SSPStatusTNF)
	if !p.Flush() {
		t.Error("Flush() = false once idle")
	}
	if got := regs.SSPDR.Load(); got != 0x02 {
		t.Errorf("SSPDR = %#x, want 0x02 once idle", got)
	}
	want := []selectEvent{{0, true}, {0, false}, {2, true}}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("select events = %v, want %v", events, want)
	}
}

func TestSPIEngineOverRegisters(t *testing.T) {
	var regs SPIRegs
	var events []selectEvent
	s := configuredSPI(t, &regs, &events)
	engine := hal.NewSPI(s.Port())
	engine.Claim()

	w := []uint16{0x12, 0x34, 0x05}
	if got := engine.StartWrite(0, w, 20, true); got != pkg.Started {
		t.Fatalf("StartWrite() = %v", got)
	}
	var res pkg.Result
	for i := 0; i < 3; i++ {
		res = engine.Progress()
	}
	if res != pkg.Done {
		t.Fatalf("Progress() = %v after 3 frames, want done", res)
	}
	if got := regs.SSPDR.Load(); got != 0x05 {
		t.Errorf("SSPDR = %#x, want 0x05", got)
	}
	for !s.Port().Flush() {
	}
	want := []selectEvent{{0, true}, {0, false}}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Errorf("select events = %v, want %v", events, want)
	}
}
