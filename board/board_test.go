package board

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/pkg"
)

func TestDefaultCatalogue(t *testing.T) {
	c := Default()
	if got := c.Names(); !slices.Equal(got, []string{"lpc845-brk", "pico"}) {
		t.Fatalf("Names() = %v", got)
	}
	if len(All()) != 2 {
		t.Errorf("All() has %d boards, want 2", len(All()))
	}

	tests := []struct {
		board, periph string
		base          Addr
		irq           int
	}{
		{"lpc845-brk", "spi0", 0x4005_8000, 0},
		{"lpc845-brk", "usart4", 0x4007_4000, 31},
		{"pico", "uart0", 0x4003_4000, 20},
		{"PICO", "SPI1", 0x4004_0000, 19},
		{"pico", "nvic", 0xE000_E100, -1},
	}
	for _, tt := range tests {
		b, err := Find(tt.board)
		if err != nil {
			t.Fatalf("Find(%q) error = %v", tt.board, err)
		}
		p, ok := b.Peripheral(tt.periph)
		if !ok {
			t.Fatalf("%s.Peripheral(%q) not found", tt.board, tt.periph)
		}
		if p.Base != tt.base {
			t.Errorf("%s/%s base = %v, want %v", tt.board, tt.periph, p.Base, tt.base)
		}
		irq := -1
		if p.IRQ != nil {
			irq = int(*p.IRQ)
		}
		if irq != tt.irq {
			t.Errorf("%s/%s irq = %d, want %d", tt.board, tt.periph, irq, tt.irq)
		}
	}

	if _, err := Find("arduino"); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("Find(arduino) error = %v, want ErrNotFound", err)
	}
}

func TestBoardNames(t *testing.T) {
	b, _ := Find("pico")
	want := []string{"nvic", "resets", "scb", "spi0", "spi1", "uart0", "uart1"}
	if got := b.Names(); !slices.Equal(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestPeripheralAt(t *testing.T) {
	b, _ := Find("pico")
	tests := []struct {
		addr uintptr
		want string
	}{
		{0x4003_4018, "uart0"},
		{0x4003_C000, "spi0"},
		{0xE000_ED08, "scb"},
		{0x4003_404C, ""},
	}
	for _, tt := range tests {
		p, ok := b.PeripheralAt(tt.addr)
		got := ""
		if ok {
			got = p.Name
		}
		if got != tt.want {
			t.Errorf("PeripheralAt(%#x) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestResetMask(t *testing.T) {
	b, _ := Find("pico")
	mask, err := b.ResetMask("spi0", "uart1")
	if err != nil || mask != 1<<16|1<<23 {
		t.Errorf("ResetMask() = %#x, %v", mask, err)
	}
	if _, err := b.ResetMask("nvic"); !errors.Is(err, pkg.ErrNotSupported) {
		t.Errorf("ResetMask(nvic) error = %v, want ErrNotSupported", err)
	}
	if _, err := b.ResetMask("i2c0"); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("ResetMask(i2c0) error = %v, want ErrNotFound", err)
	}
}

func TestBringUpOrder(t *testing.T) {
	b, _ := Find("pico")
	order, err := b.BringUpOrder("uart0", "spi1")
	if err != nil {
		t.Fatalf("BringUpOrder() error = %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("BringUpOrder() = %v, want 4 peripherals", order)
	}
	pos := make(map[string]int)
	for i, name := range order {
		pos[name] = i
	}
	for _, p := range []string{"uart0", "spi1"} {
		for _, dep := range []string{"resets", "nvic"} {
			if pos[dep] >= pos[p] {
				t.Errorf("BringUpOrder() = %v: %s before %s", order, p, dep)
			}
		}
	}

	again, _ := b.BringUpOrder("uart0", "spi1")
	if !slices.Equal(order, again) {
		t.Errorf("BringUpOrder() not deterministic: %v then %v", order, again)
	}

	all, err := b.BringUpOrder()
	if err != nil || len(all) != len(b.Peripherals) {
		t.Errorf("BringUpOrder() = %v, %v", all, err)
	}
	if _, err := b.BringUpOrder("gpio"); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("BringUpOrder(gpio) error = %v, want ErrNotFound", err)
	}
}

const cyclic = `
boards:
  - name: loop
    chip: test
    peripherals:
      - {name: a, kind: x, base: 0x1000, size: 0x10, depends: [b]}
      - {name: b, kind: x, base: 0x2000, size: 0x10, depends: [c]}
      - {name: c, kind: x, base: 0x3000, size: 0x10, depends: [a]}
      - {name: d, kind: x, base: 0x4000, size: 0x10, depends: [d]}
      - {name: e, kind: x, base: 0x5000, size: 0x10}
`

func TestBringUpOrderCycle(t *testing.T) {
	c, err := Parse([]byte(cyclic))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	b, _ := c.Find("loop")
	if _, err := b.BringUpOrder("a"); !errors.Is(err, ErrCycle) {
		t.Errorf("BringUpOrder(a) error = %v, want ErrCycle", err)
	}
	if _, err := b.BringUpOrder("d"); !errors.Is(err, ErrCycle) {
		t.Errorf("BringUpOrder(d) error = %v, want ErrCycle", err)
	}
	if order, err := b.BringUpOrder("e"); err != nil || !slices.Equal(order, []string{"e"}) {
		t.Errorf("BringUpOrder(e) = %v, %v", order, err)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		err  error
	}{
		{"unknown dependency", `
boards:
  - name: x
    peripherals:
      - {name: a, base: 0x1000, size: 4, depends: [nope]}
`, pkg.ErrNotFound},
		{"duplicate peripheral", `
boards:
  - name: x
    peripherals:
      - {name: a, base: 0x1000, size: 4}
      - {name: A, base: 0x2000, size: 4}
`, pkg.ErrInvalidParameter},
		{"duplicate board", `
boards:
  - {name: x}
  - {name: x}
`, pkg.ErrInvalidParameter},
		{"zero size", `
boards:
  - name: x
    peripherals:
      - {name: a, base: 0x1000}
`, pkg.ErrInvalidParameter},
		{"reset bit", `
boards:
  - name: x
    peripherals:
      - {name: a, base: 0x1000, size: 4, reset: 32}
`, pkg.ErrInvalidParameter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); !errors.Is(err, tt.err) {
				t.Errorf("Parse() error = %v, want %v", err, tt.err)
			}
		})
	}

	if _, err := Parse([]byte("boards: [{name: x, peripherals: [{name: a, base: nope, size: 4}]}]")); err == nil {
		t.Error("Parse() accepted a non-numeric address")
	}
}

func TestAddrYAML(t *testing.T) {
	var v struct {
		A Addr `yaml:"a"`
		B Addr `yaml:"b"`
		C Addr `yaml:"c"`
	}
	if err := yaml.Unmarshal([]byte("a: 0x4000_C000\nb: 4096\nc: 0o17\n"), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.A != 0x4000_C000 || v.B != 4096 || v.C != 0o17 {
		t.Errorf("decoded %+v", v)
	}
	out, err := yaml.Marshal(struct {
		A Addr `yaml:"a"`
	}{0x4003_4000})
	if err != nil || !strings.Contains(string(out), "0x40034000") {
		t.Errorf("Marshal() = %q, %v", out, err)
	}
	var back struct {
		A Addr `yaml:"a"`
	}
	if err := yaml.Unmarshal(out, &back); err != nil || back.A != 0x4003_4000 {
		t.Errorf("Unmarshal(%q) = %v, %v", out, back.A, err)
	}
}

func TestRegistry(t *testing.T) {
	b, _ := Find("lpc845-brk")
	r := NewRegistry(b)

	h, err := r.Claim("spi0")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if h.Base() != 0x4005_8000 || h.Name() != "spi0" || h.Peripheral().Kind != "lpc84x.spi" {
		t.Errorf("handle = %s at %#x", h.Name(), h.Base())
	}
	if _, err := r.Claim("SPI0"); !errors.Is(err, pkg.ErrInUse) {
		t.Errorf("second Claim() error = %v, want ErrInUse", err)
	}
	if _, err := r.Claim("spi9"); !errors.Is(err, pkg.ErrNotFound) {
		t.Errorf("Claim(spi9) error = %v, want ErrNotFound", err)
	}
	if got := r.Claimed(); !slices.Equal(got, []string{"spi0"}) {
		t.Errorf("Claimed() = %v", got)
	}

	if err := r.Release(h); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := r.Release(h); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("second Release() error = %v", err)
	}
	other := NewRegistry(b)
	h2, _ := other.Claim("spi0")
	if err := r.Release(h2); !errors.Is(err, pkg.ErrInvalidParameter) {
		t.Errorf("Release(foreign) error = %v", err)
	}
	if _, err := r.Claim("spi0"); err != nil {
		t.Errorf("Claim() after Release error = %v", err)
	}
}

type engineState hal.State

func (e *engineState) State() hal.State { return hal.State(*e) }

func TestRegistryReleaseBusy(t *testing.T) {
	b, _ := Find("pico")
	r := NewRegistry(b)
	h, err := r.Claim("spi1")
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}

	st := engineState(hal.TransactingWrite)
	h.Bind(&st)
	if err := r.Release(h); !errors.Is(err, pkg.ErrBusy) {
		t.Fatalf("Release() while transacting error = %v, want ErrBusy", err)
	}
	if got := r.Claimed(); !slices.Equal(got, []string{"spi1"}) {
		t.Errorf("Claimed() = %v after refused release", got)
	}

	st = engineState(hal.Claimed)
	if err := r.Release(h); err != nil {
		t.Errorf("Release() once idle error = %v", err)
	}
}

func TestRegistryReleaseBoundEngine(t *testing.T) {
	b, _ := Find("pico")
	r := NewRegistry(b)
	h, _ := r.Claim("spi0")

	engine := hal.NewSPI(&stuckPort{})
	h.Bind(engine)
	engine.Claim()
	if got := engine.StartWrite(0, []uint16{1}, 8, false); got != pkg.Started {
		t.Fatalf("StartWrite() = %v", got)
	}
	if err := r.Release(h); !errors.Is(err, pkg.ErrBusy) {
		t.Errorf("Release() error = %v, want ErrBusy", err)
	}
}

// stuckPort never has room to transmit.
type stuckPort struct{}

func (*stuckPort) Ready() (rx, tx bool) { return false, false }
func (*stuckPort) Read() uint16 { return 0 }
func (*stuckPort) Write(uint16, hal.Frame) {}
func (*stuckPort) Width() uint8 { return 8 }
func (*stuckPort) Devices() uint8 { return 1 }

func TestRegistryConcurrentClaim(t *testing.T) {
	b, _ := Find("pico")
	r := NewRegistry(b)

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Claim("uart0"); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Errorf("%d goroutines claimed uart0, want 1", got)
	}
}
