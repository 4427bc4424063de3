// Package board describes the supported boards: which chip and core each
// carries and where its peripherals live. The catalogue is embedded YAML.
//
// A [Registry] hands out each physical peripheral of a board to one owner
// at a time, and [Board.BringUpOrder] orders peripherals so dependencies
// such as the reset controller come up first.
package board

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"

	"github.com/ardnew/mcuhal/pkg"
)

//go:embed boards.yaml
var rawBoards []byte

// Addr is a physical address or region size. In YAML it accepts any
// integer literal strconv understands, including 0x-prefixed hex.
type Addr uintptr

// UnmarshalYAML decodes a scalar integer.
func (a *Addr) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: address must be a scalar", value.Line)
	}
	v, err := strconv.ParseUint(strings.ReplaceAll(value.Value, "_", ""), 0, 64)
	if err != nil {
		return fmt.Errorf("line %d: address %q: %w", value.Line, value.Value, err)
	}
	*a = Addr(v)
	return nil
}

// MarshalYAML encodes the address as hex.
func (a Addr) MarshalYAML() (any, error) {
	return a.String(), nil
}

func (a Addr) String() string {
	return fmt.Sprintf("0x%08X", uintptr(a))
}

// Peripheral is one peripheral instance on a board.
type Peripheral struct {
	Name    string   `yaml:"name"`
	Kind    string   `yaml:"kind"`
	Base    Addr     `yaml:"base"`
	Size    Addr     `yaml:"size"`
	IRQ     *uint8   `yaml:"irq,omitempty"`
	Reset   *uint8   `yaml:"reset,omitempty"`
	Depends []string `yaml:"depends,omitempty"`
}

// Contains reports whether addr falls inside the peripheral.
func (p *Peripheral) Contains(addr uintptr) bool {
	return addr >= uintptr(p.Base) && addr-uintptr(p.Base) < uintptr(p.Size)
}

// Board is one supported board.
type Board struct {
	Name        string       `yaml:"name"`
	Chip        string       `yaml:"chip"`
	Core        string       `yaml:"core"`
	ClockHz     uint32       `yaml:"clock"`
	Peripherals []Peripheral `yaml:"peripherals"`

	index map[string]*Peripheral
}

// Peripheral returns the peripheral called name.
func (b *Board) Peripheral(name string) (*Peripheral, bool) {
	p, ok := b.index[strings.ToLower(name)]
	return p, ok
}

// PeripheralAt returns the peripheral containing addr.
func (b *Board) PeripheralAt(addr uintptr) (*Peripheral, bool) {
	for i := range b.Peripherals {
		if b.Peripherals[i].Contains(addr) {
			return &b.Peripherals[i], true
		}
	}
	return nil, false
}

// Names returns the peripheral names in sorted order.
func (b *Board) Names() []string {
	names := maps.Keys(b.index)
	slices.Sort(names)
	return names
}

// ResetMask returns the RESETS bits of the named peripherals.
func (b *Board) ResetMask(names ...string) (uint32, error) {
	var mask uint32
	for _, name := range names {
		p, ok := b.Peripheral(name)
		if !ok {
			return 0, fmt.Errorf("board %s: peripheral %q: %w", b.Name, name, pkg.ErrNotFound)
		}
		if p.Reset == nil {
			return 0, fmt.Errorf("board %s: %s has no reset bit: %w", b.Name, name, pkg.ErrNotSupported)
		}
		mask |= 1 << *p.Reset
	}
	return mask, nil
}

func (b *Board) init() error {
	if b.Name == "" {
		return fmt.Errorf("board without name: %w", pkg.ErrInvalidParameter)
	}
	b.index = make(map[string]*Peripheral, len(b.Peripherals))
	for i := range b.Peripherals {
		p := &b.Peripherals[i]
		p.Name = strings.ToLower(p.Name)
		if p.Name == "" || p.Size == 0 {
			return fmt.Errorf("board %s: peripheral %d needs a name and size: %w",
				b.Name, i, pkg.ErrInvalidParameter)
		}
		if _, dup := b.index[p.Name]; dup {
			return fmt.Errorf("board %s: duplicate peripheral %q: %w", b.Name, p.Name, pkg.ErrInvalidParameter)
		}
		if p.Reset != nil && *p.Reset > 31 {
			return fmt.Errorf("board %s: %s reset bit %d: %w", b.Name, p.Name, *p.Reset, pkg.ErrInvalidParameter)
		}
		b.index[p.Name] = p
	}
	for _, p := range b.index {
		for _, dep := range p.Depends {
			if _, ok := b.index[strings.ToLower(dep)]; !ok {
				return fmt.Errorf("board %s: %s depends on unknown %q: %w", b.Name, p.Name, dep, pkg.ErrNotFound)
			}
		}
	}
	return nil
}

// Catalogue is a set of boards.
type Catalogue struct {
	Boards []*Board `yaml:"boards"`
}

// Parse decodes and validates a YAML catalogue.
func Parse(data []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("board catalogue: %w", err)
	}
	seen := make(map[string]bool, len(c.Boards))
	for _, b := range c.Boards {
		if err := b.init(); err != nil {
			return nil, err
		}
		if seen[b.Name] {
			return nil, fmt.Errorf("duplicate board %q: %w", b.Name, pkg.ErrInvalidParameter)
		}
		seen[b.Name] = true
	}
	pkg.LogDebug(pkg.ComponentBoard, "catalogue loaded", "boards", len(c.Boards))
	return &c, nil
}

// Find returns the board called name.
func (c *Catalogue) Find(name string) (*Board, error) {
	for _, b := range c.Boards {
		if strings.EqualFold(b.Name, name) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("board %q: %w", name, pkg.ErrNotFound)
}

// Names returns the board names in sorted order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.Boards))
	for _, b := range c.Boards {
		names = append(names, b.Name)
	}
	slices.Sort(names)
	return names
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalogue
)

// Default returns the embedded catalogue.
func Default() *Catalogue {
	defaultOnce.Do(func() {
		c, err := Parse(rawBoards)
		if err != nil {
			panic(err)
		}
		defaultCat = c
	})
	return defaultCat
}

// All returns the boards of the embedded catalogue.
func All() []*Board {
	return Default().Boards
}

// Find returns the board called name from the embedded catalogue.
func Find(name string) (*Board, error) {
	return Default().Find(name)
}
