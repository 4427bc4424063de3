package board

import (
	"fmt"
	"sync"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/ardnew/mcuhal/hal"
	"github.com/ardnew/mcuhal/pkg"
)

// Registry grants exclusive ownership of a board's peripherals. Each
// physical peripheral has at most one live [Handle].
type Registry struct {
	board *Board

	mu     sync.Mutex
	owners map[string]*Handle
}

// NewRegistry returns a registry with every peripheral of b unclaimed.
func NewRegistry(b *Board) *Registry {
	return &Registry{board: b, owners: make(map[string]*Handle)}
}

// Board returns the board the registry manages.
func (r *Registry) Board() *Board {
	return r.board
}

// Handle is proof of ownership of one peripheral.
type Handle struct {
	p      *Peripheral
	reg    *Registry
	engine Engine
}

// Engine is an asynchronous engine driving a claimed peripheral, such as
// [hal.SPI] or [hal.UART].
type Engine interface {
	State() hal.State
}

// Bind ties e to the handle. While e has a transaction pending the handle
// cannot be released.
func (h *Handle) Bind(e Engine) {
	h.engine = e
}

// Peripheral returns the owned peripheral.
func (h *Handle) Peripheral() *Peripheral {
	return h.p
}

// Name returns the peripheral name.
func (h *Handle) Name() string {
	return h.p.Name
}

// Base returns the peripheral base address.
func (h *Handle) Base() uintptr {
	return uintptr(h.p.Base)
}

// Claim takes ownership of the peripheral called name. It fails with
// [pkg.ErrInUse] while another handle holds it.
func (r *Registry) Claim(name string) (*Handle, error) {
	p, ok := r.board.Peripheral(name)
	if !ok {
		return nil, fmt.Errorf("claim %q on %s: %w", name, r.board.Name, pkg.ErrNotFound)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.owners[p.Name]; taken {
		return nil, fmt.Errorf("claim %s on %s: %w", p.Name, r.board.Name, pkg.ErrInUse)
	}
	h := &Handle{p: p, reg: r}
	r.owners[p.Name] = h
	pkg.LogDebug(pkg.ComponentBoard, "claimed", "board", r.board.Name, "peripheral", p.Name)
	return h, nil
}

// Release returns the peripheral held by h. Releasing a handle that no
// longer owns its peripheral fails with [pkg.ErrInvalidParameter], and one
// whose bound engine is transacting fails with [pkg.ErrBusy].
func (r *Registry) Release(h *Handle) error {
	if h == nil || h.reg != r {
		return fmt.Errorf("release: foreign handle: %w", pkg.ErrInvalidParameter)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owners[h.p.Name] != h {
		return fmt.Errorf("release %s: not owned: %w", h.p.Name, pkg.ErrInvalidParameter)
	}
	if h.engine != nil && h.engine.State().Transacting() {
		return fmt.Errorf("release %s: %v: %w", h.p.Name, h.engine.State(), pkg.ErrBusy)
	}
	delete(r.owners, h.p.Name)
	pkg.LogDebug(pkg.ComponentBoard, "released", "board", r.board.Name, "peripheral", h.p.Name)
	return nil
}

// Claimed returns the names of the claimed peripherals in sorted order.
func (r *Registry) Claimed() []string {
	r.mu.Lock()
	names := maps.Keys(r.owners)
	r.mu.Unlock()
	slices.Sort(names)
	return names
}
