package hal

import (
	"sync/atomic"

	"github.com/ardnew/mcuhal/pkg"
)

// State is the ownership and transfer state of an asynchronous engine.
type State uint32

// Engine states.
const (
	Idle                 State = iota // Not owned
	Claimed                           // Owned, no transaction
	TransactingReadWrite              // Full-duplex transaction pending
	TransactingRead                   // Receive transaction pending
	TransactingWrite                  // Transmit transaction pending
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Claimed:
		return "claimed"
	case TransactingReadWrite:
		return "transacting read/write"
	case TransactingRead:
		return "transacting read"
	case TransactingWrite:
		return "transacting write"
	default:
		return "unknown"
	}
}

// Transacting reports whether s is one of the transaction states.
func (s State) Transacting() bool {
	return s >= TransactingReadWrite && s <= TransactingWrite
}

// owner implements the claim/unclaim protocol shared by every engine.
// Claim and unclaim are compare-and-swap transitions, so two contexts racing
// to claim cannot both succeed. Transactions are single-context: only the
// owner that claimed the engine may start and progress them.
type owner struct {
	state     atomic.Uint32
	component pkg.Component
}

func (o *owner) load() State {
	return State(o.state.Load())
}

func (o *owner) claim() pkg.Result {
	if !o.state.CompareAndSwap(uint32(Idle), uint32(Claimed)) {
		return pkg.InUse
	}
	pkg.LogDebug(o.component, "claimed")
	return pkg.Claimed
}

func (o *owner) unclaim() pkg.Result {
	if o.state.CompareAndSwap(uint32(Claimed), uint32(Idle)) {
		pkg.LogDebug(o.component, "unclaimed")
		return pkg.Unclaimed
	}
	if o.load() == Idle {
		// Unclaiming an engine nobody owns is a caller bug.
		pkg.LogWarn(o.component, "unclaim while idle")
		return pkg.Error
	}
	return pkg.Busy
}

// begin moves a claimed engine into transaction state s.
func (o *owner) begin(s State) bool {
	return o.state.CompareAndSwap(uint32(Claimed), uint32(s))
}

// finish returns a transacting engine to Claimed.
func (o *owner) finish() {
	o.state.Store(uint32(Claimed))
}
