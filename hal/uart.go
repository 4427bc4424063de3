package hal

import (
	"github.com/ardnew/mcuhal/pkg"
)

// UARTStatus is a snapshot of a UART status register.
type UARTStatus struct {
	RxReady bool       // A received character is waiting
	TxReady bool       // The transmitter can accept a character
	Err     pkg.Result // Sticky line condition, or pkg.NoError
}

// UARTPort is the register-level view of a UART that the engines drive.
type UARTPort interface {
	// Status reads the status register once.
	Status() UARTStatus

	// ReadByte returns the oldest received character together with any
	// error flagged for that character.
	ReadByte() (byte, pkg.Result)

	// WriteByte queues a character for transmission.
	WriteByte(b byte)

	// ClearErrors acknowledges sticky line conditions.
	ClearErrors()
}

// UART is a non-blocking, caller-polled UART transfer engine with the same
// claim/start/progress protocol as [SPI].
type UART[P UARTPort] struct {
	port P
	owner

	wbuf []byte
	rbuf []byte
	wpos int
	rpos int
}

// NewUART returns an idle engine driving port.
func NewUART[P UARTPort](port P) *UART[P] {
	u := &UART[P]{port: port}
	u.component = pkg.ComponentUART
	return u
}

// Port returns the underlying port.
func (u *UART[P]) Port() P {
	return u.port
}

// State returns the current engine state.
func (u *UART[P]) State() State {
	return u.load()
}

// Pending returns the number of bytes still to be written and read.
func (u *UART[P]) Pending() (write, read int) {
	return len(u.wbuf) - u.wpos, len(u.rbuf) - u.rpos
}

// Claim takes exclusive ownership of an idle engine.
func (u *UART[P]) Claim() pkg.Result {
	return u.claim()
}

// Unclaim releases a claimed engine.
func (u *UART[P]) Unclaim() pkg.Result {
	return u.unclaim()
}

// StartWrite transmits data.
func (u *UART[P]) StartWrite(data []byte) pkg.Result {
	return u.start(TransactingWrite, data, nil)
}

// StartRead receives exactly len(buf) bytes into buf.
func (u *UART[P]) StartRead(buf []byte) pkg.Result {
	return u.start(TransactingRead, nil, buf)
}

// StartReadWrite transmits w while receiving len(r) bytes into r. The two
// directions progress independently.
func (u *UART[P]) StartReadWrite(w, r []byte) pkg.Result {
	return u.start(TransactingReadWrite, w, r)
}

func (u *UART[P]) start(kind State, w, r []byte) pkg.Result {
	if u.load() != Claimed {
		return pkg.Error
	}
	if (kind != TransactingRead && len(w) == 0) || (kind != TransactingWrite && len(r) == 0) {
		return pkg.Error
	}
	u.wbuf, u.rbuf = w, r
	u.wpos, u.rpos = 0, 0
	if !u.begin(kind) {
		u.reset()
		return pkg.Error
	}
	pkg.LogDebug(pkg.ComponentUART, "transaction started",
		"kind", kind.String(), "write", len(w), "read", len(r))
	return pkg.Started
}

// Progress advances the pending transaction by at most one character in each
// direction. It returns [pkg.Done] on completion, [pkg.Busy] while pending
// and [pkg.Error] with no transaction. A line condition is returned as
// [pkg.Overrun], [pkg.Framing], [pkg.Parity] or [pkg.Break]; the flag is
// cleared and the transaction stays pending, so the caller chooses between
// progressing further and calling [UART.Abort].
func (u *UART[P]) Progress() pkg.Result {
	kind := u.load()
	if !kind.Transacting() {
		return pkg.Error
	}
	st := u.port.Status()
	if st.Err != pkg.NoError {
		u.port.ClearErrors()
		pkg.LogWarn(pkg.ComponentUART, "line error", "err", st.Err.String())
		return st.Err
	}

	if st.RxReady && u.rpos < len(u.rbuf) {
		b, res := u.port.ReadByte()
		if res != pkg.NoError {
			// The character is discarded and the slot is retried.
			pkg.LogWarn(pkg.ComponentUART, "receive error", "err", res.String())
			return res
		}
		u.rbuf[u.rpos] = b
		u.rpos++
	}

	if st.TxReady && u.wpos < len(u.wbuf) {
		u.port.WriteByte(u.wbuf[u.wpos])
		u.wpos++
	}

	if u.wpos < len(u.wbuf) || u.rpos < len(u.rbuf) {
		return pkg.Busy
	}
	pkg.LogDebug(pkg.ComponentUART, "transaction done", "kind", kind.String())
	u.reset()
	u.finish()
	return pkg.Done
}

// Abort drops the pending transaction and returns the engine to Claimed.
// It returns [pkg.NoError], or [pkg.Error] if nothing was pending.
func (u *UART[P]) Abort() pkg.Result {
	kind := u.load()
	if !kind.Transacting() {
		return pkg.Error
	}
	w, r := u.Pending()
	pkg.LogDebug(pkg.ComponentUART, "transaction aborted",
		"kind", kind.String(), "write", w, "read", r)
	u.reset()
	u.finish()
	return pkg.NoError
}

func (u *UART[P]) reset() {
	u.wbuf, u.rbuf = nil, nil
	u.wpos, u.rpos = 0, 0
}
