package hal

import (
	"fmt"
	"sync/atomic"

	"github.com/ardnew/mcuhal/pkg"
	"github.com/ardnew/mcuhal/ring"
)

// InterruptPort is a [UARTPort] whose transmit-ready interrupt can be
// switched on and off.
type InterruptPort interface {
	UARTPort

	// SetTxInterrupt enables or disables the transmit-ready interrupt.
	SetTxInterrupt(enabled bool)
}

// BufferedUART is an interrupt-driven UART. The interrupt handler calls
// [BufferedUART.HandleInterrupt], which moves characters between the
// hardware and two ring buffers; the main loop only touches the rings.
type BufferedUART[P InterruptPort] struct {
	port P
	rx   *ring.RingBuffer[byte]
	tx   *ring.RingBuffer[byte]

	dropped atomic.Uint32
	lastErr atomic.Uint32
}

// NewBufferedUART returns a buffered UART over port with the given receive
// and transmit ring capacities.
func NewBufferedUART[P InterruptPort](port P, rxSize, txSize int) *BufferedUART[P] {
	return &BufferedUART[P]{
		port: port,
		rx:   ring.New[byte](rxSize),
		tx:   ring.New[byte](txSize),
	}
}

// HandleInterrupt services the UART. It must be called from the UART
// interrupt handler only.
func (b *BufferedUART[P]) HandleInterrupt() {
	for {
		st := b.port.Status()
		if st.Err != pkg.NoError {
			b.lastErr.Store(uint32(st.Err))
			b.port.ClearErrors()
		}
		if !st.RxReady {
			break
		}
		c, res := b.port.ReadByte()
		if res != pkg.NoError {
			b.lastErr.Store(uint32(res))
			continue
		}
		if !b.rx.PushFront(c) {
			b.dropped.Add(1)
		}
	}

	for b.port.Status().TxReady {
		c, ok := b.tx.PopBack()
		if !ok {
			// The main loop cannot run between the failed pop and this
			// call, so a byte queued by Write always re-enables it.
			b.port.SetTxInterrupt(false)
			break
		}
		b.port.WriteByte(c)
	}
}

// Write queues p for transmission and enables the transmit interrupt.
// It returns the number of bytes queued and [pkg.ErrBufferFull] if the
// transmit ring could not hold all of p.
func (b *BufferedUART[P]) Write(p []byte) (int, error) {
	n := 0
	for _, c := range p {
		if !b.tx.PushFront(c) {
			break
		}
		n++
	}
	if n > 0 {
		b.port.SetTxInterrupt(true)
	}
	if n < len(p) {
		return n, fmt.Errorf("queued %d of %d bytes: %w", n, len(p), pkg.ErrBufferFull)
	}
	return n, nil
}

// Read copies received bytes into p without blocking and returns how many
// were copied.
func (b *BufferedUART[P]) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		c, ok := b.rx.PopBack()
		if !ok {
			break
		}
		p[n] = c
		n++
	}
	return n, nil
}

// ReadByte returns one received byte, or false if none is buffered.
func (b *BufferedUART[P]) ReadByte() (byte, bool) {
	return b.rx.PopBack()
}

// Buffered returns the number of received bytes waiting to be read.
func (b *BufferedUART[P]) Buffered() int {
	return b.rx.Level()
}

// Queued returns the number of bytes waiting to be transmitted.
func (b *BufferedUART[P]) Queued() int {
	return b.tx.Level()
}

// Dropped returns the number of received bytes discarded because the
// receive ring was full.
func (b *BufferedUART[P]) Dropped() uint32 {
	return b.dropped.Load()
}

// LastError returns and clears the most recent line condition.
func (b *BufferedUART[P]) LastError() pkg.Result {
	return pkg.Result(b.lastErr.Swap(uint32(pkg.NoError)))
}
