package pkg

import "errors"

// HAL errors.
var (
	// ErrGeneric indicates an unspecified failure or a caller protocol error.
	ErrGeneric = errors.New("operation failed")

	// ErrBusy indicates the peripheral is in the middle of a transaction.
	ErrBusy = errors.New("peripheral busy")

	// ErrInUse indicates the peripheral is already claimed by another owner.
	ErrInUse = errors.New("peripheral in use")

	// ErrTimeout indicates a blocking operation gave up waiting for hardware.
	ErrTimeout = errors.New("operation timeout")

	// ErrInvalidAddress indicates an address outside the mapped register window
	// or misaligned for the register width.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrTransfer indicates the peripheral reported a transfer fault.
	ErrTransfer = errors.New("transfer error")

	// ErrOverrun indicates received data was lost because it was not read in time.
	ErrOverrun = errors.New("receive overrun")

	// ErrFraming indicates a missing stop bit on a received character.
	ErrFraming = errors.New("framing error")

	// ErrParity indicates a parity mismatch on a received character.
	ErrParity = errors.New("parity error")

	// ErrBreak indicates a break condition on the receive line.
	ErrBreak = errors.New("break condition")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrBufferFull indicates a bounded buffer could not accept all data.
	ErrBufferFull = errors.New("buffer full")

	// ErrNotFound indicates a named board, peripheral or register does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotSupported indicates an unsupported operation or feature.
	ErrNotSupported = errors.New("not supported")
)

// Result is the outcome of a HAL operation, returned by value.
type Result uint8

// Result values.
const (
	NoError        Result = iota // Operation completed without error
	Error                        // Generic failure or caller protocol error
	Started                      // Transaction accepted
	Busy                         // Transaction pending or peripheral busy
	Done                         // Transaction completed
	InUse                        // Peripheral already claimed
	Claimed                      // Claim succeeded
	Unclaimed                    // Unclaim succeeded
	Timeout                      // Gave up waiting
	InvalidAddress               // Address out of range
	TransferError                // Hardware transfer fault
	Overrun                      // Receive overrun
	Framing                      // Framing error
	Parity                       // Parity error
	Break                        // Break condition
)

var resultNames = [...]string{
	NoError:        "no error",
	Error:          "error",
	Started:        "started",
	Busy:           "busy",
	Done:           "done",
	InUse:          "in use",
	Claimed:        "claimed",
	Unclaimed:      "unclaimed",
	Timeout:        "timeout",
	InvalidAddress: "invalid address",
	TransferError:  "transfer error",
	Overrun:        "overrun",
	Framing:        "framing",
	Parity:         "parity",
	Break:          "break",
}

// String returns a string representation of the result.
func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// Failed reports whether the result is a failure. Progress and lifecycle
// results (Started, Busy, Done, Claimed, Unclaimed) are not failures.
func (r Result) Failed() bool {
	return r.Err() != nil
}

// Err returns the corresponding error for the result, or nil if the result
// does not represent a failure.
func (r Result) Err() error {
	switch r {
	case NoError, Started, Busy, Done, Claimed, Unclaimed:
		return nil
	case InUse:
		return ErrInUse
	case Timeout:
		return ErrTimeout
	case InvalidAddress:
		return ErrInvalidAddress
	case TransferError:
		return ErrTransfer
	case Overrun:
		return ErrOverrun
	case Framing:
		return ErrFraming
	case Parity:
		return ErrParity
	case Break:
		return ErrBreak
	default:
		return ErrGeneric
	}
}

// IsLineError reports whether the result is a receive line condition
// (overrun, framing, parity or break).
func (r Result) IsLineError() bool {
	switch r {
	case Overrun, Framing, Parity, Break:
		return true
	}
	return false
}
