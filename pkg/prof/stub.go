//go:build !profile

package prof

import (
	"errors"
	"fmt"

	"github.com/ardnew/mcuhal/pkg"
)

// Enabled reports whether profiling support is compiled in.
const Enabled = false

// ErrActive is returned by [Start] while another session is running.
var ErrActive = errors.New("profile session already active")

// Session is one running profile.
type Session struct{}

// Start fails with [pkg.ErrNotSupported] if any profile is requested.
func Start(cpuPath, heapPath string) (*Session, error) {
	if cpuPath != "" || heapPath != "" {
		return nil, fmt.Errorf("profiling requires the profile build tag: %w", pkg.ErrNotSupported)
	}
	return &Session{}, nil
}

// Stop is a no-op.
func (s *Session) Stop() error {
	return nil
}
