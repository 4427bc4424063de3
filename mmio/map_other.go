//go:build !linux || baremetal

package mmio

import (
	"fmt"

	"github.com/ardnew/mcuhal/pkg"
)

// DevMem is the Linux physical memory device.
const DevMem = "/dev/mem"

// MapOption adjusts how [Map] opens a register window.
type MapOption func(*mapConfig)

type mapConfig struct{}

// ReadOnly maps the window without write permission.
func ReadOnly() MapOption { return func(*mapConfig) {} }

// FileBase sets the bus address corresponding to offset zero of the file.
func FileBase(uintptr) MapOption { return func(*mapConfig) {} }

// Map is only implemented on hosted Linux.
func Map(path string, base, size uintptr, _ ...MapOption) (*Window, error) {
	return nil, fmt.Errorf("map %s: %w", path, pkg.ErrNotSupported)
}
