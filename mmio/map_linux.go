//go:build linux && !baremetal

package mmio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/ardnew/mcuhal/pkg"
)

// DevMem is the Linux physical memory device.
const DevMem = "/dev/mem"

// MapOption adjusts how [Map] opens a register window.
type MapOption func(*mapConfig)

type mapConfig struct {
	readOnly bool
	fileBase uintptr
}

// ReadOnly maps the window without write permission.
func ReadOnly() MapOption {
	return func(c *mapConfig) { c.readOnly = true }
}

// FileBase sets the bus address corresponding to offset zero of the file.
// It defaults to zero, which matches [DevMem]. Register snapshot files set it
// to the address the snapshot was captured from.
func FileBase(addr uintptr) MapOption {
	return func(c *mapConfig) { c.fileBase = addr }
}

// Map maps size bytes of register space starting at bus address base from
// the file at path. The mapping is page aligned internally; the returned
// window covers exactly [base, base+size).
func Map(path string, base, size uintptr, opts ...MapOption) (*Window, error) {
	var cfg mapConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if size == 0 || base < cfg.fileBase {
		return nil, fmt.Errorf("map %#x+%#x: %w", base, size, pkg.ErrInvalidAddress)
	}

	flag, prot := os.O_RDWR|os.O_SYNC, unix.PROT_READ|unix.PROT_WRITE
	if cfg.readOnly {
		flag, prot = os.O_RDONLY|os.O_SYNC, unix.PROT_READ
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// The mapping stays valid after the descriptor is closed.
	defer f.Close()

	page := uintptr(unix.Getpagesize())
	off := base - cfg.fileBase
	start := off &^ (page - 1)
	skip := off - start
	length := skip + size

	if fi, err := f.Stat(); err == nil && fi.Mode().IsRegular() {
		if uintptr(fi.Size()) < off+size {
			return nil, fmt.Errorf("map %s: %#x+%#x beyond end of file (%d bytes): %w",
				path, base, size, fi.Size(), pkg.ErrInvalidAddress)
		}
	}

	mem, err := unix.Mmap(int(f.Fd()), int64(start), int(length), prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s at %#x: %w", path, start, err)
	}
	pkg.LogDebug(pkg.ComponentMMIO, "mapped window",
		"path", path, "base", fmt.Sprintf("%#x", base), "size", size, "readonly", cfg.readOnly)

	return &Window{
		base:  base,
		mem:   mem[skip:length:length],
		unmap: func() error { return unix.Munmap(mem) },
	}, nil
}
