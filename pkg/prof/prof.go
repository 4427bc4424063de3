//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/ardnew/mcuhal/pkg"
)

// Enabled reports whether profiling support is compiled in.
const Enabled = true

// ErrActive is returned by [Start] while another session is running.
var ErrActive = errors.New("profile session already active")

var (
	// mu guards active; the runtime supports one CPU profile at a time.
	mu     sync.Mutex
	active bool
)

// Session is one running profile.
type Session struct {
	cpu     *os.File
	heap    string
	started time.Time
}

// Start begins a CPU profile written to cpuPath and arranges for a heap
// profile to be written to heapPath when the session stops. Either path may
// be empty; with both empty the session is inert.
func Start(cpuPath, heapPath string) (*Session, error) {
	if cpuPath == "" && heapPath == "" {
		return &Session{}, nil
	}
	mu.Lock()
	defer mu.Unlock()
	if active {
		return nil, ErrActive
	}

	s := &Session{heap: heapPath, started: time.Now()}
	if cpuPath != "" {
		f, err := os.Create(cpuPath)
		if err != nil {
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return nil, fmt.Errorf("cpu profile: %w", err)
		}
		s.cpu = f
	}
	active = true
	pkg.LogDebug(pkg.ComponentCLI, "profiling", "cpu", cpuPath, "heap", heapPath)
	return s, nil
}

// Stop ends the session and writes any pending heap profile. Stopping a
// stopped session is a no-op.
func (s *Session) Stop() error {
	mu.Lock()
	defer mu.Unlock()
	if s == nil || s.started.IsZero() {
		return nil
	}
	var errs []error
	if s.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, s.cpu.Close())
		s.cpu = nil
	}
	if s.heap != "" {
		errs = append(errs, writeHeap(s.heap))
	}
	pkg.LogDebug(pkg.ComponentCLI, "profiling stopped", "elapsed", time.Since(s.started))
	s.started = time.Time{}
	active = false
	return errors.Join(errs...)
}

func writeHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		return fmt.Errorf("heap profile: %w", err)
	}
	return nil
}
