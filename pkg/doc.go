// Package pkg provides shared utilities for the mcuhal packages.
//
// This package contains common functionality used by every chip package,
// the transfer engines and the command-line tools, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - The [Result] enum returned by value from engine operations
//   - Sentinel errors for Go-side APIs that return error
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentSPI, "configured", "div", 11)
//
// A single component can be traced without raising the global level:
//
//	pkg.SetComponentLevel(pkg.ComponentUART, slog.LevelDebug)
//
// # Results and errors
//
// Transfer engines return a [Result]. Callers branch on it directly, or
// convert failures to an error:
//
//	if err := spi.Claim().Err(); err != nil {
//	    // err is pkg.ErrInUse
//	}
//
// Synchronous wrappers return errors wrapping the sentinel values:
//
//	if errors.Is(err, pkg.ErrTimeout) {
//	    // Handle timeout
//	}
package pkg
