// Package prof profiles a single halctl invocation.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/halctl
//	halctl --cpuprofile cpu.prof --memprofile heap.prof dump pico uart0
//
// Without the tag, [Start] accepts empty paths and rejects any requested
// profile with [pkg.ErrNotSupported], so the flags remain visible but inert.
package prof
