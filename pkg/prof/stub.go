//go:build !profile

package prof

// Enabled reports whether profiling is compiled in.
const Enabled = false

// ErrCPUProfileActive is never returned without the "profile" tag.
var ErrCPUProfileActive error

// StartCPU is a no-op when built without the "profile" tag.
func StartCPU(_ string) error { return nil }

// StopCPU is a no-op when built without the "profile" tag.
func StopCPU() {}

// IsCPUActive always returns false when built without the "profile" tag.
func IsCPUActive() bool { return false }

// WriteHeap is a no-op when built without the "profile" tag.
func WriteHeap(_ string) error { return nil }
