//go:build tinygo

package shared

import "runtime/interrupt"

// InterruptMasker masks every interrupt on the core.
type InterruptMasker struct{}

// Disable masks interrupts and returns the previous mask.
func (InterruptMasker) Disable() State {
	return State(interrupt.Disable())
}

// Restore reinstates a mask returned by Disable.
func (InterruptMasker) Restore(s State) {
	interrupt.Restore(interrupt.State(s))
}
