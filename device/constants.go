package device

import "fmt"

// MaxPacketSize0 is the endpoint 0 packet size.
const MaxPacketSize0 = 64

// MaxResponseSize bounds the data stage of a single IN control transfer.
const MaxResponseSize = 512

// StateKind identifies a device state (USB 2.0 section 9.1, restricted to
// the states this driver distinguishes).
type StateKind uint8

// Device state kinds.
const (
	StateBootReset  StateKind = iota // Initialized, no bus reset seen yet
	StateReset                       // Default address after a bus reset
	StateAddressed                   // Unique address assigned
	StateConfigured                  // Configuration selected
)

// String returns a string representation of the state kind.
func (k StateKind) String() string {
	switch k {
	case StateBootReset:
		return "BootReset"
	case StateReset:
		return "Reset"
	case StateAddressed:
		return "Addressed"
	case StateConfigured:
		return "Configured"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(k))
	}
}

// State is the device state. Address is meaningful for Addressed and
// Configured; Configuration only for Configured.
type State struct {
	Kind          StateKind
	Address       uint8
	Configuration uint8
}

// String returns e.g. "Reset", "Addressed(7)" or "Configured(7, 1)".
func (s State) String() string {
	switch s.Kind {
	case StateAddressed:
		return fmt.Sprintf("Addressed(%d)", s.Address)
	case StateConfigured:
		return fmt.Sprintf("Configured(%d, %d)", s.Address, s.Configuration)
	default:
		return s.Kind.String()
	}
}

// ParseStateKind maps a state name to its kind. Matching is exact.
func ParseStateKind(s string) (StateKind, bool) {
	for k := StateBootReset; k <= StateConfigured; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
