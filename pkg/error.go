package pkg

import "errors"

// Driver errors.
var (
	// ErrRange indicates a packet memory offset outside the 1024-byte region.
	ErrRange = errors.New("offset out of range")

	// ErrAlignment indicates a half-word access at an odd byte offset.
	ErrAlignment = errors.New("unaligned half-word access")

	// ErrStall indicates the endpoint answered with STALL.
	ErrStall = errors.New("endpoint stalled")

	// ErrNAK indicates the endpoint answered with NAK.
	ErrNAK = errors.New("NAK received")

	// ErrDisabled indicates the endpoint direction is disabled.
	ErrDisabled = errors.New("endpoint disabled")

	// ErrProtocol indicates a protocol error.
	ErrProtocol = errors.New("protocol error")

	// ErrInvalidEndpoint indicates an invalid endpoint number.
	ErrInvalidEndpoint = errors.New("invalid endpoint")

	// ErrInvalidParameter indicates an invalid parameter was provided.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrPacketTooLarge indicates a payload exceeding the endpoint buffer.
	ErrPacketTooLarge = errors.New("packet exceeds max packet size")

	// ErrDescriptorTooShort indicates the descriptor data is too short.
	ErrDescriptorTooShort = errors.New("descriptor too short")

	// ErrDescriptorTypeMismatch indicates the descriptor type does not match expected.
	ErrDescriptorTypeMismatch = errors.New("descriptor type mismatch")

	// ErrTotalLength indicates a configuration whose wTotalLength does not
	// match the records it aggregates.
	ErrTotalLength = errors.New("configuration total length mismatch")

	// ErrBufferTooSmall indicates the provided buffer is too small.
	ErrBufferTooSmall = errors.New("buffer too small")

	// ErrSetupPacketTooShort indicates the setup packet data is too short.
	ErrSetupPacketTooShort = errors.New("setup packet too short")

	// ErrNoResponse indicates no function answered at the addressed device.
	ErrNoResponse = errors.New("no response")

	// ErrNotInstalled indicates the shared context holds no engine yet.
	ErrNotInstalled = errors.New("engine not installed")
)

// Outcome classifies how one interrupt was handled.
type Outcome int

// Interrupt outcomes.
const (
	OutcomeHandled            Outcome = iota // Protocol work performed
	OutcomeIgnored                           // Nothing pending for the driver
	OutcomeReset                             // Bus reset serviced
	OutcomeHardwareSignaled                  // Peripheral-latched error, transaction dropped
	OutcomeProtocolMismatch                  // Unrecognized request, no protocol action
	OutcomeUnimplementedStage                // Recognized request whose stage is not built
	OutcomeRequestError                      // Request answered with STALL
)

// String returns a string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeHandled:
		return "handled"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeReset:
		return "reset"
	case OutcomeHardwareSignaled:
		return "hardware-signaled"
	case OutcomeProtocolMismatch:
		return "protocol-mismatch"
	case OutcomeUnimplementedStage:
		return "unimplemented-stage"
	case OutcomeRequestError:
		return "request-error"
	default:
		return "unknown"
	}
}
