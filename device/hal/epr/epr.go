// Package epr manipulates the USB endpoint registers (USB_EPnR).
//
// An endpoint register mixes three kinds of field. EA, EP_KIND and EP_TYPE
// are plain read-write. CTR_RX and CTR_TX are rc_w0: writing 0 clears them
// and writing 1 leaves them alone. DTOG_RX, DTOG_TX, STAT_RX and STAT_TX
// toggle: each 1 written flips the stored bit and each 0 leaves it.
// A careless read-modify-write therefore clears completion flags or flips
// state it meant to keep, so every write in this package is built by
// [Toggle].
package epr

import "github.com/bentwire/stm32f072-usb/device/hal"

// Endpoint register fields.
const (
	CTR_RX  = 1 << 15
	DTOG_RX = 1 << 14
	STAT_RX = 3 << 12
	SETUP   = 1 << 11
	EP_TYPE = 3 << 9
	EP_KIND = 1 << 8
	CTR_TX  = 1 << 7
	DTOG_TX = 1 << 6
	STAT_TX = 3 << 4
	EA      = 0x000F

	statRXShift = 12
	statTXShift = 4
	typeShift   = 9
)

// KeepMask selects the read-write fields carried unchanged through every
// write.
const KeepMask = EA | EP_KIND | EP_TYPE

// CTRMask selects both completion flags.
const CTRMask = CTR_RX | CTR_TX

// Toggle computes the value to write to an endpoint register.
//
// current is the value just read. fieldMask selects the toggle fields
// being driven; pattern is XORed into them so that the hardware flips each
// one to the desired value. forced is ORed in last and carries the 1s that
// protect rc_w0 flags from being cleared. Bits outside KeepMask|fieldMask
// are written as 0 before pattern and forced apply.
func Toggle(current, fieldMask, pattern, forced uint32) uint32 {
	return (current & (KeepMask | fieldMask)) ^ pattern | forced
}

// Status is the two-bit handshake state of one endpoint direction.
type Status uint8

// Endpoint statuses.
const (
	StatusDisabled Status = 0b00 // Ignore all requests
	StatusStall    Status = 0b01 // Answer with STALL
	StatusNak      Status = 0b10 // Answer with NAK
	StatusValid    Status = 0b11 // Ready for a transaction
)

// String returns a string representation of the status.
func (s Status) String() string {
	switch s & 3 {
	case StatusDisabled:
		return "Disabled"
	case StatusStall:
		return "Stall"
	case StatusNak:
		return "Nak"
	default:
		return "Valid"
	}
}

// Type is the EP_TYPE field.
type Type uint8

// Endpoint types.
const (
	TypeBulk        Type = 0b00
	TypeControl     Type = 0b01
	TypeIsochronous Type = 0b10
	TypeInterrupt   Type = 0b11
)

// String returns a string representation of the endpoint type.
func (t Type) String() string {
	switch t & 3 {
	case TypeBulk:
		return "Bulk"
	case TypeControl:
		return "Control"
	case TypeIsochronous:
		return "Isochronous"
	default:
		return "Interrupt"
	}
}

func statField(dir hal.Direction) (mask uint32, shift uint) {
	if dir == hal.TX {
		return STAT_TX, statTXShift
	}
	return STAT_RX, statRXShift
}

func dtogField(dir hal.Direction) uint32 {
	if dir == hal.TX {
		return DTOG_TX
	}
	return DTOG_RX
}

func ctrField(dir hal.Direction) uint32 {
	if dir == hal.TX {
		return CTR_TX
	}
	return CTR_RX
}

// StatusBits returns the STAT pattern for dir positioned in the register.
func StatusBits(dir hal.Direction, s Status) uint32 {
	_, shift := statField(dir)
	return uint32(s&3) << shift
}

// Endpoint is one endpoint register.
type Endpoint struct {
	reg hal.Register
	num int
}

// New wraps the register of endpoint num.
func New(reg hal.Register, num int) Endpoint {
	return Endpoint{reg: reg, num: num}
}

// Number returns the endpoint index.
func (e Endpoint) Number() int { return e.num }

// Raw returns the current register value.
func (e Endpoint) Raw() uint32 { return e.reg.Get() }

// SetStatus drives the STAT field of dir to s.
func (e Endpoint) SetStatus(dir hal.Direction, s Status) {
	mask, _ := statField(dir)
	e.reg.Set(Toggle(e.reg.Get(), mask, StatusBits(dir, s), CTRMask))
}

// SetStatusBoth drives both STAT fields in one write.
func (e Endpoint) SetStatusBoth(rx, tx Status) {
	e.reg.Set(Toggle(e.reg.Get(), STAT_RX|STAT_TX,
		StatusBits(hal.RX, rx)|StatusBits(hal.TX, tx), CTRMask))
}

// StallBothDirections arms reception and stalls transmission in one
// write. The host sees STALL for the data or status IN stage while the
// endpoint stays ready for the next SETUP.
func (e Endpoint) StallBothDirections() {
	e.SetStatusBoth(StatusValid, StatusStall)
}

// ResetDataToggle clears the data toggle of dir to DATA0.
func (e Endpoint) ResetDataToggle(dir hal.Direction) {
	mask := dtogField(dir)
	e.reg.Set(Toggle(e.reg.Get(), mask, 0, CTRMask))
}

// ClearTransactionComplete clears the CTR flag of dir, leaving the other
// direction's flag and all toggle fields untouched.
func (e Endpoint) ClearTransactionComplete(dir hal.Direction) {
	e.reg.Set(Toggle(e.reg.Get(), 0, 0, CTRMask&^ctrField(dir)))
}

// Configure sets the endpoint type and address fields.
func (e Endpoint) Configure(t Type, address uint8) {
	bits := uint32(t&3)<<typeShift | uint32(address)&EA
	e.reg.Set(Toggle(e.reg.Get()&^(EP_TYPE|EA), 0, bits, CTRMask))
}

// SetStatusOut sets or clears EP_KIND, which on a control endpoint makes
// any OUT with a non-zero length answer STALL during a status stage.
func (e Endpoint) SetStatusOut(on bool) {
	var bits uint32
	if on {
		bits = EP_KIND
	}
	e.reg.Set(Toggle(e.reg.Get()&^EP_KIND, 0, bits, CTRMask))
}

// Setup reports whether the last RX transaction was a SETUP.
func (e Endpoint) Setup() bool { return e.reg.Get()&SETUP != 0 }

// TransactionComplete reports the CTR flag of dir.
func (e Endpoint) TransactionComplete(dir hal.Direction) bool {
	return e.reg.Get()&ctrField(dir) != 0
}

// Status returns the STAT field of dir.
func (e Endpoint) Status(dir hal.Direction) Status {
	mask, shift := statField(dir)
	return Status((e.reg.Get() & mask) >> shift)
}

// DataToggle reports whether the DTOG bit of dir is set (DATA1).
func (e Endpoint) DataToggle(dir hal.Direction) bool {
	return e.reg.Get()&dtogField(dir) != 0
}

// Type returns the EP_TYPE field.
func (e Endpoint) Type() Type { return Type((e.reg.Get() & EP_TYPE) >> typeShift) }

// StatusOut reports the EP_KIND field.
func (e Endpoint) StatusOut() bool { return e.reg.Get()&EP_KIND != 0 }

// Address returns the EA field.
func (e Endpoint) Address() uint8 { return uint8(e.reg.Get() & EA) }
