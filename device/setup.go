package device

import (
	"encoding/binary"
	"fmt"

	"github.com/bentwire/stm32f072-usb/pkg"
)

// SetupPacketSize is the size of a USB SETUP packet in bytes.
const SetupPacketSize = 8

// bmRequestType fields (USB 2.0 Table 9-2).
const (
	RequestTypeDirectionMask = 0x80
	RequestTypeTypeMask      = 0x60
	RequestTypeRecipientMask = 0x1F
)

// Direction is the data stage direction of a control request.
type Direction uint8

// Request directions.
const (
	DirectionOut Direction = 0 // Host to device
	DirectionIn  Direction = 1 // Device to host
)

// String returns "OUT" or "IN".
func (d Direction) String() string {
	if d == DirectionIn {
		return "IN"
	}
	return "OUT"
}

// Type is the request type field of bmRequestType.
type Type uint8

// Request types. TypeReserved is the fourth encoding.
const (
	TypeStandard Type = 0
	TypeClass    Type = 1
	TypeVendor   Type = 2
	TypeReserved Type = 3
)

// String returns a string representation of the request type.
func (t Type) String() string {
	switch t {
	case TypeStandard:
		return "Standard"
	case TypeClass:
		return "Class"
	case TypeVendor:
		return "Vendor"
	default:
		return "Reserved"
	}
}

// Recipient is the recipient field of bmRequestType.
type Recipient uint8

// Request recipients. Encodings 4-31 decode to RecipientReserved.
const (
	RecipientDevice    Recipient = 0
	RecipientInterface Recipient = 1
	RecipientEndpoint  Recipient = 2
	RecipientOther     Recipient = 3
	RecipientReserved  Recipient = 0xFF
)

// String returns a string representation of the recipient.
func (r Recipient) String() string {
	switch r {
	case RecipientDevice:
		return "Device"
	case RecipientInterface:
		return "Interface"
	case RecipientEndpoint:
		return "Endpoint"
	case RecipientOther:
		return "Other"
	default:
		return "Reserved"
	}
}

// Request is a decoded standard request code.
type Request int

// Standard request codes (USB 2.0 Table 9-4). RequestUnrecognized covers
// reserved codes and every class or vendor request.
const (
	RequestGetStatus        Request = 0x00
	RequestClearFeature     Request = 0x01
	RequestSetFeature       Request = 0x03
	RequestSetAddress       Request = 0x05
	RequestGetDescriptor    Request = 0x06
	RequestSetDescriptor    Request = 0x07
	RequestGetConfiguration Request = 0x08
	RequestSetConfiguration Request = 0x09
	RequestGetInterface     Request = 0x0A
	RequestSetInterface     Request = 0x0B
	RequestSynchFrame       Request = 0x0C

	RequestUnrecognized Request = -1
)

var requestNames = map[Request]string{
	RequestGetStatus:        "GetStatus",
	RequestClearFeature:     "ClearFeature",
	RequestSetFeature:       "SetFeature",
	RequestSetAddress:       "SetAddress",
	RequestGetDescriptor:    "GetDescriptor",
	RequestSetDescriptor:    "SetDescriptor",
	RequestGetConfiguration: "GetConfiguration",
	RequestSetConfiguration: "SetConfiguration",
	RequestGetInterface:     "GetInterface",
	RequestSetInterface:     "SetInterface",
	RequestSynchFrame:       "SynchFrame",
}

// String returns the request name.
func (r Request) String() string {
	if s, ok := requestNames[r]; ok {
		return s
	}
	return "Unrecognized"
}

// ControlRequest is a decoded SETUP packet.
type ControlRequest struct {
	Direction Direction
	Type      Type
	Recipient Recipient
	Request   Request

	RequestType uint8 // bmRequestType as received
	Code        uint8 // bRequest as received
	Value       uint16
	Index       uint16
	Length      uint16
}

// ParseControlRequest decodes an 8-byte SETUP packet. Every bit pattern
// decodes; reserved encodings become the Reserved or Unrecognized
// variants. The only error is a short packet.
func ParseControlRequest(data []byte) (ControlRequest, error) {
	if len(data) < SetupPacketSize {
		return ControlRequest{}, pkg.ErrSetupPacketTooShort
	}
	return decodeRequest(data[0], data[1],
		binary.LittleEndian.Uint16(data[2:4]),
		binary.LittleEndian.Uint16(data[4:6]),
		binary.LittleEndian.Uint16(data[6:8])), nil
}

func decodeRequest(bmRequestType, bRequest uint8, value, index, length uint16) ControlRequest {
	r := ControlRequest{
		Direction:   Direction(bmRequestType >> 7),
		Type:        Type((bmRequestType & RequestTypeTypeMask) >> 5),
		Recipient:   RecipientReserved,
		Request:     RequestUnrecognized,
		RequestType: bmRequestType,
		Code:        bRequest,
		Value:       value,
		Index:       index,
		Length:      length,
	}
	if rc := Recipient(bmRequestType & RequestTypeRecipientMask); rc <= RecipientOther {
		r.Recipient = rc
	}
	if r.Type == TypeStandard {
		if _, ok := requestNames[Request(bRequest)]; ok {
			r.Request = Request(bRequest)
		}
	}
	return r
}

// MarshalTo serializes the request to buf from its raw fields.
// Returns the number of bytes written (always 8 if buf is large enough).
func (r ControlRequest) MarshalTo(buf []byte) int {
	if len(buf) < SetupPacketSize {
		return 0
	}
	buf[0] = r.RequestType
	buf[1] = r.Code
	binary.LittleEndian.PutUint16(buf[2:4], r.Value)
	binary.LittleEndian.PutUint16(buf[4:6], r.Index)
	binary.LittleEndian.PutUint16(buf[6:8], r.Length)
	return SetupPacketSize
}

// Packet returns the 8-byte SETUP packet.
func (r ControlRequest) Packet() [SetupPacketSize]byte {
	var p [SetupPacketSize]byte
	r.MarshalTo(p[:])
	return p
}

// DescriptorType returns the descriptor type from the wValue high byte.
func (r ControlRequest) DescriptorType() uint8 { return uint8(r.Value >> 8) }

// DescriptorIndex returns the descriptor index from the wValue low byte.
func (r ControlRequest) DescriptorIndex() uint8 { return uint8(r.Value) }

// Is reports whether r is the standard request code addressed to
// recipient in direction dir.
func (r ControlRequest) Is(code Request, recipient Recipient, dir Direction) bool {
	return r.Type == TypeStandard && r.Request == code &&
		r.Recipient == recipient && r.Direction == dir
}

// String returns a human-readable representation of the request.
func (r ControlRequest) String() string {
	return fmt.Sprintf("SETUP[%s %s %s] %s(0x%02X) Value=0x%04X Index=0x%04X Length=%d",
		r.Direction, r.Type, r.Recipient, r.Request, r.Code, r.Value, r.Index, r.Length)
}

func standardRequest(dir Direction, recipient Recipient, code Request, value, index, length uint16) ControlRequest {
	return decodeRequest(uint8(dir)<<7|uint8(recipient), uint8(code), value, index, length)
}

// GetDescriptorRequest builds a GET_DESCRIPTOR request.
func GetDescriptorRequest(descType, descIndex uint8, length uint16) ControlRequest {
	return standardRequest(DirectionIn, RecipientDevice, RequestGetDescriptor,
		uint16(descType)<<8|uint16(descIndex), 0, length)
}

// GetStringRequest builds a GET_DESCRIPTOR request for a string.
func GetStringRequest(index uint8, langID, length uint16) ControlRequest {
	return standardRequest(DirectionIn, RecipientDevice, RequestGetDescriptor,
		uint16(DescriptorTypeString)<<8|uint16(index), langID, length)
}

// SetAddressRequest builds a SET_ADDRESS request.
func SetAddressRequest(address uint8) ControlRequest {
	return standardRequest(DirectionOut, RecipientDevice, RequestSetAddress, uint16(address), 0, 0)
}

// GetConfigurationRequest builds a GET_CONFIGURATION request.
func GetConfigurationRequest() ControlRequest {
	return standardRequest(DirectionIn, RecipientDevice, RequestGetConfiguration, 0, 0, 1)
}

// SetConfigurationRequest builds a SET_CONFIGURATION request.
func SetConfigurationRequest(value uint8) ControlRequest {
	return standardRequest(DirectionOut, RecipientDevice, RequestSetConfiguration, uint16(value), 0, 0)
}

// GetStatusRequest builds a device GET_STATUS request.
func GetStatusRequest() ControlRequest {
	return standardRequest(DirectionIn, RecipientDevice, RequestGetStatus, 0, 0, 2)
}
