package device

import (
	"errors"
	"testing"

	"github.com/bentwire/stm32f072-usb/pkg"
)

func TestParseControlRequest(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		direction Direction
		typ       Type
		recipient Recipient
		request   Request
		value     uint16
		index     uint16
		length    uint16
	}{
		{
			name:      "get device descriptor",
			data:      []byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x40, 0x00},
			direction: DirectionIn, typ: TypeStandard, recipient: RecipientDevice,
			request: RequestGetDescriptor, value: 0x0100, length: 64,
		},
		{
			name:      "set address",
			data:      []byte{0x00, 0x05, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00},
			direction: DirectionOut, typ: TypeStandard, recipient: RecipientDevice,
			request: RequestSetAddress, value: 7,
		},
		{
			name:      "clear endpoint halt",
			data:      []byte{0x02, 0x01, 0x00, 0x00, 0x81, 0x00, 0x00, 0x00},
			direction: DirectionOut, typ: TypeStandard, recipient: RecipientEndpoint,
			request: RequestClearFeature, index: 0x81,
		},
		{
			name:      "class request is unrecognized",
			data:      []byte{0x21, 0x09, 0x00, 0x02, 0x00, 0x00, 0x08, 0x00},
			direction: DirectionOut, typ: TypeClass, recipient: RecipientInterface,
			request: RequestUnrecognized, value: 0x0200, length: 8,
		},
		{
			name:      "reserved standard code",
			data:      []byte{0x80, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
			direction: DirectionIn, typ: TypeStandard, recipient: RecipientDevice,
			request: RequestUnrecognized,
		},
		{
			name:      "reserved type and recipient",
			data:      []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF},
			direction: DirectionIn, typ: TypeReserved, recipient: RecipientReserved,
			request: RequestUnrecognized, value: 0xFFFF, index: 0xFFFF, length: 0xFFFF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseControlRequest(tt.data)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if r.Direction != tt.direction {
				t.Errorf("Direction = %v, want %v", r.Direction, tt.direction)
			}
			if r.Type != tt.typ {
				t.Errorf("Type = %v, want %v", r.Type, tt.typ)
			}
			if r.Recipient != tt.recipient {
				t.Errorf("Recipient = %v, want %v", r.Recipient, tt.recipient)
			}
			if r.Request != tt.request {
				t.Errorf("Request = %v, want %v", r.Request, tt.request)
			}
			if r.Value != tt.value || r.Index != tt.index || r.Length != tt.length {
				t.Errorf("fields = %#x/%#x/%d, want %#x/%#x/%d",
					r.Value, r.Index, r.Length, tt.value, tt.index, tt.length)
			}
			if p := r.Packet(); string(p[:]) != string(tt.data) {
				t.Errorf("Packet = % X, want % X", p, tt.data)
			}
		})
	}
}

// Every bmRequestType decodes without error and re-encodes unchanged.
func TestParseControlRequest_Total(t *testing.T) {
	for rt := 0; rt < 256; rt++ {
		for code := 0; code < 256; code += 17 {
			data := []byte{uint8(rt), uint8(code), 0x34, 0x12, 0, 0, 0, 0}
			r, err := ParseControlRequest(data)
			if err != nil {
				t.Fatalf("%#02x/%#02x: %v", rt, code, err)
			}
			if r.RequestType != uint8(rt) || r.Code != uint8(code) {
				t.Fatalf("%#02x/%#02x: raw fields lost", rt, code)
			}
			if rt&0x1F > 3 && r.Recipient != RecipientReserved {
				t.Errorf("%#02x: recipient %v, want Reserved", rt, r.Recipient)
			}
			if r.Type != TypeStandard && r.Request != RequestUnrecognized {
				t.Errorf("%#02x/%#02x: non-standard decoded as %v", rt, code, r.Request)
			}
		}
	}
}

func TestParseControlRequest_Short(t *testing.T) {
	_, err := ParseControlRequest([]byte{0x80, 0x06, 0x00})
	if !errors.Is(err, pkg.ErrSetupPacketTooShort) {
		t.Errorf("got %v, want ErrSetupPacketTooShort", err)
	}
}

func TestControlRequest_Builders(t *testing.T) {
	tests := []struct {
		name string
		req  ControlRequest
		want [8]byte
	}{
		{"GetDescriptor", GetDescriptorRequest(DescriptorTypeDevice, 0, 18),
			[8]byte{0x80, 0x06, 0x00, 0x01, 0x00, 0x00, 0x12, 0x00}},
		{"GetString", GetStringRequest(2, LangIDUSEnglish, 255),
			[8]byte{0x80, 0x06, 0x02, 0x03, 0x09, 0x04, 0xFF, 0x00}},
		{"SetAddress", SetAddressRequest(7),
			[8]byte{0x00, 0x05, 0x07, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"GetConfiguration", GetConfigurationRequest(),
			[8]byte{0x80, 0x08, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00}},
		{"SetConfiguration", SetConfigurationRequest(1),
			[8]byte{0x00, 0x09, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}},
		{"GetStatus", GetStatusRequest(),
			[8]byte{0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.req.Packet(); got != tt.want {
				t.Errorf("Packet = % X, want % X", got, tt.want)
			}
		})
	}
}

func TestControlRequest_Is(t *testing.T) {
	r := GetDescriptorRequest(DescriptorTypeConfiguration, 0, 9)
	if !r.Is(RequestGetDescriptor, RecipientDevice, DirectionIn) {
		t.Error("expected GetDescriptor/Device/IN")
	}
	if r.Is(RequestGetDescriptor, RecipientInterface, DirectionIn) {
		t.Error("recipient should not match")
	}
	if r.DescriptorType() != DescriptorTypeConfiguration || r.DescriptorIndex() != 0 {
		t.Errorf("descriptor selector = %#x/%d", r.DescriptorType(), r.DescriptorIndex())
	}
}

func TestControlRequest_String(t *testing.T) {
	got := GetDescriptorRequest(DescriptorTypeDevice, 0, 64).String()
	want := "SETUP[IN Standard Device] GetDescriptor(0x06) Value=0x0100 Index=0x0000 Length=64"
	if got != want {
		t.Errorf("String\n got %q\nwant %q", got, want)
	}
}
