package device

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/bentwire/stm32f072-usb/pkg"
)

// USB descriptor types (USB 2.0 Table 9-5).
const (
	DescriptorTypeDevice           = 0x01
	DescriptorTypeConfiguration    = 0x02
	DescriptorTypeString           = 0x03
	DescriptorTypeInterface        = 0x04
	DescriptorTypeEndpoint         = 0x05
	DescriptorTypeDeviceQualifier  = 0x06
	DescriptorTypeOtherSpeedConfig = 0x07
	DescriptorTypeInterfacePower   = 0x08
	DescriptorTypeBOS              = 0x0F
)

// Descriptor record sizes.
const (
	DeviceDescriptorSize          = 18
	DeviceQualifierDescriptorSize = 10
	ConfigurationDescriptorSize   = 9
	InterfaceDescriptorSize       = 9
	EndpointDescriptorSize        = 7
)

// Class codes used by the default descriptors.
const (
	ClassPerInterface = 0x00 // Class defined at interface level
	ClassVendor       = 0xFF // Vendor specific
)

// Configuration attribute bits.
const (
	ConfigAttrBusPowered   = 0x80 // Reserved, always set
	ConfigAttrSelfPowered  = 0x40
	ConfigAttrRemoteWakeup = 0x20
)

// Endpoint attribute transfer types.
const (
	EndpointAttrControl     = 0x00
	EndpointAttrIsochronous = 0x01
	EndpointAttrBulk        = 0x02
	EndpointAttrInterrupt   = 0x03
	EndpointAttrTypeMask    = 0x03
)

// Endpoint address direction bit.
const EndpointDirIn = 0x80

// LangIDUSEnglish is the language ID for US English.
const LangIDUSEnglish = 0x0409

// DeviceDescriptor is a USB device descriptor. Values are immutable: the
// With methods return a modified copy.
type DeviceDescriptor struct {
	USBVersion        uint16 // bcdUSB
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	VendorID          uint16
	ProductID         uint16
	DeviceVersion     uint16 // bcdDevice
	ManufacturerIndex uint8
	ProductIndex      uint8
	SerialNumberIndex uint8
	NumConfigurations uint8
}

// NewDeviceDescriptor returns a USB 2.0 device descriptor with class
// defined per interface, a 64-byte EP0, VID/PID 0xFFFF and one
// configuration.
func NewDeviceDescriptor() DeviceDescriptor {
	return DeviceDescriptor{
		USBVersion:        0x0200,
		DeviceClass:       ClassPerInterface,
		MaxPacketSize0:    MaxPacketSize0,
		VendorID:          0xFFFF,
		ProductID:         0xFFFF,
		DeviceVersion:     0x0200,
		NumConfigurations: 1,
	}
}

// WithUSBVersion returns a copy with bcdUSB set to v.
func (d DeviceDescriptor) WithUSBVersion(v uint16) DeviceDescriptor { d.USBVersion = v; return d }

// WithDeviceClass returns a copy with bDeviceClass set to v.
func (d DeviceDescriptor) WithDeviceClass(v uint8) DeviceDescriptor { d.DeviceClass = v; return d }

// WithDeviceSubClass returns a copy with bDeviceSubClass set to v.
func (d DeviceDescriptor) WithDeviceSubClass(v uint8) DeviceDescriptor {
	d.DeviceSubClass = v
	return d
}

// WithDeviceProtocol returns a copy with bDeviceProtocol set to v.
func (d DeviceDescriptor) WithDeviceProtocol(v uint8) DeviceDescriptor {
	d.DeviceProtocol = v
	return d
}

// WithMaxPacketSize0 returns a copy with bMaxPacketSize0 set to v.
func (d DeviceDescriptor) WithMaxPacketSize0(v uint8) DeviceDescriptor {
	d.MaxPacketSize0 = v
	return d
}

// WithVendorID returns a copy with idVendor set to v.
func (d DeviceDescriptor) WithVendorID(v uint16) DeviceDescriptor { d.VendorID = v; return d }

// WithProductID returns a copy with idProduct set to v.
func (d DeviceDescriptor) WithProductID(v uint16) DeviceDescriptor { d.ProductID = v; return d }

// WithDeviceVersion returns a copy with bcdDevice set to v.
func (d DeviceDescriptor) WithDeviceVersion(v uint16) DeviceDescriptor { d.DeviceVersion = v; return d }

// WithManufacturerIndex returns a copy with iManufacturer set to v.
func (d DeviceDescriptor) WithManufacturerIndex(v uint8) DeviceDescriptor {
	d.ManufacturerIndex = v
	return d
}

// WithProductIndex returns a copy with iProduct set to v.
func (d DeviceDescriptor) WithProductIndex(v uint8) DeviceDescriptor { d.ProductIndex = v; return d }

// WithSerialNumberIndex returns a copy with iSerialNumber set to v.
func (d DeviceDescriptor) WithSerialNumberIndex(v uint8) DeviceDescriptor {
	d.SerialNumberIndex = v
	return d
}

// WithNumConfigurations returns a copy with bNumConfigurations set to v.
func (d DeviceDescriptor) WithNumConfigurations(v uint8) DeviceDescriptor {
	d.NumConfigurations = v
	return d
}

// MarshalTo serializes the device descriptor to buf.
// Returns the number of bytes written (0 if buf is too small).
func (d DeviceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < DeviceDescriptorSize {
		return 0
	}
	buf[0] = DeviceDescriptorSize
	buf[1] = DescriptorTypeDevice
	binary.LittleEndian.PutUint16(buf[2:4], d.USBVersion)
	buf[4] = d.DeviceClass
	buf[5] = d.DeviceSubClass
	buf[6] = d.DeviceProtocol
	buf[7] = d.MaxPacketSize0
	binary.LittleEndian.PutUint16(buf[8:10], d.VendorID)
	binary.LittleEndian.PutUint16(buf[10:12], d.ProductID)
	binary.LittleEndian.PutUint16(buf[12:14], d.DeviceVersion)
	buf[14] = d.ManufacturerIndex
	buf[15] = d.ProductIndex
	buf[16] = d.SerialNumberIndex
	buf[17] = d.NumConfigurations
	return DeviceDescriptorSize
}

// Bytes returns the packed descriptor.
func (d DeviceDescriptor) Bytes() []byte {
	buf := make([]byte, DeviceDescriptorSize)
	d.MarshalTo(buf)
	return buf
}

// ParseDeviceDescriptor parses a device descriptor from data into out.
func ParseDeviceDescriptor(data []byte, out *DeviceDescriptor) error {
	if err := checkHeader(data, DeviceDescriptorSize, DescriptorTypeDevice); err != nil {
		return err
	}
	out.USBVersion = binary.LittleEndian.Uint16(data[2:4])
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.VendorID = binary.LittleEndian.Uint16(data[8:10])
	out.ProductID = binary.LittleEndian.Uint16(data[10:12])
	out.DeviceVersion = binary.LittleEndian.Uint16(data[12:14])
	out.ManufacturerIndex = data[14]
	out.ProductIndex = data[15]
	out.SerialNumberIndex = data[16]
	out.NumConfigurations = data[17]
	return nil
}

// DeviceQualifierDescriptor describes how a high-speed capable device
// would operate at the other speed.
type DeviceQualifierDescriptor struct {
	USBVersion        uint16
	DeviceClass       uint8
	DeviceSubClass    uint8
	DeviceProtocol    uint8
	MaxPacketSize0    uint8
	NumConfigurations uint8
}

// NewDeviceQualifier returns a qualifier matching NewDeviceDescriptor.
func NewDeviceQualifier() DeviceQualifierDescriptor {
	return DeviceQualifierDescriptor{
		USBVersion:        0x0200,
		MaxPacketSize0:    MaxPacketSize0,
		NumConfigurations: 1,
	}
}

// WithUSBVersion returns a copy with bcdUSB set to v.
func (q DeviceQualifierDescriptor) WithUSBVersion(v uint16) DeviceQualifierDescriptor {
	q.USBVersion = v
	return q
}

// WithNumConfigurations returns a copy with bNumConfigurations set to v.
func (q DeviceQualifierDescriptor) WithNumConfigurations(v uint8) DeviceQualifierDescriptor {
	q.NumConfigurations = v
	return q
}

// MarshalTo serializes the qualifier to buf. The reserved byte is zero.
func (q DeviceQualifierDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < DeviceQualifierDescriptorSize {
		return 0
	}
	buf[0] = DeviceQualifierDescriptorSize
	buf[1] = DescriptorTypeDeviceQualifier
	binary.LittleEndian.PutUint16(buf[2:4], q.USBVersion)
	buf[4] = q.DeviceClass
	buf[5] = q.DeviceSubClass
	buf[6] = q.DeviceProtocol
	buf[7] = q.MaxPacketSize0
	buf[8] = q.NumConfigurations
	buf[9] = 0
	return DeviceQualifierDescriptorSize
}

// ParseDeviceQualifier parses a device qualifier descriptor from data into out.
func ParseDeviceQualifier(data []byte, out *DeviceQualifierDescriptor) error {
	if err := checkHeader(data, DeviceQualifierDescriptorSize, DescriptorTypeDeviceQualifier); err != nil {
		return err
	}
	out.USBVersion = binary.LittleEndian.Uint16(data[2:4])
	out.DeviceClass = data[4]
	out.DeviceSubClass = data[5]
	out.DeviceProtocol = data[6]
	out.MaxPacketSize0 = data[7]
	out.NumConfigurations = data[8]
	return nil
}

// ConfigurationDescriptor is the 9-byte configuration record. When it is
// part of a Configuration, TotalLength and NumInterfaces are computed
// from the aggregate and the stored values are only checked by Validate.
type ConfigurationDescriptor struct {
	TotalLength        uint16 // wTotalLength
	NumInterfaces      uint8
	ConfigurationValue uint8
	ConfigurationIndex uint8
	Attributes         uint8
	MaxPower           uint8 // 2 mA units
}

// NewConfigurationDescriptor returns an empty configuration record.
func NewConfigurationDescriptor() ConfigurationDescriptor {
	return ConfigurationDescriptor{}
}

// WithTotalLength returns a copy with wTotalLength set to v.
func (c ConfigurationDescriptor) WithTotalLength(v uint16) ConfigurationDescriptor {
	c.TotalLength = v
	return c
}

// WithNumInterfaces returns a copy with bNumInterfaces set to v.
func (c ConfigurationDescriptor) WithNumInterfaces(v uint8) ConfigurationDescriptor {
	c.NumInterfaces = v
	return c
}

// WithConfigurationValue returns a copy with bConfigurationValue set to v.
func (c ConfigurationDescriptor) WithConfigurationValue(v uint8) ConfigurationDescriptor {
	c.ConfigurationValue = v
	return c
}

// WithConfigurationIndex returns a copy with iConfiguration set to v.
func (c ConfigurationDescriptor) WithConfigurationIndex(v uint8) ConfigurationDescriptor {
	c.ConfigurationIndex = v
	return c
}

// WithAttributes returns a copy with bmAttributes set to v.
func (c ConfigurationDescriptor) WithAttributes(v uint8) ConfigurationDescriptor {
	c.Attributes = v
	return c
}

// WithMaxPower returns a copy with bMaxPower, in 2 mA units, set to v.
func (c ConfigurationDescriptor) WithMaxPower(v uint8) ConfigurationDescriptor {
	c.MaxPower = v
	return c
}

// MarshalTo serializes the configuration record to buf.
func (c ConfigurationDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < ConfigurationDescriptorSize {
		return 0
	}
	buf[0] = ConfigurationDescriptorSize
	buf[1] = DescriptorTypeConfiguration
	binary.LittleEndian.PutUint16(buf[2:4], c.TotalLength)
	buf[4] = c.NumInterfaces
	buf[5] = c.ConfigurationValue
	buf[6] = c.ConfigurationIndex
	buf[7] = c.Attributes
	buf[8] = c.MaxPower
	return ConfigurationDescriptorSize
}

// ParseConfigurationDescriptor parses a configuration record from data into out.
func ParseConfigurationDescriptor(data []byte, out *ConfigurationDescriptor) error {
	if err := checkHeader(data, ConfigurationDescriptorSize, DescriptorTypeConfiguration); err != nil {
		return err
	}
	out.TotalLength = binary.LittleEndian.Uint16(data[2:4])
	out.NumInterfaces = data[4]
	out.ConfigurationValue = data[5]
	out.ConfigurationIndex = data[6]
	out.Attributes = data[7]
	out.MaxPower = data[8]
	return nil
}

// InterfaceDescriptor is the 9-byte interface record.
type InterfaceDescriptor struct {
	InterfaceNumber   uint8
	AlternateSetting  uint8
	NumEndpoints      uint8
	InterfaceClass    uint8
	InterfaceSubClass uint8
	InterfaceProtocol uint8
	InterfaceIndex    uint8
}

// NewInterfaceDescriptor returns a vendor-specific interface with one
// endpoint.
func NewInterfaceDescriptor() InterfaceDescriptor {
	return InterfaceDescriptor{
		NumEndpoints:      1,
		InterfaceClass:    ClassVendor,
		InterfaceSubClass: 0xFF,
		InterfaceProtocol: 0xFF,
	}
}

// WithInterfaceNumber returns a copy with bInterfaceNumber set to v.
func (i InterfaceDescriptor) WithInterfaceNumber(v uint8) InterfaceDescriptor {
	i.InterfaceNumber = v
	return i
}

// WithAlternateSetting returns a copy with bAlternateSetting set to v.
func (i InterfaceDescriptor) WithAlternateSetting(v uint8) InterfaceDescriptor {
	i.AlternateSetting = v
	return i
}

// WithNumEndpoints returns a copy with bNumEndpoints set to v.
func (i InterfaceDescriptor) WithNumEndpoints(v uint8) InterfaceDescriptor {
	i.NumEndpoints = v
	return i
}

// WithClass returns a copy with the interface class triple set.
func (i InterfaceDescriptor) WithClass(class, subClass, protocol uint8) InterfaceDescriptor {
	i.InterfaceClass = class
	i.InterfaceSubClass = subClass
	i.InterfaceProtocol = protocol
	return i
}

// WithInterfaceIndex returns a copy with iInterface set to v.
func (i InterfaceDescriptor) WithInterfaceIndex(v uint8) InterfaceDescriptor {
	i.InterfaceIndex = v
	return i
}

// MarshalTo serializes the interface record to buf.
func (i InterfaceDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < InterfaceDescriptorSize {
		return 0
	}
	buf[0] = InterfaceDescriptorSize
	buf[1] = DescriptorTypeInterface
	buf[2] = i.InterfaceNumber
	buf[3] = i.AlternateSetting
	buf[4] = i.NumEndpoints
	buf[5] = i.InterfaceClass
	buf[6] = i.InterfaceSubClass
	buf[7] = i.InterfaceProtocol
	buf[8] = i.InterfaceIndex
	return InterfaceDescriptorSize
}

// ParseInterfaceDescriptor parses an interface record from data into out.
func ParseInterfaceDescriptor(data []byte, out *InterfaceDescriptor) error {
	if err := checkHeader(data, InterfaceDescriptorSize, DescriptorTypeInterface); err != nil {
		return err
	}
	out.InterfaceNumber = data[2]
	out.AlternateSetting = data[3]
	out.NumEndpoints = data[4]
	out.InterfaceClass = data[5]
	out.InterfaceSubClass = data[6]
	out.InterfaceProtocol = data[7]
	out.InterfaceIndex = data[8]
	return nil
}

// EndpointDescriptor is the 7-byte endpoint record.
type EndpointDescriptor struct {
	EndpointAddress uint8 // Number plus EndpointDirIn for IN
	Attributes      uint8
	MaxPacketSize   uint16
	Interval        uint8
}

// NewEndpointDescriptor returns endpoint 1 OUT, bulk, 64-byte packets.
func NewEndpointDescriptor() EndpointDescriptor {
	return EndpointDescriptor{
		EndpointAddress: 0x01,
		Attributes:      EndpointAttrBulk,
		MaxPacketSize:   64,
		Interval:        10, // Only meaningful for interrupt and isochronous
	}
}

// WithEndpointAddress returns a copy with bEndpointAddress set to v.
func (e EndpointDescriptor) WithEndpointAddress(v uint8) EndpointDescriptor {
	e.EndpointAddress = v
	return e
}

// WithAttributes returns a copy with bmAttributes set to v.
func (e EndpointDescriptor) WithAttributes(v uint8) EndpointDescriptor {
	e.Attributes = v
	return e
}

// WithMaxPacketSize returns a copy with wMaxPacketSize set to v.
func (e EndpointDescriptor) WithMaxPacketSize(v uint16) EndpointDescriptor {
	e.MaxPacketSize = v
	return e
}

// WithInterval returns a copy with bInterval set to v.
func (e EndpointDescriptor) WithInterval(v uint8) EndpointDescriptor {
	e.Interval = v
	return e
}

// Number returns the endpoint number without the direction bit.
func (e EndpointDescriptor) Number() uint8 { return e.EndpointAddress & 0x0F }

// IsIn reports whether the endpoint is device-to-host.
func (e EndpointDescriptor) IsIn() bool { return e.EndpointAddress&EndpointDirIn != 0 }

// TransferType returns the transfer type bits of Attributes.
func (e EndpointDescriptor) TransferType() uint8 { return e.Attributes & EndpointAttrTypeMask }

// MarshalTo serializes the endpoint record to buf.
func (e EndpointDescriptor) MarshalTo(buf []byte) int {
	if len(buf) < EndpointDescriptorSize {
		return 0
	}
	buf[0] = EndpointDescriptorSize
	buf[1] = DescriptorTypeEndpoint
	buf[2] = e.EndpointAddress
	buf[3] = e.Attributes
	binary.LittleEndian.PutUint16(buf[4:6], e.MaxPacketSize)
	buf[6] = e.Interval
	return EndpointDescriptorSize
}

// ParseEndpointDescriptor parses an endpoint record from data into out.
func ParseEndpointDescriptor(data []byte, out *EndpointDescriptor) error {
	if err := checkHeader(data, EndpointDescriptorSize, DescriptorTypeEndpoint); err != nil {
		return err
	}
	out.EndpointAddress = data[2]
	out.Attributes = data[3]
	out.MaxPacketSize = binary.LittleEndian.Uint16(data[4:6])
	out.Interval = data[6]
	return nil
}

func checkHeader(data []byte, size int, typ uint8) error {
	if len(data) < size || int(data[0]) < size {
		return fmt.Errorf("descriptor type %#02x: %d bytes: %w", typ, len(data), pkg.ErrDescriptorTooShort)
	}
	if data[1] != typ {
		return fmt.Errorf("descriptor type %#02x, want %#02x: %w", data[1], typ, pkg.ErrDescriptorTypeMismatch)
	}
	return nil
}

// Interface aggregates an interface record with its endpoints.
type Interface struct {
	Descriptor InterfaceDescriptor
	Endpoints  []EndpointDescriptor
}

// Size returns the byte count of the interface record plus its endpoints.
func (i Interface) Size() int {
	return InterfaceDescriptorSize + len(i.Endpoints)*EndpointDescriptorSize
}

// Configuration aggregates a configuration record with its interfaces.
type Configuration struct {
	Descriptor ConfigurationDescriptor
	Interfaces []Interface
}

// TotalLength returns the byte count of the configuration record plus
// every interface and endpoint record it aggregates.
func (c Configuration) TotalLength() int {
	n := ConfigurationDescriptorSize
	for _, i := range c.Interfaces {
		n += i.Size()
	}
	return n
}

// Validate reports declared counts that disagree with the aggregate. Zero
// declared values mean "compute from the aggregate" and are accepted.
func (c Configuration) Validate() error {
	total := c.TotalLength()
	if total > 0xFFFF {
		return fmt.Errorf("configuration %d: %d bytes: %w",
			c.Descriptor.ConfigurationValue, total, pkg.ErrTotalLength)
	}
	if d := c.Descriptor.TotalLength; d != 0 && int(d) != total {
		return fmt.Errorf("configuration %d: declared %d, records %d: %w",
			c.Descriptor.ConfigurationValue, d, total, pkg.ErrTotalLength)
	}
	if d := c.Descriptor.NumInterfaces; d != 0 && int(d) != len(c.Interfaces) {
		return fmt.Errorf("configuration %d: declared %d interfaces, have %d: %w",
			c.Descriptor.ConfigurationValue, d, len(c.Interfaces), pkg.ErrInvalidParameter)
	}
	for _, i := range c.Interfaces {
		if int(i.Descriptor.NumEndpoints) != len(i.Endpoints) {
			return fmt.Errorf("interface %d: declared %d endpoints, have %d: %w",
				i.Descriptor.InterfaceNumber, i.Descriptor.NumEndpoints, len(i.Endpoints), pkg.ErrInvalidParameter)
		}
	}
	return nil
}

// MarshalTo writes the configuration record followed by every interface
// and its endpoints. wTotalLength, bNumInterfaces and bNumEndpoints are
// taken from the aggregate. Returns 0 if buf is too small.
func (c Configuration) MarshalTo(buf []byte) int {
	total := c.TotalLength()
	if len(buf) < total {
		return 0
	}
	cd := c.Descriptor.
		WithTotalLength(uint16(total)).
		WithNumInterfaces(uint8(len(c.Interfaces)))
	n := cd.MarshalTo(buf)
	for _, i := range c.Interfaces {
		n += i.Descriptor.WithNumEndpoints(uint8(len(i.Endpoints))).MarshalTo(buf[n:])
		for _, e := range i.Endpoints {
			n += e.MarshalTo(buf[n:])
		}
	}
	return n
}

// Bytes returns the packed configuration hierarchy.
func (c Configuration) Bytes() []byte {
	buf := make([]byte, c.TotalLength())
	c.MarshalTo(buf)
	return buf
}

// ParseConfiguration parses a full configuration hierarchy from data.
// Records of other types (class-specific) are skipped.
func ParseConfiguration(data []byte, out *Configuration) error {
	if err := ParseConfigurationDescriptor(data, &out.Descriptor); err != nil {
		return err
	}
	total := int(out.Descriptor.TotalLength)
	if len(data) < total {
		return fmt.Errorf("configuration: %d of %d bytes: %w", len(data), total, pkg.ErrDescriptorTooShort)
	}
	out.Interfaces = out.Interfaces[:0]
	for off := ConfigurationDescriptorSize; off < total; {
		rec := data[off:total]
		if len(rec) < 2 || rec[0] < 2 || int(rec[0]) > len(rec) {
			return fmt.Errorf("configuration: record at %d: %w", off, pkg.ErrDescriptorTooShort)
		}
		switch rec[1] {
		case DescriptorTypeInterface:
			var i Interface
			if err := ParseInterfaceDescriptor(rec, &i.Descriptor); err != nil {
				return err
			}
			out.Interfaces = append(out.Interfaces, i)
		case DescriptorTypeEndpoint:
			if len(out.Interfaces) == 0 {
				return fmt.Errorf("configuration: endpoint before interface: %w", pkg.ErrDescriptorTypeMismatch)
			}
			var e EndpointDescriptor
			if err := ParseEndpointDescriptor(rec, &e); err != nil {
				return err
			}
			last := &out.Interfaces[len(out.Interfaces)-1]
			last.Endpoints = append(last.Endpoints, e)
		}
		off += int(rec[0])
	}
	return nil
}

// maxStringUnits is the most UTF-16 code units a string descriptor can
// hold with a one-byte bLength.
const maxStringUnits = 126

// StringDescriptorTo writes a USB string descriptor encoding s as
// UTF-16LE to buf. Returns the number of bytes written, or 0 if buf is
// too small. Strings longer than 126 code units are truncated and runes
// outside the basic multilingual plane are replaced with U+FFFD.
func StringDescriptorTo(buf []byte, s string) int {
	units := min(utf8.RuneCountInString(s), maxStringUnits)
	length := 2 + units*2
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i := 0; i < units; i++ {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r > 0xFFFF {
			r = utf8.RuneError
		}
		binary.LittleEndian.PutUint16(buf[2+i*2:], uint16(r))
	}
	return length
}

// LanguageDescriptorTo writes string descriptor zero, the list of
// supported language IDs, to buf. IDs past the 126th are dropped.
func LanguageDescriptorTo(buf []byte, langIDs ...uint16) int {
	if len(langIDs) > maxStringUnits {
		langIDs = langIDs[:maxStringUnits]
	}
	length := 2 + len(langIDs)*2
	if len(buf) < length {
		return 0
	}
	buf[0] = uint8(length)
	buf[1] = DescriptorTypeString
	for i, id := range langIDs {
		binary.LittleEndian.PutUint16(buf[2+i*2:], id)
	}
	return length
}

// ParseStringDescriptor decodes a UTF-16LE string descriptor.
func ParseStringDescriptor(data []byte) (string, error) {
	if err := checkHeader(data, 2, DescriptorTypeString); err != nil {
		return "", err
	}
	n := int(data[0])
	if n > len(data) {
		return "", fmt.Errorf("string descriptor: %d of %d bytes: %w", len(data), n, pkg.ErrDescriptorTooShort)
	}
	runes := make([]rune, 0, (n-2)/2)
	for i := 2; i+1 < n; i += 2 {
		runes = append(runes, rune(binary.LittleEndian.Uint16(data[i:])))
	}
	return string(runes), nil
}
