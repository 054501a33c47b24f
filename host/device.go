package host

import (
	"fmt"
	"strings"

	"github.com/bentwire/stm32f072-usb/device"
)

// MaxStringsPerDevice bounds the string descriptor cache.
const MaxStringsPerDevice = 16

// Device is an enumerated device as the host sees it.
type Device struct {
	address       uint8
	descriptor    device.DeviceDescriptor
	configuration device.Configuration
	configured    uint8

	strings [MaxStringsPerDevice]string
}

// Address returns the assigned function address.
func (d *Device) Address() uint8 { return d.address }

// Descriptor returns the device descriptor.
func (d *Device) Descriptor() device.DeviceDescriptor { return d.descriptor }

// Configuration returns the first configuration hierarchy.
func (d *Device) Configuration() device.Configuration { return d.configuration }

// ConfigurationValue returns the selected configuration, 0 if none.
func (d *Device) ConfigurationValue() uint8 { return d.configured }

// String returns the cached string descriptor at index, or "".
func (d *Device) String(index uint8) string {
	if int(index) >= len(d.strings) {
		return ""
	}
	return d.strings[index]
}

// Manufacturer returns the manufacturer string.
func (d *Device) Manufacturer() string { return d.String(d.descriptor.ManufacturerIndex) }

// Product returns the product string.
func (d *Device) Product() string { return d.String(d.descriptor.ProductIndex) }

// SerialNumber returns the serial number string.
func (d *Device) SerialNumber() string { return d.String(d.descriptor.SerialNumberIndex) }

// Summary renders the device in the manner of lsusb -v. vendor and
// product are names from an ID database and are omitted when empty.
func (d *Device) Summary(vendor, product string) string {
	var b strings.Builder
	dd := d.descriptor
	fmt.Fprintf(&b, "Device %03d: ID %04x:%04x", d.address, dd.VendorID, dd.ProductID)
	if vendor != "" {
		fmt.Fprintf(&b, " %s", vendor)
	}
	if product != "" {
		fmt.Fprintf(&b, " %s", product)
	}
	b.WriteByte('\n')
	fmt.Fprintf(&b, "  bcdUSB          %x.%02x\n", dd.USBVersion>>8, dd.USBVersion&0xFF)
	fmt.Fprintf(&b, "  bDeviceClass    %d\n", dd.DeviceClass)
	fmt.Fprintf(&b, "  bMaxPacketSize0 %d\n", dd.MaxPacketSize0)
	fmt.Fprintf(&b, "  iManufacturer   %d %s\n", dd.ManufacturerIndex, d.Manufacturer())
	fmt.Fprintf(&b, "  iProduct        %d %s\n", dd.ProductIndex, d.Product())
	fmt.Fprintf(&b, "  iSerial         %d %s\n", dd.SerialNumberIndex, d.SerialNumber())

	c := d.configuration
	fmt.Fprintf(&b, "  Configuration %d: wTotalLength %d, %d interface(s), MaxPower %dmA\n",
		c.Descriptor.ConfigurationValue, c.TotalLength(), len(c.Interfaces), int(c.Descriptor.MaxPower)*2)
	for _, i := range c.Interfaces {
		id := i.Descriptor
		fmt.Fprintf(&b, "    Interface %d alt %d: class %02x/%02x/%02x\n",
			id.InterfaceNumber, id.AlternateSetting, id.InterfaceClass, id.InterfaceSubClass, id.InterfaceProtocol)
		for _, e := range i.Endpoints {
			dir := "OUT"
			if e.IsIn() {
				dir = "IN"
			}
			fmt.Fprintf(&b, "      Endpoint 0x%02x %s %s, %d bytes\n",
				e.EndpointAddress, dir, transferTypeName(e.TransferType()), e.MaxPacketSize)
		}
	}
	return b.String()
}

func transferTypeName(t uint8) string {
	switch t {
	case device.EndpointAttrControl:
		return "Control"
	case device.EndpointAttrIsochronous:
		return "Isochronous"
	case device.EndpointAttrBulk:
		return "Bulk"
	default:
		return "Interrupt"
	}
}
