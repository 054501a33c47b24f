package host

import (
	"context"
	"fmt"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// maxConfigurationSize bounds the configuration hierarchy read during
// enumeration.
const maxConfigurationSize = 512

// Enumerate runs the attach sequence of a common desktop host: a
// 64-byte device descriptor read at the default address, a second bus
// reset, SET_ADDRESS, the full device and configuration descriptors, the
// identifying strings and finally SET_CONFIGURATION of the first
// configuration.
func (h *Host) Enumerate(ctx context.Context) (*Device, error) {
	pkg.LogDebug(pkg.ComponentHost, "starting enumeration")
	h.Reset()

	var buf [maxConfigurationSize]byte
	n, err := h.ControlTransfer(ctx, DefaultAddress,
		device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 64), buf[:64])
	if err != nil {
		return nil, err
	}
	if n < 8 {
		return nil, fmt.Errorf("host: %d byte device descriptor: %w", n, ErrEnumerationFailed)
	}
	if mps := int(buf[7]); mps == 8 || mps == 16 || mps == 32 || mps == 64 {
		h.maxPacketSize0 = mps
	}
	pkg.LogDebug(pkg.ComponentHost, "got max packet size", "size", h.maxPacketSize0)

	h.Reset()

	address := h.allocateAddress()
	if address == 0 {
		return nil, ErrNoAddress
	}
	if _, err := h.ControlTransfer(ctx, DefaultAddress, device.SetAddressRequest(address), nil); err != nil {
		return nil, err
	}
	pkg.LogDebug(pkg.ComponentHost, "assigned address", "address", address)

	dev := &Device{address: address}

	n, err = h.ControlTransfer(ctx, address,
		device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, device.DeviceDescriptorSize),
		buf[:device.DeviceDescriptorSize])
	if err != nil {
		return nil, err
	}
	if err := device.ParseDeviceDescriptor(buf[:n], &dev.descriptor); err != nil {
		return nil, fmt.Errorf("host: %w: %w", ErrEnumerationFailed, err)
	}
	pkg.LogDebug(pkg.ComponentHost, "device descriptor",
		"vendorID", dev.descriptor.VendorID,
		"productID", dev.descriptor.ProductID,
		"class", dev.descriptor.DeviceClass)

	if err := h.readConfiguration(ctx, dev, buf[:]); err != nil {
		return nil, err
	}
	h.readStrings(ctx, dev, buf[:])

	if v := dev.configuration.Descriptor.ConfigurationValue; v > 0 {
		if _, err := h.ControlTransfer(ctx, address, device.SetConfigurationRequest(v), nil); err != nil {
			return nil, err
		}
		dev.configured = v
		pkg.LogDebug(pkg.ComponentHost, "configured", "configuration", v)
	}
	return dev, nil
}

// readConfiguration reads configuration 0: the 9-byte header for
// wTotalLength, then the whole hierarchy.
func (h *Host) readConfiguration(ctx context.Context, dev *Device, buf []byte) error {
	n, err := h.ControlTransfer(ctx, dev.address,
		device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, device.ConfigurationDescriptorSize),
		buf[:device.ConfigurationDescriptorSize])
	if err != nil {
		return err
	}
	var header device.ConfigurationDescriptor
	if err := device.ParseConfigurationDescriptor(buf[:n], &header); err != nil {
		return fmt.Errorf("host: %w: %w", ErrEnumerationFailed, err)
	}
	total := min(int(header.TotalLength), len(buf))

	n, err = h.ControlTransfer(ctx, dev.address,
		device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, uint16(total)), buf[:total])
	if err != nil {
		return err
	}
	if err := device.ParseConfiguration(buf[:n], &dev.configuration); err != nil {
		return fmt.Errorf("host: %w: %w", ErrEnumerationFailed, err)
	}
	pkg.LogDebug(pkg.ComponentHost, "configuration descriptor",
		"numInterfaces", len(dev.configuration.Interfaces),
		"configValue", dev.configuration.Descriptor.ConfigurationValue)
	return nil
}

// readStrings caches the manufacturer, product and serial strings in the
// first language the device lists. Failures are logged and skipped.
func (h *Host) readStrings(ctx context.Context, dev *Device, buf []byte) {
	n, err := h.ControlTransfer(ctx, dev.address, device.GetStringRequest(0, 0, 255), buf[:255])
	if err != nil || n < 4 {
		pkg.LogDebug(pkg.ComponentHost, "no language IDs", "error", err)
		return
	}
	langID := uint16(buf[2]) | uint16(buf[3])<<8

	for _, index := range []uint8{
		dev.descriptor.ManufacturerIndex,
		dev.descriptor.ProductIndex,
		dev.descriptor.SerialNumberIndex,
	} {
		if index == 0 || int(index) >= len(dev.strings) {
			continue
		}
		n, err := h.ControlTransfer(ctx, dev.address, device.GetStringRequest(index, langID, 255), buf[:255])
		if err != nil {
			pkg.LogDebug(pkg.ComponentHost, "string descriptor read failed", "index", index, "error", err)
			continue
		}
		s, err := device.ParseStringDescriptor(buf[:n])
		if err != nil {
			continue
		}
		dev.strings[index] = s
	}
}
