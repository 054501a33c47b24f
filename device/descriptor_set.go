package device

import (
	"fmt"

	"github.com/bentwire/stm32f072-usb/pkg"
)

// DescriptorSet is everything the device answers GET_DESCRIPTOR with.
type DescriptorSet struct {
	Device DeviceDescriptor

	// Qualifier is nil for full-speed-only devices, which must answer a
	// qualifier request with STALL.
	Qualifier *DeviceQualifierDescriptor

	Configurations []Configuration

	// LangIDs is string descriptor zero. Strings[i] is string index i+1.
	LangIDs []uint16
	Strings []string
}

// DefaultDescriptorSet declares one configuration with a single vendor
// interface and the bulk endpoint 0x01 with 64-byte packets.
func DefaultDescriptorSet() DescriptorSet {
	return DescriptorSet{
		Device: NewDeviceDescriptor().
			WithManufacturerIndex(1).
			WithProductIndex(2),
		Configurations: []Configuration{{
			Descriptor: NewConfigurationDescriptor().
				WithConfigurationValue(1).
				WithAttributes(ConfigAttrBusPowered).
				WithMaxPower(50),
			Interfaces: []Interface{{
				Descriptor: NewInterfaceDescriptor(),
				Endpoints:  []EndpointDescriptor{NewEndpointDescriptor()},
			}},
		}},
		LangIDs: []uint16{LangIDUSEnglish},
		Strings: []string{"bentwire", "STM32F072 USB"},
	}
}

// Validate checks every configuration in the set.
func (s *DescriptorSet) Validate() error {
	if int(s.Device.NumConfigurations) != len(s.Configurations) {
		return fmt.Errorf("device declares %d configurations, have %d: %w",
			s.Device.NumConfigurations, len(s.Configurations), pkg.ErrInvalidParameter)
	}
	for _, c := range s.Configurations {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Configuration returns the configuration whose bConfigurationValue is
// value.
func (s *DescriptorSet) Configuration(value uint8) (Configuration, bool) {
	for _, c := range s.Configurations {
		if c.Descriptor.ConfigurationValue == value {
			return c, true
		}
	}
	return Configuration{}, false
}

// Lookup writes the descriptor selected by a GET_DESCRIPTOR wValue to
// buf and returns its length. Unknown types and indices return
// pkg.ErrInvalidParameter, a buf too small for the descriptor
// pkg.ErrBufferTooSmall. Lookup runs in the interrupt handler and does not
// allocate.
func (s *DescriptorSet) Lookup(typ, index uint8, buf []byte) (int, error) {
	var n int
	switch typ {
	case DescriptorTypeDevice:
		n = s.Device.MarshalTo(buf)
	case DescriptorTypeDeviceQualifier:
		if s.Qualifier == nil {
			return 0, pkg.ErrInvalidParameter
		}
		n = s.Qualifier.MarshalTo(buf)
	case DescriptorTypeConfiguration:
		if int(index) >= len(s.Configurations) {
			return 0, pkg.ErrInvalidParameter
		}
		n = s.Configurations[index].MarshalTo(buf)
	case DescriptorTypeString:
		switch {
		case index == 0:
			if len(s.LangIDs) == 0 {
				return 0, pkg.ErrInvalidParameter
			}
			n = LanguageDescriptorTo(buf, s.LangIDs...)
		case int(index) <= len(s.Strings):
			n = StringDescriptorTo(buf, s.Strings[index-1])
		default:
			return 0, pkg.ErrInvalidParameter
		}
	default:
		return 0, pkg.ErrInvalidParameter
	}
	if n == 0 {
		return 0, pkg.ErrBufferTooSmall
	}
	return n, nil
}
