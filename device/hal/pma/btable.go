package pma

import "github.com/bentwire/stm32f072-usb/pkg"

// EntrySize is the size in bytes of one buffer descriptor table entry.
const EntrySize = 8

// Buffer descriptor field offsets within an entry.
const (
	fieldAddrTX  = 0
	fieldCountTX = 2
	fieldAddrRX  = 4
	fieldCountRX = 6
)

// COUNT_RX fields.
const (
	CountRXMask  = 0x03FF  // Bytes received
	CountRXBlock = 1 << 15 // BL_SIZE: 32-byte blocks
	CountRXShift = 10      // NUM_BLOCK position

	// Capacity64 declares a 64-byte receive buffer (one 32-byte block
	// beyond the first, BL_SIZE=1).
	Capacity64 = CountRXBlock | 1<<CountRXShift
)

// RXCapacity encodes a receive buffer size into the COUNT_RX allocation
// fields. Multiples of 32 use 32-byte blocks; other even sizes up to 62
// use 2-byte blocks.
func RXCapacity(size int) (uint16, error) {
	switch {
	case size <= 0 || size > 512:
		return 0, pkg.ErrInvalidParameter
	case size%32 == 0:
		return CountRXBlock | uint16(size/32-1)<<CountRXShift, nil
	case size > 62:
		return 0, pkg.ErrInvalidParameter
	case size%2 != 0:
		return 0, pkg.ErrAlignment
	default:
		return uint16(size/2) << CountRXShift, nil
	}
}

// Descriptor is a view of one BTABLE entry. It holds no copy of the
// entry; every accessor goes to packet memory.
type Descriptor struct {
	mem  *Memory
	base int
}

// BufferDescriptor returns the BTABLE entry of endpoint ep (0-7).
func (m *Memory) BufferDescriptor(ep int) (Descriptor, error) {
	if ep < 0 || ep >= BTableSize/EntrySize {
		return Descriptor{}, pkg.ErrInvalidEndpoint
	}
	return Descriptor{mem: m, base: BTableOffset + ep*EntrySize}, nil
}

// Fields of an entry are always in range and aligned, so errors from the
// memory cannot occur here.
func (d Descriptor) get(field int) uint16 {
	v, _ := d.mem.ReadWord(d.base + field)
	return v
}

func (d Descriptor) set(field int, v uint16) {
	_ = d.mem.WriteWord(d.base+field, v)
}

// AddrTX returns the transmit buffer offset.
func (d Descriptor) AddrTX() uint16 { return d.get(fieldAddrTX) }

// SetAddrTX sets the transmit buffer offset.
func (d Descriptor) SetAddrTX(v uint16) { d.set(fieldAddrTX, v) }

// CountTX returns the number of bytes to transmit.
func (d Descriptor) CountTX() uint16 { return d.get(fieldCountTX) }

// SetCountTX sets the number of bytes to transmit.
func (d Descriptor) SetCountTX(v uint16) { d.set(fieldCountTX, v) }

// AddrRX returns the receive buffer offset.
func (d Descriptor) AddrRX() uint16 { return d.get(fieldAddrRX) }

// SetAddrRX sets the receive buffer offset.
func (d Descriptor) SetAddrRX(v uint16) { d.set(fieldAddrRX, v) }

// CountRX returns the raw COUNT_RX half-word.
func (d Descriptor) CountRX() uint16 { return d.get(fieldCountRX) }

// SetCountRX sets the raw COUNT_RX half-word.
func (d Descriptor) SetCountRX(v uint16) { d.set(fieldCountRX, v) }

// RXCount returns the number of bytes received.
func (d Descriptor) RXCount() int { return int(d.CountRX() & CountRXMask) }

// Set writes all four fields of the entry.
func (d Descriptor) Set(addrTX, countTX, addrRX, countRX uint16) {
	d.SetAddrTX(addrTX)
	d.SetCountTX(countTX)
	d.SetAddrRX(addrRX)
	d.SetCountRX(countRX)
}

// RXBufferSize decodes the allocation fields of COUNT_RX into the size of
// the receive buffer in bytes.
func (d Descriptor) RXBufferSize() int {
	v := d.CountRX()
	blocks := int(v>>CountRXShift) & 0x1F
	if v&CountRXBlock != 0 {
		return (blocks + 1) * 32
	}
	return blocks * 2
}
