// Package pma provides access to the USB packet memory area.
//
// The packet memory is 1024 bytes of dedicated SRAM shared between the CPU
// and the USB peripheral, organised as 512 half-words. Byte offset o lives
// in half-word o/2, in the low lane when o is even and the high lane when
// o is odd. The buffer descriptor table sits at the start of the region.
package pma

import "github.com/bentwire/stm32f072-usb/pkg"

// Packet memory geometry.
const (
	Size  = 1024     // Bytes
	Words = Size / 2 // Half-words
)

// Fixed buffer layout. The BTABLE occupies the first 64 bytes (eight
// entries of four half-words); endpoint buffers follow it and never
// overlap one another.
const (
	BTableOffset = 0x000
	BTableSize   = 8 * EntrySize

	EP0RXOffset = 0x040
	EP0TXOffset = 0x080
	EP1RXOffset = 0x0C0
	EP1TXOffset = 0x100

	BufferSize = 64
)

// Bus is the half-word storage behind a Memory.
type Bus interface {
	// Get returns half-word i.
	Get(i int) uint16
	// Set stores half-word i.
	Set(i int, v uint16)
}

// RAM is an in-memory Bus.
type RAM [Words]uint16

// Get returns half-word i.
func (r *RAM) Get(i int) uint16 { return r[i] }

// Set stores half-word i.
func (r *RAM) Set(i int, v uint16) { r[i] = v }

// Memory is the packet memory area.
type Memory struct {
	bus Bus
}

// New returns a Memory backed by bus.
func New(bus Bus) *Memory {
	return &Memory{bus: bus}
}

// NewRAM returns a Memory backed by a fresh RAM.
func NewRAM() *Memory {
	return New(new(RAM))
}

func checkRange(offset, n int) error {
	if offset < 0 || n < 0 || offset+n > Size {
		return pkg.ErrRange
	}
	return nil
}

// Zero clears every half-word.
func (m *Memory) Zero() {
	for i := 0; i < Words; i++ {
		m.bus.Set(i, 0)
	}
}

// ReadWord returns the half-word at byte offset.
func (m *Memory) ReadWord(offset int) (uint16, error) {
	if err := checkRange(offset, 2); err != nil {
		return 0, err
	}
	if offset%2 != 0 {
		return 0, pkg.ErrAlignment
	}
	return m.bus.Get(offset / 2), nil
}

// WriteWord stores the half-word at byte offset.
func (m *Memory) WriteWord(offset int, v uint16) error {
	if err := checkRange(offset, 2); err != nil {
		return err
	}
	if offset%2 != 0 {
		return pkg.ErrAlignment
	}
	m.bus.Set(offset/2, v)
	return nil
}

// ReadByte returns the byte at offset.
func (m *Memory) ReadByte(offset int) (byte, error) {
	if err := checkRange(offset, 1); err != nil {
		return 0, err
	}
	w := m.bus.Get(offset / 2)
	return byte(w >> (8 * (offset % 2))), nil
}

// WriteByte stores the byte at offset, leaving the other lane of its
// half-word unchanged.
func (m *Memory) WriteByte(offset int, v byte) error {
	if err := checkRange(offset, 1); err != nil {
		return err
	}
	i := offset / 2
	w := m.bus.Get(i)
	if offset%2 == 0 {
		w = w&0xFF00 | uint16(v)
	} else {
		w = w&0x00FF | uint16(v)<<8
	}
	m.bus.Set(i, w)
	return nil
}

// WriteBuffer copies b into packet memory starting at offset. The region
// is validated before anything is written.
func (m *Memory) WriteBuffer(offset int, b []byte) error {
	if err := checkRange(offset, len(b)); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	// An odd start shares its half-word with the preceding byte.
	if offset%2 != 0 {
		if err := m.WriteByte(offset, b[0]); err != nil {
			return err
		}
		offset++
		b = b[1:]
	}
	for len(b) >= 2 {
		m.bus.Set(offset/2, uint16(b[0])|uint16(b[1])<<8)
		offset += 2
		b = b[2:]
	}
	if len(b) == 1 {
		return m.WriteByte(offset, b[0])
	}
	return nil
}

// ReadBuffer copies len(b) bytes starting at offset into b.
func (m *Memory) ReadBuffer(offset int, b []byte) error {
	if err := checkRange(offset, len(b)); err != nil {
		return err
	}
	for n := range b {
		o := offset + n
		b[n] = byte(m.bus.Get(o/2) >> (8 * (o % 2)))
	}
	return nil
}
