package sim

import (
	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/epr"
)

// Word is a plain read-write register.
type Word struct {
	v uint32
}

// Get returns the register value.
func (w *Word) Get() uint32 { return w.v }

// Set stores the register value.
func (w *Word) Set(v uint32) { w.v = v }

const toggleMask = epr.DTOG_RX | epr.STAT_RX | epr.DTOG_TX | epr.STAT_TX

// writeLogSize is how many software writes an EndpointRegister remembers.
const writeLogSize = 64

// EndpointRegister is a USB_EPnR with hardware write semantics. The last
// writeLogSize software writes are kept in a fixed ring so that writes
// from an interrupt handler never allocate.
type EndpointRegister struct {
	v      uint32
	writes [writeLogSize]uint32
	nw     int // Writes since ClearWrites
}

// Get returns the register value.
func (r *EndpointRegister) Get() uint32 { return r.v }

// Set applies a software write: read-write fields take the written value,
// toggle fields flip where 1 is written, CTR flags clear where 0 is written
// and SETUP is unaffected.
func (r *EndpointRegister) Set(w uint32) {
	r.writes[r.nw%writeLogSize] = w
	r.nw++
	v := r.v&^epr.KeepMask | w&epr.KeepMask
	v ^= w & toggleMask
	v &^= ^w & epr.CTRMask
	r.v = v
}

// Writes returns the values written by software since the last
// ClearWrites, oldest first. Only the most recent writeLogSize are kept.
func (r *EndpointRegister) Writes() []uint32 {
	n := min(r.nw, writeLogSize)
	out := make([]uint32, 0, n)
	for i := r.nw - n; i < r.nw; i++ {
		out = append(out, r.writes[i%writeLogSize])
	}
	return out
}

// ClearWrites empties the write log.
func (r *EndpointRegister) ClearWrites() { r.nw = 0 }

// Load forces the stored value, bypassing write semantics.
func (r *EndpointRegister) Load(v uint32) { r.v = v }

func (r *EndpointRegister) status(dir hal.Direction) epr.Status {
	if dir == hal.TX {
		return epr.Status((r.v & epr.STAT_TX) >> 4)
	}
	return epr.Status((r.v & epr.STAT_RX) >> 12)
}

// complete latches a finished transaction the way the peripheral does:
// CTR set, data toggle flipped, status dropped to NAK.
func (r *EndpointRegister) complete(dir hal.Direction, setup bool) {
	if dir == hal.TX {
		r.v |= epr.CTR_TX
		r.v ^= epr.DTOG_TX
		r.v = r.v&^epr.STAT_TX | epr.StatusBits(hal.TX, epr.StatusNak)
		return
	}
	r.v |= epr.CTR_RX
	r.v = r.v&^epr.STAT_RX | epr.StatusBits(hal.RX, epr.StatusNak)
	if setup {
		// SETUP is always DATA0; the data stage starts at DATA1 in both
		// directions.
		r.v |= epr.SETUP | epr.DTOG_RX | epr.DTOG_TX
		r.v = r.v&^epr.STAT_TX | epr.StatusBits(hal.TX, epr.StatusNak)
		return
	}
	r.v &^= epr.SETUP
	r.v ^= epr.DTOG_RX
}

// statusRegister is ISTR. The flag bits are rc_w0; CTR, DIR and EP_ID are
// derived from the endpoint registers.
type statusRegister struct {
	p     *Peripheral
	flags uint32
}

func (r *statusRegister) Get() uint32 {
	v := r.flags
	for i := range r.p.ep {
		ep := r.p.ep[i].v
		if ep&epr.CTRMask == 0 {
			continue
		}
		v |= hal.ISTR_CTR | uint32(i)
		if ep&epr.CTR_RX != 0 {
			v |= hal.ISTR_DIR
		}
		break
	}
	return v
}

func (r *statusRegister) Set(w uint32) {
	r.flags &^= ^w & hal.ISTR_FLAGS
}
