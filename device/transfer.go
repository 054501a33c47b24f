package device

// stage is the position of endpoint 0 within a control transfer. The
// peripheral keeps no record of it, so the engine does.
type stage uint8

const (
	stageIdle      stage = iota // Waiting for SETUP
	stageDataIn                 // IN data packets outstanding
	stageStatusIn               // Zero-length IN acknowledging an OUT request
	stageStatusOut              // Waiting for the host's zero-length OUT
)

func (s stage) String() string {
	switch s {
	case stageDataIn:
		return "data-in"
	case stageStatusIn:
		return "status-in"
	case stageStatusOut:
		return "status-out"
	default:
		return "idle"
	}
}

// controlTransfer holds the response of an IN control request while it is
// sent one packet at a time.
type controlTransfer struct {
	stage stage
	buf   [MaxResponseSize]byte

	pending []byte // Bytes not yet staged
	zlp     bool   // A zero-length packet still terminates the data stage
	sent    int
}

// begin starts a data stage for the first n bytes of buf, truncated to
// the host's wLength. A response shorter than wLength that ends on a
// packet boundary needs a zero-length packet so the host sees the end.
func (t *controlTransfer) begin(n int, wLength uint16) {
	if n > int(wLength) {
		n = int(wLength)
	}
	t.stage = stageDataIn
	t.pending = t.buf[:n]
	t.zlp = n < int(wLength) && n%MaxPacketSize0 == 0
	t.sent = 0
}

// next returns the next packet to stage. ok is false once the data stage
// has nothing left to send.
func (t *controlTransfer) next() (packet []byte, ok bool) {
	if len(t.pending) > 0 {
		n := min(len(t.pending), MaxPacketSize0)
		packet, t.pending = t.pending[:n], t.pending[n:]
		t.sent += n
		return packet, true
	}
	if t.zlp {
		t.zlp = false
		return t.buf[:0], true
	}
	return nil, false
}

// abort drops any staged remainder.
func (t *controlTransfer) abort() {
	t.stage = stageIdle
	t.pending = nil
	t.zlp = false
	t.sent = 0
}
