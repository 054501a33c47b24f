package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// Host limits.
const (
	MaxDevices     = 127 // Function addresses 1-127
	MaxNAKRetries  = 8   // NAKs tolerated per transaction before giving up
	DefaultAddress = 0
)

// Enumeration errors.
var (
	ErrEnumerationFailed = errors.New("enumeration failed")
	ErrNoAddress         = errors.New("no address available")
)

// Bus carries host transactions to the device.
type Bus interface {
	Reset()
	Setup(address uint8, endpoint int, packet [device.SetupPacketSize]byte) error
	In(address uint8, endpoint int) ([]byte, error)
	Out(address uint8, endpoint int, data []byte) error
}

// Host is a host controller with a single downstream device.
type Host struct {
	bus Bus

	nextAddress    uint8
	maxPacketSize0 int
}

// New returns a host on bus.
func New(bus Bus) *Host {
	return &Host{
		bus:            bus,
		nextAddress:    1,
		maxPacketSize0: device.MaxPacketSize0,
	}
}

// Reset drives a bus reset. The device returns to the default address.
func (h *Host) Reset() {
	pkg.LogDebug(pkg.ComponentHost, "bus reset")
	h.bus.Reset()
}

func (h *Host) allocateAddress() uint8 {
	if h.nextAddress == 0 || h.nextAddress > MaxDevices {
		return 0
	}
	a := h.nextAddress
	h.nextAddress++
	return a
}

// retry repeats fn while the device answers NAK.
func retry[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for i := 0; i < MaxNAKRetries; i++ {
		if err := ctx.Err(); err != nil {
			return v, err
		}
		v, err = fn()
		if !errors.Is(err, pkg.ErrNAK) {
			return v, err
		}
	}
	return v, fmt.Errorf("%d NAKs: %w", MaxNAKRetries, err)
}

// ControlTransfer runs a control transfer on endpoint 0 of the device at
// address. IN data is written to buf, which must hold req.Length bytes;
// OUT data is taken from buf. Returns the number of data bytes moved.
func (h *Host) ControlTransfer(ctx context.Context, address uint8, req device.ControlRequest, buf []byte) (int, error) {
	if len(buf) < int(req.Length) {
		return 0, fmt.Errorf("host: %d byte buffer for %d: %w", len(buf), req.Length, pkg.ErrBufferTooSmall)
	}
	if err := h.bus.Setup(address, 0, req.Packet()); err != nil {
		return 0, fmt.Errorf("host: setup: %w", err)
	}

	var (
		n   int
		err error
	)
	switch {
	case req.Length == 0:
	case req.Direction == device.DirectionIn:
		n, err = h.dataIn(ctx, address, buf[:req.Length])
	default:
		n, err = h.dataOut(ctx, address, buf[:req.Length])
	}
	if err != nil {
		return n, err
	}

	if req.Direction == device.DirectionIn && req.Length > 0 {
		_, err = retry(ctx, func() (struct{}, error) {
			return struct{}{}, h.bus.Out(address, 0, nil)
		})
	} else {
		var status []byte
		status, err = retry(ctx, func() ([]byte, error) { return h.bus.In(address, 0) })
		if err == nil && len(status) != 0 {
			err = fmt.Errorf("%d byte status stage: %w", len(status), pkg.ErrProtocol)
		}
	}
	if err != nil {
		return n, fmt.Errorf("host: status: %w", err)
	}
	pkg.LogDebug(pkg.ComponentHost, "control transfer", "address", address,
		"request", req.Request.String(), "bytes", n)
	return n, nil
}

// dataIn reads packets until a short packet or buf is full.
func (h *Host) dataIn(ctx context.Context, address uint8, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		packet, err := retry(ctx, func() ([]byte, error) { return h.bus.In(address, 0) })
		if err != nil {
			return n, fmt.Errorf("host: data in: %w", err)
		}
		if len(packet) > h.maxPacketSize0 || len(packet) > len(buf)-n {
			return n, fmt.Errorf("host: %d byte packet: %w", len(packet), pkg.ErrPacketTooLarge)
		}
		n += copy(buf[n:], packet)
		if len(packet) < h.maxPacketSize0 {
			break
		}
	}
	return n, nil
}

// dataOut sends buf in packets of the endpoint 0 size.
func (h *Host) dataOut(ctx context.Context, address uint8, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		end := min(n+h.maxPacketSize0, len(buf))
		if _, err := retry(ctx, func() (struct{}, error) {
			return struct{}{}, h.bus.Out(address, 0, buf[n:end])
		}); err != nil {
			return n, fmt.Errorf("host: data out: %w", err)
		}
		n = end
	}
	return n, nil
}
