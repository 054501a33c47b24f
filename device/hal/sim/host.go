package sim

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/epr"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// Token identifies a host transaction.
type Token string

// Host transactions.
const (
	TokenReset Token = "reset"
	TokenSetup Token = "setup"
	TokenIn    Token = "in"
	TokenOut   Token = "out"
)

// Transaction describes one completed host transaction.
type Transaction struct {
	Token    Token
	Address  uint8
	Endpoint int
	Data     []byte // Payload sent or received
	Err      error  // nil for ACK
}

// Handshake returns the handshake the host observed.
func (t Transaction) Handshake() string {
	switch {
	case t.Err == nil:
		return "ACK"
	case t.Token == TokenReset:
		return "-"
	default:
		switch {
		case errors.Is(t.Err, pkg.ErrStall):
			return "STALL"
		case errors.Is(t.Err, pkg.ErrNAK):
			return "NAK"
		default:
			return "ERR"
		}
	}
}

// String returns a string representation of the transaction.
func (t Transaction) String() string {
	if t.Token == TokenReset {
		return "reset"
	}
	s := fmt.Sprintf("%s %d.%d %s", t.Token, t.Address, t.Endpoint, t.Handshake())
	if len(t.Data) > 0 {
		s += " " + hex.EncodeToString(t.Data)
	}
	return s
}

// Reset drives a bus reset. Endpoint registers and the device address
// return to their reset values before the interrupt is raised.
func (p *Peripheral) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.ep {
		p.ep[i].v = 0
	}
	p.daddr.v = 0
	p.raise(hal.ISTR_RESET)
	p.notify(Transaction{Token: TokenReset})
}

// Setup sends a SETUP transaction to endpoint n of the function at
// address. SETUP is acknowledged whenever reception is not disabled.
func (p *Peripheral) Setup(address uint8, n int, packet [SetupSize]byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.setup(address, n, packet[:])
	p.notify(Transaction{Token: TokenSetup, Address: address, Endpoint: n,
		Data: append([]byte(nil), packet[:]...), Err: err})
	return err
}

func (p *Peripheral) setup(address uint8, n int, packet []byte) error {
	r, err := p.endpointFor(address, n)
	if err != nil {
		return err
	}
	if r.status(hal.RX) == epr.StatusDisabled {
		return fmt.Errorf("sim: setup: %w", pkg.ErrDisabled)
	}
	if err := p.receive(r, packet); err != nil {
		return err
	}
	r.complete(hal.RX, true)
	p.raise(0)
	return nil
}

// Out sends an OUT transaction carrying data.
func (p *Peripheral) Out(address uint8, n int, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	err := p.out(address, n, data)
	p.notify(Transaction{Token: TokenOut, Address: address, Endpoint: n,
		Data: append([]byte(nil), data...), Err: err})
	return err
}

func (p *Peripheral) out(address uint8, n int, data []byte) error {
	r, err := p.endpointFor(address, n)
	if err != nil {
		return err
	}
	if err := handshake(r.status(hal.RX)); err != nil {
		return fmt.Errorf("sim: out: %w", err)
	}
	// STATUS_OUT on a control endpoint rejects anything but a ZLP.
	if r.v&epr.EP_KIND != 0 && r.v&epr.EP_TYPE == uint32(epr.TypeControl)<<9 && len(data) > 0 {
		return fmt.Errorf("sim: out during status stage: %w", pkg.ErrStall)
	}
	if err := p.receive(r, data); err != nil {
		return err
	}
	r.complete(hal.RX, false)
	p.raise(0)
	return nil
}

// receive copies a payload into the endpoint's receive buffer.
func (p *Peripheral) receive(r *EndpointRegister, data []byte) error {
	d := p.entry(p.index(r))
	if len(data) > d.RXBufferSize() {
		p.raise(hal.ISTR_ERR)
		return fmt.Errorf("sim: %d bytes into %d byte buffer: %w",
			len(data), d.RXBufferSize(), pkg.ErrPacketTooLarge)
	}
	if err := p.mem.WriteBuffer(int(d.AddrRX()), data); err != nil {
		p.raise(hal.ISTR_PMAOVR)
		return fmt.Errorf("sim: receive: %w", err)
	}
	d.SetCountRX(d.CountRX()&^0x03FF | uint16(len(data)))
	return nil
}

// In sends an IN token and returns the data packet the endpoint answered
// with.
func (p *Peripheral) In(address uint8, n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, err := p.in(address, n)
	p.notify(Transaction{Token: TokenIn, Address: address, Endpoint: n,
		Data: data, Err: err})
	return data, err
}

func (p *Peripheral) in(address uint8, n int) ([]byte, error) {
	r, err := p.endpointFor(address, n)
	if err != nil {
		return nil, err
	}
	if err := handshake(r.status(hal.TX)); err != nil {
		return nil, fmt.Errorf("sim: in: %w", err)
	}
	d := p.entry(p.index(r))
	data := make([]byte, int(d.CountTX()&0x03FF))
	if err := p.mem.ReadBuffer(int(d.AddrTX()), data); err != nil {
		p.raise(hal.ISTR_PMAOVR)
		return nil, fmt.Errorf("sim: transmit: %w", err)
	}
	r.complete(hal.TX, false)
	p.raise(0)
	return data, nil
}
