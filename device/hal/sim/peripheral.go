package sim

import (
	"fmt"
	"sync"

	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/epr"
	"github.com/bentwire/stm32f072-usb/device/hal/pma"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// SetupSize is the length of a SETUP payload.
const SetupSize = 8

// interruptSources are the ISTR bits gated by the CNTR mask bit at the
// same position.
const interruptSources = 0xFF80

// Peripheral is a simulated USB peripheral with its packet memory.
type Peripheral struct {
	mu sync.Mutex

	ep     [hal.NumEndpoints]EndpointRegister
	istr   statusRegister
	cntr   Word
	fnr    Word
	daddr  Word
	btable Word
	bcdr   Word
	crs    Word
	apb1   Word

	ram pma.RAM
	mem *pma.Memory

	regs    *hal.Registers
	handler func()
	observe []func(Transaction)
}

// New returns a peripheral in its power-on state.
func New() *Peripheral {
	p := &Peripheral{}
	p.istr.p = p
	p.cntr.v = hal.CNTR_FRES | hal.CNTR_PDWN
	p.mem = pma.New(&p.ram)
	p.regs = &hal.Registers{
		CNTR:    &p.cntr,
		ISTR:    &p.istr,
		FNR:     &p.fnr,
		DADDR:   &p.daddr,
		BTABLE:  &p.btable,
		BCDR:    &p.bcdr,
		CRS:     &p.crs,
		APB1ENR: &p.apb1,
	}
	for i := range p.ep {
		p.regs.EP[i] = &p.ep[i]
	}
	return p
}

// Registers returns the register block seen by the driver.
func (p *Peripheral) Registers() *hal.Registers { return p.regs }

// Memory returns the packet memory seen by the driver.
func (p *Peripheral) Memory() *pma.Memory { return p.mem }

// Endpoint returns the simulated register of endpoint n.
func (p *Peripheral) Endpoint(n int) *EndpointRegister { return &p.ep[n] }

// OnInterrupt installs the interrupt handler.
func (p *Peripheral) OnInterrupt(fn func()) { p.handler = fn }

// Observe registers fn to be called after every host transaction.
func (p *Peripheral) Observe(fn func(Transaction)) {
	p.observe = append(p.observe, fn)
}

// Address returns the function address the peripheral answers to and
// whether the function is enabled.
func (p *Peripheral) Address() (uint8, bool) {
	v := p.daddr.v
	return uint8(v & hal.DADDR_ADD), v&hal.DADDR_EF != 0
}

// Connected reports whether the DP pull-up is enabled.
func (p *Peripheral) Connected() bool { return p.bcdr.v&hal.BCDR_DPPU != 0 }

// Powered reports whether the peripheral is clocked and out of power-down.
func (p *Peripheral) Powered() bool {
	return p.apb1.v&hal.RCC_APB1ENR_USBEN != 0 && p.cntr.v&hal.CNTR_PDWN == 0
}

// Pending returns the ISTR bits that would assert the interrupt line.
func (p *Peripheral) Pending() uint32 {
	return p.istr.Get() & p.cntr.v & interruptSources
}

// raise latches flag and runs the handler while any unmasked source is
// pending. A handler that leaves the condition set is not re-entered.
func (p *Peripheral) raise(flag uint32) {
	p.istr.flags |= flag & hal.ISTR_FLAGS
	if p.handler == nil || p.Pending() == 0 {
		return
	}
	p.handler()
	if left := p.Pending(); left != 0 {
		pkg.LogDebug(pkg.ComponentSim, "interrupt left pending", "istr", fmt.Sprintf("%#04x", left))
	}
}

func (p *Peripheral) entry(n int) pma.Descriptor {
	d, err := p.mem.BufferDescriptor(n)
	if err != nil {
		panic(err) // n is always a valid endpoint index here
	}
	return d
}

func (p *Peripheral) notify(t Transaction) {
	for _, fn := range p.observe {
		fn(t)
	}
}

// Frame emits a start-of-frame.
func (p *Peripheral) Frame() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fnr.v = (p.fnr.v + 1) & hal.FNR_FN
	p.raise(hal.ISTR_SOF)
}

// Suspend signals bus idle.
func (p *Peripheral) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raise(hal.ISTR_SUSP)
}

// Error signals a bus error (CRC, bit stuffing, framing or timeout).
func (p *Peripheral) Error() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.raise(hal.ISTR_ERR)
}

// endpointFor resolves a token addressed to (address, n). It fails when
// no enabled function or endpoint matches.
func (p *Peripheral) endpointFor(address uint8, n int) (*EndpointRegister, error) {
	if n < 0 || n >= hal.NumEndpoints {
		return nil, fmt.Errorf("sim: endpoint %d: %w", n, pkg.ErrInvalidEndpoint)
	}
	if !p.Connected() {
		return nil, fmt.Errorf("sim: pull-up disabled: %w", pkg.ErrNoResponse)
	}
	cur, enabled := p.Address()
	if !enabled || cur != address {
		return nil, fmt.Errorf("sim: address %d: %w", address, pkg.ErrNoResponse)
	}
	for i := range p.ep {
		r := &p.ep[i]
		if int(r.v&epr.EA) == n && (i == 0 || r.v&(epr.STAT_RX|epr.STAT_TX) != 0) {
			return r, nil
		}
	}
	return nil, fmt.Errorf("sim: endpoint %d: %w", n, pkg.ErrNoResponse)
}

func (p *Peripheral) index(r *EndpointRegister) int {
	for i := range p.ep {
		if &p.ep[i] == r {
			return i
		}
	}
	return -1
}

func handshake(s epr.Status) error {
	switch s {
	case epr.StatusStall:
		return pkg.ErrStall
	case epr.StatusNak:
		return pkg.ErrNAK
	case epr.StatusDisabled:
		return pkg.ErrDisabled
	default:
		return nil
	}
}
