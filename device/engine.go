package device

import (
	"fmt"

	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/epr"
	"github.com/bentwire/stm32f072-usb/device/hal/pma"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// Interrupt sources enabled by Init.
const interruptMask = hal.CNTR_CTRM | hal.CNTR_WKUPM | hal.CNTR_SUSPM |
	hal.CNTR_RESETM | hal.CNTR_ERRM

// Status flags the engine acknowledges without acting on them.
const ignoredFlags = hal.ISTR_SUSP | hal.ISTR_SOF | hal.ISTR_ESOF |
	hal.ISTR_WKUP | hal.ISTR_L1REQ

// maxDataEndpoint is the highest endpoint number whose buffers fit in
// packet memory after endpoint 0.
const maxDataEndpoint = 6

// dataBuffers returns the packet memory offsets of a data endpoint.
// Endpoint 1 gets RX 0x0C0 and TX 0x100; each further endpoint follows.
func dataBuffers(n int) (rx, tx int) {
	rx = pma.EP1RXOffset + (n-1)*2*pma.BufferSize
	return rx, rx + pma.BufferSize
}

// Engine implements the default control pipe of the USB peripheral. It
// owns the peripheral registers, endpoint 0 and packet memory.
//
// Engine is not safe for concurrent use. On target it is reached only
// through shared.Context, which serialises the foreground and the
// interrupt handler. HandleInterrupt does not allocate or log; what it
// did is kept in a trace drained with DrainEvents or LogEvents.
type Engine struct {
	regs *hal.Registers
	mem  *pma.Memory
	ep0  epr.Endpoint
	set  DescriptorSet

	state State

	address        uint8 // Latched by SET_ADDRESS
	addressPending bool  // Apply address when the status stage completes

	xfer  controlTransfer
	last  ControlRequest
	trace trace
}

// NewEngine returns an engine over regs and mem answering from set.
func NewEngine(regs *hal.Registers, mem *pma.Memory, set DescriptorSet) *Engine {
	return &Engine{
		regs: regs,
		mem:  mem,
		ep0:  epr.New(regs.EP[0], 0),
		set:  set,
	}
}

// State returns the device state.
func (e *Engine) State() State { return e.state }

// PendingAddress returns the address latched by SET_ADDRESS and whether it
// still waits for its status stage.
func (e *Engine) PendingAddress() (uint8, bool) { return e.address, e.addressPending }

// LastRequest returns the most recent decoded SETUP.
func (e *Engine) LastRequest() ControlRequest { return e.last }

// Descriptors returns the descriptor set the engine answers from.
func (e *Engine) Descriptors() *DescriptorSet { return &e.set }

func (e *Engine) validate() error {
	if err := e.regs.Validate(); err != nil {
		return err
	}
	if err := e.set.Validate(); err != nil {
		return err
	}
	if e.set.Device.MaxPacketSize0 != MaxPacketSize0 {
		return fmt.Errorf("bMaxPacketSize0 %d: %w", e.set.Device.MaxPacketSize0, pkg.ErrInvalidParameter)
	}
	for _, c := range e.set.Configurations {
		if n := c.TotalLength(); n > MaxResponseSize {
			return fmt.Errorf("configuration %d: wTotalLength %d: %w",
				c.Descriptor.ConfigurationValue, n, pkg.ErrBufferTooSmall)
		}
		for _, i := range c.Interfaces {
			for _, ep := range i.Endpoints {
				n := int(ep.Number())
				if n < 1 || n > maxDataEndpoint {
					return fmt.Errorf("endpoint %#02x: %w", ep.EndpointAddress, pkg.ErrInvalidEndpoint)
				}
				if ep.MaxPacketSize > pma.BufferSize {
					return fmt.Errorf("endpoint %#02x: %d bytes: %w",
						ep.EndpointAddress, ep.MaxPacketSize, pkg.ErrPacketTooLarge)
				}
				if ep.TransferType() == EndpointAttrIsochronous {
					return fmt.Errorf("endpoint %#02x: isochronous: %w",
						ep.EndpointAddress, pkg.ErrInvalidParameter)
				}
			}
		}
	}
	return nil
}

// Init performs the one-time peripheral bring-up from the foreground: USB
// and clock recovery clocks, power-up, packet memory, interrupt mask and
// the D+ pull-up that announces the device to the host.
func (e *Engine) Init() error {
	if err := e.validate(); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	hal.Modify(e.regs.APB1ENR, 0, hal.RCC_APB1ENR_USBEN|hal.RCC_APB1ENR_CRSEN)
	_ = e.regs.APB1ENR.Get() // Clock gate settles before first access

	hal.Modify(e.regs.CRS, 0, hal.CRS_CR_AUTOTRIMEN)
	hal.Modify(e.regs.CRS, 0, hal.CRS_CR_CEN)

	hal.Modify(e.regs.CNTR, hal.CNTR_PDWN, 0)
	e.mem.Zero()
	e.regs.BTABLE.Set(pma.BTableOffset)

	hal.Modify(e.regs.CNTR, 0, interruptMask)
	hal.Modify(e.regs.CNTR, hal.CNTR_FRES, 0)
	e.regs.ISTR.Set(0)

	hal.Modify(e.regs.DADDR, 0, hal.DADDR_EF)
	hal.Modify(e.regs.BCDR, 0, hal.BCDR_DPPU)

	e.state = State{Kind: StateBootReset}
	e.xfer.abort()
	e.addressPending = false
	pkg.LogInfo(pkg.ComponentEngine, "peripheral initialized")
	return nil
}

// HandleInterrupt services one USB interrupt. Sources are taken in a
// fixed order: bus reset, bus error, ignored status flags, then a
// completed transaction. It never panics and never returns an error; the
// outcome says what was done.
func (e *Engine) HandleInterrupt() pkg.Outcome {
	istr := e.regs.ISTR.Get()

	if istr&hal.ISTR_RESET != 0 {
		e.regs.ISTR.Set(^uint32(hal.ISTR_RESET))
		e.reset()
		return pkg.OutcomeReset
	}

	if istr&(hal.ISTR_ERR|hal.ISTR_PMAOVR) != 0 {
		e.regs.ISTR.Set(^uint32(hal.ISTR_ERR | hal.ISTR_PMAOVR))
		e.trace.record(Event{Kind: EventTransactionDropped, Value: istr})
		return pkg.OutcomeHardwareSignaled
	}

	if istr&ignoredFlags != 0 {
		e.regs.ISTR.Set(^uint32(ignoredFlags))
	}

	istr = e.regs.ISTR.Get()
	if istr&hal.ISTR_CTR == 0 {
		return pkg.OutcomeIgnored
	}

	n := int(istr & hal.ISTR_EP_ID)
	if n != 0 {
		return e.serviceDataEndpoint(n)
	}
	if istr&hal.ISTR_DIR != 0 {
		return e.receive()
	}
	return e.transmit()
}

// reset reprograms endpoint 0 and the declared data endpoints after a bus
// reset and returns the device to the default address.
func (e *Engine) reset() {
	e.xfer.abort()
	e.addressPending = false
	e.address = 0

	if d, err := e.mem.BufferDescriptor(0); err == nil {
		d.Set(pma.EP0TXOffset, 0, pma.EP0RXOffset, pma.Capacity64)
	}
	e.ep0.Configure(epr.TypeControl, 0)
	e.ep0.SetStatusOut(false)
	e.ep0.ResetDataToggle(hal.RX)
	e.ep0.ResetDataToggle(hal.TX)
	e.ep0.SetStatusBoth(epr.StatusValid, epr.StatusNak)

	e.configureDataEndpoints(nil)

	e.regs.DADDR.Set(hal.DADDR_EF)
	e.state = State{Kind: StateReset}
	e.trace.record(Event{Kind: EventBusReset})
}

// dataEndpoint merges every descriptor sharing one endpoint number. An
// EPnR serves both directions, so 0x01 and 0x81 program the same register.
type dataEndpoint struct {
	declared bool
	typ      epr.Type
	rxSize   int
	out, in  bool // Armed directions
}

func (d *dataEndpoint) add(desc EndpointDescriptor, arm bool) {
	if !d.declared || arm {
		d.typ = epr.TypeBulk
		if desc.TransferType() == EndpointAttrInterrupt {
			d.typ = epr.TypeInterrupt
		}
	}
	d.declared = true
	if !desc.IsIn() && int(desc.MaxPacketSize) > d.rxSize {
		d.rxSize = int(desc.MaxPacketSize)
	}
	if arm {
		if desc.IsIn() {
			d.in = true
		} else {
			d.out = true
		}
	}
}

// configureDataEndpoints programs every endpoint declared in any
// configuration and arms the directions used by active. Everything else
// is left disabled.
func (e *Engine) configureDataEndpoints(active *Configuration) {
	var eps [maxDataEndpoint + 1]dataEndpoint
	for _, c := range e.set.Configurations {
		for _, i := range c.Interfaces {
			for _, ep := range i.Endpoints {
				eps[ep.Number()].add(ep, false)
			}
		}
	}
	if active != nil {
		for _, i := range active.Interfaces {
			for _, ep := range i.Endpoints {
				eps[ep.Number()].add(ep, true)
			}
		}
	}
	for n := 1; n <= maxDataEndpoint; n++ {
		if eps[n].declared {
			e.configureDataEndpoint(n, eps[n])
		}
	}
}

func (e *Engine) configureDataEndpoint(n int, cfg dataEndpoint) {
	d, err := e.mem.BufferDescriptor(n)
	if err != nil {
		e.trace.record(Event{Kind: EventPacketMemory, Endpoint: uint8(n), Err: err})
		return
	}
	capacity, err := pma.RXCapacity(cfg.rxSize)
	if err != nil || cfg.rxSize == 0 {
		capacity = pma.Capacity64
	}
	rx, tx := dataBuffers(n)
	d.Set(uint16(tx), 0, uint16(rx), capacity)

	ep := epr.New(e.regs.EP[n], n)
	ep.Configure(cfg.typ, uint8(n))
	ep.ResetDataToggle(hal.RX)
	ep.ResetDataToggle(hal.TX)

	rxStatus, txStatus := epr.StatusDisabled, epr.StatusDisabled
	if cfg.out {
		rxStatus = epr.StatusValid
	}
	if cfg.in {
		txStatus = epr.StatusNak
	}
	ep.SetStatusBoth(rxStatus, txStatus)
	e.trace.record(Event{Kind: EventEndpointArmed, Endpoint: uint8(n),
		Value: uint32(rxStatus)<<8 | uint32(txStatus)})
}

// serviceDataEndpoint acknowledges a transaction on a data endpoint.
// Data transfer is not provided: OUT payloads are discarded and the
// endpoint re-armed.
func (e *Engine) serviceDataEndpoint(n int) pkg.Outcome {
	ep := epr.New(e.regs.EP[n], n)
	if ep.TransactionComplete(hal.RX) {
		count := 0
		if d, err := e.mem.BufferDescriptor(n); err == nil {
			count = d.RXCount()
			d.SetCountRX(d.CountRX() &^ pma.CountRXMask)
		}
		ep.ClearTransactionComplete(hal.RX)
		ep.SetStatus(hal.RX, epr.StatusValid)
		e.trace.record(Event{Kind: EventDataDiscarded, Endpoint: uint8(n), Value: uint32(count)})
	}
	if ep.TransactionComplete(hal.TX) {
		ep.ClearTransactionComplete(hal.TX)
	}
	return pkg.OutcomeIgnored
}

// receive handles a completed host-to-device transaction on endpoint 0.
func (e *Engine) receive() pkg.Outcome {
	d, err := e.mem.BufferDescriptor(0)
	if err != nil {
		return pkg.OutcomeIgnored
	}
	count := d.RXCount()
	d.SetCountRX(pma.Capacity64)

	setup := e.ep0.Setup()
	e.ep0.ClearTransactionComplete(hal.RX)

	if setup {
		var raw [SetupPacketSize]byte
		if count < SetupPacketSize {
			e.trace.record(Event{Kind: EventShortSetup, Value: uint32(count)})
			e.ep0.StallBothDirections()
			return pkg.OutcomeRequestError
		}
		if err := e.mem.ReadBuffer(int(d.AddrRX()), raw[:]); err != nil {
			e.trace.record(Event{Kind: EventPacketMemory, Err: err})
			return pkg.OutcomeHardwareSignaled
		}
		req, err := ParseControlRequest(raw[:])
		if err != nil {
			e.ep0.StallBothDirections()
			return pkg.OutcomeRequestError
		}
		return e.dispatch(req)
	}

	// The host may end an IN data stage early with its status OUT.
	if (e.xfer.stage == stageStatusOut || e.xfer.stage == stageDataIn) && count == 0 {
		if e.xfer.stage == stageDataIn {
			e.trace.record(Event{Kind: EventDataStageEnded, Value: uint32(e.xfer.sent)})
		}
		e.xfer.abort()
		e.ep0.SetStatusOut(false)
		e.ep0.SetStatusBoth(epr.StatusValid, epr.StatusNak)
		e.trace.record(Event{Kind: EventTransferComplete, Request: e.last})
		return pkg.OutcomeHandled
	}

	e.trace.record(Event{Kind: EventOutDataUnsupported, Value: uint32(count)})
	e.ep0.SetStatus(hal.RX, epr.StatusValid)
	return pkg.OutcomeUnimplementedStage
}

// transmit handles a completed device-to-host transaction on endpoint 0.
func (e *Engine) transmit() pkg.Outcome {
	e.ep0.ClearTransactionComplete(hal.TX)
	if d, err := e.mem.BufferDescriptor(0); err == nil {
		d.SetCountRX(d.CountRX() &^ pma.CountRXMask)
	}
	e.ep0.SetStatusOut(false)

	switch e.xfer.stage {
	case stageDataIn:
		if e.sendNext() {
			e.ep0.SetStatusOut(true)
			return pkg.OutcomeHandled
		}
		// Last IN delivered: only a zero-length OUT may follow.
		e.xfer.stage = stageStatusOut
		e.ep0.SetStatusOut(true)
		e.ep0.SetStatus(hal.RX, epr.StatusValid)
		return pkg.OutcomeHandled

	case stageStatusIn:
		e.xfer.abort()
		if e.addressPending {
			e.addressPending = false
			e.regs.DADDR.Set(hal.DADDR_EF | uint32(e.address)&hal.DADDR_ADD)
			if e.address == 0 {
				e.state = State{Kind: StateReset}
			} else {
				e.state = State{Kind: StateAddressed, Address: e.address}
			}
			e.trace.record(Event{Kind: EventAddressAssigned, Value: uint32(e.address)})
		}
		return pkg.OutcomeHandled

	default:
		e.trace.record(Event{Kind: EventUnexpectedIN, Value: uint32(e.xfer.stage)})
		return pkg.OutcomeIgnored
	}
}

// sendNext stages the next packet of the data stage on endpoint 0.
// Returns false when nothing is left.
func (e *Engine) sendNext() bool {
	packet, ok := e.xfer.next()
	if !ok {
		return false
	}
	if err := e.stageIn(packet); err != nil {
		e.trace.record(Event{Kind: EventPacketMemory, Err: err})
		e.xfer.abort()
		e.ep0.StallBothDirections()
		return true
	}
	return true
}

// stageIn copies packet into the endpoint 0 transmit buffer and arms TX.
func (e *Engine) stageIn(packet []byte) error {
	d, err := e.mem.BufferDescriptor(0)
	if err != nil {
		return err
	}
	if len(packet) > MaxPacketSize0 {
		return pkg.ErrPacketTooLarge
	}
	if err := e.mem.WriteBuffer(int(d.AddrTX()), packet); err != nil {
		return err
	}
	d.SetCountTX(uint16(len(packet)))
	e.ep0.SetStatus(hal.TX, epr.StatusValid)
	return nil
}

// respond starts the data stage of an IN request with the first n bytes
// of the response buffer. The receive side is armed for the host's
// zero-length status OUT, which may also end the data stage early.
func (e *Engine) respond(n int, wLength uint16) pkg.Outcome {
	e.xfer.begin(n, wLength)
	if !e.sendNext() {
		// wLength 0: no data stage, status is a zero-length IN.
		e.acknowledge()
		return pkg.OutcomeHandled
	}
	e.ep0.SetStatusOut(true)
	e.ep0.SetStatus(hal.RX, epr.StatusValid)
	return pkg.OutcomeHandled
}

// acknowledge answers an OUT request without a data stage with a
// zero-length IN.
func (e *Engine) acknowledge() {
	if d, err := e.mem.BufferDescriptor(0); err == nil {
		d.SetCountTX(0)
	}
	e.xfer.stage = stageStatusIn
	e.ep0.SetStatusBoth(epr.StatusValid, epr.StatusValid)
}

// stall rejects the current request.
func (e *Engine) stall() pkg.Outcome {
	e.trace.record(Event{Kind: EventRequestStalled, Request: e.last})
	e.xfer.abort()
	e.addressPending = false
	e.ep0.StallBothDirections()
	return pkg.OutcomeRequestError
}
