package device

import (
	"encoding/binary"

	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/epr"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// Device status bits returned by GET_STATUS.
const (
	StatusSelfPowered  = 1 << 0
	StatusRemoteWakeup = 1 << 1
)

// dispatch answers a decoded SETUP on endpoint 0. Any transfer still in
// progress is abandoned: a new SETUP always starts over.
func (e *Engine) dispatch(req ControlRequest) pkg.Outcome {
	e.xfer.abort()
	e.addressPending = false
	e.ep0.SetStatusOut(false)
	e.last = req

	e.trace.record(Event{Kind: EventSetup, Request: req})

	switch {
	case req.Is(RequestGetStatus, RecipientDevice, DirectionOut):
		// GET_STATUS is always device-to-host; the OUT form is refused.
		e.ep0.StallBothDirections()
		return pkg.OutcomeRequestError

	case req.Type == TypeStandard && req.Request == RequestGetStatus && req.Direction == DirectionIn:
		return e.getStatus(req)

	case req.Is(RequestSetAddress, RecipientDevice, DirectionOut):
		return e.setAddress(req)

	case req.Is(RequestGetDescriptor, RecipientDevice, DirectionIn):
		return e.getDescriptor(req)

	case req.Is(RequestGetConfiguration, RecipientDevice, DirectionIn):
		return e.getConfiguration(req)

	case req.Is(RequestSetConfiguration, RecipientDevice, DirectionOut):
		return e.setConfiguration(req)

	case req.Is(RequestSetDescriptor, RecipientDevice, DirectionOut):
		return e.unimplemented(req)

	case req.Direction == DirectionOut && req.Length > 0:
		// Any OUT request carrying data would need an OUT data stage.
		return e.unimplemented(req)

	default:
		e.trace.record(Event{Kind: EventUnrecognizedRequest, Request: req})
		e.ep0.SetStatus(hal.RX, epr.StatusValid)
		return pkg.OutcomeProtocolMismatch
	}
}

// unimplemented logs a recognised request whose stage is not provided.
// Like an unrecognised request it leaves the endpoint answering NAK to the
// data or status stage.
func (e *Engine) unimplemented(req ControlRequest) pkg.Outcome {
	e.trace.record(Event{Kind: EventUnimplementedStage, Request: req})
	e.ep0.SetStatus(hal.RX, epr.StatusValid)
	return pkg.OutcomeUnimplementedStage
}

// getStatus answers GET_STATUS with two bytes. Only the device recipient
// reports anything: the self-powered bit of the active configuration.
func (e *Engine) getStatus(req ControlRequest) pkg.Outcome {
	var status uint16
	switch req.Recipient {
	case RecipientDevice:
		if c, ok := e.activeConfiguration(); ok && c.Descriptor.Attributes&ConfigAttrSelfPowered != 0 {
			status |= StatusSelfPowered
		}
	case RecipientInterface, RecipientEndpoint:
		if e.state.Kind != StateConfigured && req.Index != 0 {
			return e.stall()
		}
	default:
		return e.stall()
	}
	binary.LittleEndian.PutUint16(e.xfer.buf[:2], status)
	return e.respond(2, req.Length)
}

// setAddress latches the new address and acknowledges with a zero-length
// status IN. The address register changes only when that IN completes.
func (e *Engine) setAddress(req ControlRequest) pkg.Outcome {
	if req.Value > 127 || req.Index != 0 || req.Length != 0 || e.state.Kind == StateConfigured {
		return e.stall()
	}
	e.address = uint8(req.Value)
	e.acknowledge()
	e.addressPending = true
	e.trace.record(Event{Kind: EventAddressLatched, Value: uint32(e.address)})
	return pkg.OutcomeHandled
}

// getDescriptor starts the data stage for the requested descriptor.
func (e *Engine) getDescriptor(req ControlRequest) pkg.Outcome {
	typ, index := req.DescriptorType(), req.DescriptorIndex()
	switch typ {
	case DescriptorTypeOtherSpeedConfig, DescriptorTypeBOS:
		return e.unimplemented(req)
	}
	n, err := e.set.Lookup(typ, index, e.xfer.buf[:])
	if err != nil {
		e.trace.record(Event{Kind: EventDescriptorUnavailable, Request: req, Err: err})
		return e.stall()
	}
	return e.respond(n, req.Length)
}

// getConfiguration answers with the active bConfigurationValue, 0 when
// not configured.
func (e *Engine) getConfiguration(req ControlRequest) pkg.Outcome {
	if e.state.Kind == StateReset || e.state.Kind == StateBootReset {
		return e.stall()
	}
	e.xfer.buf[0] = 0
	if e.state.Kind == StateConfigured {
		e.xfer.buf[0] = e.state.Configuration
	}
	return e.respond(1, req.Length)
}

// setConfiguration selects a configuration (or none, for value 0) and
// arms or disarms its data endpoints.
func (e *Engine) setConfiguration(req ControlRequest) pkg.Outcome {
	if e.state.Kind != StateAddressed && e.state.Kind != StateConfigured {
		return e.stall()
	}
	value := uint8(req.Value)
	if req.Value > 0xFF {
		return e.stall()
	}
	if value == 0 {
		e.configureDataEndpoints(nil)
		e.state = State{Kind: StateAddressed, Address: e.state.Address}
		e.acknowledge()
		e.trace.record(Event{Kind: EventDeconfigured})
		return pkg.OutcomeHandled
	}
	c, ok := e.set.Configuration(value)
	if !ok {
		return e.stall()
	}
	e.configureDataEndpoints(&c)
	e.state = State{Kind: StateConfigured, Address: e.state.Address, Configuration: value}
	e.acknowledge()
	e.trace.record(Event{Kind: EventConfigured, Value: uint32(value)})
	return pkg.OutcomeHandled
}

func (e *Engine) activeConfiguration() (Configuration, bool) {
	if e.state.Kind != StateConfigured {
		return Configuration{}, false
	}
	return e.set.Configuration(e.state.Configuration)
}
