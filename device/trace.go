package device

import (
	"fmt"

	"github.com/bentwire/stm32f072-usb/pkg"
)

// TraceSize is the number of events the engine keeps between drains.
const TraceSize = 32

// EventKind identifies something the interrupt handler did.
type EventKind uint8

// Engine events.
const (
	EventNone                  EventKind = iota
	EventBusReset                        // Endpoints reprogrammed, address 0
	EventTransactionDropped              // Value: ISTR
	EventShortSetup                      // Value: bytes received
	EventSetup                           // Request decoded
	EventUnrecognizedRequest             // Request left unanswered
	EventUnimplementedStage              // Request recognised, stage not built
	EventDescriptorUnavailable           // Request stalled
	EventRequestStalled                  // Request rejected
	EventAddressLatched                  // Value: address
	EventAddressAssigned                 // Value: address
	EventConfigured                      // Value: configuration
	EventDeconfigured
	EventDataStageEnded     // Value: bytes sent before the host's status OUT
	EventTransferComplete   // Request finished its status stage
	EventOutDataUnsupported // Value: bytes received
	EventDataDiscarded      // Endpoint, Value: bytes received
	EventEndpointArmed      // Endpoint, Value: STAT_RX<<8 | STAT_TX
	EventUnexpectedIN       // Value: stage
	EventPacketMemory       // Err
)

// Event is one entry of the engine trace. Only the fields noted for its
// kind are set.
type Event struct {
	Kind     EventKind
	Endpoint uint8
	Value    uint32
	Request  ControlRequest
	Err      error
}

// Log writes the event through the driver logger. It formats and
// allocates, so it runs in the foreground only.
func (ev Event) Log() {
	c := pkg.ComponentEngine
	switch ev.Kind {
	case EventBusReset:
		pkg.LogInfo(c, "bus reset")
	case EventTransactionDropped:
		pkg.LogDebug(c, "transaction dropped", "istr", fmt.Sprintf("%#04x", ev.Value))
	case EventShortSetup:
		pkg.LogWarn(c, "short setup", "count", ev.Value)
	case EventSetup:
		pkg.LogDebug(c, "setup", "request", ev.Request.String())
	case EventUnrecognizedRequest:
		pkg.LogWarn(c, "unrecognized request", "request", ev.Request.String(),
			"bmRequestType", ev.Request.RequestType, "bRequest", ev.Request.Code)
	case EventUnimplementedStage:
		pkg.LogWarn(c, "request stage not implemented", "request", ev.Request.String())
	case EventDescriptorUnavailable:
		pkg.LogDebug(c, "descriptor unavailable", "type", ev.Request.DescriptorType(),
			"index", ev.Request.DescriptorIndex(), "error", ev.Err)
	case EventRequestStalled:
		pkg.LogDebug(c, "request stalled", "request", ev.Request.String())
	case EventAddressLatched:
		pkg.LogDebug(c, "address latched", "address", ev.Value)
	case EventAddressAssigned:
		pkg.LogInfo(c, "address assigned", "address", ev.Value)
	case EventConfigured:
		pkg.LogInfo(c, "configured", "configuration", ev.Value)
	case EventDeconfigured:
		pkg.LogInfo(c, "deconfigured")
	case EventDataStageEnded:
		pkg.LogDebug(c, "data stage ended by host", "sent", ev.Value)
	case EventTransferComplete:
		pkg.LogDebug(c, "control transfer complete", "request", ev.Request.Request.String())
	case EventOutDataUnsupported:
		pkg.LogWarn(c, "OUT data stage not supported", "count", ev.Value)
	case EventDataDiscarded:
		pkg.LogDebug(c, "data discarded", "endpoint", ev.Endpoint, "count", ev.Value)
	case EventEndpointArmed:
		pkg.LogDebug(c, "data endpoint", "endpoint", ev.Endpoint,
			"rx", fmt.Sprintf("%#x", ev.Value>>8), "tx", fmt.Sprintf("%#x", ev.Value&0xFF))
	case EventUnexpectedIN:
		pkg.LogDebug(c, "unexpected IN completion", "stage", stage(ev.Value).String())
	case EventPacketMemory:
		pkg.LogError(c, "packet memory", "error", ev.Err)
	}
}

// trace is a fixed ring of events. When full the oldest event is
// overwritten and counted as dropped.
type trace struct {
	events  [TraceSize]Event
	start   int
	n       int
	dropped uint32
}

func (t *trace) record(ev Event) {
	if t.n == TraceSize {
		t.start = (t.start + 1) % TraceSize
		t.n--
		t.dropped++
	}
	t.events[(t.start+t.n)%TraceSize] = ev
	t.n++
}

// drain moves up to len(dst) events into dst, oldest first.
func (t *trace) drain(dst []Event) (n int, dropped uint32) {
	for n < len(dst) && t.n > 0 {
		dst[n] = t.events[t.start]
		t.events[t.start] = Event{}
		t.start = (t.start + 1) % TraceSize
		t.n--
		n++
	}
	dropped, t.dropped = t.dropped, 0
	return n, dropped
}

// DrainEvents moves pending trace events into dst, oldest first, and
// returns how many were copied and how many were overwritten since the
// last drain. It does not allocate and may be called with interrupts
// masked.
func (e *Engine) DrainEvents(dst []Event) (n int, dropped uint32) {
	return e.trace.drain(dst)
}

// LogEvents drains the trace and logs every event. It must not run
// concurrently with HandleInterrupt.
func (e *Engine) LogEvents() {
	var buf [TraceSize]Event
	n, dropped := e.DrainEvents(buf[:])
	LogEvents(buf[:n], dropped)
}

// LogEvents logs events drained from an engine.
func LogEvents(events []Event, dropped uint32) {
	if dropped > 0 {
		pkg.LogWarn(pkg.ComponentEngine, "trace events overwritten", "count", dropped)
	}
	for _, ev := range events {
		ev.Log()
	}
}
