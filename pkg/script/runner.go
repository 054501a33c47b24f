package script

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/sim"
	"github.com/bentwire/stm32f072-usb/device/shared"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// ErrExpectation indicates a failed expect command.
var ErrExpectation = errors.New("expectation failed")

// Runner replays scripts on a simulated peripheral whose interrupt is
// serviced through a shared context.
type Runner struct {
	bus *sim.Peripheral
	ctx *shared.Context
	out io.Writer

	address  uint8
	last     sim.Transaction
	outcome  pkg.Outcome
	serviced bool
}

// NewRunner installs ctx.ServiceUSB as the interrupt handler of bus. Each
// transaction is printed to out when out is non-nil.
func NewRunner(bus *sim.Peripheral, ctx *shared.Context, out io.Writer) *Runner {
	r := &Runner{bus: bus, ctx: ctx, out: out}
	bus.OnInterrupt(func() {
		o, err := ctx.ServiceUSB()
		if err != nil {
			pkg.LogError(pkg.ComponentCLI, "interrupt not serviced", "error", err)
			return
		}
		ctx.LogEvents()
		r.outcome, r.serviced = o, true
	})
	bus.Observe(func(t sim.Transaction) { r.last = t })
	return r
}

// Run executes every command of s in order and stops at the first error.
func (r *Runner) Run(s *Script) error {
	for _, c := range s.Commands {
		if err := r.exec(c); err != nil {
			return fmt.Errorf("%s: %w", c.Pos, err)
		}
	}
	return nil
}

func (r *Runner) exec(c *Command) error {
	r.serviced = false
	switch {
	case c.Reset:
		r.bus.Reset()
		r.address = 0
		r.print(r.last)
	case c.Setup != nil:
		data, err := decodeHex(c.Setup.Bytes)
		if err != nil {
			return err
		}
		if len(data) != sim.SetupSize {
			return fmt.Errorf("setup of %d bytes: %w", len(data), pkg.ErrInvalidParameter)
		}
		var packet [sim.SetupSize]byte
		copy(packet[:], data)
		r.bus.Setup(r.address, 0, packet)
		r.print(r.last)
	case c.In != nil:
		ep, err := endpoint(c.In.Endpoint)
		if err != nil {
			return err
		}
		r.bus.In(r.address, ep)
		r.print(r.last)
	case c.Out != nil:
		ep, err := endpoint(c.Out.Endpoint)
		if err != nil {
			return err
		}
		data, err := decodeHex(c.Out.Bytes)
		if err != nil {
			return err
		}
		r.bus.Out(r.address, ep, data)
		r.print(r.last)
	case c.Address != nil:
		a, err := decodeNumber(c.Address.Value, int(hal.DADDR_ADD))
		if err != nil {
			return err
		}
		r.address = uint8(a)
	case c.Frame:
		r.bus.Frame()
	case c.Suspend:
		r.bus.Suspend()
	case c.Error:
		r.bus.Error()
	case c.Expect != nil:
		return r.expect(c.Expect)
	}
	if r.serviced {
		pkg.LogDebug(pkg.ComponentCLI, "serviced", "outcome", r.outcome.String())
	}
	return nil
}

func endpoint(token *string) (int, error) {
	if token == nil {
		return 0, nil
	}
	return decodeNumber(*token, hal.NumEndpoints-1)
}

func (r *Runner) print(t sim.Transaction) {
	if r.out == nil {
		return
	}
	line := t.String()
	if r.serviced {
		line += " -> " + r.outcome.String()
	}
	fmt.Fprintln(r.out, line)
}

func (r *Runner) expect(e *Expect) error {
	switch {
	case e.State != nil:
		want, ok := device.ParseStateKind(*e.State)
		if !ok {
			return fmt.Errorf("state %q: %w", *e.State, pkg.ErrInvalidParameter)
		}
		got, err := r.ctx.State()
		if err != nil {
			return err
		}
		if got.Kind != want {
			return fmt.Errorf("%w: state %s, want %s", ErrExpectation, got, want)
		}
	case e.Address != nil:
		want, err := decodeNumber(*e.Address, int(hal.DADDR_ADD))
		if err != nil {
			return err
		}
		got, _ := r.bus.Address()
		if int(got) != want {
			return fmt.Errorf("%w: address %d, want %d", ErrExpectation, got, want)
		}
	case e.Handshake != nil:
		if got := r.last.Handshake(); !strings.EqualFold(got, *e.Handshake) {
			return fmt.Errorf("%w: handshake %s, want %s", ErrExpectation, got, *e.Handshake)
		}
	case e.Outcome != nil:
		if got := r.outcome.String(); got != *e.Outcome {
			return fmt.Errorf("%w: outcome %s, want %s", ErrExpectation, got, *e.Outcome)
		}
	case e.Empty:
		if r.last.Err != nil || len(r.last.Data) != 0 {
			return fmt.Errorf("%w: %s, want zero-length", ErrExpectation, r.last)
		}
	case e.Data != nil:
		want, err := decodeHex(e.Data)
		if err != nil {
			return err
		}
		if !bytes.Equal(r.last.Data, want) {
			return fmt.Errorf("%w: data % x, want % x", ErrExpectation, r.last.Data, want)
		}
	}
	return nil
}

// Last returns the most recent transaction.
func (r *Runner) Last() sim.Transaction { return r.last }

// Outcome returns the outcome of the most recent serviced interrupt.
func (r *Runner) Outcome() pkg.Outcome { return r.outcome }
