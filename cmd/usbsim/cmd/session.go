package cmd

import (
	"fmt"
	"io"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/device/hal/sim"
	"github.com/bentwire/stm32f072-usb/device/shared"
	"github.com/bentwire/stm32f072-usb/pkg"
	"github.com/bentwire/stm32f072-usb/pkg/record"
)

// session is one simulated device attached to a fresh bus.
type session struct {
	bus    *sim.Peripheral
	engine *device.Engine
	ctx    *shared.Context
	rec    *record.Recorder
}

func newSession() (*session, error) {
	set := device.DefaultDescriptorSet()
	set.Device = set.Device.WithVendorID(vendorID).WithProductID(productID)

	bus := sim.New()
	engine := device.NewEngine(bus.Registers(), bus.Memory(), set)
	if err := engine.Init(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	s := &session{
		bus:    bus,
		engine: engine,
		ctx:    shared.NewContext(&shared.LockMasker{}),
	}
	s.ctx.Install(engine)

	if recordPath != "" || recordAuto {
		rec, err := record.Open(recordPath)
		if err != nil {
			return nil, err
		}
		s.rec = rec
		bus.Observe(s.record)
	}
	return s, nil
}

// service is the interrupt handler for sessions without a script runner.
func (s *session) service() {
	if _, err := s.ctx.ServiceUSB(); err != nil {
		pkg.LogError(pkg.ComponentCLI, "interrupt not serviced", "error", err)
	}
	s.ctx.LogEvents()
}

func (s *session) record(t sim.Transaction) {
	state := ""
	if st, err := s.ctx.State(); err == nil {
		state = st.String()
	}
	if err := s.rec.Record(t, state); err != nil {
		pkg.LogWarn(pkg.ComponentCLI, "transaction not recorded", "error", err)
	}
}

func (s *session) close() error {
	if s.rec == nil {
		return nil
	}
	return s.rec.Close()
}

// printStats writes the interrupt counters of the session.
func (s *session) printStats(w io.Writer) {
	stats := s.ctx.Snapshot()
	fmt.Fprintf(w, "interrupts %d\n", stats.Interrupts)
	for o := pkg.OutcomeHandled; o <= pkg.OutcomeRequestError; o++ {
		if n := stats.Count(o); n > 0 {
			fmt.Fprintf(w, "  %-20s %d\n", o, n)
		}
	}
}
