package device_test

import (
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// handlerMallocs replaces the harness interrupt handler with one that sums
// the heap allocations made by HandleInterrupt alone.
func handlerMallocs(h *harness) *uint64 {
	var (
		total         uint64
		before, after runtime.MemStats
	)
	h.periph.OnInterrupt(func() {
		runtime.ReadMemStats(&before)
		outcome := h.engine.HandleInterrupt()
		runtime.ReadMemStats(&after)
		total += after.Mallocs - before.Mallocs
		h.outcomes = append(h.outcomes, outcome)
	})
	return &total
}

var _ = Describe("HandleInterrupt", func() {
	var (
		h       *harness
		mallocs *uint64
	)

	BeforeEach(func() {
		set := device.DefaultDescriptorSet()
		set.Strings = append(set.Strings, "Grüße")
		h = newHarness(set)
		Expect(h.engine.Init()).To(Succeed())
		mallocs = handlerMallocs(h)
	})

	It("should not allocate through enumeration", func() {
		h.periph.Reset()
		h.controlIn(0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 64))
		h.controlIn(0, device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, 255))
		h.controlIn(0, device.GetStringRequest(0, 0, 255))
		h.controlIn(0, device.GetStringRequest(3, device.LangIDUSEnglish, 255))

		h.setup(0, device.GetStringRequest(9, device.LangIDUSEnglish, 255))
		Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
		h.setup(0, device.GetDescriptorRequest(0x42, 0, 64))
		Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
		h.setup(0, device.ControlRequest{RequestType: 0xC0, Code: 0x01, Length: 4})
		Expect(h.outcome()).To(Equal(pkg.OutcomeProtocolMismatch))

		h.controlOut(0, device.SetAddressRequest(5))
		h.controlIn(5, device.GetStatusRequest())
		h.controlOut(5, device.SetConfigurationRequest(1))
		h.controlIn(5, device.GetConfigurationRequest())
		Expect(h.periph.Out(5, 1, []byte{1, 2, 3})).To(Succeed())
		h.periph.Frame()
		h.periph.Error()
		h.controlOut(5, device.SetConfigurationRequest(0))

		Expect(h.engine.State()).To(Equal(device.State{Kind: device.StateAddressed, Address: 5}))
		Expect(*mallocs).To(BeZero())
	})

	It("should keep what it did for the foreground", func() {
		h.periph.Reset()
		h.controlOut(0, device.SetAddressRequest(5))
		h.controlOut(5, device.SetConfigurationRequest(1))

		var events [device.TraceSize]device.Event
		n, dropped := h.engine.DrainEvents(events[:])
		Expect(dropped).To(BeZero())

		var kinds []device.EventKind
		for _, ev := range events[:n] {
			kinds = append(kinds, ev.Kind)
		}
		Expect(kinds).To(ContainElements(
			device.EventBusReset,
			device.EventAddressLatched,
			device.EventAddressAssigned,
			device.EventConfigured,
		))
		Expect(*mallocs).To(BeZero())

		n, _ = h.engine.DrainEvents(events[:])
		Expect(n).To(BeZero())
	})

	It("should count events overwritten between drains", func() {
		for i := 0; i < device.TraceSize; i++ {
			h.periph.Reset()
		}
		var events [device.TraceSize]device.Event
		n, dropped := h.engine.DrainEvents(events[:])
		Expect(n).To(Equal(device.TraceSize))
		// Each reset arms endpoint 1 and then records the reset itself.
		Expect(dropped).To(Equal(uint32(device.TraceSize)))
		Expect(events[n-1].Kind).To(Equal(device.EventBusReset))
	})
})
