package device_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/epr"
	"github.com/bentwire/stm32f072-usb/device/hal/pma"
	"github.com/bentwire/stm32f072-usb/device/hal/sim"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// harness drives an engine through the simulated peripheral the way a
// host controller would.
type harness struct {
	periph   *sim.Peripheral
	engine   *device.Engine
	outcomes []pkg.Outcome
}

func newHarness(set device.DescriptorSet) *harness {
	h := &harness{periph: sim.New()}
	h.engine = device.NewEngine(h.periph.Registers(), h.periph.Memory(), set)
	h.periph.OnInterrupt(func() {
		h.outcomes = append(h.outcomes, h.engine.HandleInterrupt())
	})
	return h
}

func (h *harness) outcome() pkg.Outcome {
	Expect(h.outcomes).NotTo(BeEmpty())
	return h.outcomes[len(h.outcomes)-1]
}

func (h *harness) setup(address uint8, req device.ControlRequest) {
	Expect(h.periph.Setup(address, 0, req.Packet())).To(Succeed())
}

// controlIn runs a complete IN control transfer and returns the data stage.
func (h *harness) controlIn(address uint8, req device.ControlRequest) []byte {
	h.setup(address, req)
	var data []byte
	for {
		packet, err := h.periph.In(address, 0)
		Expect(err).NotTo(HaveOccurred())
		data = append(data, packet...)
		if len(packet) < device.MaxPacketSize0 || len(data) >= int(req.Length) {
			break
		}
	}
	Expect(h.periph.Out(address, 0, nil)).To(Succeed())
	Expect(h.outcome()).To(Equal(pkg.OutcomeHandled))
	return data
}

// controlOut runs an OUT control transfer without a data stage.
func (h *harness) controlOut(address uint8, req device.ControlRequest) {
	h.setup(address, req)
	Expect(h.outcome()).To(Equal(pkg.OutcomeHandled))
	status, err := h.periph.In(address, 0)
	Expect(err).NotTo(HaveOccurred())
	Expect(status).To(BeEmpty())
}

func statusOf(r *sim.EndpointRegister, dir hal.Direction) epr.Status {
	return epr.New(r, 0).Status(dir)
}

// bulkPairs declares n interfaces, each with a bulk IN and OUT endpoint.
func bulkPairs(n int) device.DescriptorSet {
	set := device.DefaultDescriptorSet()
	c := &set.Configurations[0]
	c.Interfaces = nil
	for i := 1; i <= n; i++ {
		c.Interfaces = append(c.Interfaces, device.Interface{
			Descriptor: device.NewInterfaceDescriptor().
				WithInterfaceNumber(uint8(i - 1)).
				WithNumEndpoints(2),
			Endpoints: []device.EndpointDescriptor{
				device.NewEndpointDescriptor().WithEndpointAddress(uint8(i)),
				device.NewEndpointDescriptor().WithEndpointAddress(0x80 | uint8(i)),
			},
		})
	}
	return set
}

var _ = Describe("Engine", func() {
	var (
		set device.DescriptorSet
		h   *harness
	)

	BeforeEach(func() {
		set = device.DefaultDescriptorSet()
	})

	JustBeforeEach(func() {
		h = newHarness(set)
		Expect(h.engine.Init()).To(Succeed())
	})

	Describe("Init", func() {
		It("should power the peripheral and connect", func() {
			Expect(h.periph.Powered()).To(BeTrue())
			Expect(h.periph.Connected()).To(BeTrue())

			regs := h.periph.Registers()
			Expect(regs.CNTR.Get() & (hal.CNTR_FRES | hal.CNTR_PDWN)).To(BeZero())
			Expect(regs.CNTR.Get() & hal.CNTR_CTRM).NotTo(BeZero())
			Expect(regs.CNTR.Get() & hal.CNTR_RESETM).NotTo(BeZero())
			Expect(regs.CNTR.Get() & hal.CNTR_SOFM).To(BeZero())
			Expect(regs.BTABLE.Get()).To(BeZero())
			Expect(regs.APB1ENR.Get()).To(Equal(uint32(hal.RCC_APB1ENR_USBEN | hal.RCC_APB1ENR_CRSEN)))
			Expect(regs.CRS.Get()).To(Equal(uint32(hal.CRS_CR_CEN | hal.CRS_CR_AUTOTRIMEN)))

			addr, enabled := h.periph.Address()
			Expect(addr).To(BeZero())
			Expect(enabled).To(BeTrue())
			Expect(h.engine.State()).To(Equal(device.State{Kind: device.StateBootReset}))
		})

		It("should refuse an endpoint zero size other than 64", func() {
			bad := device.DefaultDescriptorSet()
			bad.Device = bad.Device.WithMaxPacketSize0(8)
			err := device.NewEngine(h.periph.Registers(), h.periph.Memory(), bad).Init()
			Expect(err).To(MatchError(pkg.ErrInvalidParameter))
		})

		It("should refuse endpoints beyond packet memory", func() {
			bad := device.DefaultDescriptorSet()
			bad.Configurations[0].Interfaces[0].Endpoints[0] =
				device.NewEndpointDescriptor().WithEndpointAddress(0x07)
			err := device.NewEngine(h.periph.Registers(), h.periph.Memory(), bad).Init()
			Expect(err).To(MatchError(pkg.ErrInvalidEndpoint))
		})

		It("should refuse a configuration too large for one control transfer", func() {
			bad := device.DefaultDescriptorSet()
			c := &bad.Configurations[0]
			for i := 1; i <= 57; i++ {
				c.Interfaces = append(c.Interfaces, device.Interface{
					Descriptor: device.NewInterfaceDescriptor().
						WithInterfaceNumber(uint8(i)).
						WithNumEndpoints(0),
				})
			}
			Expect(c.TotalLength()).To(BeNumerically(">", device.MaxResponseSize))
			err := device.NewEngine(h.periph.Registers(), h.periph.Memory(), bad).Init()
			Expect(err).To(MatchError(pkg.ErrBufferTooSmall))
		})

		It("should refuse an unbound register", func() {
			regs := *h.periph.Registers()
			regs.EP[3] = nil
			err := device.NewEngine(&regs, h.periph.Memory(), set).Init()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("EP3R"))
		})
	})

	Describe("bus reset", func() {
		JustBeforeEach(func() {
			h.periph.Reset()
		})

		It("should arm endpoint zero for SETUP", func() {
			Expect(h.outcome()).To(Equal(pkg.OutcomeReset))
			Expect(h.engine.State()).To(Equal(device.State{Kind: device.StateReset}))

			ep0 := h.periph.Endpoint(0)
			Expect(statusOf(ep0, hal.RX)).To(Equal(epr.StatusValid))
			Expect(statusOf(ep0, hal.TX)).To(Equal(epr.StatusNak))
			Expect(epr.New(ep0, 0).Type()).To(Equal(epr.TypeControl))

			d, err := h.periph.Memory().BufferDescriptor(0)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.AddrTX()).To(Equal(uint16(pma.EP0TXOffset)))
			Expect(d.CountTX()).To(BeZero())
			Expect(d.AddrRX()).To(Equal(uint16(pma.EP0RXOffset)))
			Expect(d.CountRX()).To(Equal(uint16(pma.Capacity64)))
		})

		It("should program declared data endpoints disabled", func() {
			ep1 := h.periph.Endpoint(1)
			Expect(epr.New(ep1, 1).Address()).To(Equal(uint8(1)))
			Expect(statusOf(ep1, hal.RX)).To(Equal(epr.StatusDisabled))
			Expect(statusOf(ep1, hal.TX)).To(Equal(epr.StatusDisabled))

			d, err := h.periph.Memory().BufferDescriptor(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.AddrRX()).To(Equal(uint16(pma.EP1RXOffset)))
			Expect(d.AddrTX()).To(Equal(uint16(pma.EP1TXOffset)))
		})

		It("should restore the same state when repeated mid-transfer", func() {
			h.setup(0, device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, 255))
			h.periph.Reset()

			Expect(h.outcome()).To(Equal(pkg.OutcomeReset))
			Expect(statusOf(h.periph.Endpoint(0), hal.RX)).To(Equal(epr.StatusValid))
			Expect(statusOf(h.periph.Endpoint(0), hal.TX)).To(Equal(epr.StatusNak))
			Expect(epr.New(h.periph.Endpoint(0), 0).StatusOut()).To(BeFalse())
			_, pending := h.engine.PendingAddress()
			Expect(pending).To(BeFalse())
		})
	})

	Context("after bus reset", func() {
		JustBeforeEach(func() {
			h.periph.Reset()
		})

		It("should return the device descriptor", func() {
			data := h.controlIn(0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 64))
			Expect(data).To(Equal(set.Device.Bytes()))
			Expect(h.engine.LastRequest().Request).To(Equal(device.RequestGetDescriptor))
		})

		It("should truncate to wLength", func() {
			data := h.controlIn(0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 8))
			Expect(data).To(Equal(set.Device.Bytes()[:8]))
		})

		It("should return strings", func() {
			data := h.controlIn(0, device.GetStringRequest(2, device.LangIDUSEnglish, 255))
			s, err := device.ParseStringDescriptor(data)
			Expect(err).NotTo(HaveOccurred())
			Expect(s).To(Equal("STM32F072 USB"))
		})

		It("should apply SET_ADDRESS only after the status stage", func() {
			h.setup(0, device.SetAddressRequest(7))
			Expect(h.outcome()).To(Equal(pkg.OutcomeHandled))

			addr, _ := h.periph.Address()
			Expect(addr).To(BeZero())
			pending, ok := h.engine.PendingAddress()
			Expect(ok).To(BeTrue())
			Expect(pending).To(Equal(uint8(7)))
			Expect(h.engine.State().Kind).To(Equal(device.StateReset))

			status, err := h.periph.In(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(status).To(BeEmpty())

			addr, enabled := h.periph.Address()
			Expect(addr).To(Equal(uint8(7)))
			Expect(enabled).To(BeTrue())
			Expect(h.engine.State()).To(Equal(device.State{Kind: device.StateAddressed, Address: 7}))
			Expect(h.engine.State().String()).To(Equal("Addressed(7)"))

			Expect(h.periph.Setup(0, 0, device.GetStatusRequest().Packet())).
				To(MatchError(pkg.ErrNoResponse))
		})

		It("should stall an out-of-range address", func() {
			h.setup(0, device.SetAddressRequest(128))
			Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
			_, err := h.periph.In(0, 0)
			Expect(err).To(MatchError(pkg.ErrStall))
		})

		It("should stall unknown descriptor types", func() {
			h.setup(0, device.GetDescriptorRequest(0x42, 0, 64))
			Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
			_, err := h.periph.In(0, 0)
			Expect(err).To(MatchError(pkg.ErrStall))

			// A stalled pipe still takes the next SETUP.
			data := h.controlIn(0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 18))
			Expect(data).To(HaveLen(device.DeviceDescriptorSize))
		})

		It("should stall the device qualifier of a full-speed device", func() {
			h.setup(0, device.GetDescriptorRequest(device.DescriptorTypeDeviceQualifier, 0, 10))
			Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
		})

		It("should stall GET_STATUS in the OUT direction", func() {
			h.setup(0, device.ControlRequest{RequestType: 0x00, Code: 0x00, Length: 2})
			Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
			_, err := h.periph.In(0, 0)
			Expect(err).To(MatchError(pkg.ErrStall))
			Expect(statusOf(h.periph.Endpoint(0), hal.RX)).To(Equal(epr.StatusValid))
		})

		It("should answer GET_STATUS", func() {
			data := h.controlIn(0, device.GetStatusRequest())
			Expect(data).To(Equal([]byte{0, 0}))
		})

		It("should report vendor requests as a protocol mismatch", func() {
			h.setup(0, device.ControlRequest{RequestType: 0xC0, Code: 0x01, Length: 4})
			Expect(h.outcome()).To(Equal(pkg.OutcomeProtocolMismatch))
			_, err := h.periph.In(0, 0)
			Expect(err).To(MatchError(pkg.ErrNAK))
		})

		It("should report OUT data stages as unimplemented", func() {
			h.setup(0, device.ControlRequest{RequestType: 0x00, Code: 0x07, Value: 0x0100, Length: 18})
			Expect(h.outcome()).To(Equal(pkg.OutcomeUnimplementedStage))

			Expect(h.periph.Out(0, 0, make([]byte, 18))).To(Succeed())
			Expect(h.outcome()).To(Equal(pkg.OutcomeUnimplementedStage))
			_, err := h.periph.In(0, 0)
			Expect(err).To(MatchError(pkg.ErrNAK))
		})

		It("should refuse a data payload during the status stage", func() {
			h.setup(0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 64))
			_, err := h.periph.In(0, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(h.periph.Out(0, 0, []byte{1})).To(MatchError(pkg.ErrStall))
		})

		It("should stall GET_CONFIGURATION before an address is assigned", func() {
			h.setup(0, device.GetConfigurationRequest())
			Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
		})

		It("should ignore status flags it does not act on", func() {
			h.periph.Suspend()
			Expect(h.outcome()).To(Equal(pkg.OutcomeIgnored))
			Expect(h.periph.Pending()).To(BeZero())

			before := len(h.outcomes)
			h.periph.Frame()
			Expect(h.outcomes).To(HaveLen(before))
		})

		It("should report bus errors as hardware signaled", func() {
			h.periph.Error()
			Expect(h.outcome()).To(Equal(pkg.OutcomeHardwareSignaled))
			Expect(h.periph.Registers().ISTR.Get() & hal.ISTR_ERR).To(BeZero())
		})

		Context("with a configuration larger than one packet", func() {
			BeforeEach(func() {
				set = bulkPairs(3)
			})

			It("should split the data stage into packets", func() {
				h.setup(0, device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, 255))

				first, err := h.periph.In(0, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(first).To(HaveLen(64))
				Expect(epr.New(h.periph.Endpoint(0), 0).StatusOut()).To(BeTrue())

				second, err := h.periph.In(0, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(second).To(HaveLen(78 - 64))

				Expect(h.periph.Out(0, 0, nil)).To(Succeed())
				Expect(h.outcome()).To(Equal(pkg.OutcomeHandled))
				Expect(append(first, second...)).To(Equal(set.Configurations[0].Bytes()))

				var parsed device.Configuration
				Expect(device.ParseConfiguration(append(first, second...), &parsed)).To(Succeed())
				Expect(parsed.Interfaces).To(HaveLen(3))
			})

			It("should let the host end the data stage early", func() {
				h.setup(0, device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, 255))
				_, err := h.periph.In(0, 0)
				Expect(err).NotTo(HaveOccurred())

				Expect(h.periph.Out(0, 0, nil)).To(Succeed())
				Expect(h.outcome()).To(Equal(pkg.OutcomeHandled))
				_, err = h.periph.In(0, 0)
				Expect(err).To(MatchError(pkg.ErrNAK))
			})

			It("should arm both directions of a shared endpoint number", func() {
				h.controlOut(0, device.SetAddressRequest(7))
				h.controlOut(7, device.SetConfigurationRequest(1))

				for n := 1; n <= 3; n++ {
					Expect(statusOf(h.periph.Endpoint(n), hal.RX)).To(Equal(epr.StatusValid))
					Expect(statusOf(h.periph.Endpoint(n), hal.TX)).To(Equal(epr.StatusNak))
				}
				_, err := h.periph.In(7, 2)
				Expect(err).To(MatchError(pkg.ErrNAK))
			})

			It("should abandon the transfer on a new SETUP", func() {
				h.setup(0, device.GetDescriptorRequest(device.DescriptorTypeConfiguration, 0, 255))
				_, err := h.periph.In(0, 0)
				Expect(err).NotTo(HaveOccurred())

				data := h.controlIn(0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 64))
				Expect(data).To(Equal(set.Device.Bytes()))
			})
		})

		Context("with a response ending on a packet boundary", func() {
			BeforeEach(func() {
				set.Strings[1] = strings.Repeat("x", 31) // 2 + 62 bytes
			})

			It("should terminate with a zero-length packet", func() {
				h.setup(0, device.GetStringRequest(2, device.LangIDUSEnglish, 255))
				first, err := h.periph.In(0, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(first).To(HaveLen(64))

				zlp, err := h.periph.In(0, 0)
				Expect(err).NotTo(HaveOccurred())
				Expect(zlp).To(BeEmpty())

				Expect(h.periph.Out(0, 0, nil)).To(Succeed())
				Expect(h.outcome()).To(Equal(pkg.OutcomeHandled))
			})

			It("should not add one when the host asked for exactly that much", func() {
				data := h.controlIn(0, device.GetStringRequest(2, device.LangIDUSEnglish, 64))
				Expect(data).To(HaveLen(64))
			})
		})

		Context("once addressed", func() {
			JustBeforeEach(func() {
				h.controlOut(0, device.SetAddressRequest(7))
			})

			It("should configure and arm the data endpoints", func() {
				h.controlOut(7, device.SetConfigurationRequest(1))
				Expect(h.engine.State()).To(Equal(device.State{
					Kind: device.StateConfigured, Address: 7, Configuration: 1,
				}))

				ep1 := h.periph.Endpoint(1)
				Expect(statusOf(ep1, hal.RX)).To(Equal(epr.StatusValid))
				Expect(epr.New(ep1, 1).Type()).To(Equal(epr.TypeBulk))

				Expect(h.periph.Out(7, 1, []byte("payload"))).To(Succeed())
				Expect(h.outcome()).To(Equal(pkg.OutcomeIgnored))
				Expect(statusOf(ep1, hal.RX)).To(Equal(epr.StatusValid))

				Expect(h.controlIn(7, device.GetConfigurationRequest())).To(Equal([]byte{1}))
			})

			It("should refuse SET_ADDRESS while configured", func() {
				h.controlOut(7, device.SetConfigurationRequest(1))
				h.setup(7, device.SetAddressRequest(9))
				Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
			})

			It("should disarm the data endpoints for configuration zero", func() {
				h.controlOut(7, device.SetConfigurationRequest(1))
				h.controlOut(7, device.SetConfigurationRequest(0))
				Expect(h.engine.State()).To(Equal(device.State{Kind: device.StateAddressed, Address: 7}))
				Expect(h.periph.Out(7, 1, []byte{1})).To(MatchError(pkg.ErrNoResponse))
				Expect(h.controlIn(7, device.GetConfigurationRequest())).To(Equal([]byte{0}))
			})

			It("should stall an unknown configuration value", func() {
				h.setup(7, device.SetConfigurationRequest(5))
				Expect(h.outcome()).To(Equal(pkg.OutcomeRequestError))
				Expect(h.engine.State().Kind).To(Equal(device.StateAddressed))
			})

			It("should return to the default address on bus reset", func() {
				h.periph.Reset()
				Expect(h.engine.State()).To(Equal(device.State{Kind: device.StateReset}))
				addr, _ := h.periph.Address()
				Expect(addr).To(BeZero())
			})
		})
	})
})
