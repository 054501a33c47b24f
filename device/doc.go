// Package device implements the default control pipe of the STM32F0x2
// USB full-speed device peripheral.
//
// The [Engine] owns the peripheral registers ([hal.Registers]), the
// endpoint 0 register and packet memory ([pma.Memory]). It answers the
// enumeration requests a host issues after a bus reset from a fixed
// [DescriptorSet]. Everything else is reported through [pkg.Outcome].
//
// # Architecture
//
//   - [Engine] brings the peripheral up and services its interrupt
//   - [DescriptorSet] holds the device, configuration and string descriptors
//   - [ControlRequest] is a decoded SETUP packet
//   - [State] tracks Reset, Addressed and Configured
//
// # Control transfers
//
// IN responses are staged in 64-byte packets. A response shorter than the
// host's wLength that ends on a packet boundary is terminated with a
// zero-length packet. The host may end the data stage early with its
// zero-length status OUT, and a new SETUP always abandons the transfer in
// progress. SET_ADDRESS takes effect when its status IN completes.
//
// Requests with an OUT data stage are recognised but not serviced; they
// return [pkg.OutcomeUnimplementedStage].
//
// # Zero-Allocation Design
//
// The interrupt path does not allocate:
//
//   - Serialization via MarshalTo(buf) into the engine's response buffer
//   - Descriptor values are passed by value and copied with With methods
//   - Fixed-size arrays instead of maps for endpoint bookkeeping
//
// # Example
//
//	regs := hal.Bind()
//	mem := pma.New(pma.Bind())
//	engine := device.NewEngine(regs, mem, device.DefaultDescriptorSet())
//	if err := engine.Init(); err != nil {
//	    panic(err)
//	}
//	// From the USB interrupt:
//	outcome := engine.HandleInterrupt()
//
// A simulated peripheral with a scripted host is available in
// [github.com/bentwire/stm32f072-usb/device/hal/sim].
package device
