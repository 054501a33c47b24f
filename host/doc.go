// Package host drives a USB device over a [Bus] the way a host controller
// does: it sequences the SETUP, data and status stages of control
// transfers and runs the enumeration a host performs after attach.
//
// The only Bus in this module is the simulated peripheral in
// [github.com/bentwire/stm32f072-usb/device/hal/sim], so the package is
// a test and tooling harness for the device driver rather than a host
// stack.
//
// # Example
//
//	p := sim.New()
//	h := host.New(p)
//	dev, err := h.Enumerate(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Print(dev.Summary("", ""))
package host
