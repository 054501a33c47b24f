// Package sim models the STM32F0x2 USB peripheral in software.
//
// A [Peripheral] exposes the same [hal.Registers] block the driver uses on
// target, backed by registers that honour the hardware write semantics:
// toggle fields flip on 1, rc_w0 flags clear on 0, and read-only fields
// ignore writes. Packet memory is a [pma.RAM].
//
// The host side of the bus is driven with [Peripheral.Reset],
// [Peripheral.Setup], [Peripheral.In] and [Peripheral.Out]. Each call
// performs what the peripheral would do for one token (copying payload
// through packet memory, latching completion flags, answering NAK or STALL
// from the endpoint status) and then raises the interrupt by calling the
// handler installed with [Peripheral.OnInterrupt], synchronously, while the
// interrupt condition is pending and unmasked.
//
//	p := sim.New()
//	eng := device.NewEngine(p.Registers(), p.Memory(), device.DefaultDescriptorSet())
//	p.OnInterrupt(func() { eng.HandleInterrupt() })
//	eng.Init()
//	p.Reset()
//	data, err := p.In(0, 0)
//
// A Peripheral serialises host transactions but is otherwise not safe
// for concurrent use; the interrupt handler runs on the caller's goroutine.
package sim
