// Package hal describes the STM32F0x2 USB full-speed device peripheral.
//
// It holds the register map (base addresses, offsets, bit layout) and the
// [Register] abstraction the driver is written against. Everything above
// this package reads and writes registers only through [Register], so the
// same engine runs on the microcontroller and against the simulated
// peripheral in package sim.
//
// # Binding
//
// On target, [Bind] returns a [Registers] block whose fields point at the
// memory-mapped registers:
//
//	regs := hal.Bind()
//	eng := device.NewEngine(regs, pma.New(pma.Bind()), device.DefaultDescriptorSet())
//
// Off target, sim.Peripheral provides the same block with hardware write
// semantics (toggle bits, rc_w0 flags, read-only fields) modelled in
// software.
//
// # Register access rules
//
// Registers with plain read-write fields (CNTR, DADDR, BCDR, CRS_CR,
// RCC_APB1ENR) may be updated with [Modify]. ISTR flags are rc_w0 and are
// cleared by writing the complement of the flag. Endpoint registers carry
// toggle and rc_w0 fields and must only be written through package epr.
package hal
