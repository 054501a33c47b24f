// Package prof profiles the usbsim host-side simulator.
//
// It is compiled in with the "profile" build tag:
//
//	go build -tags profile ./cmd/usbsim
//	usbsim run --cpuprofile cpu.prof --memprofile heap.prof script.usb
//
// Without the tag every function is a no-op and [Enabled] is false, so
// the command can keep its flags without pulling in runtime/pprof.
package prof
