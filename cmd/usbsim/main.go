// Command usbsim drives the USB device engine on a simulated STM32F072
// peripheral from the host's side of the bus.
package main

import "github.com/bentwire/stm32f072-usb/cmd/usbsim/cmd"

func main() {
	cmd.Execute()
}
