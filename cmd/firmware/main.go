//go:build tinygo && stm32f072

// Command firmware runs the USB device engine on an STM32F072.
//
//	tinygo flash -target=stm32f072 ./cmd/firmware
package main

import (
	"log/slog"
	"runtime/interrupt"
	"time"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/device/hal"
	"github.com/bentwire/stm32f072-usb/device/hal/pma"
	"github.com/bentwire/stm32f072-usb/device/shared"
	"github.com/bentwire/stm32f072-usb/pkg"
)

// irqUSB is the USB global interrupt on the STM32F0x2 vector table.
const irqUSB = 31

// usb is shared between main and the USB interrupt.
var usb = shared.NewContext(shared.InterruptMasker{})

// handleUSB must not allocate. Interrupts taken before Install are
// dropped; what the engine did is logged from main.
func handleUSB(interrupt.Interrupt) {
	_, _ = usb.ServiceUSB()
}

func main() {
	pkg.SetLogLevel(slog.LevelInfo)

	engine := device.NewEngine(hal.Bind(), pma.New(pma.Bind()), device.DefaultDescriptorSet())
	if err := engine.Init(); err != nil {
		pkg.LogError(pkg.ComponentEngine, "init failed", "error", err)
		for {
			time.Sleep(time.Second)
		}
	}
	usb.Install(engine)

	irq := interrupt.New(irqUSB, handleUSB)
	irq.Enable()

	var last uint32
	for {
		time.Sleep(time.Second)
		usb.LogEvents()
		stats := usb.Snapshot()
		if stats.Interrupts == last {
			continue
		}
		last = stats.Interrupts
		state, _ := usb.State()
		pkg.LogInfo(pkg.ComponentEngine, "usb",
			"state", state.String(),
			"interrupts", stats.Interrupts,
			"resets", stats.Count(pkg.OutcomeReset),
			"stalls", stats.Count(pkg.OutcomeRequestError))
	}
}
