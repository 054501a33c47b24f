//go:build tinygo && stm32f072

package pma

import (
	"runtime/volatile"
	"unsafe"

	"github.com/bentwire/stm32f072-usb/device/hal"
)

// Peripheral is the on-chip packet memory, accessed as half-words.
type Peripheral struct{}

// Bind returns the on-chip packet memory bus.
func Bind() Peripheral { return Peripheral{} }

func cell(i int) *volatile.Register16 {
	return (*volatile.Register16)(unsafe.Pointer(hal.PMABase + uintptr(2*i)))
}

// Get returns half-word i.
func (Peripheral) Get(i int) uint16 { return cell(i).Get() }

// Set stores half-word i.
func (Peripheral) Set(i int, v uint16) { cell(i).Set(v) }
