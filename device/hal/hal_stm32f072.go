//go:build tinygo && stm32f072

package hal

import (
	"runtime/volatile"
	"unsafe"
)

func reg32(addr uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(addr))
}

// Bind returns the register block of the on-chip USB peripheral.
func Bind() *Registers {
	r := &Registers{
		CNTR:    reg32(USBBase + OffsetCNTR),
		ISTR:    reg32(USBBase + OffsetISTR),
		FNR:     reg32(USBBase + OffsetFNR),
		DADDR:   reg32(USBBase + OffsetDADDR),
		BTABLE:  reg32(USBBase + OffsetBTABLE),
		BCDR:    reg32(USBBase + OffsetBCDR),
		CRS:     reg32(CRSBase),
		APB1ENR: reg32(RCCAPB1ENR),
	}
	for i := range r.EP {
		r.EP[i] = reg32(USBBase + OffsetEP0R + uintptr(4*i))
	}
	return r
}
