package hal

import "fmt"

// Peripheral base addresses (RM0091).
const (
	USBBase    uintptr = 0x4000_5C00 // USB device registers
	PMABase    uintptr = 0x4000_6000 // Packet memory area
	CRSBase    uintptr = 0x4000_6C00 // Clock recovery system
	RCCAPB1ENR uintptr = 0x4002_101C // RCC APB1 peripheral clock enable
)

// USB register offsets from USBBase.
const (
	OffsetEP0R   = 0x00 // EPnR at OffsetEP0R + 4*n
	OffsetCNTR   = 0x40 // Control
	OffsetISTR   = 0x44 // Interrupt status
	OffsetFNR    = 0x48 // Frame number
	OffsetDADDR  = 0x4C // Device address
	OffsetBTABLE = 0x50 // Buffer table address
	OffsetLPMCSR = 0x54 // LPM control and status
	OffsetBCDR   = 0x58 // Battery charging detector
)

// NumEndpoints is the number of endpoint registers.
const NumEndpoints = 8

// CNTR register bits.
const (
	CNTR_FRES     = 1 << 0  // Force USB reset
	CNTR_PDWN     = 1 << 1  // Power down
	CNTR_LPMODE   = 1 << 2  // Low-power mode
	CNTR_FSUSP    = 1 << 3  // Force suspend
	CNTR_RESUME   = 1 << 4  // Resume request
	CNTR_L1RESUME = 1 << 5  // LPM L1 resume request
	CNTR_L1REQM   = 1 << 7  // LPM L1 state request interrupt mask
	CNTR_ESOFM    = 1 << 8  // Expected start of frame interrupt mask
	CNTR_SOFM     = 1 << 9  // Start of frame interrupt mask
	CNTR_RESETM   = 1 << 10 // USB reset interrupt mask
	CNTR_SUSPM    = 1 << 11 // Suspend mode interrupt mask
	CNTR_WKUPM    = 1 << 12 // Wakeup interrupt mask
	CNTR_ERRM     = 1 << 13 // Error interrupt mask
	CNTR_PMAOVRM  = 1 << 14 // Packet memory overrun interrupt mask
	CNTR_CTRM     = 1 << 15 // Correct transfer interrupt mask
)

// ISTR register bits. Flags are rc_w0: writing 0 clears, writing 1 keeps.
const (
	ISTR_EP_ID  = 0x000F  // Endpoint identifier (read-only)
	ISTR_DIR    = 1 << 4  // Direction of transaction (read-only)
	ISTR_L1REQ  = 1 << 7  // LPM L1 state request
	ISTR_ESOF   = 1 << 8  // Expected start of frame
	ISTR_SOF    = 1 << 9  // Start of frame
	ISTR_RESET  = 1 << 10 // USB reset request
	ISTR_SUSP   = 1 << 11 // Suspend mode request
	ISTR_WKUP   = 1 << 12 // Wakeup
	ISTR_ERR    = 1 << 13 // Error
	ISTR_PMAOVR = 1 << 14 // Packet memory overrun
	ISTR_CTR    = 1 << 15 // Correct transfer (read-only)

	// ISTR_FLAGS are the rc_w0 bits of ISTR.
	ISTR_FLAGS = ISTR_L1REQ | ISTR_ESOF | ISTR_SOF | ISTR_RESET |
		ISTR_SUSP | ISTR_WKUP | ISTR_ERR | ISTR_PMAOVR
)

// DADDR register bits.
const (
	DADDR_ADD = 0x7F   // Device address
	DADDR_EF  = 1 << 7 // Enable function
)

// FNR register fields.
const (
	FNR_FN = 0x07FF // Frame number
)

// BCDR register bits.
const (
	BCDR_DPPU = 1 << 15 // DP pull-up control
)

// CRS_CR register bits.
const (
	CRS_CR_CEN        = 1 << 5 // Frequency error counter enable
	CRS_CR_AUTOTRIMEN = 1 << 6 // Automatic trimming enable
)

// RCC_APB1ENR register bits.
const (
	RCC_APB1ENR_USBEN = 1 << 23 // USB clock enable
	RCC_APB1ENR_CRSEN = 1 << 27 // CRS clock enable
)

// Register is a 32-bit memory-mapped register.
//
// On target this is satisfied by *volatile.Register32; off target the
// sim package supplies registers that model the hardware write semantics.
type Register interface {
	Get() uint32
	Set(value uint32)
}

// Registers is the USB peripheral register block plus the clock-gate and
// clock-recovery registers the driver touches during initialization.
type Registers struct {
	EP     [NumEndpoints]Register
	CNTR   Register
	ISTR   Register
	FNR    Register
	DADDR  Register
	BTABLE Register
	BCDR   Register

	CRS     Register // CRS_CR
	APB1ENR Register // RCC_APB1ENR
}

// Validate reports an error naming the first unbound register.
func (r *Registers) Validate() error {
	named := []struct {
		name string
		reg  Register
	}{
		{"CNTR", r.CNTR}, {"ISTR", r.ISTR}, {"FNR", r.FNR},
		{"DADDR", r.DADDR}, {"BTABLE", r.BTABLE}, {"BCDR", r.BCDR},
		{"CRS_CR", r.CRS}, {"RCC_APB1ENR", r.APB1ENR},
	}
	for _, n := range named {
		if n.reg == nil {
			return fmt.Errorf("hal: register %s not bound", n.name)
		}
	}
	for i, ep := range r.EP {
		if ep == nil {
			return fmt.Errorf("hal: register EP%dR not bound", i)
		}
	}
	return nil
}

// Modify performs a plain read-modify-write: bits in clear are cleared,
// then bits in set are set. Only for registers without toggle or rc_w0
// fields (CNTR, DADDR, BCDR, CRS_CR, RCC).
func Modify(r Register, clear, set uint32) {
	r.Set(r.Get()&^clear | set)
}

// Direction selects the receive (host-to-device) or transmit
// (device-to-host) half of an endpoint.
type Direction uint8

// Endpoint directions.
const (
	RX Direction = iota // OUT and SETUP tokens
	TX                  // IN tokens
)

// String returns "RX" or "TX".
func (d Direction) String() string {
	if d == TX {
		return "TX"
	}
	return "RX"
}
