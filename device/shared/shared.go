package shared

import (
	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/pkg"
)

//go:generate mockgen -destination=mock_masker_test.go -package=shared -write_package_comment=false github.com/bentwire/stm32f072-usb/device/shared Masker

// State is the interrupt mask saved by Masker.Disable.
type State uintptr

// Masker disables and restores interrupt delivery.
type Masker interface {
	Disable() State
	Restore(State)
}

// CriticalSection proves that interrupts are masked. The zero value is
// not usable; tokens are only created by Context.Free.
type CriticalSection struct {
	_     [0]func() // Not comparable
	valid bool
}

// Mutex is a cell whose value is reachable only inside a critical section.
type Mutex[T any] struct {
	v T
}

// NewMutex returns a cell holding v.
func NewMutex[T any](v T) Mutex[T] { return Mutex[T]{v: v} }

// Borrow returns a pointer to the value. The pointer must not outlive the
// critical section.
func (m *Mutex[T]) Borrow(cs *CriticalSection) *T {
	cs.check()
	return &m.v
}

// Replace stores v and returns the previous value.
func (m *Mutex[T]) Replace(cs *CriticalSection, v T) T {
	cs.check()
	old := m.v
	m.v = v
	return old
}

func (cs *CriticalSection) check() {
	if cs == nil || !cs.valid {
		panic("shared: access outside critical section")
	}
}

// Stats counts interrupt outcomes for the foreground.
type Stats struct {
	Interrupts uint32
	Outcomes   [pkg.OutcomeRequestError + 1]uint32
}

// Count returns how often outcome o was reported.
func (s Stats) Count(o pkg.Outcome) uint32 {
	if o < 0 || int(o) >= len(s.Outcomes) {
		return 0
	}
	return s.Outcomes[o]
}

// Context is the state shared between the foreground and the USB
// interrupt handler.
type Context struct {
	masker Masker

	USB   Mutex[*device.Engine]
	Stats Mutex[Stats]

	cs CriticalSection // Token lent out by Free
}

// NewContext returns an empty context masking with m.
func NewContext(m Masker) *Context {
	return &Context{masker: m}
}

// Free runs fn with interrupts masked. The token passed to fn is
// invalidated when fn returns. Free does not allocate, so the interrupt
// handler may use it; nested calls share the token and leave it valid
// until the outermost returns.
func (c *Context) Free(fn func(cs *CriticalSection)) {
	state := c.masker.Disable()
	prev := c.cs.valid
	c.cs.valid = true
	defer func() {
		c.cs.valid = prev
		c.masker.Restore(state)
	}()
	fn(&c.cs)
}

// Install hands the engine to the interrupt handler. Any previous engine
// is returned.
func (c *Context) Install(e *device.Engine) (previous *device.Engine) {
	c.Free(func(cs *CriticalSection) {
		previous = c.USB.Replace(cs, e)
	})
	pkg.LogDebug(pkg.ComponentShared, "engine installed")
	return previous
}

// ServiceUSB is the body of the USB interrupt handler. It services one
// interrupt on the installed engine and counts the outcome.
func (c *Context) ServiceUSB() (outcome pkg.Outcome, err error) {
	c.Free(func(cs *CriticalSection) {
		e := *c.USB.Borrow(cs)
		if e == nil {
			err = pkg.ErrNotInstalled
			return
		}
		outcome = e.HandleInterrupt()
		s := c.Stats.Borrow(cs)
		s.Interrupts++
		if int(outcome) < len(s.Outcomes) {
			s.Outcomes[outcome]++
		}
	})
	return outcome, err
}

// Snapshot returns a copy of the interrupt counters.
func (c *Context) Snapshot() (s Stats) {
	c.Free(func(cs *CriticalSection) {
		s = *c.Stats.Borrow(cs)
	})
	return s
}

// State returns the device state of the installed engine.
func (c *Context) State() (s device.State, err error) {
	c.Free(func(cs *CriticalSection) {
		e := *c.USB.Borrow(cs)
		if e == nil {
			err = pkg.ErrNotInstalled
			return
		}
		s = e.State()
	})
	return s, err
}

// LogEvents drains the installed engine's trace inside a critical section
// and logs it outside one. Call it from the foreground.
func (c *Context) LogEvents() {
	var buf [device.TraceSize]device.Event
	var n int
	var dropped uint32
	c.Free(func(cs *CriticalSection) {
		if e := *c.USB.Borrow(cs); e != nil {
			n, dropped = e.DrainEvents(buf[:])
		}
	})
	device.LogEvents(buf[:n], dropped)
}
