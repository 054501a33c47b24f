package shared

import (
	"bytes"
	"log/slog"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bentwire/stm32f072-usb/device"
	"github.com/bentwire/stm32f072-usb/device/hal/sim"
	"github.com/bentwire/stm32f072-usb/pkg"
)

func TestFreeMasksAroundCallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockMasker(ctrl)

	var inside bool
	gomock.InOrder(
		m.EXPECT().Disable().Return(State(0x5A)),
		m.EXPECT().Restore(State(0x5A)).Do(func(State) {
			assert.True(t, inside, "restored before the callback ran")
		}),
	)

	c := NewContext(m)
	c.Free(func(cs *CriticalSection) {
		inside = true
		c.Stats.Borrow(cs).Interrupts = 3
	})
}

func TestFreeRestoresOnPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockMasker(ctrl)
	m.EXPECT().Disable().Return(State(1))
	m.EXPECT().Restore(State(1))

	c := NewContext(m)
	require.Panics(t, func() {
		c.Free(func(*CriticalSection) { panic("boom") })
	})
}

func TestTokenExpires(t *testing.T) {
	c := NewContext(&LockMasker{})
	var leaked *CriticalSection
	c.Free(func(cs *CriticalSection) { leaked = cs })

	require.Panics(t, func() { c.Stats.Borrow(leaked) })
	require.Panics(t, func() { c.Stats.Borrow(&CriticalSection{}) })
	require.Panics(t, func() { c.USB.Replace(nil, nil) })
}

func TestMutexReplace(t *testing.T) {
	c := NewContext(&LockMasker{})
	m := NewMutex(1)
	c.Free(func(cs *CriticalSection) {
		assert.Equal(t, 1, m.Replace(cs, 2))
		assert.Equal(t, 2, *m.Borrow(cs))
	})
}

func TestServiceUSBNotInstalled(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockMasker(ctrl)
	m.EXPECT().Disable().Return(State(0))
	m.EXPECT().Restore(State(0))

	_, err := NewContext(m).ServiceUSB()
	require.ErrorIs(t, err, pkg.ErrNotInstalled)
}

func newInstalled(t *testing.T, m Masker) (*Context, *sim.Peripheral) {
	t.Helper()
	p := sim.New()
	e := device.NewEngine(p.Registers(), p.Memory(), device.DefaultDescriptorSet())
	require.NoError(t, e.Init())

	c := NewContext(m)
	require.Nil(t, c.Install(e))
	p.OnInterrupt(func() {
		_, err := c.ServiceUSB()
		require.NoError(t, err)
	})
	return c, p
}

func TestServiceUSBCountsOutcomes(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockMasker(ctrl)
	// Install, then one critical section per interrupt, then the snapshot.
	m.EXPECT().Disable().Return(State(7)).Times(4)
	m.EXPECT().Restore(State(7)).Times(4)

	c, p := newInstalled(t, m)
	p.Reset()
	p.Error()

	s := c.Snapshot()
	assert.Equal(t, uint32(2), s.Interrupts)
	assert.Equal(t, uint32(1), s.Count(pkg.OutcomeReset))
	assert.Equal(t, uint32(1), s.Count(pkg.OutcomeHardwareSignaled))
	assert.Zero(t, s.Count(pkg.Outcome(99)))
}

func TestStateThroughContext(t *testing.T) {
	c, p := newInstalled(t, &LockMasker{})
	p.Reset()
	require.NoError(t, p.Setup(0, 0, device.SetAddressRequest(5).Packet()))
	_, err := p.In(0, 0)
	require.NoError(t, err)

	s, err := c.State()
	require.NoError(t, err)
	assert.Equal(t, device.State{Kind: device.StateAddressed, Address: 5}, s)

	_, err = NewContext(&LockMasker{}).State()
	require.ErrorIs(t, err, pkg.ErrNotInstalled)
}

func TestLockMaskerSerialises(t *testing.T) {
	c := NewContext(&LockMasker{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Free(func(cs *CriticalSection) {
					c.Stats.Borrow(cs).Interrupts++
				})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint32(800), c.Snapshot().Interrupts)
}

func TestServiceUSBDoesNotAllocate(t *testing.T) {
	p := sim.New()
	e := device.NewEngine(p.Registers(), p.Memory(), device.DefaultDescriptorSet())
	require.NoError(t, e.Init())
	c := NewContext(&LockMasker{})
	c.Install(e)

	var (
		mallocs       uint64
		before, after runtime.MemStats
	)
	p.OnInterrupt(func() {
		runtime.ReadMemStats(&before)
		_, _ = c.ServiceUSB()
		runtime.ReadMemStats(&after)
		mallocs += after.Mallocs - before.Mallocs
	})

	p.Reset()
	require.NoError(t, p.Setup(0, 0, device.GetDescriptorRequest(device.DescriptorTypeDevice, 0, 64).Packet()))
	_, err := p.In(0, 0)
	require.NoError(t, err)
	require.NoError(t, p.Out(0, 0, nil))
	require.NoError(t, p.Setup(0, 0, device.SetAddressRequest(5).Packet()))
	_, err = p.In(0, 0)
	require.NoError(t, err)
	require.NoError(t, p.Setup(5, 0, device.SetConfigurationRequest(1).Packet()))
	_, err = p.In(5, 0)
	require.NoError(t, err)
	p.Error()

	assert.Zero(t, mallocs)
	assert.Equal(t, uint32(9), c.Snapshot().Interrupts)
}

func TestLogEventsDrainsEngine(t *testing.T) {
	var buf bytes.Buffer
	prev := pkg.DefaultLogger
	defer pkg.SetLogger(prev)
	pkg.SetLogger(pkg.NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewContext(&LockMasker{}).LogEvents()
	assert.Empty(t, buf.String())

	c, p := newInstalled(t, &LockMasker{})
	p.Reset()
	require.NoError(t, p.Setup(0, 0, device.SetAddressRequest(9).Packet()))
	_, err := p.In(0, 0)
	require.NoError(t, err)

	c.LogEvents()
	out := buf.String()
	assert.Contains(t, out, "bus reset")
	assert.Contains(t, out, "address assigned")
	assert.Contains(t, out, "address=9")

	buf.Reset()
	c.LogEvents()
	assert.NotContains(t, buf.String(), "bus reset")
}
