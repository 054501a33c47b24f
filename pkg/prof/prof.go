//go:build profile

package prof

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"sync"
)

// Enabled reports whether profiling is compiled in.
const Enabled = true

// ErrCPUProfileActive indicates CPU profiling is already active.
var ErrCPUProfileActive = errors.New("cpu profile already active")

var (
	cpuMutex sync.Mutex
	cpuFile  *os.File
)

// StartCPU starts CPU profiling into the file at path.
func StartCPU(path string) error {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	if cpuFile != nil {
		return ErrCPUProfileActive
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return err
	}
	cpuFile = f
	return nil
}

// StopCPU stops CPU profiling. It is safe to call when not active.
func StopCPU() {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()

	if cpuFile == nil {
		return
	}
	pprof.StopCPUProfile()
	cpuFile.Close()
	cpuFile = nil
}

// IsCPUActive reports whether CPU profiling is running.
func IsCPUActive() bool {
	cpuMutex.Lock()
	defer cpuMutex.Unlock()
	return cpuFile != nil
}

// WriteHeap writes a heap snapshot to path after a GC.
func WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	runtime.GC()
	if err := pprof.Lookup("heap").WriteTo(f, 0); err != nil {
		return fmt.Errorf("prof: heap: %w", err)
	}
	return nil
}
