// Package pkg provides shared utilities for the STM32F072 USB driver.
//
// This package contains common functionality used by the driver core, the
// simulated peripheral and the usbsim command, including:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel error values for packet memory and protocol failures
//   - The [Outcome] taxonomy reported by the interrupt handler
//
// # Logging
//
// The logging subsystem wraps [log/slog] with a component attribute:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentEngine, "address assigned", "address", 7)
//
// On target the default handler writes to the semihosting stderr; the
// interrupt path only logs and never returns errors upward.
//
// # Errors
//
// Errors are sentinel values, wrapped with context where they are raised:
//
//	if errors.Is(err, pkg.ErrRange) {
//	    // offset outside packet memory
//	}
package pkg
