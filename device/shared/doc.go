// Package shared holds the state reachable from both the foreground and
// the USB interrupt handler.
//
// Every access goes through [Context.Free], which masks interrupts for the
// duration of the callback and hands it a [CriticalSection] token. A
// [Mutex] yields its value only to a holder of that token, so shared state
// cannot be touched outside a masked region.
//
// On target the masker is TinyGo's runtime/interrupt. Host builds use
// [LockMasker], which serialises with a sync.Mutex instead.
package shared
