// Windows signal handling for graceful daemon shutdown.
//
// Cancellation stops the poll loop, which closes any open Discord presence
// before the process exits.
//
// This file is compiled only on Windows. Windows does not support POSIX
// signals like SIGTERM, so only [os.Interrupt] (Ctrl+C / CTRL_C_EVENT) is
// registered. The Go runtime translates CTRL_BREAK_EVENT and console-close
// events into os.Interrupt as well, providing adequate shutdown coverage.

//go:build windows

package main

import (
	"context"
	"os"
	"os/signal"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// shutdownContext returns a context canceled on the first os.Interrupt
// (Ctrl+C). SIGTERM does not exist on Windows; the runtime maps
// CTRL_BREAK_EVENT and console-close events to os.Interrupt.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}
