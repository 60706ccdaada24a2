// Unix/Darwin signal handling for graceful daemon shutdown.
//
// Cancellation stops the poll loop, which closes any open Discord presence
// before the process exits.
//
// This file is compiled on all non-Windows platforms (Linux, macOS, *BSD).
// It listens for both SIGINT (Ctrl+C) and SIGTERM, the conventional signal
// sent by process managers (systemd, launchd) and container runtimes to
// request a graceful stop.

//go:build !windows

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// ///////////////////////////////////////////////
// Signal Handling
// ///////////////////////////////////////////////

// shutdownContext returns a context canceled on the first SIGINT or SIGTERM.
// The stop function unregisters the handler.
func shutdownContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
