//go:build !linux && !windows

package discord

func isWSL() bool              { return false }
func wslSocketPaths() []string { return nil }
