// Package paths centralizes file and directory names used by the daemon.
// Every file the daemon touches inside its data directory is named here.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile    = "jellycord.pid"
	ConfigFile = "config.toml"
	LogFile    = "jellycord.log"
)

const (
	BinaryName = "jellycord"
	DataDirRel = ".jellycord" // relative to $HOME
)

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }
