package paths

import (
	"path/filepath"
	"testing"
)

// ///////////////////////////////////////////////
// Constant Value Tests
// ///////////////////////////////////////////////

func TestConstantValues(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DataDirRel", DataDirRel, ".jellycord"},
		{"PIDFile", PIDFile, "jellycord.pid"},
		{"ConfigFile", ConfigFile, "config.toml"},
		{"LogFile", LogFile, "jellycord.log"},
		{"BinaryName", BinaryName, "jellycord"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// DataDir Method Tests
// ///////////////////////////////////////////////

func TestDataDirMethods(t *testing.T) {
	root := filepath.Join("home", "user", ".jellycord")
	d := DataDir{Root: root}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"PID", d.PID(), filepath.Join(root, "jellycord.pid")},
		{"Config", d.Config(), filepath.Join(root, "config.toml")},
		{"Log", d.Log(), filepath.Join(root, "jellycord.log")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s() = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestDataDirEmptyRoot(t *testing.T) {
	d := DataDir{}
	if got := d.Config(); got != ConfigFile {
		t.Errorf("Config() with empty root = %q, want %q", got, ConfigFile)
	}
}
