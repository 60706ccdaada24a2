// conn_wsl.go adds socket paths used when the daemon runs inside WSL2 and
// Discord runs on the Windows host. WSL2 cannot reach the host's named pipes,
// so a relay has to expose one as a unix socket:
//
//	socat UNIX-LISTEN:/tmp/discord-ipc-0,fork EXEC:"npiperelay.exe -ep -s //./pipe/discord-ipc-0"

//go:build linux

package discord

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// isWSL reports whether the kernel identifies itself as Microsoft's.
func isWSL() bool {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(string(data)), "microsoft")
}

// wslSocketPaths returns relay socket locations, or nil outside WSL.
func wslSocketPaths() []string {
	if !isWSL() {
		return nil
	}
	var paths []string
	for _, dir := range []string{"/mnt/wslg/runtime-dir", os.Getenv("HOME")} {
		if dir == "" {
			continue
		}
		for i := range maxIPCSlots {
			paths = append(paths, filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i)))
		}
	}
	return paths
}
