// conn_unix.go locates Discord's IPC socket on Unix-like systems. Candidates
// come from XDG_RUNTIME_DIR, TMPDIR, /tmp, and the Snap and Flatpak sandboxes.

//go:build !windows

package discord

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// dialTimeout bounds each unix socket dial.
const dialTimeout = time.Second

// variants are the socket name prefixes for stable, Canary and PTB builds.
var variants = []string{"discord-ipc", "discordcanary-ipc", "discordptb-ipc"}

// socketPaths returns every candidate socket path in probe order.
func socketPaths() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	dirs = append(dirs, "/tmp")

	uid := strconv.Itoa(os.Getuid())
	for _, sandbox := range []string{
		"snap.discord",
		"snap.discord-canary",
		"snap.discord-ptb",
		"app/com.discordapp.Discord",
		"app/com.discordapp.DiscordCanary",
		"app/com.discordapp.DiscordPTB",
	} {
		dirs = append(dirs, filepath.Join("/run/user", uid, sandbox))
	}

	var paths []string
	seen := make(map[string]bool)
	for _, dir := range dirs {
		for _, v := range variants {
			for i := range maxIPCSlots {
				p := filepath.Join(dir, fmt.Sprintf("%s-%d", v, i))
				if seen[p] {
					continue
				}
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return append(paths, wslSocketPaths()...)
}

// connectToDiscord dials each candidate and returns the first live socket.
func connectToDiscord() (net.Conn, error) {
	for _, path := range socketPaths() {
		conn, err := net.DialTimeout("unix", path, dialTimeout)
		if err == nil {
			return conn, nil
		}
	}
	if isWSL() {
		return nil, fmt.Errorf("%w: running under WSL, a socat + npiperelay.exe relay is required", ErrIPCNotAvailable)
	}
	return nil, ErrIPCNotAvailable
}
