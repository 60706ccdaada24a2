// conn_windows.go connects to Discord through its named pipes
// (\\.\pipe\discord-ipc-N) using go-winio.

//go:build windows

package discord

import (
	"fmt"
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

// dialTimeout bounds each named pipe dial.
const dialTimeout = time.Second

// connectToDiscord tries each pipe slot and returns the first open pipe.
func connectToDiscord() (net.Conn, error) {
	timeout := dialTimeout
	for i := range maxIPCSlots {
		conn, err := winio.DialPipe(fmt.Sprintf(`\\.\pipe\discord-ipc-%d`, i), &timeout)
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrIPCNotAvailable
}
