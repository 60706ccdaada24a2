// Package discord speaks Discord's local IPC protocol well enough to publish
// Rich Presence: handshake, SET_ACTIVITY, and an orderly close.
//
// [Client] owns a single socket. Every command waits for Discord's reply so a
// rejected payload surfaces as an error instead of being silently dropped.
// Socket discovery lives in conn_unix.go and conn_windows.go.
package discord

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ///////////////////////////////////////////////
// Sentinel Errors
// ///////////////////////////////////////////////

// ErrNotConnected is returned when an operation requires an open socket.
var ErrNotConnected = errors.New("not connected")

// ErrClosedByPeer is returned when Discord sends a CLOSE frame.
var ErrClosedByPeer = errors.New("connection closed by discord")

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// Button is a clickable link on the presence card.
type Button struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Timestamps anchors Discord's elapsed-time display.
type Timestamps struct {
	Start int64 `json:"start,omitempty"`
}

// Assets holds the image key or URL and its hover text.
type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
}

// Activity is the SET_ACTIVITY payload.
type Activity struct {
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Buttons    []Button    `json:"buttons,omitempty"`
}

// response is the subset of a reply frame the client checks.
type response struct {
	Cmd   string `json:"cmd"`
	Evt   string `json:"evt"`
	Nonce string `json:"nonce"`
	Data  struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"data"`
}

// ///////////////////////////////////////////////
// Client
// ///////////////////////////////////////////////

// Client manages one connection to Discord's IPC socket.
type Client struct {
	appID string

	// replyTimeout bounds each wait for a reply frame.
	replyTimeout time.Duration

	// dial opens the socket; connectToDiscord outside tests.
	dial func() (net.Conn, error)

	// mu guards conn.
	mu   sync.Mutex
	conn net.Conn
}

// NewClient returns a disconnected client for the given application ID.
func NewClient(appID string) *Client {
	return &Client{
		appID:        appID,
		replyTimeout: 5 * time.Second,
		dial:         connectToDiscord,
	}
}

// AppID returns the application ID used in the handshake.
func (c *Client) AppID() string {
	return c.appID
}

// Connect opens the socket and performs the handshake. An existing socket is
// dropped first.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.conn = conn

	if err := c.handshake(); err != nil {
		c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// SetActivity publishes activity and waits for Discord to acknowledge it.
func (c *Client) SetActivity(activity *Activity) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.command("SET_ACTIVITY", map[string]any{
		"pid":      os.Getpid(),
		"activity": activity,
	})
}

// Close sends a CLOSE frame and closes the socket. The CLOSE frame is best
// effort; the returned error reflects closing the socket itself. Closing a
// disconnected client is a no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.replyTimeout))
	_ = WriteFrame(c.conn, OpClose, []byte(`{}`))

	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("closing IPC socket: %w", err)
	}
	return nil
}

// Connected reports whether the client holds an open socket.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// handshake sends {v:1, client_id} and expects a non-error frame back.
// The caller must hold c.mu.
func (c *Client) handshake() error {
	payload, err := json.Marshal(map[string]any{
		"v":         1,
		"client_id": c.appID,
	})
	if err != nil {
		return fmt.Errorf("marshaling handshake: %w", err)
	}
	if err := WriteFrame(c.conn, OpHandshake, payload); err != nil {
		return fmt.Errorf("writing handshake: %w", err)
	}

	resp, err := c.readReply()
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	if resp.Evt == "ERROR" {
		return fmt.Errorf("handshake rejected: %s", resp.Data.Message)
	}
	return nil
}

// command writes a command frame and waits for the reply with the matching
// nonce. The caller must hold c.mu.
func (c *Client) command(cmd string, args map[string]any) error {
	if c.conn == nil {
		return ErrNotConnected
	}

	nonce := uuid.NewString()

	payload, err := json.Marshal(map[string]any{
		"cmd":   cmd,
		"args":  args,
		"nonce": nonce,
	})
	if err != nil {
		return fmt.Errorf("marshaling command: %w", err)
	}
	if err := WriteFrame(c.conn, OpFrame, payload); err != nil {
		return fmt.Errorf("writing %s: %w", cmd, err)
	}

	for {
		resp, err := c.readReply()
		if err != nil {
			return fmt.Errorf("reading %s response: %w", cmd, err)
		}
		if resp.Nonce != "" && resp.Nonce != nonce {
			continue
		}
		if resp.Evt == "ERROR" {
			return fmt.Errorf("%s rejected (code %d): %s", cmd, resp.Data.Code, resp.Data.Message)
		}
		return nil
	}
}

// readReply reads frames until a data frame arrives, answering pings on the
// way. The caller must hold c.mu.
func (c *Client) readReply() (*response, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.replyTimeout)); err != nil {
		return nil, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		opcode, data, err := DecodeFrame(c.conn)
		if err != nil {
			return nil, err
		}
		switch opcode {
		case OpPing:
			if err := WriteFrame(c.conn, OpPong, data); err != nil {
				return nil, fmt.Errorf("writing pong: %w", err)
			}
			continue
		case OpClose:
			return nil, ErrClosedByPeer
		case OpFrame:
		default:
			return nil, fmt.Errorf("unexpected opcode %d", opcode)
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		return &resp, nil
	}
}
