package discord

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Opcode is a Discord IPC frame opcode.
type Opcode uint32

const (
	OpHandshake Opcode = 0
	OpFrame     Opcode = 1
	OpClose     Opcode = 2
	OpPing      Opcode = 3
	OpPong      Opcode = 4

	// frameHeaderSize is the 4-byte LE opcode plus the 4-byte LE length.
	frameHeaderSize = 8

	// MaxPayloadSize is the largest payload accepted in either direction (1 MB).
	MaxPayloadSize = 1 << 20

	// maxIPCSlots is the number of socket slots Discord may listen on (0-9).
	maxIPCSlots = 10
)

// ErrPayloadTooLarge is returned when a frame payload exceeds MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload too large")

// ErrIPCNotAvailable is returned when no Discord IPC socket can be reached.
var ErrIPCNotAvailable = errors.New("discord IPC not available")

// ///////////////////////////////////////////////
// Frame Codec
// ///////////////////////////////////////////////

// EncodeFrame builds [4-byte LE opcode][4-byte LE length][payload].
func EncodeFrame(opcode Opcode, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, len(payload), MaxPayloadSize)
	}
	frame := make([]byte, frameHeaderSize+len(payload))
	binary.LittleEndian.PutUint32(frame[0:4], uint32(opcode))
	binary.LittleEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// WriteFrame encodes a frame and writes it to w in a single call.
func WriteFrame(w io.Writer, opcode Opcode, payload []byte) error {
	frame, err := EncodeFrame(opcode, payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}

// DecodeFrame reads exactly one frame from r, tolerating short reads.
func DecodeFrame(r io.Reader) (Opcode, []byte, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("reading frame header: %w", err)
	}

	opcode := Opcode(binary.LittleEndian.Uint32(header[0:4]))
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxPayloadSize {
		return 0, nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPayloadTooLarge, length, MaxPayloadSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return opcode, payload, nil
}
