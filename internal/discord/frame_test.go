// Tests for the IPC frame codec: header layout, size guards, short reads,
// truncation, and [WriteFrame] issuing a single write.
package discord

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// ///////////////////////////////////////////////
// EncodeFrame
// ///////////////////////////////////////////////

func TestEncodeFrameLayout(t *testing.T) {
	payload := []byte(`{"v":1,"client_id":"12345"}`)
	frame, err := EncodeFrame(OpHandshake, payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(frame) != frameHeaderSize+len(payload) {
		t.Fatalf("frame length = %d, want %d", len(frame), frameHeaderSize+len(payload))
	}
	if op := Opcode(binary.LittleEndian.Uint32(frame[0:4])); op != OpHandshake {
		t.Errorf("opcode = %d, want %d", op, OpHandshake)
	}
	if n := binary.LittleEndian.Uint32(frame[4:8]); n != uint32(len(payload)) {
		t.Errorf("length = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(frame[frameHeaderSize:], payload) {
		t.Errorf("payload = %q, want %q", frame[frameHeaderSize:], payload)
	}
}

func TestEncodeFrameSizeGuard(t *testing.T) {
	if _, err := EncodeFrame(OpFrame, make([]byte, MaxPayloadSize)); err != nil {
		t.Fatalf("exactly MaxPayloadSize should encode, got %v", err)
	}
	_, err := EncodeFrame(OpFrame, make([]byte, MaxPayloadSize+1))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("expected ErrPayloadTooLarge, got %v", err)
	}
}

// countingWriter records how many Write calls it receives.
type countingWriter struct {
	bytes.Buffer
	calls int
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.calls++
	return w.Buffer.Write(p)
}

func TestWriteFrameSingleWrite(t *testing.T) {
	var w countingWriter
	if err := WriteFrame(&w, OpClose, []byte(`{}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if w.calls != 1 {
		t.Errorf("Write called %d times, want 1", w.calls)
	}

	op, payload, err := DecodeFrame(&w.Buffer)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if op != OpClose || string(payload) != `{}` {
		t.Errorf("decoded (%d, %q), want (%d, {})", op, payload, OpClose)
	}
}

// ///////////////////////////////////////////////
// DecodeFrame
// ///////////////////////////////////////////////

// slowReader returns data one byte at a time.
type slowReader struct {
	data []byte
	pos  int
}

func (r *slowReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	p[0] = r.data[r.pos]
	r.pos++
	return 1, nil
}

func TestDecodeFrameShortReads(t *testing.T) {
	original := []byte(`{"cmd":"DISPATCH","evt":"READY"}`)
	frame, err := EncodeFrame(OpFrame, original)
	if err != nil {
		t.Fatal(err)
	}

	op, payload, err := DecodeFrame(&slowReader{data: frame})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != OpFrame || !bytes.Equal(payload, original) {
		t.Errorf("decoded (%d, %q), want (%d, %q)", op, payload, OpFrame, original)
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	oversized := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(oversized[0:4], uint32(OpFrame))
	binary.LittleEndian.PutUint32(oversized[4:8], MaxPayloadSize+1)

	truncated := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint32(truncated[0:4], uint32(OpFrame))
	binary.LittleEndian.PutUint32(truncated[4:8], 100)
	truncated = append(truncated, []byte("short")...)

	tests := []struct {
		name    string
		input   []byte
		wantErr error // nil means any error
	}{
		{"empty input", nil, io.EOF},
		{"truncated header", []byte{1, 0, 0, 0}, io.ErrUnexpectedEOF},
		{"oversized length", oversized, ErrPayloadTooLarge},
		{"truncated payload", truncated, io.ErrUnexpectedEOF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := DecodeFrame(bytes.NewReader(tt.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
