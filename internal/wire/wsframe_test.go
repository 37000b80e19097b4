package wire

import (
	"bytes"
	"testing"
)

func TestFrameRoundTripUnmasked(t *testing.T) {
	for _, op := range []byte{OpText, OpBinary, OpPing, OpPong, OpClose} {
		payload := []byte("hello")
		if op == OpClose {
			payload = []byte{0x03, 0xe8}
		}
		f := &Frame{Final: true, Opcode: op, Payload: payload}
		enc, err := EncodeFrame(f, false)
		if err != nil {
			t.Fatalf("encode opcode %d: %v", op, err)
		}
		dec, n, err := DecodeFrame(enc, 0, false)
		if err != nil {
			t.Fatalf("decode opcode %d: %v", op, err)
		}
		if n != len(enc) {
			t.Fatalf("consumed %d, want %d", n, len(enc))
		}
		if dec.Opcode != op || !dec.Final || !bytes.Equal(dec.Payload, payload) {
			t.Fatalf("round trip mismatch for opcode %d: %+v", op, dec)
		}
	}
}

func TestDecodeFrameRejectsUnmaskedFromClient(t *testing.T) {
	f := &Frame{Final: true, Opcode: OpText, Payload: []byte("x")}
	enc, _ := EncodeFrame(f, false)
	if _, _, err := DecodeFrame(enc, 0, true); err != ErrInvalidUpgrade {
		t.Fatalf("expected ErrInvalidUpgrade for unmasked client frame, got %v", err)
	}
}

func TestDecodeFrameIncomplete(t *testing.T) {
	f, n, err := DecodeFrame([]byte{0x81}, 0, false)
	if f != nil || n != 0 || err != nil {
		t.Fatalf("expected incomplete (nil,0,nil), got (%v,%d,%v)", f, n, err)
	}
}

func TestDecodeFrameEnforcesMaxPayload(t *testing.T) {
	f := &Frame{Final: true, Opcode: OpBinary, Payload: make([]byte, 200)}
	enc, err := EncodeFrame(f, false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, _, err := DecodeFrame(enc, 100, false); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestDecodeFrameRejectsFragmentedControl(t *testing.T) {
	raw := []byte{0x09, 0x00} // ping, FIN=0, len=0
	if _, _, err := DecodeFrame(raw, 0, false); err != ErrControlTooLarge {
		t.Fatalf("expected ErrControlTooLarge, got %v", err)
	}
}
