// File: internal/wire/ipcline.go
// Newline-delimited JSON codec for the browser IPC channel.
// Outbound commands get a trailing "\n"; inbound replies are scanned for
// "\n" and parsed independently so one malformed line never blocks others.
package wire

import (
	"bufio"
	"encoding/json"
)

// IPCCommand is sent to the browser's stdin.
type IPCCommand struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// IPCError is the error shape nested in an IPCReply.
type IPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IPCReply is read from the browser's stdout.
type IPCReply struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *IPCError       `json:"error,omitempty"`
}

// EncodeCommand serializes cmd and appends the trailing newline the browser
// process expects between commands.
func EncodeCommand(cmd *IPCCommand) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// LineScanner wraps bufio.Scanner with a capacity large enough for a
// base64-encoded screenshot (an 8 MiB buffer).
func LineScanner(r interface{ Read([]byte) (int, error) }) *bufio.Scanner {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 8*1024*1024)
	return s
}

// DecodeReply parses one complete stdout line as an IPCReply. A parse
// failure returns (nil, err); internal/ipcmux logs and drops such a line
// and keeps scanning, without counting it.
func DecodeReply(line []byte) (*IPCReply, error) {
	var reply IPCReply
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// StderrSentinel describes one JSON object the stderr reader recognizes:
// either the readiness sentinel or a structured license error.
type StderrSentinel struct {
	Ready   bool            `json:"ready,omitempty"`
	License *LicenseMessage `json:"license,omitempty"`
}

// LicenseMessage is the structured license error a browser process can
// emit on stderr before exiting.
type LicenseMessage struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Fingerprint string `json:"fingerprint"`
}

// DecodeStderrLine attempts to parse one stderr line as a sentinel object.
// Lines that aren't JSON (ordinary log chatter) return (nil, err) and are
// ignored by the caller.
func DecodeStderrLine(line []byte) (*StderrSentinel, error) {
	var s StderrSentinel
	if err := json.Unmarshal(line, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
