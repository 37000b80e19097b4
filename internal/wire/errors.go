// File: internal/wire/errors.go
package wire

import "errors"

// Errors returned by the HTTP/1.1 reader (header/body limits, malformed
// input, read timeout) and by the WebSocket handshake and frame codec.
// internal/listener closes the connection on any ReadRequest error; it
// writes no status response for them.
var (
	ErrHeaderTooLarge  = errors.New("wire: request header exceeds limit")
	ErrBodyTooLarge    = errors.New("wire: request body exceeds limit")
	ErrMalformed       = errors.New("wire: malformed request")
	ErrReadTimeout     = errors.New("wire: read timeout")
	ErrFrameTooLarge   = errors.New("wire: websocket frame exceeds maximum payload")
	ErrInvalidUpgrade  = errors.New("wire: invalid websocket upgrade headers")
	ErrMissingWSKey    = errors.New("wire: missing Sec-WebSocket-Key header")
	ErrBadWSVersion    = errors.New("wire: unsupported Sec-WebSocket-Version")
	ErrControlTooLarge = errors.New("wire: control frame payload exceeds 125 bytes")
)
