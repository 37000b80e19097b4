// File: internal/videoring/header.go
// Fixed-size frame ring header layout shared with the browser writer.
package videoring

const (
	// FrameMagic identifies a valid, fully-initialized frame region.
	FrameMagic uint32 = 0x4F574C31 // "OWL1"

	contextIDLen = 64

	offsetMagic     = 0
	offsetContextID = offsetMagic + 4
	offsetSequence  = (offsetContextID + contextIDLen + 7) &^ 7 // atomic ops need 8-byte alignment
	offsetWidth     = offsetSequence + 8
	offsetHeight    = offsetWidth + 4
	offsetTsMs      = (offsetHeight + 4 + 7) &^ 7
	offsetSize      = offsetTsMs + 8
	offsetPayload   = offsetSize + 4

	// HeaderSize is the fixed header region preceding the JPEG payload.
	HeaderSize = (offsetPayload + 7) &^ 7

	// MaxPayload bounds a single frame: 8 MiB comfortably accommodates a
	// full-page screenshot.
	MaxPayload = 8 * 1024 * 1024
)
