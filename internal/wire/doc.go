// File: internal/wire/doc.go
// Package wire implements the three framings the gateway speaks: HTTP/1.1
// request parsing, RFC 6455 WebSocket frames, and newline-delimited JSON for
// the browser IPC channel.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wire
