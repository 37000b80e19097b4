// File: internal/gateway/doc.go
// Package gateway wires every admission filter, the IPC multiplexer, the
// WebSocket hub, the video pipeline, and the router into one CoreContext
// and drives its start/stop lifecycle: opening the browser IPC channel
// and the listen socket, running periodic maintenance, and shutting
// everything down gracefully on signal.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package gateway
