// File: internal/listener/doc.go
// Package listener owns the TCP accept loop and per-connection request
// pipeline: it reads HTTP/1.1 requests off each connection, asks
// internal/router whether the route needs a hijacked connection
// (WebSocket upgrade, MJPEG stream) or a buffered request/response, and
// dispatches the work onto internal/workerpool so a slow browser command
// never blocks the accept loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package listener
