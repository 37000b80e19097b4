// File: internal/wshub/doc.go
// Package wshub implements the gateway's WebSocket hub: handshake,
// data-frame reassembly, ping/pong liveness, a per-connection FIFO send
// queue, and the {id,method,params}/{id,success,result|error}/{event,data}
// message dispatch against internal/ipcmux.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wshub
