// File: internal/router/doc.go
// Package router implements the gateway's dispatch table: a small
// (method, path-pattern) -> handler table that runs the admission chain
// (IP allow-list, rate limit, auth), matches the route with
// github.com/gorilla/mux, validates the request body against a declared
// tool parameter schema, and translates the result into an IPC command
// submitted through internal/ipcmux.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package router
