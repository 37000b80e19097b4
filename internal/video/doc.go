// File: internal/video/doc.go
// Package video implements the video pipeline on top of internal/videoring's
// shared-memory frame reader: a single-frame JPEG endpoint, a
// multipart/x-mixed-replace MJPEG writer, and a WebSocket binary fanout
// with per-subscriber backpressure dropping. Lifecycle (start/stop) is
// driven by the browser's subscribeVideo/unsubscribeVideo IPC methods via
// internal/ipcmux.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package video
