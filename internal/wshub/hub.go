// File: internal/wshub/hub.go
package wshub

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/admission"
	"github.com/owlhq/owl-gateway/internal/ipcmux"
	"github.com/owlhq/owl-gateway/internal/wire"
)

// Options configures a Hub's connection and liveness limits.
type Options struct {
	MaxConnections int
	MaxMessage     int
	PingInterval   time.Duration
	PongTimeout    time.Duration
	IPCTimeout     time.Duration
	Log            *logrus.Entry
}

// VideoHub is implemented by internal/video.Service: it lets a connection
// that issues a subscribeVideo command register itself for binary frame
// push, and unregister on unsubscribeVideo or disconnect.
type VideoHub interface {
	Subscribe(ctxID string, push func([]byte)) (unsubscribe func())
}

// Hub tracks every upgraded WebSocket connection and enforces the
// configured connection cap.
type Hub struct {
	ipc   ipcmux.IPC
	video VideoHub
	log   *logrus.Entry

	maxConnections int
	maxMessage     int
	pingInterval   time.Duration
	pongTimeout    time.Duration
	ipcTimeout     time.Duration

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// SetVideoHub wires the video subscription backend in once internal/video
// is constructed, breaking the Hub <-> Service construction cycle.
func (h *Hub) SetVideoHub(v VideoHub) {
	h.mu.Lock()
	h.video = v
	h.mu.Unlock()
}

func New(ipc ipcmux.IPC, opts Options) *Hub {
	if opts.MaxConnections <= 0 {
		opts.MaxConnections = 50
	}
	if opts.MaxMessage <= 0 {
		opts.MaxMessage = wire.DefaultMaxFramePayload
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = 10 * time.Second
	}
	if opts.IPCTimeout <= 0 {
		opts.IPCTimeout = 60 * time.Second
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		ipc:            ipc,
		log:            opts.Log.WithField("component", "wshub"),
		maxConnections: opts.MaxConnections,
		maxMessage:     opts.MaxMessage,
		pingInterval:   opts.PingInterval,
		pongTimeout:    opts.PongTimeout,
		ipcTimeout:     opts.IPCTimeout,
		conns:          make(map[*Conn]struct{}),
	}
}

// Upgrade performs the RFC 6455 handshake and, on success, takes ownership
// of conn and blocks for the lifetime of the session. It implements
// internal/router.WebSocketUpgrader.
func (h *Hub) Upgrade(ctx context.Context, conn net.Conn, req *wire.Request, clientIP string, auth func(authHeader, cookie string) admission.AuthResult) error {
	clientKey, err := wire.ValidateUpgrade(req.Header)
	if err != nil {
		return h.reject(conn, 400, err.Error())
	}

	res := auth(req.Header.Get("Authorization"), req.Header.Get("Cookie"))
	if !res.Valid {
		return h.reject(conn, 401, res.Error)
	}

	h.mu.Lock()
	if len(h.conns) >= h.maxConnections {
		h.mu.Unlock()
		return h.reject(conn, 503, "connection limit reached")
	}
	h.mu.Unlock()

	respHdr := wire.UpgradeResponseHeaders(clientKey)
	resp := wire.Response{Status: 101, Header: respHdr}
	if _, err := resp.WriteTo(conn); err != nil {
		return err
	}

	c := newConn(h, conn, bufio.NewReader(conn))
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	c.run(ctx)
	return nil
}

func (h *Hub) reject(conn net.Conn, status int, msg string) error {
	resp := wire.NewResponse(status, nil, []byte(msg))
	_, _ = resp.WriteTo(conn)
	return fmt.Errorf("wshub: handshake rejected: %s", msg)
}

func (h *Hub) remove(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

// Broadcast pushes event/data to every currently connected client.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.SendEvent(event, data)
	}
}

// StatsSnapshot implements internal/stats.ComponentProvider.
func (h *Hub) StatsSnapshot() any {
	h.mu.Lock()
	defer h.mu.Unlock()
	var framesIn, framesOut, bytesIn, bytesOut int64
	for c := range h.conns {
		framesIn += c.framesReceived
		framesOut += c.framesSent
		bytesIn += c.bytesReceived
		bytesOut += c.bytesSent
	}
	return struct {
		ActiveConnections int
		FramesReceived    int64
		FramesSent        int64
		BytesReceived     int64
		BytesSent         int64
	}{len(h.conns), framesIn, framesOut, bytesIn, bytesOut}
}
