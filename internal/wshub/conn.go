// File: internal/wshub/conn.go
// One WebSocket connection's frame-reassembly, liveness, and FIFO send
// queue, built around a buffered outbound channel drained by a writer
// goroutine.
package wshub

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/wire"
)

// clientRequest is the {id,method,params} message shape a client sends.
type clientRequest struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// clientReply is the {id,success,result|error} shape.
type clientReply struct {
	ID      uint64          `json:"id"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Event is the {event,data} shape the server pushes unsolicited.
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn is one upgraded WebSocket session.
type Conn struct {
	conn net.Conn
	br   *bufio.Reader
	hub  *Hub
	log  *logrus.Entry

	sendQueue chan []byte
	closeOnce sync.Once
	closed    chan struct{}

	pingOutstanding int32
	lastActivity    atomic.Int64 // unix nanos

	framesReceived, framesSent int64
	bytesReceived, bytesSent   int64

	videoMu     sync.Mutex
	videoUnsubs map[string]func()
}

func newConn(hub *Hub, c net.Conn, br *bufio.Reader) *Conn {
	conn := &Conn{
		conn:      c,
		br:        br,
		hub:       hub,
		log:       hub.log.WithField("remote", c.RemoteAddr().String()),
		sendQueue:   make(chan []byte, 64),
		closed:      make(chan struct{}),
		videoUnsubs: make(map[string]func()),
	}
	conn.lastActivity.Store(time.Now().UnixNano())
	return conn
}

// run starts the writer, pinger, and read loop and blocks until the
// connection closes.
func (c *Conn) run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); c.writeLoop() }()
	go func() { defer wg.Done(); c.pingLoop() }()

	c.readLoop(ctx)
	c.close()
	wg.Wait()
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
		c.hub.remove(c)
		c.videoMu.Lock()
		for ctxID, unsub := range c.videoUnsubs {
			unsub()
			delete(c.videoUnsubs, ctxID)
		}
		c.videoMu.Unlock()
	})
}

// enqueueFrame appends one encoded frame to the FIFO send queue; a full
// queue drops the slowest consumer's connection rather than blocking the
// hub or any other connection.
func (c *Conn) enqueueFrame(f *wire.Frame) {
	encoded, err := wire.EncodeFrame(f, false)
	if err != nil {
		return
	}
	select {
	case c.sendQueue <- encoded:
	default:
		c.log.Warn("wshub: send queue full, closing connection")
		c.close()
	}
}

// SendEvent pushes a {event,data} server-initiated message.
func (c *Conn) SendEvent(event string, data any) {
	body, err := json.Marshal(Event{Event: event, Data: data})
	if err != nil {
		return
	}
	c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpText, Payload: body})
}

// SendBinary pushes a raw binary frame, used for video fanout; satisfies
// the push callback shape internal/video.Service.Subscribe expects.
func (c *Conn) SendBinary(data []byte) {
	c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpBinary, Payload: data})
}

func (c *Conn) writeLoop() {
	for {
		select {
		case b := <-c.sendQueue:
			if _, err := c.conn.Write(b); err != nil {
				c.close()
				return
			}
			atomic.AddInt64(&c.framesSent, 1)
			atomic.AddInt64(&c.bytesSent, int64(len(b)))
		case <-c.closed:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			idleFor := time.Since(time.Unix(0, c.lastActivity.Load()))
			if idleFor < c.hub.pingInterval {
				continue
			}
			if atomic.LoadInt32(&c.pingOutstanding) == 1 {
				c.log.Warn("wshub: pong timeout, closing")
				c.close()
				return
			}
			atomic.StoreInt32(&c.pingOutstanding, 1)
			c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpPing})
			go c.watchPongTimeout()
		}
	}
}

func (c *Conn) watchPongTimeout() {
	select {
	case <-time.After(c.hub.pongTimeout):
		if atomic.LoadInt32(&c.pingOutstanding) == 1 {
			c.log.Warn("wshub: no pong within timeout, closing")
			c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpClose,
				Payload: closePayload(wire.CloseGoingAway)})
			c.close()
		}
	case <-c.closed:
	}
}

func closePayload(code int) []byte {
	return []byte{byte(code >> 8), byte(code)}
}

// readLoop reassembles data frames and dispatches control/text frames
// until the connection closes or ctx is cancelled.
func (c *Conn) readLoop(ctx context.Context) {
	var buf []byte
	tmp := make([]byte, 4096)
	var fragments []byte

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		default:
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		n, err := c.br.Read(tmp)
		if err != nil {
			return
		}
		buf = append(buf, tmp[:n]...)
		c.lastActivity.Store(time.Now().UnixNano())

		for {
			f, consumed, ferr := wire.DecodeFrame(buf, int64(c.hub.maxMessage), true)
			if ferr != nil {
				c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpClose,
					Payload: closePayload(wire.CloseMessageTooBig)})
				c.close()
				return
			}
			if f == nil {
				break
			}
			buf = buf[consumed:]
			atomic.AddInt64(&c.framesReceived, 1)
			atomic.AddInt64(&c.bytesReceived, int64(consumed))

			switch f.Opcode {
			case wire.OpPing:
				c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpPong, Payload: f.Payload})
			case wire.OpPong:
				atomic.StoreInt32(&c.pingOutstanding, 0)
			case wire.OpClose:
				c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpClose, Payload: f.Payload})
				c.close()
				return
			case wire.OpText, wire.OpBinary:
				if !f.Final {
					fragments = append([]byte(nil), f.Payload...)
					continue
				}
				c.dispatch(ctx, f.Payload)
			case wire.OpContinuation:
				fragments = append(fragments, f.Payload...)
				if f.Final {
					c.dispatch(ctx, fragments)
					fragments = nil
				}
			}
		}
	}
}

type videoCtxParams struct {
	ContextID string `json:"contextId"`
}

func (c *Conn) dispatch(ctx context.Context, payload []byte) {
	var req clientRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, c.hub.ipcTimeout)
		defer cancel()
		result, err := c.hub.ipc.SendSync(reqCtx, req.Method, req.Params, c.hub.ipcTimeout)
		reply := clientReply{ID: req.ID, Success: err == nil}
		if err != nil {
			reply.Error = err.Error()
		} else {
			reply.Result = result
			c.handleVideoSubscription(req)
		}
		body, merr := json.Marshal(reply)
		if merr != nil {
			return
		}
		c.enqueueFrame(&wire.Frame{Final: true, Opcode: wire.OpText, Payload: body})
	}()
}

// handleVideoSubscription registers or tears down binary frame push for
// subscribeVideo/unsubscribeVideo tool calls once the IPC round trip that
// started/stopped browser-side capture has already succeeded.
func (c *Conn) handleVideoSubscription(req clientRequest) {
	if c.hub.video == nil {
		return
	}
	var p videoCtxParams
	if err := json.Unmarshal(req.Params, &p); err != nil || p.ContextID == "" {
		return
	}
	switch req.Method {
	case "subscribeVideo":
		unsub := c.hub.video.Subscribe(p.ContextID, c.SendBinary)
		c.videoMu.Lock()
		if old, ok := c.videoUnsubs[p.ContextID]; ok {
			old()
		}
		c.videoUnsubs[p.ContextID] = unsub
		c.videoMu.Unlock()
	case "unsubscribeVideo":
		c.videoMu.Lock()
		if unsub, ok := c.videoUnsubs[p.ContextID]; ok {
			unsub()
			delete(c.videoUnsubs, p.ContextID)
		}
		c.videoMu.Unlock()
	}
}
