// File: internal/router/router.go
// Core dispatch: admission chain, route matching, body validation, and
// IPC translation.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/admission"
	"github.com/owlhq/owl-gateway/internal/ipcmux"
	"github.com/owlhq/owl-gateway/internal/stats"
	"github.com/owlhq/owl-gateway/internal/wire"
)

// Envelope is the gateway's consistent JSON response shape:
// {success, status, data|error}.
type Envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// BrowserStateReporter reports the multiplexer's lifecycle state for
// GET /health without importing internal/ipcmux's concrete type into every
// caller.
type BrowserStateReporter interface {
	State() ipcmux.State
}

// WebSocketUpgrader is implemented by internal/wshub.Hub; kept as an
// interface so internal/router never imports internal/wshub directly.
type WebSocketUpgrader interface {
	Upgrade(ctx context.Context, conn net.Conn, req *wire.Request, clientIP string, auth func(authHeader, cookie string) admission.AuthResult) error
}

// VideoStreamer is implemented by internal/video.Service.
type VideoStreamer interface {
	FrameJPEG(ctxID string) ([]byte, int, int, int64, error)
	StreamMJPEG(ctx context.Context, ctxID string, w ChunkWriter) error
}

// ChunkWriter is the subset of http.Flusher+io.Writer the MJPEG writer
// needs; declared to avoid importing net/http's ResponseWriter type here.
type ChunkWriter interface {
	Write([]byte) (int, error)
	Flush()
}

// Deps wires every admission/backend collaborator the router needs.
type Deps struct {
	IPC         ipcmux.IPC
	IPFilter    *admission.IPFilter
	RateLimiter *admission.RateLimiter
	Auth        *admission.Authenticator
	CORS        *admission.CORS
	Stats       *stats.Registry
	WS          WebSocketUpgrader
	Video       VideoStreamer
	Log         *logrus.Entry
	StartedAt   time.Time
	IPCTimeout  time.Duration
}

// Router is the gateway's dispatch table.
type Router struct {
	deps Deps
	mux  *mux.Router

	ctxMu    sync.Mutex
	contexts map[string]time.Time
}

func New(deps Deps) *Router {
	if deps.Log == nil {
		deps.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if deps.IPCTimeout <= 0 {
		deps.IPCTimeout = 60 * time.Second
	}
	r := &Router{deps: deps, mux: mux.NewRouter(), contexts: make(map[string]time.Time)}
	r.mux.NewRoute().Name("health").Methods(http.MethodGet).Path("/health")
	r.mux.NewRoute().Name("stats").Methods(http.MethodGet).Path("/stats")
	r.mux.NewRoute().Name("tools").Methods(http.MethodGet).Path("/tools")
	r.mux.NewRoute().Name("execute").Methods(http.MethodPost).Path("/execute/{tool}")
	r.mux.NewRoute().Name("command").Methods(http.MethodPost).Path("/command")
	r.mux.NewRoute().Name("video_frame").Methods(http.MethodGet).Path("/video/frame/{ctx}")
	r.mux.NewRoute().Name("video_stream").Methods(http.MethodGet).Path("/video/stream/{ctx}")
	r.mux.NewRoute().Name("ws").Methods(http.MethodGet).Path("/ws")
	r.mux.NewRoute().Name("contexts_list").Methods(http.MethodGet).Path("/contexts")
	r.mux.NewRoute().Name("contexts_delete").Methods(http.MethodDelete).Path("/contexts/{id}")
	return r
}

// Handle runs the full admission + dispatch pipeline for a parsed request
// and returns the response to write back. It never handles /ws or
// /video/stream (those need a hijacked connection); callers must check
// RouteName first and call Hijack instead.
func (rt *Router) Handle(ctx context.Context, req *wire.Request) *wire.Response {
	clientIP := admission.ExtractIP(req.Header, req.PeerIP)

	if req.Method == http.MethodOptions {
		hdr := make(http.Header)
		if rt.deps.CORS.ApplyPreflight(hdr, req.Header.Get("Origin")) {
			return wire.NewResponse(http.StatusNoContent, hdr, nil)
		}
	}

	if res := rt.deps.IPFilter.Check(clientIP); res != admission.Allowed {
		status := http.StatusForbidden
		if res == admission.Invalid {
			status = http.StatusBadRequest
		}
		return rt.errorResponse(status, "request denied by IP policy", req.Header.Get("Origin"))
	}

	rlRes := rt.deps.RateLimiter.Check(clientIP)
	if !rlRes.Allowed {
		hdr := make(http.Header)
		admission.ApplyHeaders(hdr, rlRes)
		rt.deps.CORS.ApplyOrigin(hdr, req.Header.Get("Origin"))
		return rt.envelopeResponse(http.StatusTooManyRequests, nil, "rate limit exceeded", hdr)
	}

	httpReq, err := http.NewRequest(req.Method, req.Path, nil)
	if err != nil {
		return rt.errorResponse(http.StatusBadRequest, "malformed request target", req.Header.Get("Origin"))
	}
	httpReq.URL.RawQuery = req.Query

	var match mux.RouteMatch
	if !rt.mux.Match(httpReq, &match) {
		return rt.errorResponse(http.StatusNotFound, "no matching route", req.Header.Get("Origin"))
	}
	name := match.Route.GetName()

	if name != "health" {
		cookie := req.Header.Get("Cookie")
		auth := rt.deps.Auth.Authenticate(req.Header.Get("Authorization"), cookie)
		if !auth.Valid {
			return rt.errorResponse(http.StatusUnauthorized, auth.Error, req.Header.Get("Origin"))
		}
	}

	switch name {
	case "health":
		return rt.handleHealth(req)
	case "stats":
		return rt.handleStats(req)
	case "tools":
		return rt.handleTools(req)
	case "execute":
		return rt.handleExecute(ctx, req, match.Vars["tool"])
	case "command":
		return rt.handleCommand(ctx, req)
	case "contexts_list":
		return rt.handleContextsList(req)
	case "contexts_delete":
		return rt.handleContextsDelete(ctx, req, match.Vars["id"])
	case "video_frame":
		return rt.handleVideoFrame(req, match.Vars["ctx"])
	default:
		return rt.errorResponse(http.StatusNotImplemented, "route requires a hijacked connection", req.Header.Get("Origin"))
	}
}

// RouteName resolves which named route req matches, without running the
// admission chain; internal/listener uses this to decide whether to hand
// the connection to Handle or hijack it for /ws or /video/stream.
func (rt *Router) RouteName(req *wire.Request) string {
	httpReq, err := http.NewRequest(req.Method, req.Path, nil)
	if err != nil {
		return ""
	}
	var match mux.RouteMatch
	if !rt.mux.Match(httpReq, &match) {
		return ""
	}
	return match.Route.GetName()
}

// Hijack runs the admission chain's IP-filter and rate-limit steps and, for
// the two routes that need a raw connection (/ws, /video/stream), takes
// over conn directly and returns handled=true. For every other route it
// returns handled=false so the caller falls back to Handle's normal
// request/response path.
func (rt *Router) Hijack(ctx context.Context, conn net.Conn, req *wire.Request) (handled bool, resp *wire.Response) {
	name := rt.RouteName(req)
	if name != "ws" && name != "video_stream" {
		return false, nil
	}

	clientIP := admission.ExtractIP(req.Header, req.PeerIP)
	if res := rt.deps.IPFilter.Check(clientIP); res != admission.Allowed {
		status := http.StatusForbidden
		if res == admission.Invalid {
			status = http.StatusBadRequest
		}
		return true, rt.errorResponse(status, "request denied by IP policy", req.Header.Get("Origin"))
	}
	rlRes := rt.deps.RateLimiter.Check(clientIP)
	if !rlRes.Allowed {
		hdr := make(http.Header)
		admission.ApplyHeaders(hdr, rlRes)
		return true, rt.envelopeResponse(http.StatusTooManyRequests, nil, "rate limit exceeded", hdr)
	}

	switch name {
	case "ws":
		if rt.deps.WS == nil {
			return true, rt.errorResponse(http.StatusServiceUnavailable, "websocket hub disabled", req.Header.Get("Origin"))
		}
		if err := rt.deps.WS.Upgrade(ctx, conn, req, clientIP, rt.deps.Auth.Authenticate); err != nil {
			rt.deps.Log.WithError(err).Debug("router: websocket upgrade failed")
		}
		return true, nil
	case "video_stream":
		httpReq, _ := http.NewRequest(req.Method, req.Path, nil)
		var match mux.RouteMatch
		rt.mux.Match(httpReq, &match)
		auth := rt.deps.Auth.Authenticate(req.Header.Get("Authorization"), req.Header.Get("Cookie"))
		if !auth.Valid {
			return true, rt.errorResponse(http.StatusUnauthorized, auth.Error, req.Header.Get("Origin"))
		}
		if rt.deps.Video == nil {
			return true, rt.errorResponse(http.StatusServiceUnavailable, "video pipeline disabled", req.Header.Get("Origin"))
		}
		rt.streamVideo(ctx, conn, match.Vars["ctx"])
		return true, nil
	}
	return false, nil
}

func (rt *Router) streamVideo(ctx context.Context, conn net.Conn, ctxID string) {
	hdr := fmt.Sprintf("HTTP/1.1 200 OK\r\nContent-Type: multipart/x-mixed-replace; boundary=owlboundary\r\nConnection: close\r\nCache-Control: no-cache\r\n\r\n")
	if _, err := conn.Write([]byte(hdr)); err != nil {
		return
	}
	cw := newConnChunkWriter(conn)
	if err := rt.deps.Video.StreamMJPEG(ctx, ctxID, cw); err != nil {
		rt.deps.Log.WithError(err).Debug("router: video stream ended")
	}
}

// connChunkWriter adapts a net.Conn to the ChunkWriter interface
// internal/video writes MJPEG multipart frames through.
type connChunkWriter struct{ conn net.Conn }

func newConnChunkWriter(conn net.Conn) *connChunkWriter { return &connChunkWriter{conn: conn} }
func (w *connChunkWriter) Write(p []byte) (int, error)  { return w.conn.Write(p) }
func (w *connChunkWriter) Flush()                       {}

func (rt *Router) handleHealth(req *wire.Request) *wire.Response {
	state := "unknown"
	if rt.deps.IPC != nil {
		state = rt.deps.IPC.State().String()
	}
	body, _ := json.Marshal(map[string]any{
		"status":         "ok",
		"browser_state":  state,
		"uptime_seconds": int64(time.Since(rt.deps.StartedAt).Seconds()),
	})
	return wire.NewResponse(http.StatusOK, rt.baseHeader(req), body)
}

func (rt *Router) handleStats(req *wire.Request) *wire.Response {
	snap := rt.deps.Stats.Snapshot()
	body, _ := json.Marshal(snap)
	return wire.NewResponse(http.StatusOK, rt.baseHeader(req), body)
}

func (rt *Router) handleTools(req *wire.Request) *wire.Response {
	body, _ := json.Marshal(ToolRegistry)
	return wire.NewResponse(http.StatusOK, rt.baseHeader(req), body)
}

func (rt *Router) handleExecute(ctx context.Context, req *wire.Request, tool string) *wire.Response {
	def, ok := lookupTool(tool)
	if !ok {
		return rt.errorResponse(http.StatusNotFound, fmt.Sprintf("unknown tool %q", tool), req.Header.Get("Origin"))
	}
	if errs := ValidateParams(def, req.Body); len(errs) > 0 {
		return rt.validationErrorResponse(errs, req.Header.Get("Origin"))
	}
	rt.noteContext(req.Body)
	result, err := rt.deps.IPC.SendSync(ctx, tool, req.Body, rt.deps.IPCTimeout)
	return rt.ipcResultResponse(result, err, req.Header.Get("Origin"))
}

type commandBody struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

func (rt *Router) handleCommand(ctx context.Context, req *wire.Request) *wire.Response {
	var cb commandBody
	if err := json.Unmarshal(req.Body, &cb); err != nil || cb.Method == "" {
		return rt.errorResponse(http.StatusBadRequest, "body must be {method, params}", req.Header.Get("Origin"))
	}
	rt.noteContext(cb.Params)
	result, err := rt.deps.IPC.SendSync(ctx, cb.Method, cb.Params, rt.deps.IPCTimeout)
	return rt.ipcResultResponse(result, err, req.Header.Get("Origin"))
}

func (rt *Router) handleContextsList(req *wire.Request) *wire.Response {
	rt.ctxMu.Lock()
	ids := make([]string, 0, len(rt.contexts))
	for id := range rt.contexts {
		ids = append(ids, id)
	}
	rt.ctxMu.Unlock()
	body, _ := json.Marshal(ids)
	return wire.NewResponse(http.StatusOK, rt.baseHeader(req), body)
}

func (rt *Router) handleContextsDelete(ctx context.Context, req *wire.Request, id string) *wire.Response {
	params, _ := json.Marshal(map[string]string{"contextId": id})
	result, err := rt.deps.IPC.SendSync(ctx, "closeContext", params, rt.deps.IPCTimeout)
	if err == nil {
		rt.ctxMu.Lock()
		delete(rt.contexts, id)
		rt.ctxMu.Unlock()
	}
	return rt.ipcResultResponse(result, err, req.Header.Get("Origin"))
}

func (rt *Router) handleVideoFrame(req *wire.Request, ctxID string) *wire.Response {
	if rt.deps.Video == nil {
		return rt.errorResponse(http.StatusServiceUnavailable, "video pipeline disabled", req.Header.Get("Origin"))
	}
	jpeg, _, _, _, err := rt.deps.Video.FrameJPEG(ctxID)
	if err != nil {
		return rt.errorResponse(http.StatusNotFound, err.Error(), req.Header.Get("Origin"))
	}
	hdr := rt.baseHeader(req)
	hdr.Set("Content-Type", "image/jpeg")
	return wire.NewResponse(http.StatusOK, hdr, jpeg)
}

func (rt *Router) noteContext(params json.RawMessage) {
	var p struct {
		ContextID string `json:"contextId"`
	}
	if err := json.Unmarshal(params, &p); err != nil || p.ContextID == "" {
		return
	}
	rt.ctxMu.Lock()
	rt.contexts[p.ContextID] = time.Now()
	rt.ctxMu.Unlock()
}

func (rt *Router) ipcResultResponse(result json.RawMessage, err error, origin string) *wire.Response {
	if err != nil {
		status := http.StatusBadGateway
		switch err {
		case ipcmux.ErrTimeout:
			status = http.StatusGatewayTimeout
		case ipcmux.ErrNotReady, ipcmux.ErrBrowserCrashed:
			status = http.StatusServiceUnavailable
		}
		return rt.envelopeResponse(status, nil, err.Error(), rt.originHeader(origin))
	}
	return rt.envelopeResponse(http.StatusOK, result, "", rt.originHeader(origin))
}

func (rt *Router) validationErrorResponse(errs []ValidationError, origin string) *wire.Response {
	data, _ := json.Marshal(errs)
	return rt.envelopeResponse(http.StatusUnprocessableEntity, data, "validation failed", rt.originHeader(origin))
}

func (rt *Router) errorResponse(status int, msg, origin string) *wire.Response {
	return rt.envelopeResponse(status, nil, msg, rt.originHeader(origin))
}

func (rt *Router) envelopeResponse(status int, data json.RawMessage, errMsg string, hdr http.Header) *wire.Response {
	env := Envelope{Success: status < 400, Status: status, Data: data, Error: errMsg}
	body, _ := json.Marshal(env)
	hdr.Set("Content-Type", "application/json")
	return wire.NewResponse(status, hdr, body)
}

func (rt *Router) baseHeader(req *wire.Request) http.Header {
	return rt.originHeader(req.Header.Get("Origin"))
}

func (rt *Router) originHeader(origin string) http.Header {
	hdr := make(http.Header)
	rt.deps.CORS.ApplyOrigin(hdr, origin)
	return hdr
}
