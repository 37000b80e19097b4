package router

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/owlhq/owl-gateway/internal/admission"
	"github.com/owlhq/owl-gateway/internal/ipcmux"
	"github.com/owlhq/owl-gateway/internal/stats"
	"github.com/owlhq/owl-gateway/internal/wire"
)

type fakeIPC struct {
	state  ipcmux.State
	result json.RawMessage
	err    error
}

func (f *fakeIPC) Start(ctx context.Context) error { return nil }
func (f *fakeIPC) Stop()                           {}
func (f *fakeIPC) Send(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (*ipcmux.Future, uint64, error) {
	return nil, 0, nil
}
func (f *fakeIPC) SendSync(ctx context.Context, method string, params json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	return f.result, f.err
}
func (f *fakeIPC) Cancel(id uint64) bool      { return false }
func (f *fakeIPC) State() ipcmux.State        { return f.state }
func (f *fakeIPC) StatsSnapshot() any         { return ipcmux.Stats{} }

func newTestRouter(t *testing.T, ipc *fakeIPC) *Router {
	t.Helper()
	ipFilter, err := admission.NewIPFilter(false, nil)
	if err != nil {
		t.Fatal(err)
	}
	rl := admission.NewRateLimiter(false, 100, 60, 10)
	auth := admission.NewBearerAuthenticator("secret-token")
	cors := admission.NewCORS(false, nil, nil, nil, 0)
	return New(Deps{
		IPC:         ipc,
		IPFilter:    ipFilter,
		RateLimiter: rl,
		Auth:        auth,
		CORS:        cors,
		Stats:       stats.NewRegistry(),
		StartedAt:   time.Now(),
		IPCTimeout:  time.Second,
	})
}

func req(method, path string, body []byte, authz string) *wire.Request {
	hdr := make(http.Header)
	if authz != "" {
		hdr.Set("Authorization", authz)
	}
	return &wire.Request{Method: method, Path: path, Header: hdr, Body: body, PeerIP: "127.0.0.1"}
}

func TestHealthNoAuth(t *testing.T) {
	rt := newTestRouter(t, &fakeIPC{state: ipcmux.Ready})
	resp := rt.Handle(context.Background(), req(http.MethodGet, "/health", nil, ""))
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d", resp.Status)
	}
}

func TestExecuteRequiresAuth(t *testing.T) {
	rt := newTestRouter(t, &fakeIPC{state: ipcmux.Ready})
	body, _ := json.Marshal(map[string]string{"url": "https://example.org"})
	resp := rt.Handle(context.Background(), req(http.MethodPost, "/execute/navigate", body, ""))
	if resp.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.Status)
	}
}

func TestExecuteValidationFailure(t *testing.T) {
	rt := newTestRouter(t, &fakeIPC{state: ipcmux.Ready})
	resp := rt.Handle(context.Background(), req(http.MethodPost, "/execute/navigate", []byte(`{}`), "Bearer secret-token"))
	if resp.Status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.Status)
	}
}

func TestExecuteSuccess(t *testing.T) {
	ipc := &fakeIPC{state: ipcmux.Ready, result: json.RawMessage(`{"title":"Example"}`)}
	rt := newTestRouter(t, ipc)
	body, _ := json.Marshal(map[string]string{"url": "https://example.org"})
	resp := rt.Handle(context.Background(), req(http.MethodPost, "/execute/navigate", body, "Bearer secret-token"))
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, body=%s", resp.Status, resp.Body)
	}
	var env Envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		t.Fatal(err)
	}
	if !env.Success {
		t.Fatal("expected success envelope")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	rt := newTestRouter(t, &fakeIPC{state: ipcmux.Ready})
	resp := rt.Handle(context.Background(), req(http.MethodPost, "/execute/teleport", []byte(`{}`), "Bearer secret-token"))
	if resp.Status != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.Status)
	}
}

func TestToolsListing(t *testing.T) {
	rt := newTestRouter(t, &fakeIPC{state: ipcmux.Ready})
	resp := rt.Handle(context.Background(), req(http.MethodGet, "/tools", nil, "Bearer secret-token"))
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d", resp.Status)
	}
	var defs []ToolDef
	if err := json.Unmarshal(resp.Body, &defs); err != nil {
		t.Fatal(err)
	}
	if len(defs) == 0 {
		t.Fatal("expected non-empty tool registry")
	}
}
