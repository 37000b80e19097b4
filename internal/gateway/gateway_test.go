package gateway

import (
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Port = 0 // let the OS pick a free port; tests never call Run
	cfg.AuthToken = "secret-token"
	cfg.IPC.BrowserBinaryPath = "/nonexistent/browser"
	return cfg
}

func TestNewWiresEveryCollaborator(t *testing.T) {
	gw, err := New(testConfig(t), logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	core := gw.Core()

	if core.IPFilter == nil || core.RateLimiter == nil || core.Auth == nil || core.CORS == nil {
		t.Fatal("admission filters not wired")
	}
	if core.IPC == nil {
		t.Fatal("ipc not wired")
	}
	if core.WS == nil {
		t.Fatal("websocket hub not wired (enabled by default)")
	}
	if core.Video == nil {
		t.Fatal("video service not wired")
	}
	if core.Pool == nil {
		t.Fatal("worker pool not wired")
	}
	if core.Router == nil {
		t.Fatal("router not wired")
	}

	snap := core.Stats.Snapshot()
	for _, name := range []string{"gateway", "ip_filter", "rate_limiter", "ipc", "worker_pool", "websocket", "video"} {
		if _, ok := snap[name]; !ok {
			t.Errorf("stats registry missing component %q", name)
		}
	}
}

func TestNewDisablesWebSocketHubWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.WebSocket.Enabled = false
	gw, err := New(cfg, logrus.NewEntry(logrus.StandardLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if gw.Core().WS != nil {
		t.Fatal("expected no websocket hub when disabled")
	}
}

func TestNewRejectsMalformedIPWhitelistEntry(t *testing.T) {
	cfg := testConfig(t)
	cfg.IPWhitelist.Enabled = true
	cfg.IPWhitelist.Entries = []string{"not-an-ip"}
	if _, err := New(cfg, logrus.NewEntry(logrus.StandardLogger())); err == nil {
		t.Fatal("expected a config error for a malformed allow-list entry")
	}
}
