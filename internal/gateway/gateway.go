// File: internal/gateway/gateway.go
package gateway

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/admission"
	"github.com/owlhq/owl-gateway/internal/config"
	"github.com/owlhq/owl-gateway/internal/ipcmux"
	"github.com/owlhq/owl-gateway/internal/listener"
	"github.com/owlhq/owl-gateway/internal/router"
	"github.com/owlhq/owl-gateway/internal/stats"
	"github.com/owlhq/owl-gateway/internal/video"
	"github.com/owlhq/owl-gateway/internal/workerpool"
	"github.com/owlhq/owl-gateway/internal/wshub"
)

// poolStatsAdapter lifts workerpool.Pool's typed Snapshot onto
// internal/stats.ComponentProvider's any-returning shape.
type poolStatsAdapter struct{ p *workerpool.Pool }

func (a poolStatsAdapter) StatsSnapshot() any { return a.p.Snapshot() }

// CoreContext holds every wired collaborator in place of package-level
// global state: one authenticator, one IP filter, one rate limiter, one
// IPC channel, one WS hub, one video service, built fresh and passed by
// reference through the router. A gateway test instantiates this directly
// instead of reaching for process-wide state.
type CoreContext struct {
	Config *config.Config
	Log    *logrus.Entry

	Stats       *stats.Registry
	IPFilter    *admission.IPFilter
	RateLimiter *admission.RateLimiter
	Auth        *admission.Authenticator
	CORS        *admission.CORS
	IPC         ipcmux.IPC
	WS          *wshub.Hub
	Video       *video.Service
	Pool        *workerpool.Pool
	Router      *router.Router
}

// Gateway owns the fully-wired CoreContext and the listener/supervisor
// lifecycle: opening the browser process and listen socket, running
// periodic maintenance, and shutting everything down gracefully.
type Gateway struct {
	core *CoreContext
	ln   *listener.Listener

	sweepStop chan struct{}
	sweepWG   sync.WaitGroup
}

// New builds every collaborator from cfg but starts nothing; call Run to
// open the browser process and the listen socket.
func New(cfg *config.Config, log *logrus.Entry) (*Gateway, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ipFilter, err := admission.NewIPFilter(cfg.IPWhitelist.Enabled, cfg.IPWhitelist.Entries)
	if err != nil {
		return nil, fmt.Errorf("gateway: ip whitelist: %w", err)
	}
	rateLimiter := admission.NewRateLimiter(cfg.RateLimit.Enabled, cfg.RateLimit.RequestsPerWindow,
		cfg.RateLimit.WindowSeconds, cfg.RateLimit.Burst)

	auth, err := buildAuthenticator(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: auth: %w", err)
	}

	cors := admission.NewCORS(cfg.CORS.Enabled, cfg.CORS.Origins, cfg.CORS.Methods, cfg.CORS.Headers, cfg.CORS.MaxAge)

	statsReg := stats.NewRegistry()
	statsReg.Register("ip_filter", ipFilter)
	statsReg.Register("rate_limiter", rateLimiter)

	ipc, err := buildIPC(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("gateway: ipc: %w", err)
	}
	statsReg.Register("ipc", ipcStatsAdapter{ipc})

	pool := workerpool.New(cfg.WorkerCount, cfg.QueueDepth, log)
	statsReg.Register("worker_pool", poolStatsAdapter{pool})

	var hub *wshub.Hub
	if cfg.WebSocket.Enabled {
		hub = wshub.New(ipc, wshub.Options{
			MaxConnections: cfg.WebSocket.MaxConnections,
			MaxMessage:     int(cfg.WebSocket.MaxMessageSize),
			PingInterval:   cfg.WebSocket.PingInterval,
			PongTimeout:    cfg.WebSocket.PongTimeout,
			IPCTimeout:     cfg.BrowserTimeout,
			Log:            log,
		})
		statsReg.Register("websocket", hub)
	}

	videoSvc := video.New(ipc, video.Options{
		PollInterval:    cfg.Video.PollInterval,
		StaleAfter:      cfg.Video.StaleAfter,
		SubscriberQueue: uint64(cfg.Video.SubscriberQueue),
		ShmPrefix:       cfg.Video.ShmPathPrefix,
		MJPEGBoundary:   cfg.Video.MJPEGBoundary,
		Log:             log,
	})
	statsReg.Register("video", videoSvc)

	if hub != nil {
		hub.SetVideoHub(videoSvc)
	}

	var wsUpgrader router.WebSocketUpgrader
	if hub != nil {
		wsUpgrader = hub
	}

	rt := router.New(router.Deps{
		IPC:         ipc,
		IPFilter:    ipFilter,
		RateLimiter: rateLimiter,
		Auth:        auth,
		CORS:        cors,
		Stats:       statsReg,
		WS:          wsUpgrader,
		Video:       videoSvc,
		Log:         log,
		StartedAt:   time.Now(),
		IPCTimeout:  cfg.BrowserTimeout,
	})

	core := &CoreContext{
		Config:      cfg,
		Log:         log,
		Stats:       statsReg,
		IPFilter:    ipFilter,
		RateLimiter: rateLimiter,
		Auth:        auth,
		CORS:        cors,
		IPC:         ipc,
		WS:          hub,
		Video:       videoSvc,
		Pool:        pool,
		Router:      rt,
	}

	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	ln := listener.New(addr, rt, pool, listener.Options{
		RequestTimeout:  cfg.RequestTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Log:             log,
	})

	return &Gateway{core: core, ln: ln}, nil
}

// Core exposes the wired CoreContext for tests that want direct access to
// individual collaborators.
func (g *Gateway) Core() *CoreContext { return g.core }

// Run starts the browser IPC channel, the rate-limit sweep maintenance
// thread, and the HTTP/WS listener. It blocks until Shutdown stops the
// listener or the listener itself fails.
func (g *Gateway) Run(ctx context.Context) error {
	if err := g.core.IPC.Start(ctx); err != nil {
		g.core.Log.WithError(err).Warn("gateway: browser process did not become ready; serving degraded (health-only)")
	}

	g.sweepStop = make(chan struct{})
	g.sweepWG.Add(1)
	go g.runMaintenance()

	return g.ln.Serve()
}

// runMaintenance is the periodic maintenance thread: it evicts stale
// rate-limit buckets once per window so the per-IP map does not grow
// without bound under a steady stream of distinct clients.
func (g *Gateway) runMaintenance() {
	defer g.sweepWG.Done()
	interval := time.Duration(g.core.Config.RateLimit.WindowSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-g.sweepStop:
			return
		case <-t.C:
			evicted := g.core.RateLimiter.Sweep()
			if evicted > 0 {
				g.core.Log.WithField("evicted", evicted).Debug("gateway: rate limit sweep")
			}
		}
	}
}

// Shutdown performs a graceful shutdown: stop the maintenance thread, stop
// accepting new connections, drain in-flight workers up to the configured
// timeout, then stop the browser process.
func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.sweepStop != nil {
		close(g.sweepStop)
		g.sweepWG.Wait()
	}
	err := g.ln.Shutdown(ctx)
	g.core.Pool.Close()
	g.core.IPC.Stop()
	return err
}

func buildAuthenticator(cfg *config.Config) (*admission.Authenticator, error) {
	switch cfg.AuthMode {
	case config.AuthModeToken:
		return admission.NewBearerAuthenticator(cfg.AuthToken), nil
	case config.AuthModeJWT:
		return admission.NewJWTAuthenticator(cfg.JWT.PublicKeyPEM, cfg.JWT.Algorithm, cfg.JWT.Issuer,
			cfg.JWT.Audience, cfg.JWT.ClockSkew, cfg.JWT.RequireExp)
	default:
		return admission.NewBearerAuthenticator(""), nil
	}
}

func buildIPC(cfg *config.Config, log *logrus.Entry) (ipcmux.IPC, error) {
	opts := ipcmux.Options{
		BrowserBinaryPath: cfg.IPC.BrowserBinaryPath,
		ReadyTimeout:      cfg.IPC.ReadyTimeout,
		DefaultTimeout:    cfg.BrowserTimeout,
		GraceTimeout:      cfg.IPC.GraceTimeout,
		Log:               log,
	}
	return ipcmux.NewAuto(opts, cfg.IPC.SocketPoolSize), nil
}

// ipcStatsAdapter exposes ipcmux.IPC's StatsSnapshot under the same
// ComponentProvider interface the rest of the registry uses.
type ipcStatsAdapter struct{ ipc ipcmux.IPC }

func (a ipcStatsAdapter) StatsSnapshot() any { return a.ipc.StatsSnapshot() }
