// File: internal/config/config.go
// Package config defines the static configuration data model. Loading it
// from files, environment, or flags is an external collaborator — this
// package supplies only the struct and its defaults.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package config

import "time"

// AuthMode selects the admission authentication path.
type AuthMode string

const (
	AuthModeNone  AuthMode = "none"
	AuthModeToken AuthMode = "token"
	AuthModeJWT   AuthMode = "jwt"
)

// JWTConfig configures RS256/384/512 bearer validation.
type JWTConfig struct {
	PublicKeyPEM string
	Algorithm    string // RS256, RS384, or RS512
	Issuer       string
	Audience     string
	ClockSkew    time.Duration
	RequireExp   bool
}

// RateLimitConfig configures the per-IP token-bucket limiter.
type RateLimitConfig struct {
	Enabled          bool
	RequestsPerWindow int
	WindowSeconds    int
	Burst            int
}

// IPWhitelistConfig configures the IP allow-list admission filter.
type IPWhitelistConfig struct {
	Enabled bool
	Entries []string // single IPs or CIDR ranges, v4/v6
}

// CORSConfig configures preflight and origin-echo behavior.
type CORSConfig struct {
	Enabled bool
	Origins []string
	Methods []string
	Headers []string
	MaxAge  int
}

// WebSocketConfig configures the WS hub.
type WebSocketConfig struct {
	Enabled        bool
	MaxConnections int
	MaxMessageSize int64
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// IPCConfig configures the async IPC multiplexer.
type IPCConfig struct {
	BrowserBinaryPath string
	SocketPoolSize    int // >1 enables the Linux-only multi-socket pool
	ReadyTimeout      time.Duration
	GraceTimeout      time.Duration
}

// VideoConfig configures the shared-memory frame ring reader.
type VideoConfig struct {
	ShmPathPrefix   string
	FrameWait       time.Duration
	MJPEGBoundary   string
	PollInterval    time.Duration
	StaleAfter      time.Duration
	SubscriberQueue int // per-WS-subscriber backpressure ring capacity
}

// Config is the gateway's full static configuration surface.
type Config struct {
	Host              string
	Port              int
	MaxConnections    int
	RequestTimeout    time.Duration
	BrowserTimeout    time.Duration
	GracefulShutdown  bool
	ShutdownTimeout   time.Duration

	WorkerCount int
	QueueDepth  int

	AuthMode  AuthMode
	AuthToken string
	JWT       JWTConfig

	RateLimit   RateLimitConfig
	IPWhitelist IPWhitelistConfig
	CORS        CORSConfig
	WebSocket   WebSocketConfig
	IPC         IPCConfig
	Video       VideoConfig
}

// DefaultConfig returns a Config where every field gets a conservative,
// production-safe default so a caller only needs to override what
// actually differs.
func DefaultConfig() *Config {
	return &Config{
		Host:             "0.0.0.0",
		Port:             8080,
		MaxConnections:   1024,
		RequestTimeout:   30 * time.Second,
		BrowserTimeout:   60 * time.Second,
		GracefulShutdown: true,
		ShutdownTimeout:  30 * time.Second,

		WorkerCount: 0, // 0 -> workerpool.New picks max(2,min(64,NumCPU))
		QueueDepth:  1024,

		AuthMode: AuthModeToken,

		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerWindow: 100,
			WindowSeconds:     60,
			Burst:             20,
		},
		IPWhitelist: IPWhitelistConfig{Enabled: false},
		CORS: CORSConfig{
			Enabled: false,
			Methods: []string{"GET", "POST", "OPTIONS"},
			MaxAge:  600,
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			MaxConnections: 50,
			MaxMessageSize: 1 << 20,
			PingInterval:   30 * time.Second,
			PongTimeout:    10 * time.Second,
		},
		IPC: IPCConfig{
			SocketPoolSize: 1,
			ReadyTimeout:   10 * time.Second,
			GraceTimeout:   5 * time.Second,
		},
		Video: VideoConfig{
			ShmPathPrefix:   "/owl_stream_ctx_",
			FrameWait:       5 * time.Second,
			MJPEGBoundary:   "owlboundary",
			PollInterval:    15 * time.Millisecond,
			StaleAfter:      5 * time.Second,
			SubscriberQueue: 4,
		},
	}
}
