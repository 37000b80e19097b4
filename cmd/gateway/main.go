// File: cmd/gateway/main.go
// main wires a programmatically-built Config into internal/gateway and
// runs it until SIGINT/SIGTERM. It is a thin driver, not a CLI framework:
// flag/env/file config loading is left to callers that embed the gateway;
// this binary only overrides the handful of settings a real deployment
// cannot omit.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/config"
	"github.com/owlhq/owl-gateway/internal/gateway"
)

func main() {
	var (
		host        = flag.String("host", "", "override Config.Host")
		port        = flag.Int("port", 0, "override Config.Port")
		browserPath = flag.String("browser", "", "path to the browser binary (Config.IPC.BrowserBinaryPath)")
		authToken   = flag.String("token", "", "bearer token for Config.AuthToken")
	)
	flag.Parse()

	log := logrus.NewEntry(logrus.StandardLogger())
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg := config.DefaultConfig()
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *browserPath != "" {
		cfg.IPC.BrowserBinaryPath = *browserPath
	}
	if *authToken != "" {
		cfg.AuthToken = *authToken
	}

	gw, err := gateway.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("gateway: failed to build")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(context.Background())
	}()

	select {
	case <-ctx.Done():
		log.Info("gateway: shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("gateway: listener exited")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout+5*time.Second)
	defer cancel()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("gateway: graceful shutdown failed")
		os.Exit(1)
	}
}
