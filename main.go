// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tomoconnor/globaldms/sysstat"
)

func main() {
	// Subcommand dispatch (before flag parsing)
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "install":
			serviceInstall(os.Args[2:])
			return
		case "remove":
			serviceRemove()
			return
		}
	}

	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	setupLogging(cfg.LogLevel)

	if err := os.MkdirAll(cfg.LogoDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", cfg.LogoDir).Msg("cannot create logo directory")
	}

	sampler := sysstat.New(context.Background(), sysstat.Options{
		Window:      cfg.CPUWindow,
		DisableRich: !cfg.Rich,
	})
	log.Info().Strs("providers", sampler.Providers()).Dur("cpu_window", sampler.Window()).Msg("metrics sampler ready")

	server, err := buildServer(cfg, sampler)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	if err := runService(cfg, server); err != nil {
		log.Fatal().Err(err).Msg("server error")
	}
}

func setupLogging(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func buildServer(cfg serverConfig, sampler *sysstat.Sampler) (*http.Server, error) {
	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	index, err := indexHandler(cfg.Title)
	if err != nil {
		return nil, err
	}

	limiter := newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	protect := func(h http.Handler) http.Handler {
		h = limiter.middleware(h)
		if cfg.CAFile != "" {
			h = authMiddleware(h)
		}
		return h
	}

	mux := http.NewServeMux()
	mux.Handle("/", index)
	mux.Handle("/logo/", logoHandler(cfg.LogoDir))
	mux.Handle("/static/", staticHandler())
	mux.Handle("/health", http.HandlerFunc(healthHandler))
	mux.Handle("/status", protect(statusHandler(sampler)))
	mux.Handle("/metrics", protect(metricsHandler(sampler)))

	// Each status request holds its handler for one CPU window.
	writeTimeout := 15*time.Second + cfg.CPUWindow

	return &http.Server{
		Addr:           cfg.Addr,
		Handler:        mux,
		TLSConfig:      tlsConfig,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   writeTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 4096,
	}, nil
}

// buildTLSConfig returns nil when TLS is off. With a CA configured every
// client must present a certificate signed by it.
func buildTLSConfig(cfg serverConfig) (*tls.Config, error) {
	if !cfg.tlsEnabled() {
		return nil, nil
	}
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS13}
	if cfg.CAFile == "" {
		return tlsConfig, nil
	}

	caCert, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("failed to parse CA certificate")
	}
	tlsConfig.ClientCAs = caPool
	tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	return tlsConfig, nil
}

func listen(cfg serverConfig, server *http.Server) error {
	if cfg.tlsEnabled() {
		return server.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	}
	return server.ListenAndServe()
}

func runInteractive(cfg serverConfig, server *http.Server) error {
	done := make(chan os.Signal, 1)
	signalNotify(done)
	defer signal.Stop(done)

	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		printBanner(os.Stdout, cfg)
		log.Info().Str("addr", cfg.Addr).Bool("tls", cfg.tlsEnabled()).Msg("starting status page")
		if err := listen(cfg, server); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}
