// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build windows

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

const serviceName = "GlobalDMS"

func signalNotify(c chan<- os.Signal) {
	signal.Notify(c, os.Interrupt)
}

func runService(cfg serverConfig, server *http.Server) error {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return fmt.Errorf("failed to detect service mode: %w", err)
	}
	if !isService {
		return runInteractive(cfg, server)
	}

	elog, err := eventlog.Open(serviceName)
	if err != nil {
		return fmt.Errorf("failed to open event log: %w", err)
	}
	defer elog.Close()

	log.Logger = zerolog.New(&eventLogWriter{elog: elog}).With().Timestamp().Logger()

	return svc.Run(serviceName, &statusService{cfg: cfg, server: server})
}

type statusService struct {
	cfg    serverConfig
	server *http.Server
}

func (s *statusService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (bool, uint32) {
	changes <- svc.Status{State: svc.StartPending}

	errCh := make(chan error, 1)
	go func() {
		if err := listen(s.cfg, s.server); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}
	log.Info().Str("addr", s.cfg.Addr).Bool("tls", s.cfg.tlsEnabled()).Msg("service started")

	for {
		select {
		case err := <-errCh:
			if err != nil {
				log.Error().Err(err).Msg("server error")
				return false, 1
			}
			return false, 0
		case c := <-r:
			switch c.Cmd {
			case svc.Stop, svc.Shutdown:
				changes <- svc.Status{State: svc.StopPending}
				log.Info().Msg("service stopping...")
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := s.server.Shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("shutdown error")
				}
				cancel()
				return false, 0
			case svc.Interrogate:
				changes <- c.CurrentStatus
			}
		}
	}
}

// eventLogWriter sends each zerolog line to the Windows event log at the
// matching severity.
type eventLogWriter struct {
	elog *eventlog.Log
}

func (w *eventLogWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *eventLogWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var err error
	switch {
	case level >= zerolog.ErrorLevel:
		err = w.elog.Error(3, string(p))
	case level == zerolog.WarnLevel:
		err = w.elog.Warning(2, string(p))
	default:
		err = w.elog.Info(1, string(p))
	}
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func serviceInstall(args []string) {
	m, err := mgr.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to service manager")
	}
	defer m.Disconnect()

	exePath, err := os.Executable()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get executable path")
	}

	s, err := m.CreateService(serviceName, exePath, mgr.Config{
		DisplayName: "Global DMS",
		Description: "Local status page with live CPU and memory usage",
		StartType:   mgr.StartAutomatic,
	}, args...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create service")
	}
	defer s.Close()

	err = eventlog.InstallAsEventCreate(serviceName, eventlog.Info|eventlog.Warning|eventlog.Error)
	if err != nil {
		s.Delete()
		log.Fatal().Err(err).Msg("failed to install event log source")
	}

	fmt.Printf("service %q installed\n", serviceName)

	if err := s.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start service")
	}
	fmt.Printf("service %q started\n", serviceName)
}

func serviceRemove() {
	m, err := mgr.Connect()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to service manager")
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open service")
	}
	defer s.Close()

	if err := s.Delete(); err != nil {
		log.Fatal().Err(err).Msg("failed to delete service")
	}

	_ = eventlog.Remove(serviceName)

	fmt.Printf("service %q removed\n", serviceName)
}
