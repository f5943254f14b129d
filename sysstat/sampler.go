// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Provider is one source of CPU and memory figures. Implementations return
// an error (possibly wrapping ErrUnavailable) instead of a value they cannot
// vouch for.
type Provider interface {
	Name() string
	CPUPercent(ctx context.Context, window time.Duration) (float64, error)
	Memory(ctx context.Context) (Memory, error)
}

// Options configures New.
type Options struct {
	// Window is the CPU sampling window. Zero means DefaultWindow.
	Window time.Duration
	// DisableRich skips the gopsutil provider even if it works here.
	DisableRich bool
	// GOOS selects the raw reader. Empty means runtime.GOOS.
	GOOS string
	// Logger receives per-provider failures at debug level.
	// Nil means the global zerolog logger.
	Logger *zerolog.Logger
}

// Sampler tries its providers in order and keeps the first answer.
// It holds no per-sample state and is safe for concurrent use.
type Sampler struct {
	providers []Provider
	window    time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// New builds the default chain: gopsutil if it initialises on this host,
// then the raw reader for the target OS.
func New(ctx context.Context, opts Options) *Sampler {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	goos := opts.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}

	var providers []Provider
	if !opts.DisableRich {
		rich, err := NewGopsutil(ctx)
		if err != nil {
			logger.Info().Err(err).Msg("gopsutil unavailable, using raw readers only")
		} else {
			providers = append(providers, rich)
		}
	}
	providers = append(providers, NewReader(goos))

	s := NewWithProviders(opts.Window, providers...)
	s.log = logger
	return s
}

// NewWithProviders builds a Sampler over an explicit provider chain.
func NewWithProviders(window time.Duration, providers ...Provider) *Sampler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Sampler{
		providers: providers,
		window:    window,
		now:       time.Now,
		log:       log.Logger,
	}
}

// Providers returns the chain's provider names in priority order.
func (s *Sampler) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for _, p := range s.providers {
		names = append(names, p.Name())
	}
	return names
}

// Window returns the CPU sampling window.
func (s *Sampler) Window() time.Duration { return s.window }

// CPU returns aggregate CPU utilisation in percent, or nil when no provider
// could measure it. It blocks for roughly one sampling window.
func (s *Sampler) CPU(ctx context.Context) *float64 {
	for _, p := range s.providers {
		pct, err := s.tryCPU(ctx, p)
		if err != nil {
			s.log.Debug().Str("provider", p.Name()).Err(err).Msg("cpu sample failed")
			continue
		}
		return &pct
	}
	return nil
}

// Memory returns physical memory usage, or nil when no provider could
// measure it.
func (s *Sampler) Memory(ctx context.Context) *Memory {
	for _, p := range s.providers {
		m, err := s.tryMemory(ctx, p)
		if err != nil {
			s.log.Debug().Str("provider", p.Name()).Err(err).Msg("memory sample failed")
			continue
		}
		return &m
	}
	return nil
}

// Status takes one CPU and one memory sample and stamps the local time.
// The memory sample ignores ctx cancellation so that an abort during the
// CPU window does not also fail the memory read.
func (s *Sampler) Status(ctx context.Context) Snapshot {
	return Snapshot{
		CPUPercent: s.CPU(ctx),
		Memory:     s.Memory(context.WithoutCancel(ctx)),
		ServerTime: s.now().Format(TimeLayout),
	}
}

func (s *Sampler) tryCPU(ctx context.Context, p Provider) (pct float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	pct, err = p.CPUPercent(ctx, s.window)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(pct) || pct < 0 || pct > 100 {
		return 0, fmt.Errorf("cpu percent %v out of range: %w", pct, ErrUnavailable)
	}
	return pct, nil
}

func (s *Sampler) tryMemory(ctx context.Context, p Provider) (m Memory, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked: %v", r)
		}
	}()
	m, err = p.Memory(ctx)
	if err != nil {
		return Memory{}, err
	}
	if !m.valid() {
		return Memory{}, fmt.Errorf("inconsistent memory sample %+v: %w", m, ErrUnavailable)
	}
	return m, nil
}

func (m Memory) valid() bool {
	for _, v := range []float64{m.Percent, m.UsedGB, m.TotalGB} {
		if math.IsNaN(v) || v < 0 {
			return false
		}
	}
	return m.Percent <= 100 && m.UsedGB <= m.TotalGB
}
