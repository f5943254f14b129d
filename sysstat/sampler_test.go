// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeProvider struct {
	name     string
	cpu      float64
	cpuErr   error
	mem      Memory
	memErr   error
	panics   bool
	cpuCalls int
	memCalls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CPUPercent(context.Context, time.Duration) (float64, error) {
	f.cpuCalls++
	if f.panics {
		panic("boom")
	}
	return f.cpu, f.cpuErr
}

func (f *fakeProvider) Memory(context.Context) (Memory, error) {
	f.memCalls++
	if f.panics {
		panic("boom")
	}
	return f.mem, f.memErr
}

var errRead = errors.New("read failed")

func quietSampler(providers ...Provider) *Sampler {
	s := NewWithProviders(time.Millisecond, providers...)
	s.log = zerolog.Nop()
	return s
}

func TestSamplerFirstSuccessWins(t *testing.T) {
	rich := &fakeProvider{name: "rich", cpu: 12.5, mem: Memory{Percent: 50, UsedGB: 4, TotalGB: 8}}
	raw := &fakeProvider{name: "raw", cpu: 99}
	s := quietSampler(rich, raw)

	cpu := s.CPU(context.Background())
	if cpu == nil || *cpu != 12.5 {
		t.Fatalf("CPU() = %v, want 12.5", cpu)
	}
	mem := s.Memory(context.Background())
	if mem == nil || *mem != rich.mem {
		t.Fatalf("Memory() = %v, want %+v", mem, rich.mem)
	}
	if raw.cpuCalls != 0 || raw.memCalls != 0 {
		t.Errorf("fallback provider called %d/%d times, want 0", raw.cpuCalls, raw.memCalls)
	}
}

func TestSamplerFallsBackInOrder(t *testing.T) {
	rich := &fakeProvider{name: "rich", cpuErr: errRead, memErr: errRead}
	raw := &fakeProvider{name: "raw", cpu: 42.0, mem: Memory{Percent: 25, UsedGB: 2, TotalGB: 8}}
	s := quietSampler(rich, raw)

	cpu := s.CPU(context.Background())
	if cpu == nil || *cpu != 42.0 {
		t.Errorf("CPU() = %v, want 42.0", cpu)
	}
	mem := s.Memory(context.Background())
	if mem == nil || *mem != raw.mem {
		t.Errorf("Memory() = %v, want %+v", mem, raw.mem)
	}
	if rich.cpuCalls != 1 || raw.cpuCalls != 1 {
		t.Errorf("cpu calls rich=%d raw=%d, want 1 each", rich.cpuCalls, raw.cpuCalls)
	}
}

func TestSamplerAllFail(t *testing.T) {
	combos := map[string][]Provider{
		"no providers": nil,
		"errors": {
			&fakeProvider{name: "rich", cpuErr: errRead, memErr: errRead},
			&fakeProvider{name: "raw", cpuErr: ErrUnavailable, memErr: ErrUnavailable},
		},
		"panics": {
			&fakeProvider{name: "rich", panics: true},
			&fakeProvider{name: "raw", panics: true},
		},
		"out of range values": {
			&fakeProvider{name: "rich", cpu: 180, mem: Memory{Percent: 50, UsedGB: 9, TotalGB: 8}},
			&fakeProvider{name: "raw", cpu: -1, mem: Memory{Percent: 120, UsedGB: 1, TotalGB: 8}},
		},
	}
	for name, providers := range combos {
		t.Run(name, func(t *testing.T) {
			s := quietSampler(providers...)
			if cpu := s.CPU(context.Background()); cpu != nil {
				t.Errorf("CPU() = %v, want nil", *cpu)
			}
			if mem := s.Memory(context.Background()); mem != nil {
				t.Errorf("Memory() = %+v, want nil", *mem)
			}
		})
	}
}

func TestSamplerPanicFallsThrough(t *testing.T) {
	s := quietSampler(
		&fakeProvider{name: "rich", panics: true},
		&fakeProvider{name: "raw", cpu: 7.5, mem: Memory{Percent: 10, UsedGB: 1, TotalGB: 10}},
	)
	if cpu := s.CPU(context.Background()); cpu == nil || *cpu != 7.5 {
		t.Errorf("CPU() = %v, want 7.5", cpu)
	}
	if mem := s.Memory(context.Background()); mem == nil || mem.TotalGB != 10 {
		t.Errorf("Memory() = %v, want total 10", mem)
	}
}

func TestStatusMetricsAreIndependent(t *testing.T) {
	fixed := time.Date(2026, 10, 15, 9, 5, 3, 0, time.Local)

	t.Run("memory fails", func(t *testing.T) {
		s := quietSampler(&fakeProvider{name: "p", cpu: 33.3, memErr: errRead})
		s.now = func() time.Time { return fixed }

		snap := s.Status(context.Background())
		if snap.CPUPercent == nil || *snap.CPUPercent != 33.3 {
			t.Errorf("CPUPercent = %v, want 33.3", snap.CPUPercent)
		}
		if snap.Memory != nil {
			t.Errorf("Memory = %+v, want nil", *snap.Memory)
		}
		if snap.ServerTime != "2026-10-15 09:05:03" {
			t.Errorf("ServerTime = %q, want 2026-10-15 09:05:03", snap.ServerTime)
		}
	})

	t.Run("cpu fails", func(t *testing.T) {
		s := quietSampler(&fakeProvider{name: "p", cpuErr: errRead, mem: Memory{Percent: 50, UsedGB: 4, TotalGB: 8}})
		s.now = func() time.Time { return fixed }

		snap := s.Status(context.Background())
		if snap.CPUPercent != nil {
			t.Errorf("CPUPercent = %v, want nil", *snap.CPUPercent)
		}
		if snap.Memory == nil || snap.Memory.Percent != 50 {
			t.Errorf("Memory = %v, want percent 50", snap.Memory)
		}
	})
}

func TestNewUnknownOSWithoutRichProvider(t *testing.T) {
	logger := zerolog.Nop()
	s := New(context.Background(), Options{GOOS: "aix", DisableRich: true, Logger: &logger, Window: time.Millisecond})

	names := s.Providers()
	if len(names) != 1 || names[0] != "unsupported/aix" {
		t.Fatalf("Providers() = %v, want [unsupported/aix]", names)
	}
	snap := s.Status(context.Background())
	if snap.CPUPercent != nil || snap.Memory != nil {
		t.Errorf("Status() = %+v, want both metrics unavailable", snap)
	}
	if snap.ServerTime == "" {
		t.Error("ServerTime is empty")
	}
}

func TestNewWithProvidersDefaultsWindow(t *testing.T) {
	if got := NewWithProviders(0).Window(); got != DefaultWindow {
		t.Errorf("Window() = %v, want %v", got, DefaultWindow)
	}
}

func TestMemoryFromBytes(t *testing.T) {
	if _, err := memoryFromBytes(0, 0); !errors.Is(err, ErrUnavailable) {
		t.Errorf("memoryFromBytes(0, 0) error = %v, want ErrUnavailable", err)
	}

	m, err := memoryFromBytes(8*bytesPerGB, 16*bytesPerGB)
	if err != nil {
		t.Fatalf("memoryFromBytes() error = %v", err)
	}
	if m.UsedGB != 0 || m.Percent != 0 || m.TotalGB != 8 {
		t.Errorf("memoryFromBytes() with surplus available = %+v, want zero usage of 8 GB", m)
	}
}

// ctxProvider fails whichever metric it is asked for once ctx is done,
// like a reader that shells out with exec.CommandContext.
type ctxProvider struct{}

func (ctxProvider) Name() string { return "ctx" }

func (ctxProvider) CPUPercent(ctx context.Context, _ time.Duration) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return 10, nil
}

func (ctxProvider) Memory(ctx context.Context) (Memory, error) {
	if err := ctx.Err(); err != nil {
		return Memory{}, err
	}
	return Memory{Percent: 50, UsedGB: 4, TotalGB: 8}, nil
}

func TestSamplerStatusMemorySurvivesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap := quietSampler(ctxProvider{}).Status(ctx)
	if snap.CPUPercent != nil {
		t.Errorf("CPUPercent = %v, want nil after cancel", *snap.CPUPercent)
	}
	if snap.Memory == nil {
		t.Fatal("Memory = nil, want a sample independent of the cancelled CPU window")
	}
	if snap.Memory.Percent != 50 {
		t.Errorf("Memory.Percent = %v, want 50", snap.Memory.Percent)
	}
}
