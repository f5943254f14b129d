// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

type gopsutilProvider struct{}

// NewGopsutil returns a provider backed by gopsutil, or an error if
// gopsutil cannot read memory statistics on this host.
func NewGopsutil(ctx context.Context) (Provider, error) {
	if _, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		return nil, fmt.Errorf("gopsutil probe: %w", err)
	}
	return gopsutilProvider{}, nil
}

func (gopsutilProvider) Name() string { return "gopsutil" }

func (gopsutilProvider) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, window, false)
	if err != nil {
		return 0, err
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("gopsutil returned no cpu figures: %w", ErrUnavailable)
	}
	return round1(clamp(pcts[0], 0, 100)), nil
}

func (gopsutilProvider) Memory(ctx context.Context) (Memory, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Memory{}, err
	}
	if vm == nil || vm.Total == 0 {
		return Memory{}, fmt.Errorf("gopsutil returned no memory total: %w", ErrUnavailable)
	}
	used := vm.Used
	if used > vm.Total {
		used = vm.Total
	}
	return Memory{
		Percent: round1(clamp(vm.UsedPercent, 0, 100)),
		UsedGB:  round1(float64(used) / bytesPerGB),
		TotalGB: round1(float64(vm.Total) / bytesPerGB),
	}, nil
}
