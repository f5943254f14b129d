// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"context"
	"time"
)

// systemTimes mirrors GetSystemTimes output in 100ns units.
// Kernel time includes idle time.
type systemTimes struct {
	idle   uint64
	kernel uint64
	user   uint64
}

type windowsReader struct {
	systemTimes  func() (systemTimes, error)
	memoryStatus func() (total, available uint64, err error)
	wait         func(ctx context.Context, d time.Duration) error
}

func newWindowsReader() *windowsReader {
	return &windowsReader{
		systemTimes:  getSystemTimes,
		memoryStatus: globalMemoryStatus,
		wait:         sleepContext,
	}
}

func (r *windowsReader) Name() string { return "kernel32" }

func (r *windowsReader) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	first, err := r.systemTimes()
	if err != nil {
		return 0, err
	}
	if err := r.wait(ctx, window); err != nil {
		return 0, err
	}
	second, err := r.systemTimes()
	if err != nil {
		return 0, err
	}
	return windowsCPUPercent(first, second)
}

func (r *windowsReader) Memory(context.Context) (Memory, error) {
	total, available, err := r.memoryStatus()
	if err != nil {
		return Memory{}, err
	}
	return memoryFromBytes(total, available)
}

func windowsCPUPercent(first, second systemTimes) (float64, error) {
	busy := func(t systemTimes) float64 {
		return float64(t.kernel) - float64(t.idle) + float64(t.user)
	}
	deltaBusy := busy(second) - busy(first)
	deltaTotal := float64(second.kernel) - float64(first.kernel) +
		float64(second.user) - float64(first.user)
	return busyPercent(deltaBusy, deltaTotal)
}
