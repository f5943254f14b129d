// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sysstat samples host CPU utilisation and memory usage.
//
// Samples are taken on demand. A Sampler walks an ordered list of providers
// (gopsutil when it works on this host, then a raw reader for the running
// OS) and returns the first value any of them produces. When nothing
// produces a value the result is nil, which callers render as "unavailable".
package sysstat

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultWindow is the gap between the two CPU counter observations.
const DefaultWindow = 100 * time.Millisecond

// TimeLayout is the format of Snapshot.ServerTime.
const TimeLayout = "2006-01-02 15:04:05"

const bytesPerGB = 1024 * 1024 * 1024

// ErrUnavailable reports that a source has no trustworthy value to offer:
// unsupported platform, missing counters, or a degenerate sampling window.
var ErrUnavailable = errors.New("metric unavailable")

// Memory is physical memory usage. A non-nil *Memory always has every
// field populated and UsedGB <= TotalGB.
type Memory struct {
	Percent float64 `json:"percent"`
	UsedGB  float64 `json:"used_gb"`
	TotalGB float64 `json:"total_gb"`
}

// Snapshot is the payload served by the status endpoint.
type Snapshot struct {
	CPUPercent *float64 `json:"cpu_percent"`
	Memory     *Memory  `json:"memory"`
	ServerTime string   `json:"server_time"`
}

// memoryFromBytes builds a Memory from total and available byte counts.
// Available is clamped to total so used never goes negative.
func memoryFromBytes(total, available uint64) (Memory, error) {
	if total == 0 {
		return Memory{}, fmt.Errorf("zero total memory: %w", ErrUnavailable)
	}
	if available > total {
		available = total
	}
	used := total - available
	return Memory{
		Percent: round1(clamp(float64(used)/float64(total)*100, 0, 100)),
		UsedGB:  round1(float64(used) / bytesPerGB),
		TotalGB: round1(float64(total) / bytesPerGB),
	}, nil
}

// busyPercent converts busy and total tick deltas into a percentage.
func busyPercent(busy, total float64) (float64, error) {
	if total <= 0 {
		return 0, fmt.Errorf("non-positive elapsed time %v: %w", total, ErrUnavailable)
	}
	return round1(clamp(busy/total*100, 0, 100)), nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp(val, min, max float64) float64 {
	if math.IsNaN(val) {
		return min
	}
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
