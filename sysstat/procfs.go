// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// linuxReader reads the aggregate "cpu" line of <root>/stat and the
// counters in <root>/meminfo.
type linuxReader struct {
	root string
	wait func(ctx context.Context, d time.Duration) error
}

func newLinuxReader(root string) *linuxReader {
	return &linuxReader{root: root, wait: sleepContext}
}

func (r *linuxReader) Name() string { return "procfs" }

func (r *linuxReader) CPUPercent(ctx context.Context, window time.Duration) (float64, error) {
	first, err := r.readCPUTimes()
	if err != nil {
		return 0, err
	}
	if err := r.wait(ctx, window); err != nil {
		return 0, err
	}
	second, err := r.readCPUTimes()
	if err != nil {
		return 0, err
	}
	return cpuPercentFromTimes(first, second)
}

func (r *linuxReader) Memory(context.Context) (Memory, error) {
	f, err := os.Open(filepath.Join(r.root, "meminfo"))
	if err != nil {
		return Memory{}, err
	}
	defer f.Close()

	info, err := parseMeminfo(f)
	if err != nil {
		return Memory{}, err
	}
	return memoryFromMeminfo(info)
}

func (r *linuxReader) readCPUTimes() ([]uint64, error) {
	f, err := os.Open(filepath.Join(r.root, "stat"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("empty %s/stat", r.root)
	}
	return parseCPULine(scanner.Text())
}

// parseCPULine parses "cpu  user nice system idle iowait irq softirq steal ...".
func parseCPULine(line string) ([]uint64, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || fields[0] != "cpu" {
		return nil, fmt.Errorf("unexpected stat line %q", line)
	}
	// user, nice, system, idle at minimum.
	if len(fields) < 5 {
		return nil, fmt.Errorf("insufficient cpu fields in %q", line)
	}
	times := make([]uint64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse cpu field %q: %w", f, err)
		}
		times = append(times, v)
	}
	return times, nil
}

// idleAndTotal sums idle+iowait and the first eight counters
// (user..steal). Guest time is already included in user and nice.
func idleAndTotal(times []uint64) (idle, total float64) {
	idle = float64(times[3])
	if len(times) > 4 {
		idle += float64(times[4])
	}
	n := min(len(times), 8)
	for _, v := range times[:n] {
		total += float64(v)
	}
	return idle, total
}

func cpuPercentFromTimes(first, second []uint64) (float64, error) {
	if len(first) < 4 || len(second) < 4 {
		return 0, fmt.Errorf("short cpu counter snapshot: %w", ErrUnavailable)
	}
	idle1, total1 := idleAndTotal(first)
	idle2, total2 := idleAndTotal(second)
	deltaTotal := total2 - total1
	deltaIdle := idle2 - idle1
	return busyPercent(deltaTotal-deltaIdle, deltaTotal)
}

// parseMeminfo maps "Name:   value kB" lines to their values in kB.
// Lines that do not parse are skipped.
func parseMeminfo(r io.Reader) (map[string]uint64, error) {
	info := make(map[string]uint64)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		v, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			continue
		}
		info[strings.TrimSuffix(fields[0], ":")] = v
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return info, nil
}

func memoryFromMeminfo(info map[string]uint64) (Memory, error) {
	totalKB, ok := info["MemTotal"]
	if !ok {
		return Memory{}, fmt.Errorf("MemTotal missing: %w", ErrUnavailable)
	}
	availKB, ok := info["MemAvailable"]
	if !ok {
		// Kernels before 3.14 have no MemAvailable.
		availKB = info["MemFree"] + info["Buffers"] + info["Cached"]
	}
	return memoryFromBytes(totalKB*1024, availKB*1024)
}
