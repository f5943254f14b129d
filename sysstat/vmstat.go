// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"time"
)

const (
	sysctlPath = "/usr/sbin/sysctl"
	vmStatPath = "/usr/bin/vm_stat"
)

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// darwinReader shells out to sysctl and vm_stat so it needs no cgo and
// no privileges.
//
// CPU utilisation is approximated from the 1-minute load average divided
// by the logical CPU count. That is a smoothed queue-length proxy, not an
// instantaneous busy fraction: it lags bursts and saturates at 100 when
// runnable threads outnumber CPUs.
type darwinReader struct {
	run    commandRunner
	numCPU int
}

func newDarwinReader() *darwinReader {
	return &darwinReader{run: runCommand, numCPU: runtime.NumCPU()}
}

func (r *darwinReader) Name() string { return "sysctl" }

func (r *darwinReader) CPUPercent(ctx context.Context, _ time.Duration) (float64, error) {
	out, err := r.run(ctx, sysctlPath, "-n", "vm.loadavg")
	if err != nil {
		return 0, fmt.Errorf("sysctl vm.loadavg: %w", err)
	}
	load1, err := parseLoadavg(out)
	if err != nil {
		return 0, err
	}
	return loadPercent(load1, r.numCPU), nil
}

func (r *darwinReader) Memory(ctx context.Context) (Memory, error) {
	out, err := r.run(ctx, sysctlPath, "-n", "hw.memsize", "hw.pagesize")
	if err != nil {
		return Memory{}, fmt.Errorf("sysctl hw.memsize hw.pagesize: %w", err)
	}
	values := strings.Fields(string(out))
	if len(values) != 2 {
		return Memory{}, fmt.Errorf("unexpected sysctl output %q", out)
	}
	memsize, err := strconv.ParseUint(values[0], 10, 64)
	if err != nil {
		return Memory{}, fmt.Errorf("parse hw.memsize: %w", err)
	}
	pageSize, err := strconv.ParseUint(values[1], 10, 64)
	if err != nil {
		return Memory{}, fmt.Errorf("parse hw.pagesize: %w", err)
	}
	if pageSize == 0 {
		return Memory{}, fmt.Errorf("zero page size: %w", ErrUnavailable)
	}

	out, err = r.run(ctx, vmStatPath)
	if err != nil {
		return Memory{}, fmt.Errorf("vm_stat: %w", err)
	}
	pages := parseVMStat(out)
	free, ok := pages["Pages free"]
	if !ok {
		return Memory{}, fmt.Errorf("vm_stat has no free page count")
	}
	available := (free + pages["Pages speculative"]) * pageSize
	return memoryFromBytes(memsize, available)
}

// parseLoadavg reads the first figure of "{ 1.23 1.45 1.67 }".
func parseLoadavg(out []byte) (float64, error) {
	fields := strings.Fields(strings.Trim(strings.TrimSpace(string(out)), "{}"))
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty load average")
	}
	return strconv.ParseFloat(fields[0], 64)
}

func loadPercent(load1 float64, cpus int) float64 {
	if cpus < 1 {
		cpus = 1
	}
	return round1(clamp(load1/float64(cpus)*100, 0, 100))
}

var vmStatLine = regexp.MustCompile(`^([^:]+):\s+(\d+)\.`)

// parseVMStat maps lines like "Pages free:    12345." to their page count.
func parseVMStat(out []byte) map[string]uint64 {
	pages := make(map[string]uint64)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := vmStatLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			continue
		}
		pages[strings.TrimSpace(m[1])] = n
	}
	return pages
}
