// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const sampleVMStat = `Mach Virtual Memory Statistics: (page size of 16384 bytes)
Pages free:                              131072.
Pages active:                            400000.
Pages inactive:                          380000.
Pages speculative:                       131072.
Pages throttled:                              0.
Pages wired down:                        150000.
"Translation faults":                  99999999.
`

// fakeCommands answers commands by their joined command line.
func fakeCommands(outputs map[string]string) commandRunner {
	return func(_ context.Context, name string, args ...string) ([]byte, error) {
		key := strings.Join(append([]string{name}, args...), " ")
		out, ok := outputs[key]
		if !ok {
			return nil, fmt.Errorf("exec: %q not found", key)
		}
		return []byte(out), nil
	}
}

func TestDarwinReaderMemory(t *testing.T) {
	r := &darwinReader{
		run: fakeCommands(map[string]string{
			"/usr/sbin/sysctl -n hw.memsize hw.pagesize": "17179869184\n16384\n",
			"/usr/bin/vm_stat": sampleVMStat,
		}),
		numCPU: 8,
	}

	got, err := r.Memory(context.Background())
	if err != nil {
		t.Fatalf("Memory() error = %v", err)
	}
	want := Memory{Percent: 75.0, UsedGB: 12.0, TotalGB: 16.0}
	if got != want {
		t.Errorf("Memory() = %+v, want %+v", got, want)
	}
}

func TestDarwinReaderMemoryFailures(t *testing.T) {
	tests := []struct {
		name    string
		outputs map[string]string
	}{
		{"sysctl missing", map[string]string{"/usr/bin/vm_stat": sampleVMStat}},
		{"vm_stat missing", map[string]string{"/usr/sbin/sysctl -n hw.memsize hw.pagesize": "17179869184\n16384\n"}},
		{"short sysctl output", map[string]string{
			"/usr/sbin/sysctl -n hw.memsize hw.pagesize": "17179869184\n",
			"/usr/bin/vm_stat": sampleVMStat,
		}},
		{"no free pages line", map[string]string{
			"/usr/sbin/sysctl -n hw.memsize hw.pagesize": "17179869184\n16384\n",
			"/usr/bin/vm_stat": "Pages active: 5.\n",
		}},
		{"zero page size", map[string]string{
			"/usr/sbin/sysctl -n hw.memsize hw.pagesize": "17179869184\n0\n",
			"/usr/bin/vm_stat": sampleVMStat,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &darwinReader{run: fakeCommands(tt.outputs), numCPU: 8}
			if _, err := r.Memory(context.Background()); err == nil {
				t.Error("Memory() succeeded, want error")
			}
		})
	}
}

func TestDarwinReaderCPUPercent(t *testing.T) {
	tests := []struct {
		name    string
		loadavg string
		cpus    int
		want    float64
	}{
		{"quarter loaded", "{ 2.00 1.50 1.00 }\n", 8, 25.0},
		{"overloaded clamps", "{ 20.00 10.00 5.00 }\n", 4, 100.0},
		{"idle", "{ 0.00 0.00 0.00 }\n", 4, 0.0},
		{"unknown cpu count", "{ 0.50 0.40 0.30 }\n", 0, 50.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &darwinReader{
				run:    fakeCommands(map[string]string{"/usr/sbin/sysctl -n vm.loadavg": tt.loadavg}),
				numCPU: tt.cpus,
			}
			got, err := r.CPUPercent(context.Background(), DefaultWindow)
			if err != nil {
				t.Fatalf("CPUPercent() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("CPUPercent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDarwinReaderCPUPercentFailure(t *testing.T) {
	r := &darwinReader{run: fakeCommands(nil), numCPU: 4}
	if _, err := r.CPUPercent(context.Background(), DefaultWindow); err == nil {
		t.Error("CPUPercent() succeeded without sysctl, want error")
	}

	r.run = fakeCommands(map[string]string{"/usr/sbin/sysctl -n vm.loadavg": "{ }"})
	if _, err := r.CPUPercent(context.Background(), DefaultWindow); err == nil {
		t.Error("CPUPercent() succeeded on empty load average, want error")
	}
}

func TestParseVMStat(t *testing.T) {
	pages := parseVMStat([]byte(sampleVMStat))
	if pages["Pages free"] != 131072 {
		t.Errorf(`pages["Pages free"] = %d, want 131072`, pages["Pages free"])
	}
	if pages["Pages wired down"] != 150000 {
		t.Errorf(`pages["Pages wired down"] = %d, want 150000`, pages["Pages wired down"])
	}
	if _, ok := pages["Mach Virtual Memory Statistics"]; ok {
		t.Error("header line should not parse as a page count")
	}
}

func TestUnsupportedReader(t *testing.T) {
	r := NewReader("plan9")
	if r.Name() != "unsupported/plan9" {
		t.Errorf("Name() = %q, want unsupported/plan9", r.Name())
	}
	if _, err := r.CPUPercent(context.Background(), DefaultWindow); !errors.Is(err, ErrUnavailable) {
		t.Errorf("CPUPercent() error = %v, want ErrUnavailable", err)
	}
	if _, err := r.Memory(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Memory() error = %v, want ErrUnavailable", err)
	}
}

func TestNewReaderSelectsByOS(t *testing.T) {
	for goos, want := range map[string]string{
		"linux":   "procfs",
		"windows": "kernel32",
		"darwin":  "sysctl",
		"freebsd": "unsupported/freebsd",
	} {
		if got := NewReader(goos).Name(); got != want {
			t.Errorf("NewReader(%q).Name() = %q, want %q", goos, got, want)
		}
	}
}
