// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomoconnor/globaldms/sysstat"
)

func TestFormatStatus(t *testing.T) {
	cpu := 12.5
	tests := []struct {
		name string
		snap sysstat.Snapshot
		want string
	}{
		{
			name: "all metrics",
			snap: sysstat.Snapshot{
				CPUPercent: &cpu,
				Memory:     &sysstat.Memory{Percent: 49.7, UsedGB: 7.6, TotalGB: 15.3},
				ServerTime: "2026-10-15 12:00:00",
			},
			want: "CPU: 13% | Mem: 7.6/15.3 GB (50%) | 2026-10-15 12:00:00",
		},
		{
			name: "unavailable",
			snap: sysstat.Snapshot{ServerTime: "2026-10-15 12:00:00"},
			want: "CPU: N/A | Mem: N/A | 2026-10-15 12:00:00",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatStatus(tt.snap); got != tt.want {
				t.Errorf("formatStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRender(t *testing.T) {
	body := []byte(`{"cpu_percent":null,"memory":null,"server_time":"2026-10-15 12:00:00"}`)

	var buf bytes.Buffer
	if err := render(&buf, "status", body, false); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "CPU: N/A | Mem: N/A | 2026-10-15 12:00:00" {
		t.Errorf("render(status) = %q", got)
	}

	buf.Reset()
	if err := render(&buf, "status", body, true); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"server_time": "2026-10-15 12:00:00"`) {
		t.Errorf("render(status, json) = %q, want indented JSON", buf.String())
	}

	buf.Reset()
	if err := render(&buf, "metrics", []byte("go_goroutines 7\n"), false); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	if buf.String() != "go_goroutines 7\n" {
		t.Errorf("render(metrics) = %q, want raw body", buf.String())
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadConfig(filepath.Join(dir, "absent.yml"))
	if err != nil {
		t.Fatalf("loadConfig(missing) error = %v", err)
	}
	if cfg != (config{}) {
		t.Errorf("loadConfig(missing) = %+v, want zero config", cfg)
	}

	path := filepath.Join(dir, "dms-client.yml")
	if err := os.WriteFile(path, []byte("server: https://dms.local:5050\nca: ca.pem\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err = loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Server != "https://dms.local:5050" || cfg.CA != "ca.pem" {
		t.Errorf("loadConfig() = %+v", cfg)
	}

	if err := os.WriteFile(path, []byte("cert: client.pem\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("loadConfig() accepted cert without key")
	}
}

func TestNewClientPlainHTTP(t *testing.T) {
	client, err := newClient(config{Server: "http://127.0.0.1:5050"})
	if err != nil {
		t.Fatalf("newClient() error = %v", err)
	}
	if client.Transport != nil {
		t.Error("plain HTTP client should use the default transport")
	}
}
