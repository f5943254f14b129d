// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tomoconnor/globaldms/sysstat"
)

type config struct {
	Server string `yaml:"server"`
	CA     string `yaml:"ca"`
	Cert   string `yaml:"cert"`
	Key    string `yaml:"key"`
}

var commands = map[string]string{
	"health":  "/health",
	"status":  "/status",
	"metrics": "/metrics",
}

func main() {
	configPath := flag.String("config", "dms-client.yml", "path to config file")
	server := flag.String("server", "", "server base URL (overrides config)")
	rawJSON := flag.Bool("json", false, "print the status response as JSON")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: dms-client [--config path] [--server url] [--json] <command>\n\nCommands: health, status, metrics\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	cmdName := flag.Arg(0)
	path, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", cmdName)
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if *server != "" {
		cfg.Server = *server
	}
	if cfg.Server == "" {
		cfg.Server = "http://127.0.0.1:5050"
	}

	client, err := newClient(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	resp, err := client.Get(strings.TrimSuffix(cfg.Server, "/") + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading response: %v\n", err)
		os.Exit(1)
	}

	if err := render(os.Stdout, cmdName, body, *rawJSON); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

// loadConfig reads the YAML config. A missing file is not an error so
// the client works against a local server with no setup.
func loadConfig(path string) (config, error) {
	var cfg config
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("cannot stat config %s: %w", path, err)
	}
	if info.Mode().Perm()&0o077 != 0 {
		fmt.Fprintf(os.Stderr, "warning: config file %s has loose permissions %o, consider chmod 600\n", path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if (cfg.Cert == "") != (cfg.Key == "") {
		return cfg, errors.New("'cert' and 'key' must be set together")
	}
	return cfg, nil
}

func newClient(cfg config) (*http.Client, error) {
	// Leave room for the server's CPU sampling window.
	client := &http.Client{Timeout: 10 * time.Second}
	if !strings.HasPrefix(cfg.Server, "https://") {
		return client, nil
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS13}
	if cfg.CA != "" {
		caCert, err := os.ReadFile(cfg.CA)
		if err != nil {
			return nil, fmt.Errorf("cannot read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA certificate")
		}
		tlsConfig.RootCAs = pool
	}
	if cfg.Cert != "" {
		cert, err := tls.LoadX509KeyPair(cfg.Cert, cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("cannot load client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	client.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	return client, nil
}

func render(w io.Writer, cmdName string, body []byte, rawJSON bool) error {
	if cmdName == "status" && !rawJSON {
		var snap sysstat.Snapshot
		if err := json.Unmarshal(body, &snap); err == nil && snap.ServerTime != "" {
			_, err := fmt.Fprintln(w, formatStatus(snap))
			return err
		}
	}

	// Pretty-print JSON if valid, otherwise print raw
	var parsed any
	if err := json.Unmarshal(body, &parsed); err == nil {
		pretty, _ := json.MarshalIndent(parsed, "", "  ")
		_, err := fmt.Fprintln(w, string(pretty))
		return err
	}
	_, err := w.Write(body)
	return err
}

// formatStatus renders a snapshot the way the page footer does.
func formatStatus(s sysstat.Snapshot) string {
	cpu := "N/A"
	if s.CPUPercent != nil {
		cpu = fmt.Sprintf("%d%%", int(math.Round(*s.CPUPercent)))
	}
	mem := "N/A"
	if s.Memory != nil {
		mem = fmt.Sprintf("%.1f/%.1f GB (%d%%)", s.Memory.UsedGB, s.Memory.TotalGB, int(math.Round(s.Memory.Percent)))
	}
	return fmt.Sprintf("CPU: %s | Mem: %s | %s", cpu, mem, s.ServerTime)
}
