// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tomoconnor/globaldms/sysstat"
)

type serverConfig struct {
	Addr      string        `yaml:"addr"`
	Title     string        `yaml:"title"`
	LogoDir   string        `yaml:"logo_dir"`
	CPUWindow time.Duration `yaml:"cpu_window"`
	Rich      bool          `yaml:"rich"`
	CertFile  string        `yaml:"cert"`
	KeyFile   string        `yaml:"key"`
	CAFile    string        `yaml:"ca"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 (default) disables
	RateBurst int           `yaml:"rate_burst"`
	LogLevel  string        `yaml:"log_level"`
}

func defaultConfig() serverConfig {
	return serverConfig{
		Addr:      "0.0.0.0:5050",
		Title:     "Global DMS",
		LogoDir:   "logo",
		CPUWindow: sysstat.DefaultWindow,
		Rich:      true,
		RateLimit: 0,
		RateBurst: 40,
		LogLevel:  "info",
	}
}

// parseConfig applies defaults, then the YAML file named by -config, then
// any flags set explicitly on the command line.
func parseConfig(args []string) (serverConfig, error) {
	def := defaultConfig()

	fs := flag.NewFlagSet("globaldms", flag.ContinueOnError)
	configPath := fs.String("config", "", "YAML config file")
	addr := fs.String("addr", def.Addr, "listen address")
	title := fs.String("title", def.Title, "page title")
	logoDir := fs.String("logo-dir", def.LogoDir, "directory served under /logo/")
	cpuWindow := fs.Duration("cpu-window", def.CPUWindow, "CPU sampling window")
	rich := fs.Bool("rich", def.Rich, "use gopsutil when it works on this host")
	certFile := fs.String("cert", "", "TLS certificate file")
	keyFile := fs.String("key", "", "TLS private key file")
	caFile := fs.String("ca", "", "CA certificate for mTLS client verification")
	rateLimit := fs.Float64("rate-limit", def.RateLimit, "status requests per second (0 disables)")
	rateBurst := fs.Int("rate-burst", def.RateBurst, "status request burst")
	logLevel := fs.String("log-level", def.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return serverConfig{}, err
	}

	cfg := def
	if *configPath != "" {
		if err := loadConfigFile(*configPath, &cfg); err != nil {
			return serverConfig{}, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "title":
			cfg.Title = *title
		case "logo-dir":
			cfg.LogoDir = *logoDir
		case "cpu-window":
			cfg.CPUWindow = *cpuWindow
		case "rich":
			cfg.Rich = *rich
		case "cert":
			cfg.CertFile = *certFile
		case "key":
			cfg.KeyFile = *keyFile
		case "ca":
			cfg.CAFile = *caFile
		case "rate-limit":
			cfg.RateLimit = *rateLimit
		case "rate-burst":
			cfg.RateBurst = *rateBurst
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})

	if err := cfg.validate(); err != nil {
		return serverConfig{}, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *serverConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}

func (c serverConfig) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return fmt.Errorf("cert and key must be set together")
	}
	if c.CAFile != "" && c.CertFile == "" {
		return fmt.Errorf("ca requires cert and key")
	}
	if c.CPUWindow <= 0 {
		return fmt.Errorf("cpu_window must be positive, got %s", c.CPUWindow)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate_burst must be at least 1 when rate_limit is set")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	return nil
}

func (c serverConfig) tlsEnabled() bool { return c.CertFile != "" }
