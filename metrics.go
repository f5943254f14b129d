// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/tomoconnor/globaldms/sysstat"
)

const scrapeTimeout = 5 * time.Second

// metricSource is the part of *sysstat.Sampler the collector needs.
type metricSource interface {
	CPU(ctx context.Context) *float64
	Memory(ctx context.Context) *sysstat.Memory
}

// hostCollector samples on every scrape; nothing is cached between scrapes.
type hostCollector struct {
	src metricSource

	cpuPercent    *prometheus.Desc
	memoryPercent *prometheus.Desc
	memoryUsed    *prometheus.Desc
	memoryTotal   *prometheus.Desc
	available     *prometheus.Desc
}

func newHostCollector(src metricSource) *hostCollector {
	return &hostCollector{
		src: src,
		cpuPercent: prometheus.NewDesc("globaldms_cpu_percent",
			"Aggregate CPU utilisation over the sampling window.", nil, nil),
		memoryPercent: prometheus.NewDesc("globaldms_memory_percent",
			"Physical memory in use, percent.", nil, nil),
		memoryUsed: prometheus.NewDesc("globaldms_memory_used_gigabytes",
			"Physical memory in use, GiB rounded to 0.1.", nil, nil),
		memoryTotal: prometheus.NewDesc("globaldms_memory_total_gigabytes",
			"Installed physical memory, GiB rounded to 0.1.", nil, nil),
		available: prometheus.NewDesc("globaldms_metric_available",
			"1 if the metric could be sampled on this scrape.", []string{"metric"}, nil),
	}
}

func (c *hostCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpuPercent
	ch <- c.memoryPercent
	ch <- c.memoryUsed
	ch <- c.memoryTotal
	ch <- c.available
}

func (c *hostCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	cpu := c.src.CPU(ctx)
	if cpu != nil {
		ch <- prometheus.MustNewConstMetric(c.cpuPercent, prometheus.GaugeValue, *cpu)
	}
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, boolGauge(cpu != nil), "cpu")

	mem := c.src.Memory(ctx)
	if mem != nil {
		ch <- prometheus.MustNewConstMetric(c.memoryPercent, prometheus.GaugeValue, mem.Percent)
		ch <- prometheus.MustNewConstMetric(c.memoryUsed, prometheus.GaugeValue, mem.UsedGB)
		ch <- prometheus.MustNewConstMetric(c.memoryTotal, prometheus.GaugeValue, mem.TotalGB)
	}
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, boolGauge(mem != nil), "memory")
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// metricsHandler exposes host metrics plus the Go runtime and process
// collectors on a private registry.
func metricsHandler(src metricSource) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		newHostCollector(src),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{ErrorLog: promLogger{}})
}

// promLogger routes promhttp errors into zerolog.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error().Str("component", "promhttp").Msg(fmt.Sprint(v...))
}
