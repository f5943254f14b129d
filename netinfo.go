// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/rs/zerolog/log"
)

const lanProbeAddr = "8.8.8.8:80"

// localIP guesses the address other machines on the LAN can reach us at.
// Connecting a UDP socket only selects a route; no packet is sent.
func localIP() string {
	conn, err := net.Dial("udp", lanProbeAddr)
	if err != nil {
		log.Debug().Err(err).Msg("no outbound route, assuming loopback")
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && addr.IP != nil {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

func pageURL(host, port string, tls bool) string {
	scheme := "http"
	if tls {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/", scheme, net.JoinHostPort(host, port))
}

func printBanner(w io.Writer, cfg serverConfig) {
	_, port, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		port = strings.TrimPrefix(cfg.Addr, ":")
	}
	line := strings.Repeat("=", 40)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, " Starting %s\n", cfg.Title)
	fmt.Fprintf(w, " This machine:      %s\n", pageURL("127.0.0.1", port, cfg.tlsEnabled()))
	fmt.Fprintf(w, " Same network:      %s\n", pageURL(localIP(), port, cfg.tlsEnabled()))
	fmt.Fprintln(w, line)
}
