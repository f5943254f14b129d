// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tomoconnor/globaldms/sysstat"
	"github.com/tomoconnor/globaldms/web"
)

type response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// statusSource is the part of *sysstat.Sampler the status endpoint needs.
type statusSource interface {
	Status(ctx context.Context) sysstat.Snapshot
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	if !allowRead(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, response{Status: "ok"})
}

// statusHandler always answers 200. Metrics that could not be sampled are
// serialised as null.
func statusHandler(src statusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}
		writeJSON(w, http.StatusOK, src.Status(r.Context()))
	}
}

type indexData struct {
	Title string
}

func indexHandler(title string) (http.HandlerFunc, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse index template: %w", err)
	}
	// The page only depends on the title, so render it once.
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, indexData{Title: title}); err != nil {
		return nil, fmt.Errorf("failed to render index template: %w", err)
	}
	page := buf.Bytes()

	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		if !allowRead(w, r) {
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodHead {
			return
		}
		if _, err := w.Write(page); err != nil {
			log.Debug().Err(err).Msg("failed to write index page")
		}
	}, nil
}

// logoHandler serves files from dir under /logo/. Paths resolving outside
// dir, directories and missing files are all 404.
func logoHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowRead(w, r) {
			return
		}
		name := strings.TrimPrefix(r.URL.Path, "/logo/")
		path, err := secureJoin(dir, name)
		if err != nil {
			log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Err(err).Msg("rejected logo request")
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	}
}

func staticHandler() http.Handler {
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(static)))
}

func allowRead(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return true
	}
	w.Header().Set("Allow", "GET, HEAD")
	writeJSON(w, http.StatusMethodNotAllowed, response{Status: "error", Message: "method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
