// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"path/filepath"
	"strings"
)

var errPathEscapesRoot = errors.New("path escapes root")

// secureJoin joins a slash-separated request path onto root and fails if
// the result would leave root. Absolute request paths are taken as
// relative to root. An empty name yields root itself.
func secureJoin(root, name string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("root required")
	}
	cleanRoot := filepath.Clean(root)
	up := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(up) || strings.HasPrefix(up, string(filepath.Separator)) {
		up = strings.TrimLeft(up, string(filepath.Separator))
		if vol := filepath.VolumeName(up); vol != "" {
			return "", errPathEscapesRoot
		}
	}
	candidate := filepath.Join(cleanRoot, up)
	rel, err := filepath.Rel(cleanRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errPathEscapesRoot
	}
	return candidate, nil
}
