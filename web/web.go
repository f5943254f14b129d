// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package web embeds the status page template and its static assets.
package web

import "embed"

// Templates holds templates/index.html.
//
//go:embed templates
var Templates embed.FS

// Static holds everything served under /static/.
//
//go:embed static
var Static embed.FS
