// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sysstat

import (
	"context"
	"fmt"
	"time"
)

// NewReader returns the raw counter reader for goos. Unknown systems get
// a reader that always reports ErrUnavailable.
func NewReader(goos string) Provider {
	switch goos {
	case "linux":
		return newLinuxReader("/proc")
	case "windows":
		return newWindowsReader()
	case "darwin":
		return newDarwinReader()
	default:
		return unsupportedReader{goos: goos}
	}
}

type unsupportedReader struct {
	goos string
}

func (r unsupportedReader) Name() string { return "unsupported/" + r.goos }

func (r unsupportedReader) CPUPercent(context.Context, time.Duration) (float64, error) {
	return 0, fmt.Errorf("no cpu reader for %q: %w", r.goos, ErrUnavailable)
}

func (r unsupportedReader) Memory(context.Context) (Memory, error) {
	return Memory{}, fmt.Errorf("no memory reader for %q: %w", r.goos, ErrUnavailable)
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
