// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

//go:build !windows

package sysstat

import "fmt"

func getSystemTimes() (systemTimes, error) {
	return systemTimes{}, fmt.Errorf("GetSystemTimes requires windows: %w", ErrUnavailable)
}

func globalMemoryStatus() (total, available uint64, err error) {
	return 0, 0, fmt.Errorf("GlobalMemoryStatusEx requires windows: %w", ErrUnavailable)
}
