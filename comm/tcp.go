// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package comm

import (
	"fmt"
	"net"
	"time"
)

// OpenTCP dials an instrument's raw socket interface, e.g. port 5555 on a
// Rigol scope. The returned connection is owned by the caller. Pair with
// WithTimeout on the Device so reads cannot wedge on a hung instrument.
func OpenTCP(addr string, timeout time.Duration) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("error dialing %s: %s", addr, err)
	}
	return conn, nil
}
