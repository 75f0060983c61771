// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package comm

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens the named serial port at the given baud rate with the 8N1
// framing every instrument in this module uses. The returned port is owned by
// the caller.
func OpenSerial(port string, baud int) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(port, mode)
	if err != nil {
		return nil, fmt.Errorf("error opening serial port %s: %s", port, err)
	}
	// Blocking reads with a long ceiling; per-command pacing is handled by
	// the Device write delay.
	if err := p.SetReadTimeout(30 * time.Second); err != nil {
		p.Close()
		return nil, fmt.Errorf("error setting read timeout on %s: %s", port, err)
	}
	return p, nil
}
