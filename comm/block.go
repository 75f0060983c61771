// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package comm

import (
	"fmt"
	"io"
	"strconv"
)

// ReadBlock sends the given command and reads an IEEE 488.2 definite-length
// block response: a '#' character, one digit giving the number of length
// digits, the payload length, and the payload itself. The trailing response
// terminator, if present, is consumed so that the next line read starts
// clean. An empty block (`#10` style framing with zero length) returns a nil
// payload and no error.
func (d *Device) ReadBlock(cmd string) ([]byte, error) {
	if err := d.Command(cmd); err != nil {
		return nil, fmt.Errorf("error writing command: %s", err)
	}
	d.armDeadline()
	hdr := make([]byte, 2)
	if _, err := io.ReadFull(d.br, hdr); err != nil {
		return nil, fmt.Errorf("error reading block header: %s", err)
	}
	if hdr[0] != '#' {
		return nil, fmt.Errorf("invalid block header: want # got %q", hdr[0])
	}
	ndigits := int(hdr[1] - '0')
	if ndigits < 1 || ndigits > 9 {
		return nil, fmt.Errorf("invalid block digit count %q", hdr[1])
	}
	digits := make([]byte, ndigits)
	if _, err := io.ReadFull(d.br, digits); err != nil {
		return nil, fmt.Errorf("error reading block length: %s", err)
	}
	nbytes, err := strconv.Atoi(string(digits))
	if err != nil {
		return nil, fmt.Errorf("invalid block length %q: %s", digits, err)
	}
	if nbytes == 0 {
		d.popTerminator()
		return nil, nil
	}
	payload := make([]byte, nbytes)
	if _, err := io.ReadFull(d.br, payload); err != nil {
		return nil, fmt.Errorf("error reading %d block bytes: %s", nbytes, err)
	}
	d.popTerminator()
	return payload, nil
}

// popTerminator discards a single trailing terminator byte if one is already
// buffered. Instruments differ on whether block data ends with a newline, so
// a missing terminator is not an error.
func (d *Device) popTerminator() {
	if d.br.Buffered() == 0 {
		return
	}
	b, err := d.br.Peek(1)
	if err == nil && b[0] == d.rxTerm {
		d.br.Discard(1)
	}
}
