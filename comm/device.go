// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package comm provides the request/response plumbing shared by the
// instrument drivers in this module: a Device wrapping an io.ReadWriter with
// configurable terminators, plus serial and TCP openers. A Device satisfies
// the Querier interface of github.com/gotmc/query, so drivers can use its
// typed query helpers.
package comm

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"time"
)

// Device models a synchronous request/response connection to an instrument.
// The Device does not own the underlying io.ReadWriter; callers that opened a
// port or socket are responsible for closing it.
type Device struct {
	rw         io.ReadWriter
	br         *bufio.Reader
	rxTerm     byte
	txTerm     byte
	debug      bool // if true, log commands and responses. Set via WithDebug().
	writeDelay time.Duration
	timeout    time.Duration
}

// Option applies an option to the device.
type Option func(*Device)

// NewDevice wraps the given connection, which can be a serial port, a TCP
// socket, or one half of a net.Pipe in tests. Both terminators default to a
// line feed.
func NewDevice(rw io.ReadWriter, opts ...Option) *Device {
	d := Device{
		rw:     rw,
		br:     bufio.NewReader(rw),
		rxTerm: '\n',
		txTerm: '\n',
	}
	for _, opt := range opts {
		opt(&d)
	}
	return &d
}

// WithReadTerminator sets the byte that ends an instrument response.
func WithReadTerminator(b byte) Option { return func(d *Device) { d.rxTerm = b } }

// WithWriteTerminator sets the byte appended to each outgoing command.
func WithWriteTerminator(b byte) Option { return func(d *Device) { d.txTerm = b } }

// WithDebug causes commands and responses to be logged.
func WithDebug() Option { return func(d *Device) { d.debug = true } }

// WithWriteDelay inserts a pause after every write, for instruments that
// drop commands arriving back to back.
func WithWriteDelay(delay time.Duration) Option {
	return func(d *Device) { d.writeDelay = delay }
}

// WithTimeout bounds each read when the underlying connection supports read
// deadlines. Large waveform transfers need a generous value here.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) { d.timeout = timeout }
}

// readDeadliner is satisfied by net.Conn.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

func (d *Device) armDeadline() {
	if d.timeout <= 0 {
		return
	}
	if rd, ok := d.rw.(readDeadliner); ok {
		if err := rd.SetReadDeadline(time.Now().Add(d.timeout)); err != nil && d.debug {
			log.Printf("set read deadline: %s", err)
		}
	}
}

// Write writes the given data to the instrument as-is.
func (d *Device) Write(p []byte) (n int, err error) {
	n, err = d.rw.Write(p)
	if d.writeDelay > 0 {
		time.Sleep(d.writeDelay)
	}
	return n, err
}

// Read reads from the instrument into the given byte slice. Reads go through
// the device's buffered reader so that line reads and block reads can be
// interleaved without losing bytes.
func (d *Device) Read(p []byte) (n int, err error) {
	return d.br.Read(p)
}

// WriteString writes a string to the instrument. All leading and trailing
// whitespace is removed before appending the write terminator.
func (d *Device) WriteString(s string) (n int, err error) {
	cmd := fmt.Sprintf("%s%c", strings.TrimSpace(s), d.txTerm)
	return d.Write([]byte(cmd))
}

// Command formats according to a format specifier if provided and sends the
// resulting command to the instrument.
func (d *Device) Command(format string, a ...any) error {
	cmd := format
	if a != nil {
		cmd = fmt.Sprintf(format, a...)
	}
	cmd = fmt.Sprintf("%s%c", strings.TrimSpace(cmd), d.txTerm)
	if d.debug {
		log.Printf("cmd %q", cmd)
	}
	_, err := d.Write([]byte(cmd))
	return err
}

// Query sends the given command to the instrument and reads its response up
// to the read terminator. The cmd string does not need to include a newline,
// since all leading and trailing whitespace is removed before the write
// terminator is appended. An io.EOF after partial data is tolerated, since
// some serial bridges drop the line instead of sending the terminator.
func (d *Device) Query(cmd string) (string, error) {
	if err := d.Command(cmd); err != nil {
		return "", fmt.Errorf("error writing command: %s", err)
	}
	d.armDeadline()
	s, err := d.br.ReadString(d.rxTerm)
	if d.debug {
		log.Printf("query %q response %q", cmd, s)
	}
	if err == io.EOF && s != "" {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("error reading response to %q: %s", cmd, err)
	}
	return s, nil
}

// ReadString reads a bare response line, for protocols that answer a single
// write with more than one line.
func (d *Device) ReadString() (string, error) {
	d.armDeadline()
	s, err := d.br.ReadString(d.rxTerm)
	if err == io.EOF && s != "" {
		return s, nil
	}
	return s, err
}
