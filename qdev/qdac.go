// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package qdev provides a driver for the QDev QDac 48-channel precision DC
// voltage source. The QDac speaks a terse line protocol over USB serial
// (480600 baud, 8N1) and answers every command, even pure writes, with one
// line of output, which the driver consumes.
package qdev

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gotmc/labrig/comm"
	"github.com/gotmc/query"
)

const (
	// DefaultChannels is the channel count of a standard QDac cabinet.
	DefaultChannels = 48

	// minFirmware is the oldest firmware whose status format and command
	// set this driver understands.
	minFirmware = 0.170202

	// maxSlopes is the number of function generators available for ramps.
	maxSlopes = 8

	// wavRamp is the function generator waveform code for a linear ramp.
	wavRamp = 3

	// maxStatusAge bounds how stale the cached channel status may get
	// before a getter triggers a fresh status query.
	maxStatusAge = time.Second
)

// QDac provides the remote interface to a QDac. The driver keeps a cache of
// the per-channel status, since reading it back means parsing a dump of
// every channel.
type QDac struct {
	dev      *comm.Device
	rw       io.ReadWriter
	numChans int
	timeout  time.Duration
	debug    bool
	version  string
	cache    []ChannelStatus
	statusAt time.Time
	slopes   []slopeEntry
}

// Option applies an option to the QDac.
type Option func(*QDac)

// WithDebug causes commands and responses to be logged.
func WithDebug() Option { return func(q *QDac) { q.debug = true } }

// WithChannels sets the number of installed channels for cabinets that
// differ from the standard 48.
func WithChannels(n int) Option { return func(q *QDac) { q.numChans = n } }

// WithTimeout bounds each read on connections that support read deadlines.
func WithTimeout(timeout time.Duration) Option {
	return func(q *QDac) { q.timeout = timeout }
}

// NewQDac opens the QDac reachable through the given connection. The
// constructor checks the firmware version, switches every channel to DC
// mode on the unattenuated range, turns verbose replies off, and seeds the
// channel status cache.
func NewQDac(rw io.ReadWriter, opts ...Option) (*QDac, error) {
	q := QDac{
		rw:       rw,
		numChans: DefaultChannels,
	}
	for _, opt := range opts {
		opt(&q)
	}
	if q.numChans < 1 {
		return nil, fmt.Errorf("invalid channel count %d", q.numChans)
	}
	var devOpts []comm.Option
	if q.debug {
		devOpts = append(devOpts, comm.WithDebug())
	}
	if q.timeout > 0 {
		devOpts = append(devOpts, comm.WithTimeout(q.timeout))
	}
	q.dev = comm.NewDevice(rw, devOpts...)

	st, err := q.readStatus()
	if err != nil {
		return nil, fmt.Errorf("error reading initial status: %s", err)
	}
	fw, err := strconv.ParseFloat(st.Version, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable firmware version %q", st.Version)
	}
	if fw < minFirmware {
		return nil, fmt.Errorf(
			"obsolete QDac firmware %s: this driver needs %v or newer",
			st.Version, minFirmware)
	}

	// All channels to DC mode on the ±10 V range. Neither command changes
	// the voltage present on the output.
	for ch := 1; ch <= q.numChans; ch++ {
		if err := q.command("wav %d 0 1 0", ch); err != nil {
			return nil, err
		}
		if err := q.command("vol %d 0", ch); err != nil {
			return nil, err
		}
	}
	// Verbose replies off, so that query replies are bare numbers.
	if err := q.command("ver 0"); err != nil {
		return nil, err
	}
	if err := q.refreshStatus(); err != nil {
		return nil, err
	}
	return &q, nil
}

// command sends a formatted command and discards the reply line.
func (q *QDac) command(format string, a ...any) error {
	cmd := fmt.Sprintf(format, a...)
	if _, err := q.dev.Query(cmd); err != nil {
		return fmt.Errorf("error sending command %q: %s", cmd, err)
	}
	return nil
}

// readStatus runs the status command and parses the dump it produces: one
// version line, one header line, and one line per channel, with blank lines
// interleaved.
func (q *QDac) readStatus() (*Status, error) {
	var b strings.Builder
	line, err := q.dev.Query("status")
	if err != nil {
		return nil, err
	}
	b.WriteString(line)
	seen := 0
	for seen < 1+q.numChans {
		line, err = q.dev.ReadString()
		if err != nil {
			return nil, fmt.Errorf("error reading status line: %s", err)
		}
		b.WriteString(line)
		if strings.TrimSpace(line) != "" {
			seen++
		}
	}
	st, err := ParseStatus(b.String())
	if err != nil {
		return nil, err
	}
	if len(st.Channels) != q.numChans {
		return nil, fmt.Errorf("status reported %d channels, want %d",
			len(st.Channels), q.numChans)
	}
	return st, nil
}

func (q *QDac) refreshStatus() error {
	st, err := q.readStatus()
	if err != nil {
		return err
	}
	q.version = st.Version
	q.cache = st.Channels
	q.statusAt = time.Now()
	return nil
}

// freshen re-reads the channel status when the cache has gone stale.
func (q *QDac) freshen() error {
	if time.Since(q.statusAt) <= maxStatusAge {
		return nil
	}
	return q.refreshStatus()
}

// Version returns the firmware version reported by the instrument.
func (q *QDac) Version() string { return q.version }

// Channels returns the number of installed channels.
func (q *QDac) Channels() int { return q.numChans }

// Device returns the underlying comm device, for raw command traffic. The
// connection carries one buffered reader, so callers must use this rather
// than wrap the connection a second time. Every QDac command answers with
// one line, which raw callers must consume themselves.
func (q *QDac) Device() *comm.Device {
	return q.dev
}

// Status returns a copy of the cached channel status, refreshing it first
// when stale.
func (q *QDac) Status() (*Status, error) {
	if err := q.freshen(); err != nil {
		return nil, err
	}
	chans := make([]ChannelStatus, len(q.cache))
	copy(chans, q.cache)
	return &Status{Version: q.version, Channels: chans}, nil
}

// Temperature reads one of the temperature sensors in degrees Celsius. Each
// of the six main boards carries three sensors.
func (q *QDac) Temperature(board, sensor int) (float64, error) {
	if board < 0 || board > 5 {
		return 0, fmt.Errorf(
			"invalid board number (got %d, must be between 0 and 5)", board)
	}
	if sensor < 0 || sensor > 2 {
		return 0, fmt.Errorf(
			"invalid sensor number (got %d, must be between 0 and 2)", sensor)
	}
	return query.Float64f(q.dev, "tem %d %d", board, sensor)
}

// Close closes the underlying connection if it can be closed.
func (q *QDac) Close() error {
	if c, ok := q.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
