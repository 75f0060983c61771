// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package rigol provides a driver for the Rigol DS4000 series oscilloscopes
// over the raw socket (port 5555) or serial interface. Command strings follow
// the DS4000 programming guide; the waveform read path works around the
// firmware's chunked RAW mode transfer.
package rigol

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gotmc/labrig/comm"
	"github.com/gotmc/query"
)

// numChannels is fixed for the DS4000 series.
const numChannels = 4

// DS4000 models a Rigol DS4000 series oscilloscope.
type DS4000 struct {
	dev          *comm.Device
	idn          string
	maxReadSteps int
	debug        bool
	timeout      time.Duration
}

// Option applies an option to the scope.
type Option func(*DS4000)

// WithTimeout sets the per-read timeout. The default of 20 s is enough for
// screen-memory waveforms; reading the full deep memory can need minutes.
func WithTimeout(timeout time.Duration) Option {
	return func(s *DS4000) { s.timeout = timeout }
}

// WithMaxReadSteps bounds the RAW mode read loop. One step moves one chunk of
// deep memory, so very long memory depths need more steps.
func WithMaxReadSteps(n int) Option {
	return func(s *DS4000) { s.maxReadSteps = n }
}

// WithDebug causes commands and responses to be logged.
func WithDebug() Option { return func(s *DS4000) { s.debug = true } }

// NewDS4000 creates a DS4000 driver on the given connection and reads the
// instrument identification. A Selected Device Clear is never issued: a
// firmware bug hangs the scope's remote interface on device clear.
func NewDS4000(rw io.ReadWriter, opts ...Option) (*DS4000, error) {
	s := DS4000{
		maxReadSteps: 100,
		timeout:      20 * time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}
	devOpts := []comm.Option{comm.WithTimeout(s.timeout)}
	if s.debug {
		devOpts = append(devOpts, comm.WithDebug())
	}
	s.dev = comm.NewDevice(rw, devOpts...)

	idn, err := s.dev.Query("*IDN?")
	if err != nil {
		return nil, fmt.Errorf("error identifying instrument: %s", err)
	}
	s.idn = strings.TrimSpace(idn)
	return &s, nil
}

// ID returns the *IDN? string read when the driver connected.
func (s *DS4000) ID() string {
	return s.idn
}

// Device returns the underlying comm device, for raw command traffic. The
// connection carries one buffered reader, so callers must use this rather
// than wrap the connection a second time.
func (s *DS4000) Device() *comm.Device {
	return s.dev
}

// Run starts acquisition.
func (s *DS4000) Run() error {
	return s.dev.Command(":RUN")
}

// Stop stops acquisition.
func (s *DS4000) Stop() error {
	return s.dev.Command(":STOP")
}

// ForceTrigger forces a trigger event.
func (s *DS4000) ForceTrigger() error {
	return s.dev.Command(":TFOR")
}

// TriggerType identifies which trigger engine is active.
type TriggerType string

// Trigger engines of the DS4000 series.
const (
	TriggerEdge    TriggerType = "EDGE"
	TriggerPulse   TriggerType = "PULS"
	TriggerRunt    TriggerType = "RUNT"
	TriggerNthEdge TriggerType = "NEDG"
	TriggerSlope   TriggerType = "SLOP"
	TriggerVideo   TriggerType = "VID"
	TriggerPattern TriggerType = "PATT"
	TriggerRS232   TriggerType = "RS232"
	TriggerI2C     TriggerType = "IIC"
	TriggerSPI     TriggerType = "SPI"
	TriggerCAN     TriggerType = "CAN"
	TriggerFlexRay TriggerType = "FLEX"
	TriggerUSB     TriggerType = "USB"
)

// TriggerTypes maps the programming guide mnemonics to trigger types, for
// parsing responses and config files.
var TriggerTypes = map[string]TriggerType{
	"EDGE":  TriggerEdge,
	"PULS":  TriggerPulse,
	"RUNT":  TriggerRunt,
	"NEDG":  TriggerNthEdge,
	"SLOP":  TriggerSlope,
	"VID":   TriggerVideo,
	"PATT":  TriggerPattern,
	"RS232": TriggerRS232,
	"IIC":   TriggerI2C,
	"SPI":   TriggerSPI,
	"CAN":   TriggerCAN,
	"FLEX":  TriggerFlexRay,
	"USB":   TriggerUSB,
}

// TriggerSweep selects how the trigger arms.
type TriggerSweep string

// Trigger sweep modes.
const (
	SweepAuto   TriggerSweep = "AUTO"
	SweepNormal TriggerSweep = "NORM"
	SweepSingle TriggerSweep = "SING"
)

// TriggerSweeps maps the programming guide mnemonics to sweep modes.
var TriggerSweeps = map[string]TriggerSweep{
	"AUTO": SweepAuto,
	"NORM": SweepNormal,
	"SING": SweepSingle,
}

// SetTriggerType selects the trigger engine.
func (s *DS4000) SetTriggerType(tt TriggerType) error {
	if _, ok := TriggerTypes[string(tt)]; !ok {
		return fmt.Errorf("invalid trigger type %q", tt)
	}
	return s.dev.Command(":TRIG:MODE %s", tt)
}

// QueryTriggerType reads the active trigger engine.
func (s *DS4000) QueryTriggerType() (TriggerType, error) {
	resp, err := query.String(s.dev, ":TRIG:MODE?")
	if err != nil {
		return "", err
	}
	tt, ok := TriggerTypes[strings.TrimSpace(resp)]
	if !ok {
		return "", fmt.Errorf("unknown trigger type %q", strings.TrimSpace(resp))
	}
	return tt, nil
}

// SetTriggerSweep sets the trigger sweep mode.
func (s *DS4000) SetTriggerSweep(ts TriggerSweep) error {
	if _, ok := TriggerSweeps[string(ts)]; !ok {
		return fmt.Errorf("invalid trigger sweep %q", ts)
	}
	return s.dev.Command(":TRIG:SWE %s", ts)
}

// QueryTriggerSweep reads the trigger sweep mode.
func (s *DS4000) QueryTriggerSweep() (TriggerSweep, error) {
	resp, err := query.String(s.dev, ":TRIG:SWE?")
	if err != nil {
		return "", err
	}
	ts, ok := TriggerSweeps[strings.TrimSpace(resp)]
	if !ok {
		return "", fmt.Errorf("unknown trigger sweep %q", strings.TrimSpace(resp))
	}
	return ts, nil
}

// SetVerticalScale sets the vertical scale of the given channel in volts per
// division.
func (s *DS4000) SetVerticalScale(ch int, scale float64) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	return s.dev.Command("chan%d:scale %g", ch, scale)
}

// VerticalScale reads the vertical scale of the given channel in volts per
// division.
func (s *DS4000) VerticalScale(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}
	return query.Float64f(s.dev, "chan%d:scale?", ch)
}

// Amplitude measures the peak-to-peak amplitude of the given channel in
// volts. The scope reports values above 9e36 when the waveform clips.
func (s *DS4000) Amplitude(ch int) (float64, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}
	return query.Float64f(s.dev, ":meas:vamp? chan%d", ch)
}

// SetTimebaseScale sets the main timebase in seconds per division.
func (s *DS4000) SetTimebaseScale(scale float64) error {
	return s.dev.Command(":TIM:SCAL %g", scale)
}

// TimebaseScale reads the main timebase in seconds per division.
func (s *DS4000) TimebaseScale() (float64, error) {
	return query.Float64(s.dev, ":TIM:SCAL?")
}

// checkChannel validates a 1-based analog channel number.
func checkChannel(ch int) error {
	if ch < 1 || ch > numChannels {
		return fmt.Errorf("invalid channel number (got %d, must be between 1 and %d)", ch, numChannels)
	}
	return nil
}
