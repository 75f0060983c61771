// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package rigol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrCommunication marks failures of the chunked waveform transfer, where
// the scope stopped answering the status walk rather than rejecting a value.
var ErrCommunication = errors.New("communication error")

// AcquisitionMode selects which waveform memory a read returns.
type AcquisitionMode int

// Waveform read modes. Normal returns the 1400 points shown on screen;
// Raw stops the scope and transfers the full acquisition memory in chunks.
const (
	Normal AcquisitionMode = iota
	Raw
)

// Preamble holds the ten fields of a :WAV:PRE? reply. The y constants
// convert raw bytes to volts; the x constants reconstruct the time axis.
type Preamble struct {
	Format     int // 0: BYTE, 1: WORD, 2: ASCII
	Mode       int // 0: NORM, 1: MAX, 2: RAW
	Points     int
	Count      int // number of averages
	XIncrement float64
	XOrigin    float64
	XReference float64
	YIncrement float64
	YOrigin    float64
	YReference float64
}

// parsePreamble splits a :WAV:PRE? reply into its ten comma-separated
// fields.
func parsePreamble(raw string) (*Preamble, error) {
	fields := strings.Split(strings.TrimSpace(raw), ",")
	if len(fields) != 10 {
		return nil, fmt.Errorf("preamble has %d fields, want 10: %q", len(fields), raw)
	}
	ints := make([]int, 4)
	for i := 0; i < 4; i++ {
		// The integer fields can arrive in exponent notation.
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, fmt.Errorf("bad preamble field %d %q: %s", i, fields[i], err)
		}
		ints[i] = int(f)
	}
	floats := make([]float64, 6)
	for i := 0; i < 6; i++ {
		f, err := strconv.ParseFloat(fields[i+4], 64)
		if err != nil {
			return nil, fmt.Errorf("bad preamble field %d %q: %s", i+4, fields[i+4], err)
		}
		floats[i] = f
	}
	return &Preamble{
		Format:     ints[0],
		Mode:       ints[1],
		Points:     ints[2],
		Count:      ints[3],
		XIncrement: floats[0],
		XOrigin:    floats[1],
		XReference: floats[2],
		YIncrement: floats[3],
		YOrigin:    floats[4],
		YReference: floats[5],
	}, nil
}

// Trace is one acquired waveform with the preamble used to calibrate it.
type Trace struct {
	Preamble Preamble
	Raw      []byte
	Volts    []float64
}

// Times returns the time axis for the trace in seconds.
func (t *Trace) Times() []float64 {
	times := make([]float64, len(t.Raw))
	for i := range times {
		times[i] = t.Preamble.XOrigin + float64(i)*t.Preamble.XIncrement
	}
	return times
}

// Preamble reads and parses the waveform preamble for the currently selected
// source.
func (s *DS4000) Preamble() (*Preamble, error) {
	raw, err := s.dev.Query(":WAV:PRE?")
	if err != nil {
		return nil, err
	}
	return parsePreamble(raw)
}

// ReadWaveform transfers a waveform from the given channel and converts it
// to volts using the preamble constants.
//
// In Raw mode the scope is stopped and the full memory is read through the
// firmware's chunked transfer: each step queries :WAV:STAT? and then reads
// one :WAV:DATA? block. A status of IDLE ends the transfer, READ continues
// it, and anything else is a communication error, as is running out of read
// steps before the scope reports IDLE.
func (s *DS4000) ReadWaveform(ch int, mode AcquisitionMode) (*Trace, error) {
	if err := checkChannel(ch); err != nil {
		return nil, err
	}
	if err := s.dev.Command(":WAV:FORM BYTE"); err != nil {
		return nil, err
	}
	if err := s.dev.Command(":WAV:SOUR CHAN%d", ch); err != nil {
		return nil, err
	}

	var raw []byte
	switch mode {
	case Raw:
		if err := s.Stop(); err != nil {
			return nil, err
		}
		cmds := []string{
			":WAV:MODE RAW", // read acquisition memory, not the screen
			":WAV:RES",      // reset the waveform reader
			":WAV:BEG",      // start the waveform reader
		}
		for _, cmd := range cmds {
			if err := s.dev.Command(cmd); err != nil {
				return nil, err
			}
		}
		done := false
		for i := 0; i < s.maxReadSteps && !done; i++ {
			resp, err := s.dev.Query(":WAV:STAT?")
			if err != nil {
				return nil, err
			}
			status := strings.Split(strings.TrimSpace(resp), ",")[0]
			chunk, err := s.dev.ReadBlock(":WAV:DATA?")
			if err != nil {
				return nil, err
			}
			raw = append(raw, chunk...)
			switch status {
			case "IDLE":
				if err := s.dev.Command(":WAV:END"); err != nil {
					return nil, err
				}
				done = true
			case "READ":
			default:
				return nil, fmt.Errorf("%w: waveform status %q", ErrCommunication, status)
			}
		}
		if !done {
			return nil, fmt.Errorf("%w: no IDLE status within %d read steps", ErrCommunication, s.maxReadSteps)
		}
		if len(raw) == 0 {
			return nil, fmt.Errorf("%w: empty waveform transfer", ErrCommunication)
		}
	case Normal:
		if err := s.dev.Command(":WAV:MODE NORM"); err != nil {
			return nil, err
		}
		chunk, err := s.dev.ReadBlock(":WAV:DATA?")
		if err != nil {
			return nil, err
		}
		raw = chunk
	default:
		return nil, fmt.Errorf("invalid acquisition mode %d", mode)
	}

	p, err := s.Preamble()
	if err != nil {
		return nil, err
	}
	return &Trace{
		Preamble: *p,
		Raw:      raw,
		Volts:    convertBytes(raw, p),
	}, nil
}

// convertBytes applies the preamble calibration constants to raw byte
// samples.
func convertBytes(raw []byte, p *Preamble) []float64 {
	volts := make([]float64, len(raw))
	for i, b := range raw {
		volts[i] = (float64(b) - p.YReference - p.YOrigin) * p.YIncrement
	}
	return volts
}
