// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package trace exports acquired waveforms for offline analysis.
package trace

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Header identifies where a trace came from.
type Header struct {
	Instrument string    `json:"instrument"`
	Channel    int       `json:"channel"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// WriteCSV writes the trace as comment lines carrying the header, a column
// header row, and one time/voltage row per sample. Floats are written in
// their shortest round-trip form.
func WriteCSV(w io.Writer, times, volts []float64, hdr Header) error {
	if len(times) != len(volts) {
		return fmt.Errorf("mismatched sample counts: %d times, %d volts", len(times), len(volts))
	}
	_, err := fmt.Fprintf(w, "# instrument: %s\n# channel: %d\n# acquired: %s\n",
		hdr.Instrument, hdr.Channel, hdr.AcquiredAt.Format(time.RFC3339))
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"time_s", "volts"}); err != nil {
		return err
	}
	for i := range times {
		rec := []string{
			strconv.FormatFloat(times[i], 'g', -1, 64),
			strconv.FormatFloat(volts[i], 'g', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type document struct {
	Header
	TimesS []float64 `json:"times_s"`
	Volts  []float64 `json:"volts"`
}

// WriteJSON writes the trace as a single JSON document with the header
// fields inline and the samples as parallel arrays.
func WriteJSON(w io.Writer, times, volts []float64, hdr Header) error {
	if len(times) != len(volts) {
		return fmt.Errorf("mismatched sample counts: %d times, %d volts", len(times), len(volts))
	}
	if times == nil {
		times, volts = []float64{}, []float64{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(document{Header: hdr, TimesS: times, Volts: volts})
}
