// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package qdev

import (
	"fmt"
	"strconv"
	"strings"
)

// VoltageRange selects the output range of a channel. The 1 V range is a
// 20 dB attenuator applied directly to the channel output.
type VoltageRange int

// Voltage ranges.
const (
	Range10V VoltageRange = 0
	Range1V  VoltageRange = 1
)

func (r VoltageRange) String() string {
	switch r {
	case Range10V:
		return "-10 V to 10 V"
	case Range1V:
		return "-1 V to 1 V"
	}
	return fmt.Sprintf("VoltageRange(%d)", int(r))
}

// span returns the largest output voltage of the range in volts.
func (r VoltageRange) span() float64 {
	if r == Range1V {
		return 1
	}
	return 10
}

// attenuation returns the factor between the DAC voltage and the output.
func (r VoltageRange) attenuation() float64 {
	if r == Range1V {
		return 0.1
	}
	return 1
}

// CurrentRange selects the current measurement range of a channel.
type CurrentRange int

// Current ranges.
const (
	Range1uA   CurrentRange = 0
	Range100uA CurrentRange = 1
)

func (r CurrentRange) String() string {
	switch r {
	case Range1uA:
		return "0 to 1 µA"
	case Range100uA:
		return "0 to 100 µA"
	}
	return fmt.Sprintf("CurrentRange(%d)", int(r))
}

// ChannelStatus is the state of one channel as reported by the status
// command. Voltage is the output voltage, i.e. after the range attenuation.
type ChannelStatus struct {
	Voltage      float64
	VoltageRange VoltageRange
	CurrentRange CurrentRange
}

// Status is a parsed status dump.
type Status struct {
	Version  string
	Channels []ChannelStatus
}

// statusHeader is the lowercased header line of a status dump. The double
// tab shows up as an empty column, like in the channel lines.
const statusHeader = "channel\tout v\t\tvoltage range\tcurrent range"

var vrangeTokens = map[string]VoltageRange{
	"X 1":   Range10V,
	"X 0.1": Range1V,
}

var irangeTokens = map[string]CurrentRange{
	"lo cur": Range1uA,
	"hi cur": Range100uA,
}

func parseVersionLine(line string) (string, error) {
	const prefix = "Software Version: "
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, prefix) {
		return "", fmt.Errorf("unrecognized version line %q", line)
	}
	return strings.TrimPrefix(line, prefix), nil
}

func checkHeaderLine(line string) error {
	if strings.ToLower(strings.Trim(line, "\r\n")) != statusHeader {
		return fmt.Errorf("unrecognized status header %q", line)
	}
	return nil
}

// parseChannelLine parses one tab-separated channel line, for example
// "8\t  0.100000\t\tX 0.1\t\tlo cur". The returned voltage is scaled by the
// range attenuation, so it is the voltage present on the output.
func parseChannelLine(line string) (int, ChannelStatus, error) {
	fields := strings.Split(strings.TrimSpace(line), "\t")
	if len(fields) != 6 {
		return 0, ChannelStatus{}, fmt.Errorf("malformed status line %q", line)
	}
	ch, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return 0, ChannelStatus{}, fmt.Errorf("bad channel number in status line %q", line)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return 0, ChannelStatus{}, fmt.Errorf("bad voltage in status line %q", line)
	}
	vr, ok := vrangeTokens[strings.TrimSpace(fields[3])]
	if !ok {
		return 0, ChannelStatus{}, fmt.Errorf("unknown voltage range %q in status line %q",
			strings.TrimSpace(fields[3]), line)
	}
	ir, ok := irangeTokens[strings.TrimSpace(fields[5])]
	if !ok {
		return 0, ChannelStatus{}, fmt.Errorf("unknown current range %q in status line %q",
			strings.TrimSpace(fields[5]), line)
	}
	st := ChannelStatus{
		Voltage:      v * vr.attenuation(),
		VoltageRange: vr,
		CurrentRange: ir,
	}
	return ch, st, nil
}

// ParseStatus parses a complete status dump: a version line, a header line,
// and one line per channel in whatever order the firmware prints them,
// with blank lines in between. The channels are returned ordered, channel 1
// first.
func ParseStatus(text string) (*Status, error) {
	lines := strings.Split(text, "\n")
	idx := 0
	next := func() (string, bool) {
		for idx < len(lines) {
			line := lines[idx]
			idx++
			if strings.TrimSpace(line) != "" {
				return line, true
			}
		}
		return "", false
	}

	versionLine, ok := next()
	if !ok {
		return nil, fmt.Errorf("empty status dump")
	}
	version, err := parseVersionLine(versionLine)
	if err != nil {
		return nil, err
	}
	headerLine, ok := next()
	if !ok {
		return nil, fmt.Errorf("status dump ends before the header line")
	}
	if err := checkHeaderLine(headerLine); err != nil {
		return nil, err
	}

	byChan := make(map[int]ChannelStatus)
	for {
		line, ok := next()
		if !ok {
			break
		}
		ch, st, err := parseChannelLine(line)
		if err != nil {
			return nil, err
		}
		if _, dup := byChan[ch]; dup {
			return nil, fmt.Errorf("status dump reports channel %d twice", ch)
		}
		byChan[ch] = st
	}
	if len(byChan) == 0 {
		return nil, fmt.Errorf("no channel lines in status dump")
	}

	chans := make([]ChannelStatus, len(byChan))
	for ch, st := range byChan {
		if ch < 1 || ch > len(byChan) {
			return nil, fmt.Errorf("status dump reports channel %d but only %d channels",
				ch, len(byChan))
		}
		chans[ch-1] = st
	}
	return &Status{Version: version, Channels: chans}, nil
}
