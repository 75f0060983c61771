// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package qdev

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/gotmc/query"
)

// SlopeInf is the slope of a channel with no ramp assigned. Assigning it to
// a channel releases the channel's function generator.
var SlopeInf = math.Inf(1)

// slopeEntry assigns a maximum slope to a channel. The entry's position in
// the pool selects the function generator used for ramps.
type slopeEntry struct {
	channel int
	slope   float64 // V/s
}

func (q *QDac) checkChannel(ch int) error {
	if ch < 1 || ch > q.numChans {
		return fmt.Errorf(
			"invalid channel number (got %d, must be between 1 and %d)",
			ch, q.numChans)
	}
	return nil
}

// Voltage returns the output voltage of the given channel in volts, read
// from the cached channel status.
func (q *QDac) Voltage(ch int) (float64, error) {
	if err := q.checkChannel(ch); err != nil {
		return 0, err
	}
	if err := q.freshen(); err != nil {
		return 0, err
	}
	return q.cache[ch-1].Voltage, nil
}

// SetVoltage sets the output voltage of the given channel. Voltages outside
// the active range are clipped to the range limit with a logged warning. If
// the channel has a finite slope assigned, a function generator ramps the
// output to the target; otherwise the voltage steps immediately.
func (q *QDac) SetVoltage(ch int, v float64) error {
	if err := q.checkChannel(ch); err != nil {
		return err
	}
	if err := q.freshen(); err != nil {
		return err
	}
	vrange := q.cache[ch-1].VoltageRange
	if limit := vrange.span(); math.Abs(v) > limit {
		v = math.Copysign(limit, v)
		log.Printf("requested voltage outside the %s range; clipping channel %d to %g V",
			vrange, ch, v)
	}
	if fg, slope, ok := q.assignedSlope(ch); ok {
		ramptime := math.Abs(v-q.cache[ch-1].Voltage) / slope
		return q.rampVoltage(ch, fg, v, ramptime)
	}
	// Back to DC mode in case a function generator was left assigned, then
	// the raw DAC voltage, which is the output voltage before attenuation.
	if err := q.command("wav %d 0 0 0", ch); err != nil {
		return err
	}
	if err := q.command("set %d %.6f", ch, v/vrange.attenuation()); err != nil {
		return err
	}
	q.cache[ch-1].Voltage = v
	return nil
}

// rampVoltage moves the channel to the target voltage using function
// generator fg, which plays a single linear ramp from the present output
// voltage over ramptime seconds. Amplitude and offset are sent in DAC
// volts, so both are compensated for the range attenuation.
func (q *QDac) rampVoltage(ch, fg int, v, ramptime float64) error {
	atten := q.cache[ch-1].VoltageRange.attenuation()
	offset := q.cache[ch-1].Voltage / atten
	amplitude := (v - q.cache[ch-1].Voltage) / atten
	if err := q.command("wav %d %d %g %g", ch, fg, amplitude, offset); err != nil {
		return err
	}
	if err := q.command("fun %d %d %g 100 1", fg, wavRamp, ramptime*1e3); err != nil {
		return err
	}
	q.cache[ch-1].Voltage = v
	return nil
}

// VoltageRange returns the output range of the given channel.
func (q *QDac) VoltageRange(ch int) (VoltageRange, error) {
	if err := q.checkChannel(ch); err != nil {
		return 0, err
	}
	if err := q.freshen(); err != nil {
		return 0, err
	}
	return q.cache[ch-1].VoltageRange, nil
}

// SetVoltageRange switches the output range of the given channel. The 1 V
// range is an attenuator on the channel output, so switching ranges scales
// the voltage already present on the output by a factor of ten.
func (q *QDac) SetVoltageRange(ch int, r VoltageRange) error {
	if err := q.checkChannel(ch); err != nil {
		return err
	}
	if r != Range10V && r != Range1V {
		return fmt.Errorf("invalid voltage range %d", r)
	}
	if err := q.freshen(); err != nil {
		return err
	}
	if err := q.command("vol %d %d", ch, r); err != nil {
		return err
	}
	if old := q.cache[ch-1].VoltageRange; old != r {
		// The DAC value is unchanged, so the output voltage scales by the
		// ratio of the two attenuations.
		q.cache[ch-1].Voltage *= r.attenuation() / old.attenuation()
		q.cache[ch-1].VoltageRange = r
	}
	return nil
}

// CurrentRange returns the current measurement range of the given channel.
func (q *QDac) CurrentRange(ch int) (CurrentRange, error) {
	if err := q.checkChannel(ch); err != nil {
		return 0, err
	}
	if err := q.freshen(); err != nil {
		return 0, err
	}
	return q.cache[ch-1].CurrentRange, nil
}

// SetCurrentRange switches the current measurement range of the given
// channel.
func (q *QDac) SetCurrentRange(ch int, r CurrentRange) error {
	if err := q.checkChannel(ch); err != nil {
		return err
	}
	if r != Range1uA && r != Range100uA {
		return fmt.Errorf("invalid current range %d", r)
	}
	if err := q.command("cur %d %d", ch, r); err != nil {
		return err
	}
	q.cache[ch-1].CurrentRange = r
	return nil
}

// Current reads the sensed output current of the given channel in amps. The
// instrument replies in microamps.
func (q *QDac) Current(ch int) (float64, error) {
	if err := q.checkChannel(ch); err != nil {
		return 0, err
	}
	f, err := query.Float64f(q.dev, "get %d", ch)
	if err != nil {
		return 0, err
	}
	return 1e-6 * f, nil
}

// assignedSlope returns the function generator and slope assigned to the
// channel. Function generators are numbered from one in the instrument.
func (q *QDac) assignedSlope(ch int) (fg int, slope float64, ok bool) {
	for i, se := range q.slopes {
		if se.channel == ch {
			return i + 1, se.slope, true
		}
	}
	return 0, 0, false
}

// SetSlope caps the voltage slope of the given channel in V/s, so that
// SetVoltage ramps rather than steps. The instrument has eight function
// generators, so at most eight channels can hold a finite slope at a time.
// SlopeInf removes the cap.
func (q *QDac) SetSlope(ch int, slope float64) error {
	if err := q.checkChannel(ch); err != nil {
		return err
	}
	if math.IsInf(slope, 1) {
		for i, se := range q.slopes {
			if se.channel == ch {
				q.slopes = append(q.slopes[:i], q.slopes[i+1:]...)
				break
			}
		}
		return nil
	}
	if !(slope > 0) {
		return fmt.Errorf("invalid slope (got %g V/s, must be positive)", slope)
	}
	for i := range q.slopes {
		if q.slopes[i].channel == ch {
			q.slopes[i].slope = slope
			return nil
		}
	}
	if len(q.slopes) >= maxSlopes {
		chans := make([]string, len(q.slopes))
		for i, se := range q.slopes {
			chans[i] = strconv.Itoa(se.channel)
		}
		return fmt.Errorf(
			"all %d function generators are in use; set SlopeInf on one of channels %s first",
			maxSlopes, strings.Join(chans, ", "))
	}
	q.slopes = append(q.slopes, slopeEntry{channel: ch, slope: slope})
	return nil
}

// Slope returns the slope assigned to the channel, or SlopeInf when the
// channel has none.
func (q *QDac) Slope(ch int) (float64, error) {
	if err := q.checkChannel(ch); err != nil {
		return 0, err
	}
	if _, slope, ok := q.assignedSlope(ch); ok {
		return slope, nil
	}
	return SlopeInf, nil
}
