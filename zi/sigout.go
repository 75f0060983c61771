// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// AmplitudeUnit selects how signal output amplitudes are expressed in the
// API. The device always stores peak volts as a fraction of the output
// range; the driver converts on the way in and out.
type AmplitudeUnit string

// Available amplitude units.
const (
	Vpk  AmplitudeUnit = "Vpk"
	Vrms AmplitudeUnit = "Vrms"
	DBm  AmplitudeUnit = "dBm"
)

// toPeak converts a user amplitude to peak volts.
func (u AmplitudeUnit) toPeak(v float64) float64 {
	switch u {
	case Vrms:
		return v * math.Sqrt2
	case DBm:
		return math.Pow(10, (v-10)/20)
	default:
		return v
	}
}

// fromPeak converts peak volts back to the user amplitude.
func (u AmplitudeUnit) fromPeak(v float64) float64 {
	switch u {
	case Vrms:
		return v / math.Sqrt2
	case DBm:
		return 10 + 20*math.Log10(v)
	default:
		return v
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func (li *lockin) ampNode(out int) string {
	return fmt.Sprintf("amplitudes/%d", li.prof.ampNodes[out])
}

func (li *lockin) enableNode(out int) string {
	return fmt.Sprintf("enables/%d", li.prof.ampNodes[out])
}

// effectiveOutputRange returns the range used to scale amplitudes and
// offsets. With autorange on the device picks the range itself, so
// validation uses the largest range the hardware can switch to, which
// depends on the 50 Ω output switch.
func (li *lockin) effectiveOutputRange(out int) (float64, error) {
	if li.prof.hasOutputImp50 {
		auto, err := li.sess.GetInt(li.path("sigouts", out, "autorange"))
		if err != nil {
			return 0, err
		}
		if auto != 0 {
			imp50, err := li.sess.GetInt(li.path("sigouts", out, "imp50"))
			if err != nil {
				return 0, err
			}
			if imp50 != 0 {
				return 0.75, nil
			}
			return 1.5, nil
		}
	}
	rng, err := li.sess.GetDouble(li.path("sigouts", out, "range"))
	if err != nil {
		return 0, err
	}
	return round3(rng), nil
}

// SetOutputOn switches the given signal output on or off.
func (li *lockin) SetOutputOn(out int, on bool) error {
	if err := li.checkOutput(out); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("sigouts", out, "on"), boolToInt(on))
}

// OutputOn reports whether the given signal output is on.
func (li *lockin) OutputOn(out int) (bool, error) {
	if err := li.checkOutput(out); err != nil {
		return false, err
	}
	v, err := li.sess.GetInt(li.path("sigouts", out, "on"))
	return v != 0, err
}

// SetOutputEnable switches the mixer channel that feeds the amplitude into
// the given signal output.
func (li *lockin) SetOutputEnable(out int, on bool) error {
	if err := li.checkOutput(out); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("sigouts", out, li.enableNode(out)), boolToInt(on))
}

// OutputEnable reports whether the amplitude mixer channel is enabled.
func (li *lockin) OutputEnable(out int) (bool, error) {
	if err := li.checkOutput(out); err != nil {
		return false, err
	}
	v, err := li.sess.GetInt(li.path("sigouts", out, li.enableNode(out)))
	return v != 0, err
}

// SetOutputAmplitudeUnit selects the unit SetOutputAmplitude and
// OutputAmplitude work in. This is driver-side state only; the device
// keeps storing peak volts as a fraction of range.
func (li *lockin) SetOutputAmplitudeUnit(out int, unit AmplitudeUnit) error {
	if err := li.checkOutput(out); err != nil {
		return err
	}
	switch unit {
	case Vpk, Vrms, DBm:
	default:
		return errors.Errorf("invalid amplitude unit %q (must be Vpk, Vrms, or dBm)", unit)
	}
	li.ampdef[out-1] = unit
	return nil
}

// OutputAmplitudeUnit returns the unit amplitudes are expressed in.
func (li *lockin) OutputAmplitudeUnit(out int) (AmplitudeUnit, error) {
	if err := li.checkOutput(out); err != nil {
		return "", err
	}
	return li.ampdef[out-1], nil
}

// SetOutputAmplitude sets the output amplitude, expressed in the current
// amplitude unit. The converted peak amplitude must fit within the
// effective output range; the device stores it as a fraction of range.
func (li *lockin) SetOutputAmplitude(out int, v float64) error {
	if err := li.checkOutput(out); err != nil {
		return err
	}
	rng, err := li.effectiveOutputRange(out)
	if err != nil {
		return errors.Wrap(err, "reading output range")
	}
	peak := li.ampdef[out-1].toPeak(v)
	if math.Abs(peak) > rng {
		return errors.Errorf("signal output %d: amplitude too high for chosen range", out)
	}
	return li.sess.SetDouble(li.path("sigouts", out, li.ampNode(out)), peak/rng)
}

// OutputAmplitude returns the output amplitude, expressed in the current
// amplitude unit.
func (li *lockin) OutputAmplitude(out int) (float64, error) {
	if err := li.checkOutput(out); err != nil {
		return 0, err
	}
	frac, err := li.sess.GetDouble(li.path("sigouts", out, li.ampNode(out)))
	if err != nil {
		return 0, err
	}
	rng, err := li.sess.GetDouble(li.path("sigouts", out, "range"))
	if err != nil {
		return 0, err
	}
	return li.ampdef[out-1].fromPeak(frac * rng), nil
}

// SetOutputOffset sets the output DC offset in volts. The offset plus the
// peak amplitude must fit within the output range; the device stores the
// offset as a fraction of range.
func (li *lockin) SetOutputOffset(out int, v float64) error {
	if err := li.checkOutput(out); err != nil {
		return err
	}
	if math.Abs(v) > li.prof.offsetLimit {
		return errors.Errorf("invalid offset (got %g V, must be between %g and %g)",
			v, -li.prof.offsetLimit, li.prof.offsetLimit)
	}
	rng, err := li.sess.GetDouble(li.path("sigouts", out, "range"))
	if err != nil {
		return errors.Wrap(err, "reading output range")
	}
	rng = round3(rng)
	frac, err := li.sess.GetDouble(li.path("sigouts", out, li.ampNode(out)))
	if err != nil {
		return errors.Wrap(err, "reading output amplitude")
	}
	amp := round3(frac * rng)
	if math.Abs(v+amp) > rng {
		return errors.Errorf("signal output %d: offset too high for chosen range", out)
	}
	return li.sess.SetDouble(li.path("sigouts", out, "offset"), v/rng)
}

// OutputOffset returns the output DC offset in volts.
func (li *lockin) OutputOffset(out int) (float64, error) {
	if err := li.checkOutput(out); err != nil {
		return 0, err
	}
	frac, err := li.sess.GetDouble(li.path("sigouts", out, "offset"))
	if err != nil {
		return 0, err
	}
	rng, err := li.sess.GetDouble(li.path("sigouts", out, "range"))
	if err != nil {
		return 0, err
	}
	return frac * rng, nil
}

// SetOutputRange sets the output range in volts. Only the model's discrete
// range steps are legal, and on devices with output autoranging the range
// cannot be set while autorange is on.
func (li *lockin) SetOutputRange(out int, v float64) error {
	if err := li.checkOutput(out); err != nil {
		return err
	}
	if li.prof.outputRanges != nil {
		legal := false
		for _, r := range li.prof.outputRanges {
			if v == r {
				legal = true
				break
			}
		}
		if !legal {
			return errors.Errorf("invalid output range (got %g, must be one of %v)",
				v, li.prof.outputRanges)
		}
		return li.sess.SetDouble(li.path("sigouts", out, "range"), v)
	}
	auto, err := li.sess.GetInt(li.path("sigouts", out, "autorange"))
	if err != nil {
		return err
	}
	if auto != 0 {
		return errors.Errorf("signal output %d: cannot set range as autorange is turned on", out)
	}
	imp50, err := li.sess.GetInt(li.path("sigouts", out, "imp50"))
	if err != nil {
		return err
	}
	legal := [2]float64{1.5, 0.15}
	if imp50 != 0 {
		legal = [2]float64{0.75, 0.075}
	}
	if v != legal[0] && v != legal[1] {
		return errors.Errorf("signal output %d: choose a valid range: [0.75, 0.075] if imp50 is on, [1.5, 0.15] otherwise", out)
	}
	return li.sess.SetDouble(li.path("sigouts", out, "range"), v)
}

// OutputRange returns the output range in volts.
func (li *lockin) OutputRange(out int) (float64, error) {
	if err := li.checkOutput(out); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("sigouts", out, "range"))
}

// checkOutputClipping re-reads range, offset and amplitude and fails when
// their combination no longer fits the range, which can happen after the
// 50 Ω switch halves the available ranges.
func (li *lockin) checkOutputClipping(out int) error {
	rng, err := li.sess.GetDouble(li.path("sigouts", out, "range"))
	if err != nil {
		return err
	}
	offFrac, err := li.sess.GetDouble(li.path("sigouts", out, "offset"))
	if err != nil {
		return err
	}
	ampFrac, err := li.sess.GetDouble(li.path("sigouts", out, li.ampNode(out)))
	if err != nil {
		return err
	}
	if math.Abs((offFrac+ampFrac)*rng) > rng {
		return errors.Errorf("signal output %d: amplitude and/or offset out of range", out)
	}
	return nil
}
