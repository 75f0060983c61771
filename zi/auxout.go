// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import "github.com/pkg/errors"

// SetAuxOutScale sets the multiplier applied to the signal routed to the
// given auxiliary output.
func (li *lockin) SetAuxOutScale(ch int, scale float64) error {
	if err := li.checkAuxOutput(ch); err != nil {
		return err
	}
	return li.sess.SetDouble(li.path("auxouts", ch, "scale"), scale)
}

// AuxOutScale returns the multiplier applied to the signal routed to the
// given auxiliary output.
func (li *lockin) AuxOutScale(ch int) (float64, error) {
	if err := li.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("auxouts", ch, "scale"))
}

// SetAuxOutOffset sets the DC offset of the given auxiliary output in volts.
func (li *lockin) SetAuxOutOffset(ch int, offset float64) error {
	if err := li.checkAuxOutput(ch); err != nil {
		return err
	}
	return li.sess.SetDouble(li.path("auxouts", ch, "offset"), offset)
}

// AuxOutOffset returns the DC offset of the given auxiliary output in volts.
func (li *lockin) AuxOutOffset(ch int) (float64, error) {
	if err := li.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("auxouts", ch, "offset"))
}

// SetAuxOutDemod selects which demodulator drives the given auxiliary
// output. The demodulator is numbered 1-based like everywhere else in the
// API; the node stores it 0-based.
func (li *lockin) SetAuxOutDemod(ch, demod int) error {
	if err := li.checkAuxOutput(ch); err != nil {
		return err
	}
	if err := li.checkDemod(demod); err != nil {
		return err
	}
	return li.sess.SetInt(li.path("auxouts", ch, "demodselect"), demod-1)
}

// AuxOutDemod returns which demodulator drives the given auxiliary output.
func (li *lockin) AuxOutDemod(ch int) (int, error) {
	if err := li.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	code, err := li.sess.GetInt(li.path("auxouts", ch, "demodselect"))
	if err != nil {
		return 0, err
	}
	return code + 1, nil
}

// SetAuxOutOutput selects the named signal the auxiliary output carries.
// The legal names depend on the model.
func (li *lockin) SetAuxOutOutput(ch int, output string) error {
	if err := li.checkAuxOutput(ch); err != nil {
		return err
	}
	code, ok := li.prof.auxOutputs[output]
	if !ok {
		return errors.Errorf("invalid aux output signal %q for the %s", output, li.prof.model)
	}
	return li.sess.SetInt(li.path("auxouts", ch, "outputselect"), code)
}

// AuxOutOutput returns the name of the signal the auxiliary output carries.
func (li *lockin) AuxOutOutput(ch int) (string, error) {
	if err := li.checkAuxOutput(ch); err != nil {
		return "", err
	}
	code, err := li.sess.GetInt(li.path("auxouts", ch, "outputselect"))
	if err != nil {
		return "", err
	}
	name, ok := menuName(li.prof.auxOutputs, code)
	if !ok {
		return "", errors.Errorf("device reported unknown aux output signal code %d", code)
	}
	return name, nil
}

// AuxOutValue returns the voltage currently present on the given auxiliary
// output.
func (li *lockin) AuxOutValue(ch int) (float64, error) {
	if err := li.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	return li.sess.GetDouble(li.path("auxouts", ch, "value"))
}
