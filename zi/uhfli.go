// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import "github.com/pkg/errors"

// uhfliSignalInputs maps demodulator input signal names to adcselect codes.
var uhfliSignalInputs = map[string]int{
	"Sig In 1":    0,
	"Sig In 2":    1,
	"Trigger 1":   2,
	"Trigger 2":   3,
	"Aux Out 1":   4,
	"Aux Out 2":   5,
	"Aux Out 3":   6,
	"Aux Out 4":   7,
	"Aux In 1":    8,
	"Aux In 2":    9,
	"Phi Demod 4": 10,
	"Phi Demod 8": 11,
}

// uhfliDemodTriggers maps demodulator trigger mode names to trigger codes.
var uhfliDemodTriggers = map[string]int{
	"Continuous":          0,
	"Trigger in 3 Rise":   1,
	"Trigger in 3 Fall":   2,
	"Trigger in 3 Both":   3,
	"Trigger in 3 High":   32,
	"Trigger in 3 Low":    16,
	"Trigger in 4 Rise":   4,
	"Trigger in 4 Fall":   8,
	"Trigger in 4 Both":   12,
	"Trigger in 4 High":   128,
	"Trigger in 4 Low":    64,
	"Trigger in 3|4 Rise": 5,
	"Trigger in 3|4 Fall": 10,
	"Trigger in 3|4 Both": 15,
	"Trigger in 3|4 High": 160,
	"Trigger in 3|4 Low":  80,
}

// uhfliInputDiffs maps signal input differential mode names to diff codes.
var uhfliInputDiffs = map[string]int{
	"Off":               0,
	"Inverted":          1,
	"Input 1 - Input 2": 2,
	"Input 2 - Input 1": 3,
}

// uhfliAuxOutputs maps auxiliary output signal names to outputselect codes.
var uhfliAuxOutputs = map[string]int{
	"Manual":        -1,
	"Demod X":       0,
	"Demod Y":       1,
	"Demod R":       2,
	"Demod THETA":   3,
	"AWG":           4,
	"PID":           5,
	"Boxcar":        6,
	"AU Cartesian":  7,
	"AU Polar":      8,
	"PID Shift":     9,
	"PID Error":     10,
	"Pulse Counter": 12,
}

// UHFLI drives a Zurich Instruments UHF 600 MHz lock-in amplifier over a
// Session connected at APILevelUHF. It has 8 demodulators, 2 signal inputs
// and outputs, 4 auxiliary outputs, and 2 oscillators, or 8 with the MF
// option (see WithMultifrequency).
type UHFLI struct {
	*lockin
	scope *Scope
}

// NewUHFLI binds a UHFLI driver to the named device on the given session.
func NewUHFLI(sess Session, device string, opts ...Option) (*UHFLI, error) {
	li, err := newLockin(sess, device, profile{
		model:          "UHFLI",
		numDemods:      8,
		numOscillators: 8,
		ampNodes:       map[int]int{1: 3, 2: 7},
		oscFreqMax:     600e6,
		signalInputs:   uhfliSignalInputs,
		inputDiffs:     uhfliInputDiffs,
		auxOutputs:     uhfliAuxOutputs,
		offsetLimit:    1.5,
		hasOutputImp50: true,
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating UHFLI driver")
	}
	return &UHFLI{lockin: li}, nil
}

// Scope returns the scope of the instrument, instantiating its streaming
// module on first use.
func (u *UHFLI) Scope() (*Scope, error) {
	if u.scope != nil {
		return u.scope, nil
	}
	s, err := newScope(u.sess, u.device, u.debug)
	if err != nil {
		return nil, err
	}
	u.scope = s
	return s, nil
}

// SetDemodTrigger sets the named trigger mode of the given demodulator.
func (u *UHFLI) SetDemodTrigger(d int, mode string) error {
	code, ok := uhfliDemodTriggers[mode]
	if !ok {
		return errors.Errorf("invalid demodulator trigger mode %q", mode)
	}
	return u.setDemodTriggerCode(d, code)
}

// DemodTrigger returns the named trigger mode of the given demodulator.
func (u *UHFLI) DemodTrigger(d int) (string, error) {
	code, err := u.demodTriggerCode(d)
	if err != nil {
		return "", err
	}
	name, ok := menuName(uhfliDemodTriggers, code)
	if !ok {
		return "", errors.Errorf("device reported unknown trigger code %d", code)
	}
	return name, nil
}

// SetInputScaling sets the scaling factor applied to the given signal input.
func (u *UHFLI) SetInputScaling(in int, scale float64) error {
	if err := u.checkInput(in); err != nil {
		return err
	}
	return u.sess.SetDouble(u.path("sigins", in, "scaling"), scale)
}

// InputScaling returns the scaling factor applied to the given signal input.
func (u *UHFLI) InputScaling(in int) (float64, error) {
	if err := u.checkInput(in); err != nil {
		return 0, err
	}
	return u.sess.GetDouble(u.path("sigins", in, "scaling"))
}

// SetOutputImp50 switches the 50 Ω output impedance of the given signal
// output. Switching halves or doubles the available output ranges, so the
// offset and amplitude are re-checked against the new range afterwards.
func (u *UHFLI) SetOutputImp50(out int, on bool) error {
	if err := u.checkOutput(out); err != nil {
		return err
	}
	if err := u.sess.SetInt(u.path("sigouts", out, "imp50"), boolToInt(on)); err != nil {
		return err
	}
	return u.checkOutputClipping(out)
}

// OutputImp50 reports whether the 50 Ω output impedance is on.
func (u *UHFLI) OutputImp50(out int) (bool, error) {
	if err := u.checkOutput(out); err != nil {
		return false, err
	}
	v, err := u.sess.GetInt(u.path("sigouts", out, "imp50"))
	return v != 0, err
}

// SetOutputAutorange switches output autoranging. While it is on the
// device adjusts the output range itself and SetOutputRange is rejected.
func (u *UHFLI) SetOutputAutorange(out int, on bool) error {
	if err := u.checkOutput(out); err != nil {
		return err
	}
	return u.sess.SetInt(u.path("sigouts", out, "autorange"), boolToInt(on))
}

// OutputAutorange reports whether output autoranging is on.
func (u *UHFLI) OutputAutorange(out int) (bool, error) {
	if err := u.checkOutput(out); err != nil {
		return false, err
	}
	v, err := u.sess.GetInt(u.path("sigouts", out, "autorange"))
	return v != 0, err
}

// SetAuxOutPreoffset sets the offset added to the signal before scaling on
// the given auxiliary output.
func (u *UHFLI) SetAuxOutPreoffset(ch int, preoffset float64) error {
	if err := u.checkAuxOutput(ch); err != nil {
		return err
	}
	return u.sess.SetDouble(u.path("auxouts", ch, "preoffset"), preoffset)
}

// AuxOutPreoffset returns the offset added to the signal before scaling.
func (u *UHFLI) AuxOutPreoffset(ch int) (float64, error) {
	if err := u.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	return u.sess.GetDouble(u.path("auxouts", ch, "preoffset"))
}

// SetAuxOutLimitLower sets the lower clamp of the auxiliary output in volts.
func (u *UHFLI) SetAuxOutLimitLower(ch int, limit float64) error {
	if err := u.checkAuxOutput(ch); err != nil {
		return err
	}
	return u.sess.SetDouble(u.path("auxouts", ch, "limitlower"), limit)
}

// AuxOutLimitLower returns the lower clamp of the auxiliary output in volts.
func (u *UHFLI) AuxOutLimitLower(ch int) (float64, error) {
	if err := u.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	return u.sess.GetDouble(u.path("auxouts", ch, "limitlower"))
}

// SetAuxOutLimitUpper sets the upper clamp of the auxiliary output in volts.
func (u *UHFLI) SetAuxOutLimitUpper(ch int, limit float64) error {
	if err := u.checkAuxOutput(ch); err != nil {
		return err
	}
	return u.sess.SetDouble(u.path("auxouts", ch, "limitupper"), limit)
}

// AuxOutLimitUpper returns the upper clamp of the auxiliary output in volts.
func (u *UHFLI) AuxOutLimitUpper(ch int) (float64, error) {
	if err := u.checkAuxOutput(ch); err != nil {
		return 0, err
	}
	return u.sess.GetDouble(u.path("auxouts", ch, "limitupper"))
}
