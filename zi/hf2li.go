// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import "github.com/pkg/errors"

// hf2liSignalInputs maps demodulator input signal names to adcselect codes.
var hf2liSignalInputs = map[string]int{
	"Signal input 0": 0,
	"Signal input 1": 1,
	"Aux Input 0":    2,
	"Aux Input 1":    3,
	"DIO 0":          4,
	"DIO 1":          5,
}

// hf2liInputDiffs maps signal input differential switch names to diff codes.
var hf2liInputDiffs = map[string]int{
	"ON":  1,
	"OFF": 0,
}

// hf2liAuxOutputs maps auxiliary output signal names to outputselect codes.
var hf2liAuxOutputs = map[string]int{
	"Manual":      -1,
	"Demod X":     0,
	"Demod Y":     1,
	"Demod R":     2,
	"Demod THETA": 3,
}

// DemodTriggerFlag is a bitmask of HF2LI demodulator trigger conditions.
// Edge and level conditions on the two DIO lines can be combined by
// or-ing flags; zero means continuous triggering.
type DemodTriggerFlag int

// HF2LI demodulator trigger conditions.
const (
	TriggerContinuous  DemodTriggerFlag = 0
	TriggerDIO0Rising  DemodTriggerFlag = 1
	TriggerDIO0Falling DemodTriggerFlag = 2
	TriggerDIO1Rising  DemodTriggerFlag = 4
	TriggerDIO1Falling DemodTriggerFlag = 8
	TriggerDIO0High    DemodTriggerFlag = 16
	TriggerDIO0Low     DemodTriggerFlag = 32
	TriggerDIO1High    DemodTriggerFlag = 64
	TriggerDIO1Low     DemodTriggerFlag = 128
)

const demodTriggerFlagMask = 255

// HF2LI drives a Zurich Instruments HF2 50 MHz lock-in amplifier over a
// Session connected at APILevelHF2. It has 6 demodulators, 2 signal inputs
// and outputs, 4 auxiliary outputs, and 2 oscillators, or 6 with the MF
// option.
type HF2LI struct {
	*lockin
}

// NewHF2LI binds an HF2LI driver to the named device on the given session.
func NewHF2LI(sess Session, device string, opts ...Option) (*HF2LI, error) {
	li, err := newLockin(sess, device, profile{
		model:          "HF2LI",
		numDemods:      6,
		numOscillators: 6,
		ampNodes:       map[int]int{1: 6, 2: 7},
		oscFreqMax:     50e6,
		signalInputs:   hf2liSignalInputs,
		inputDiffs:     hf2liInputDiffs,
		auxOutputs:     hf2liAuxOutputs,
		outputRanges:   []float64{0.01, 0.1, 1, 10},
		offsetLimit:    1.0,
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating HF2LI driver")
	}
	return &HF2LI{lockin: li}, nil
}

// SetDemodTrigger sets the trigger condition bitmask of the given
// demodulator.
func (h *HF2LI) SetDemodTrigger(d int, flags DemodTriggerFlag) error {
	if flags&^demodTriggerFlagMask != 0 {
		return errors.Errorf("invalid demodulator trigger flags %#x", int(flags))
	}
	return h.setDemodTriggerCode(d, int(flags))
}

// DemodTrigger returns the trigger condition bitmask of the given
// demodulator.
func (h *HF2LI) DemodTrigger(d int) (DemodTriggerFlag, error) {
	code, err := h.demodTriggerCode(d)
	return DemodTriggerFlag(code), err
}
