// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package rigol

import (
	"fmt"
	"testing"

	c "github.com/smartystreets/goconvey/convey"
)

func TestParsingPreambles(t *testing.T) {
	testCases := []struct {
		raw      string
		expected Preamble
	}{
		{
			"0,2,1400,1,1.000000e-09,-7.000000e-07,0.000000e+00,2.500000e-02,2.000000e+00,1.270000e+02",
			Preamble{
				Format: 0, Mode: 2, Points: 1400, Count: 1,
				XIncrement: 1e-9, XOrigin: -7e-7, XReference: 0,
				YIncrement: 0.025, YOrigin: 2, YReference: 127,
			},
		},
		{
			"0,0,1.400000e+03,2,2.000000e-06,0.000000e+00,0.000000e+00,4.000000e-02,0.000000e+00,1.270000e+02\n",
			Preamble{
				Format: 0, Mode: 0, Points: 1400, Count: 2,
				XIncrement: 2e-6, XOrigin: 0, XReference: 0,
				YIncrement: 0.04, YOrigin: 0, YReference: 127,
			},
		},
	}
	c.Convey("Given the need to parse a waveform preamble reply", t, func() {
		for _, testCase := range testCases {
			conveyance := fmt.Sprintf("When the reply is %q", testCase.raw)
			c.Convey(conveyance, func() {
				p, err := parsePreamble(testCase.raw)
				c.Convey("Then the ten fields are decoded", func() {
					c.So(err, c.ShouldBeNil)
					c.So(*p, c.ShouldResemble, testCase.expected)
				})
			})
		}
	})
}

func TestParsingBadPreambles(t *testing.T) {
	testCases := []string{
		"",
		"0,2,1400,1",
		"0,2,1400,1,1e-9,-7e-7,0,0.025,2,127,99",
		"0,2,fourteen,1,1e-9,-7e-7,0,0.025,2,127",
		"0,2,1400,1,1e-9,-7e-7,0,volts,2,127",
	}
	c.Convey("Given a malformed waveform preamble reply", t, func() {
		for _, testCase := range testCases {
			conveyance := fmt.Sprintf("When the reply is %q", testCase)
			c.Convey(conveyance, func() {
				p, err := parsePreamble(testCase)
				c.Convey("Then parsing fails", func() {
					c.So(p, c.ShouldBeNil)
					c.So(err, c.ShouldNotBeNil)
				})
			})
		}
	})
}

func TestConvertingRawBytesToVolts(t *testing.T) {
	testCases := []struct {
		raw      []byte
		preamble Preamble
		expected []float64
	}{
		{
			[]byte{127, 128, 126},
			Preamble{YIncrement: 0.02, YOrigin: 0, YReference: 127},
			[]float64{0, 0.02, -0.02},
		},
		{
			[]byte{0, 255},
			Preamble{YIncrement: 0.1, YOrigin: -12, YReference: 127},
			[]float64{-11.5, 14},
		},
		{
			nil,
			Preamble{YIncrement: 0.1, YReference: 127},
			[]float64{},
		},
	}
	c.Convey("Given raw waveform bytes and preamble constants", t, func() {
		for _, testCase := range testCases {
			conveyance := fmt.Sprintf(
				"When converting % x with yinc %g, yorig %g, yref %g",
				testCase.raw,
				testCase.preamble.YIncrement,
				testCase.preamble.YOrigin,
				testCase.preamble.YReference,
			)
			c.Convey(conveyance, func() {
				volts := convertBytes(testCase.raw, &testCase.preamble)
				c.Convey("Then each byte is scaled to volts", func() {
					c.So(volts, c.ShouldHaveLength, len(testCase.expected))
					for i := range testCase.expected {
						c.So(volts[i], c.ShouldAlmostEqual, testCase.expected[i], 1e-12)
					}
				})
			})
		}
	})
}
