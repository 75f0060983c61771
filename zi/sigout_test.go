// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi

import (
	"fmt"
	"testing"

	c "github.com/smartystreets/goconvey/convey"
)

func TestAmplitudeUnitConversions(t *testing.T) {
	testCases := []struct {
		unit AmplitudeUnit
		user float64
		peak float64
	}{
		{Vpk, 0.5, 0.5},
		{Vpk, -1.2, -1.2},
		{Vrms, 0.5, 0.7071067811865476},
		{Vrms, 1.0, 1.4142135623730951},
		{DBm, 10, 1.0},
		{DBm, 0, 0.31622776601683794},
		{DBm, -10, 0.1},
	}
	c.Convey("Given the amplitude units", t, func() {
		for _, tc := range testCases {
			conveyance := fmt.Sprintf("When converting %g %s to peak volts", tc.user, tc.unit)
			c.Convey(conveyance, func() {
				c.Convey(fmt.Sprintf("Then the peak amplitude is %g V", tc.peak), func() {
					c.So(tc.unit.toPeak(tc.user), c.ShouldAlmostEqual, tc.peak, 1e-12)
				})
				c.Convey("Then converting back returns the user value", func() {
					c.So(tc.unit.fromPeak(tc.unit.toPeak(tc.user)), c.ShouldAlmostEqual, tc.user, 1e-9)
				})
			})
		}
	})
}

func TestRangeRounding(t *testing.T) {
	c.Convey("Given raw range readings", t, func() {
		c.Convey("Then they round to the nearest millivolt", func() {
			c.So(round3(1.4995), c.ShouldEqual, 1.5)
			c.So(round3(0.0749), c.ShouldEqual, 0.075)
			c.So(round3(-1.2344), c.ShouldEqual, -1.234)
		})
	})
}

func TestOutputAmplitudeScaling(t *testing.T) {
	c.Convey("Given a UHFLI with a 1.5 V output range", t, func() {
		f := newFakeSession()
		u, err := NewUHFLI(f, "dev2043")
		c.So(err, c.ShouldBeNil)
		f.doubles["/dev2043/sigouts/0/range"] = 1.5

		c.Convey("When setting 0.5 Vrms", func() {
			c.So(u.SetOutputAmplitudeUnit(1, Vrms), c.ShouldBeNil)
			c.So(u.SetOutputAmplitude(1, 0.5), c.ShouldBeNil)
			c.Convey("Then the device stores peak volts as a fraction of range", func() {
				c.So(f.doubles["/dev2043/sigouts/0/amplitudes/3"],
					c.ShouldAlmostEqual, 0.4714045207910317, 1e-12)
			})
			c.Convey("Then reading back returns 0.5 Vrms", func() {
				got, err := u.OutputAmplitude(1)
				c.So(err, c.ShouldBeNil)
				c.So(got, c.ShouldAlmostEqual, 0.5, 1e-12)
			})
			c.Convey("Then switching the unit re-expresses the same signal", func() {
				c.So(u.SetOutputAmplitudeUnit(1, DBm), c.ShouldBeNil)
				got, err := u.OutputAmplitude(1)
				c.So(err, c.ShouldBeNil)
				c.So(got, c.ShouldAlmostEqual, 6.989700043360187, 1e-9)
			})
		})
	})
}

func TestOutputAmplitudeInterplay(t *testing.T) {
	c.Convey("Given a UHFLI with a 0.15 V output range", t, func() {
		f := newFakeSession()
		u, err := NewUHFLI(f, "dev2043")
		c.So(err, c.ShouldBeNil)
		f.doubles["/dev2043/sigouts/0/range"] = 0.15

		c.Convey("When setting an amplitude beyond the range", func() {
			err := u.SetOutputAmplitude(1, 0.2)
			c.Convey("Then the amplitude is rejected", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring,
					"signal output 1: amplitude too high for chosen range")
			})
		})
		c.Convey("When setting a negative amplitude beyond the range", func() {
			err := u.SetOutputAmplitude(1, -0.2)
			c.Convey("Then the amplitude is rejected as well", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring, "amplitude too high")
			})
		})
	})

	c.Convey("Given a UHFLI with a 1.5 V output range", t, func() {
		f := newFakeSession()
		u, err := NewUHFLI(f, "dev2043")
		c.So(err, c.ShouldBeNil)
		f.doubles["/dev2043/sigouts/0/range"] = 1.5

		c.Convey("When setting 15 dBm", func() {
			c.So(u.SetOutputAmplitudeUnit(1, DBm), c.ShouldBeNil)
			err := u.SetOutputAmplitude(1, 15)
			c.Convey("Then the converted peak amplitude is rejected", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring, "amplitude too high")
			})
		})

		c.Convey("When the amplitude already uses half the range", func() {
			f.doubles["/dev2043/sigouts/0/amplitudes/3"] = 0.5
			c.Convey("And the offset keeps the sum within the range", func() {
				c.So(u.SetOutputOffset(1, 0.7), c.ShouldBeNil)
				c.Convey("Then the offset is stored as a fraction of range", func() {
					c.So(f.doubles["/dev2043/sigouts/0/offset"],
						c.ShouldAlmostEqual, 0.4666666666666667, 1e-12)
					got, err := u.OutputOffset(1)
					c.So(err, c.ShouldBeNil)
					c.So(got, c.ShouldAlmostEqual, 0.7, 1e-12)
				})
			})
			c.Convey("And the offset pushes the sum beyond the range", func() {
				err := u.SetOutputOffset(1, 0.8)
				c.Convey("Then the offset is rejected", func() {
					c.So(err, c.ShouldNotBeNil)
					c.So(err.Error(), c.ShouldContainSubstring,
						"signal output 1: offset too high for chosen range")
				})
			})
		})

		c.Convey("When setting an offset beyond the hardware limit", func() {
			err := u.SetOutputOffset(1, 1.6)
			c.Convey("Then the offset is rejected outright", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring,
					"invalid offset (got 1.6 V, must be between -1.5 and 1.5)")
			})
		})
	})

	c.Convey("Given a UHFLI with output autoranging on", t, func() {
		f := newFakeSession()
		u, err := NewUHFLI(f, "dev2043")
		c.So(err, c.ShouldBeNil)
		f.ints["/dev2043/sigouts/0/autorange"] = 1

		c.Convey("When the output drives a high impedance load", func() {
			c.Convey("Then amplitudes up to 1.5 V peak pass", func() {
				c.So(u.SetOutputAmplitude(1, 1.4), c.ShouldBeNil)
				c.So(f.doubles["/dev2043/sigouts/0/amplitudes/3"],
					c.ShouldAlmostEqual, 1.4/1.5, 1e-12)
			})
			c.Convey("Then 1.6 V peak is rejected", func() {
				err := u.SetOutputAmplitude(1, 1.6)
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring, "amplitude too high")
			})
		})
		c.Convey("When the 50 ohm output switch is on", func() {
			f.ints["/dev2043/sigouts/0/imp50"] = 1
			c.Convey("Then the range cap halves to 0.75 V", func() {
				err := u.SetOutputAmplitude(1, 0.8)
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring, "amplitude too high")
				c.So(u.SetOutputAmplitude(1, 0.7), c.ShouldBeNil)
			})
		})
	})
}

func TestOutputRangeRules(t *testing.T) {
	c.Convey("Given a UHFLI driver", t, func() {
		f := newFakeSession()
		u, err := NewUHFLI(f, "dev2043")
		c.So(err, c.ShouldBeNil)

		c.Convey("When autorange is off and the output drives a high impedance load", func() {
			c.Convey("Then 1.5 V and 0.15 V are the legal ranges", func() {
				c.So(u.SetOutputRange(1, 1.5), c.ShouldBeNil)
				c.So(f.doubles["/dev2043/sigouts/0/range"], c.ShouldEqual, 1.5)
				err := u.SetOutputRange(1, 0.75)
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring, "choose a valid range")
			})
		})
		c.Convey("When the 50 ohm output switch is on", func() {
			f.ints["/dev2043/sigouts/0/imp50"] = 1
			c.Convey("Then 0.75 V and 0.075 V are the legal ranges", func() {
				c.So(u.SetOutputRange(1, 0.075), c.ShouldBeNil)
				c.So(f.doubles["/dev2043/sigouts/0/range"], c.ShouldEqual, 0.075)
				err := u.SetOutputRange(1, 1.5)
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring, "choose a valid range")
			})
		})
		c.Convey("When autorange is on", func() {
			f.ints["/dev2043/sigouts/0/autorange"] = 1
			err := u.SetOutputRange(1, 1.5)
			c.Convey("Then setting a range is refused", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring,
					"cannot set range as autorange is turned on")
			})
		})
	})

	c.Convey("Given an HF2LI driver", t, func() {
		f := newFakeSession()
		h, err := NewHF2LI(f, "dev1024")
		c.So(err, c.ShouldBeNil)

		c.Convey("When setting one of the discrete ranges", func() {
			c.So(h.SetOutputRange(1, 10), c.ShouldBeNil)
			c.Convey("Then the range is written as is", func() {
				c.So(f.doubles["/dev1024/sigouts/0/range"], c.ShouldEqual, 10)
			})
		})
		c.Convey("When setting a range off the menu", func() {
			err := h.SetOutputRange(1, 5)
			c.Convey("Then the range is rejected", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring,
					"invalid output range (got 5, must be one of [0.01 0.1 1 10])")
			})
		})
		c.Convey("When setting an offset beyond the 1 V limit", func() {
			err := h.SetOutputOffset(1, -1.2)
			c.Convey("Then the offset is rejected", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring,
					"invalid offset (got -1.2 V, must be between -1 and 1)")
			})
		})
	})
}

func TestImp50ClippingCheck(t *testing.T) {
	c.Convey("Given a UHFLI output with amplitude and offset near the range", t, func() {
		f := newFakeSession()
		u, err := NewUHFLI(f, "dev2043")
		c.So(err, c.ShouldBeNil)
		f.doubles["/dev2043/sigouts/0/range"] = 1.5
		f.doubles["/dev2043/sigouts/0/amplitudes/3"] = 0.9
		f.doubles["/dev2043/sigouts/0/offset"] = 0.2

		c.Convey("When switching the 50 ohm output impedance", func() {
			err := u.SetOutputImp50(1, true)
			c.Convey("Then the switch itself goes through", func() {
				c.So(f.ints["/dev2043/sigouts/0/imp50"], c.ShouldEqual, 1)
			})
			c.Convey("Then the driver reports the now clipping signal", func() {
				c.So(err, c.ShouldNotBeNil)
				c.So(err.Error(), c.ShouldContainSubstring,
					"signal output 1: amplitude and/or offset out of range")
			})
		})
		c.Convey("When amplitude and offset still fit", func() {
			f.doubles["/dev2043/sigouts/0/amplitudes/3"] = 0.5
			c.Convey("Then the switch passes the clipping check", func() {
				c.So(u.SetOutputImp50(1, true), c.ShouldBeNil)
			})
		})
	})
}
