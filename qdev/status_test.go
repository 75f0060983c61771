// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package qdev

import (
	"fmt"
	"strings"
	"testing"

	c "github.com/smartystreets/goconvey/convey"
)

// dump builds a status dump with a good version and header line followed by
// the given channel lines.
func dump(lines ...string) string {
	all := append([]string{
		"Software Version: 1.07\r",
		"Channel\tOut V\t\tVoltage range\tCurrent range",
		"",
	}, lines...)
	return strings.Join(all, "\n")
}

func TestStatusParsing(t *testing.T) {
	c.Convey("Given status dumps from the instrument", t, func() {
		c.Convey("When parsing a dump with out-of-order channels", func() {
			st, err := ParseStatus(dump(
				"4\t  0.250000\t\tX 0.1\t\tlo cur",
				"3\t -1.000000\t\tX 1\t\thi cur",
				"",
				"1\t  0.000000\t\tX 1\t\tlo cur",
				"2\t  9.990000\t\tX 1\t\thi cur",
			))
			c.Convey("Then the channels come back in ascending order", func() {
				c.So(err, c.ShouldBeNil)
				c.So(st.Version, c.ShouldEqual, "1.07")
				c.So(st.Channels, c.ShouldHaveLength, 4)
				c.So(st.Channels[0].Voltage, c.ShouldEqual, 0.0)
				c.So(st.Channels[1].Voltage, c.ShouldEqual, 9.99)
				c.So(st.Channels[2].Voltage, c.ShouldEqual, -1.0)
				c.So(st.Channels[2].CurrentRange, c.ShouldEqual, Range100uA)
				c.Convey("And the attenuated channel reports the output voltage", func() {
					c.So(st.Channels[3].VoltageRange, c.ShouldEqual, Range1V)
					c.So(st.Channels[3].Voltage, c.ShouldAlmostEqual, 0.025, 1e-12)
				})
			})
		})

		testCases := []struct {
			desc string
			text string
			want string
		}{
			{
				desc: "no content at all",
				text: "\n\n",
				want: "empty status dump",
			},
			{
				desc: "an unrecognized version line",
				text: "Firmware 1.07\nChannel\tOut V\t\tVoltage range\tCurrent range\n",
				want: "unrecognized version line",
			},
			{
				desc: "nothing after the version line",
				text: "Software Version: 1.07\n\n",
				want: "ends before the header line",
			},
			{
				desc: "an unrecognized header line",
				text: "Software Version: 1.07\nChannel\tVolts\tRanges\n",
				want: "unrecognized status header",
			},
			{
				desc: "no channel lines",
				text: dump(),
				want: "no channel lines",
			},
			{
				desc: "too few fields in a channel line",
				text: dump("1\t0.5\tX 1\tlo cur"),
				want: "malformed status line",
			},
			{
				desc: "a bad channel number",
				text: dump("x\t  0.500000\t\tX 1\t\tlo cur"),
				want: "bad channel number",
			},
			{
				desc: "a bad voltage",
				text: dump("1\tfull\t\tX 1\t\tlo cur"),
				want: "bad voltage",
			},
			{
				desc: "an unknown voltage range token",
				text: dump("1\t  0.500000\t\tX 2\t\tlo cur"),
				want: `unknown voltage range "X 2"`,
			},
			{
				desc: "an unknown current range token",
				text: dump("1\t  0.500000\t\tX 1\t\tpA"),
				want: `unknown current range "pA"`,
			},
			{
				desc: "a duplicated channel",
				text: dump(
					"1\t  0.000000\t\tX 1\t\tlo cur",
					"2\t  0.000000\t\tX 1\t\tlo cur",
					"2\t  1.000000\t\tX 1\t\tlo cur",
				),
				want: "reports channel 2 twice",
			},
			{
				desc: "a gap in the channel numbers",
				text: dump(
					"1\t  0.000000\t\tX 1\t\tlo cur",
					"2\t  0.000000\t\tX 1\t\tlo cur",
					"4\t  0.000000\t\tX 1\t\tlo cur",
				),
				want: "reports channel 4 but only 3 channels",
			},
		}
		for _, tc := range testCases {
			conveyance := fmt.Sprintf("When parsing a dump with %s", tc.desc)
			c.Convey(conveyance, func() {
				_, err := ParseStatus(tc.text)
				c.Convey("Then parsing fails", func() {
					c.So(err, c.ShouldNotBeNil)
					c.So(err.Error(), c.ShouldContainSubstring, tc.want)
				})
			})
		}
	})
}
