// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package cmdlog dresses up the command/response traffic of the example
// programs: colored command echo and responses rendered as text when
// printable, hex otherwise.
package cmdlog

import (
	"log"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gotmc/labrig/comm"
)

var (
	CmdStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	MarkStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("35"))
)

// printable reports whether s renders as text. Tabs and line endings pass,
// other control characters and anything past ASCII do not.
func printable(s string) bool {
	return !strings.ContainsFunc(s, func(r rune) bool {
		if r == '\t' || r == '\n' || r == '\r' {
			return false
		}
		return r < 32 || r > 126
	})
}

// PrettyFuncs returns three closures over dev for interactive examples:
// query sends and returns the raw reply, bquery sends and logs the reply in
// a length-aware format, and cmd sends without expecting a reply. Errors
// are logged, not returned, so example flows read straight through.
func PrettyFuncs(dev *comm.Device) (
	query func(string) string,
	bquery func(string),
	cmd func(string),
) {
	query = func(q string) string {
		s, err := dev.Query(q)
		if err != nil {
			log.Printf("query %s: error %s", CmdStyle.Render(q), err)
		}
		return s
	}

	bquery = func(q string) {
		a := strings.TrimRight(query(q), "\r\n")
		q = CmdStyle.Render(q)
		if len(a) == 0 {
			log.Printf("%s: %s", q, MarkStyle.Render("<no response>"))
			return
		}
		switch {
		case printable(a):
			log.Printf("%s: [%d] %q", q, len(a), a)
		case len(a) < 32:
			log.Printf("%s: [%d] %q (% 2x)", q, len(a), a, []byte(a))
		default:
			log.Printf("%s: [%d] % 2x", q, len(a), []byte(a))
		}
	}

	cmd = func(c string) {
		if err := dev.Command(c); err != nil {
			log.Printf("cmd %s: error %s", CmdStyle.Render(c), err)
		} else {
			log.Printf("%s()", CmdStyle.Render(c))
		}
	}
	return query, bquery, cmd
}
