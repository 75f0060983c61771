// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package cmdlog

import (
	"bufio"
	"bytes"
	"log"
	"net"
	"strings"
	"testing"

	"github.com/gotmc/labrig/comm"
)

func TestPrintable(t *testing.T) {
	tests := []struct {
		s    string
		want bool
	}{
		{"RIGOL TECHNOLOGIES,DS4014", true},
		{"line one\r\nline two", true},
		{"tab\tseparated", true},
		{"", true},
		{"\x00\x01\x02", false},
		{"caf\xc3\xa9", false},
		{"bell\x07", false},
	}
	for _, tt := range tests {
		if got := printable(tt.s); got != tt.want {
			t.Errorf("printable(%q) = %v, want %v", tt.s, got, tt.want)
		}
	}
}

func TestPrettyFuncs(t *testing.T) {
	local, remote := net.Pipe()
	t.Cleanup(func() {
		local.Close()
		remote.Close()
	})
	go func() {
		scanner := bufio.NewScanner(remote)
		for scanner.Scan() {
			switch scanner.Text() {
			case "*IDN?":
				remote.Write([]byte("RIGOL TECHNOLOGIES,DS4014\n"))
			case "empty?":
				remote.Write([]byte("\n"))
			case "blob?":
				remote.Write([]byte("\x01\x02\x03\n"))
			}
		}
	}()

	var buf bytes.Buffer
	old := log.Writer()
	log.SetOutput(&buf)
	defer log.SetOutput(old)

	query, bquery, cmd := PrettyFuncs(comm.NewDevice(local))
	if got := strings.TrimRight(query("*IDN?"), "\n"); got != "RIGOL TECHNOLOGIES,DS4014" {
		t.Errorf("query returned %q", got)
	}
	bquery("*IDN?")
	bquery("empty?")
	bquery("blob?")
	cmd(":STOP")

	out := buf.String()
	for _, want := range []string{
		"[25] \"RIGOL TECHNOLOGIES,DS4014\"",
		"<no response>",
		"[3]",
		":STOP()",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}
