// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package comm

import (
	"bytes"
	"strings"
	"testing"
)

// chatRW feeds canned instrument responses and records writes.
type chatRW struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func newChatRW(responses string) *chatRW {
	return &chatRW{
		in:  bytes.NewBufferString(responses),
		out: &bytes.Buffer{},
	}
}

func (c *chatRW) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *chatRW) Write(p []byte) (int, error) { return c.out.Write(p) }

func TestCommandAppendsTerminator(t *testing.T) {
	rw := newChatRW("")
	dev := NewDevice(rw)
	if err := dev.Command("  :TRIG:MODE %s  ", "EDGE"); err != nil {
		t.Fatalf("command error: %s", err)
	}
	got := rw.out.String()
	want := ":TRIG:MODE EDGE\n"
	if got != want {
		t.Errorf("wrote %q, want %q", got, want)
	}
}

func TestCommandWithoutArgsKeepsVerbs(t *testing.T) {
	rw := newChatRW("")
	dev := NewDevice(rw)
	// A bare command containing a % must not go through Sprintf.
	if err := dev.Command(":DISP:TEXT '100%'"); err != nil {
		t.Fatalf("command error: %s", err)
	}
	if got := rw.out.String(); got != ":DISP:TEXT '100%'\n" {
		t.Errorf("wrote %q", got)
	}
}

func TestQueryReadsToTerminator(t *testing.T) {
	rw := newChatRW("RIGOL TECHNOLOGIES,DS4034\nleftover")
	dev := NewDevice(rw)
	got, err := dev.Query("*IDN?")
	if err != nil {
		t.Fatalf("query error: %s", err)
	}
	if got != "RIGOL TECHNOLOGIES,DS4034\n" {
		t.Errorf("response %q", got)
	}
	if rw.out.String() != "*IDN?\n" {
		t.Errorf("wrote %q", rw.out.String())
	}
}

func TestQueryToleratesEOFWithData(t *testing.T) {
	rw := newChatRW("0.170202") // no trailing terminator
	dev := NewDevice(rw)
	got, err := dev.Query("ver")
	if err != nil {
		t.Fatalf("query error: %s", err)
	}
	if got != "0.170202" {
		t.Errorf("response %q", got)
	}
}

func TestQueryEmptyResponseIsError(t *testing.T) {
	rw := newChatRW("")
	dev := NewDevice(rw)
	if _, err := dev.Query("*IDN?"); err == nil {
		t.Error("expected error on empty response")
	}
}

func TestCustomTerminators(t *testing.T) {
	rw := newChatRW("ok\r")
	dev := NewDevice(rw, WithReadTerminator('\r'), WithWriteTerminator('\r'))
	got, err := dev.Query("ID?")
	if err != nil {
		t.Fatalf("query error: %s", err)
	}
	if got != "ok\r" {
		t.Errorf("response %q", got)
	}
	if !strings.HasSuffix(rw.out.String(), "\r") {
		t.Errorf("wrote %q, want CR terminated", rw.out.String())
	}
}

func TestReadStringDrainsSecondLine(t *testing.T) {
	rw := newChatRW("echo line\nanswer line\n")
	dev := NewDevice(rw)
	first, err := dev.ReadString()
	if err != nil {
		t.Fatalf("read error: %s", err)
	}
	second, err := dev.ReadString()
	if err != nil {
		t.Fatalf("read error: %s", err)
	}
	if first != "echo line\n" || second != "answer line\n" {
		t.Errorf("got %q then %q", first, second)
	}
}
