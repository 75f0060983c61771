// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package comm

import (
	"bytes"
	"fmt"
	"testing"
)

func blockResponse(payload []byte) string {
	length := fmt.Sprintf("%d", len(payload))
	return fmt.Sprintf("#%d%s%s\n", len(length), length, payload)
}

func TestReadBlock(t *testing.T) {
	payload := bytes.Repeat([]byte{0x80}, 1400)
	rw := newChatRW(blockResponse(payload) + "IDLE,0\n")
	dev := NewDevice(rw)

	got, err := dev.ReadBlock(":WAV:DATA?")
	if err != nil {
		t.Fatalf("block read error: %s", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(payload))
	}
	// The block terminator must not bleed into the next line read.
	next, err := dev.ReadString()
	if err != nil {
		t.Fatalf("followup read error: %s", err)
	}
	if next != "IDLE,0\n" {
		t.Errorf("followup read %q", next)
	}
}

func TestReadBlockNineDigitHeader(t *testing.T) {
	payload := []byte("abcdefgh")
	rw := newChatRW(fmt.Sprintf("#9%09d%s\n", len(payload), payload))
	dev := NewDevice(rw)
	got, err := dev.ReadBlock(":WAV:DATA?")
	if err != nil {
		t.Fatalf("block read error: %s", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload %q", got)
	}
}

func TestReadBlockEmptyPayload(t *testing.T) {
	rw := newChatRW("#10\n")
	dev := NewDevice(rw)
	got, err := dev.ReadBlock(":WAV:DATA?")
	if err != nil {
		t.Fatalf("block read error: %s", err)
	}
	if got != nil {
		t.Errorf("payload %v, want nil", got)
	}
}

func TestReadBlockBadHeader(t *testing.T) {
	cases := []struct {
		name string
		resp string
	}{
		{"missing hash", "9000000008abcdefgh\n"},
		{"zero digits", "#0\n"},
		{"alpha digits", "#2ab\n"},
		{"short payload", "#216abcd"},
	}
	for _, tc := range cases {
		rw := newChatRW(tc.resp)
		dev := NewDevice(rw)
		if _, err := dev.ReadBlock(":WAV:DATA?"); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
