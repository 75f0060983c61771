// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zi_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/gotmc/labrig/zi"
	"github.com/gotmc/labrig/zi/zisim"
)

func TestUHFLIAgainstSimulator(t *testing.T) {
	sim := zisim.New()
	u, err := zi.NewUHFLI(sim, "dev2043")
	if err != nil {
		t.Fatalf("creating driver: %s", err)
	}

	if err := u.SetOutputRange(1, 1.5); err != nil {
		t.Fatalf("setting output range: %s", err)
	}
	if err := u.SetOutputAmplitudeUnit(1, zi.Vrms); err != nil {
		t.Fatalf("setting amplitude unit: %s", err)
	}
	if err := u.SetOutputAmplitude(1, 0.5); err != nil {
		t.Fatalf("setting amplitude: %s", err)
	}
	raw, err := sim.GetDouble("/dev2043/sigouts/0/amplitudes/3")
	if err != nil {
		t.Fatalf("reading amplitude node: %s", err)
	}
	if want := 0.5 * math.Sqrt2 / 1.5; math.Abs(raw-want) > 1e-12 {
		t.Errorf("amplitude node holds %g, want %g", raw, want)
	}
	amp, err := u.OutputAmplitude(1)
	if err != nil {
		t.Fatalf("reading amplitude: %s", err)
	}
	if math.Abs(amp-0.5) > 1e-12 {
		t.Errorf("amplitude reads back as %g Vrms, want 0.5", amp)
	}

	sim.StoreSample("/dev2043/demods/0/sample", zi.Sample{X: 3e-3, Y: 4e-3})
	r, err := u.DemodR(1)
	if err != nil {
		t.Fatalf("reading demod R: %s", err)
	}
	if math.Abs(r-5e-3) > 1e-15 {
		t.Errorf("demod R is %g, want 5e-3", r)
	}

	if err := u.Close(); err != nil {
		t.Fatalf("closing driver: %s", err)
	}
	if err := u.SetOscillatorFrequency(1, 1e6); err == nil {
		t.Error("setting a frequency on a closed session did not fail")
	}
}

func TestUHFLIScopeAgainstSimulator(t *testing.T) {
	sim := zisim.New()
	u, err := zi.NewUHFLI(sim, "dev2043")
	if err != nil {
		t.Fatalf("creating driver: %s", err)
	}
	s, err := u.Scope()
	if err != nil {
		t.Fatalf("creating scope: %s", err)
	}
	mod, err := sim.ScopeModule()
	if err != nil {
		t.Fatalf("getting simulated module: %s", err)
	}
	simMod := mod.(*zisim.ScopeModule)
	simMod.SetProgressStep(0.5)

	if err := s.SetChannels(3); err != nil {
		t.Fatalf("selecting channels: %s", err)
	}
	if err := s.SetSamplingRate("27.5 kHz"); err != nil {
		t.Fatalf("setting sampling rate: %s", err)
	}
	if err := s.SetLength(4096); err != nil {
		t.Fatalf("setting length: %s", err)
	}

	ctx := context.Background()
	if err := s.Prepare(ctx); err != nil {
		t.Fatalf("preparing scope: %s", err)
	}
	trace, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquiring: %s", err)
	}
	if got := len(trace.Times); got != 4096 {
		t.Errorf("trace has %d time points, want 4096", got)
	}
	if trace.Times[0] != 0 {
		t.Errorf("trace starts at %g s, want 0", trace.Times[0])
	}
	if len(trace.Channel1) != 1 || len(trace.Channel1[0]) != 4096 {
		t.Errorf("channel 1 shape is %d × %d, want 1 × 4096",
			len(trace.Channel1), len(trace.Channel1[0]))
	}
	if len(trace.Channel2) != 1 {
		t.Errorf("channel 2 has %d segments, want 1", len(trace.Channel2))
	}
}

func TestUHFLIScopeSegmentedAgainstSimulator(t *testing.T) {
	sim := zisim.New()
	u, err := zi.NewUHFLI(sim, "dev2043")
	if err != nil {
		t.Fatalf("creating driver: %s", err)
	}
	s, err := u.Scope()
	if err != nil {
		t.Fatalf("creating scope: %s", err)
	}

	if err := s.SetChannels(1); err != nil {
		t.Fatalf("selecting channels: %s", err)
	}
	if err := s.SetLength(4096); err != nil {
		t.Fatalf("setting length: %s", err)
	}
	if err := s.SetSegments(true); err != nil {
		t.Fatalf("enabling segments: %s", err)
	}
	if err := s.SetSegmentCount(5); err != nil {
		t.Fatalf("setting segment count: %s", err)
	}

	ctx := context.Background()
	if err := s.Prepare(ctx); err != nil {
		t.Fatalf("preparing scope: %s", err)
	}
	trace, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquiring: %s", err)
	}
	if got := len(trace.Channel1); got != 5 {
		t.Fatalf("channel 1 has %d segments, want 5", got)
	}
	for i, seg := range trace.Channel1 {
		if len(seg) != 4096 {
			t.Errorf("segment %d has %d samples, want 4096", i, len(seg))
		}
	}
	if trace.Channel2 != nil {
		t.Error("channel 2 is not nil although it was not selected")
	}
}

func TestUHFLIScopeRetriesAgainstSimulator(t *testing.T) {
	sim := zisim.New()
	u, err := zi.NewUHFLI(sim, "dev2043")
	if err != nil {
		t.Fatalf("creating driver: %s", err)
	}
	s, err := u.Scope()
	if err != nil {
		t.Fatalf("creating scope: %s", err)
	}
	mod, err := sim.ScopeModule()
	if err != nil {
		t.Fatalf("getting simulated module: %s", err)
	}
	simMod := mod.(*zisim.ScopeModule)
	simMod.FailFirst(2)

	ramp := make([]float64, 4096)
	for i := range ramp {
		ramp[i] = float64(i)
	}
	simMod.ScriptWave(1, ramp)

	if err := s.SetChannels(1); err != nil {
		t.Fatalf("selecting channels: %s", err)
	}
	if err := s.SetLength(4096); err != nil {
		t.Fatalf("setting length: %s", err)
	}
	ctx := context.Background()
	if err := s.Prepare(ctx); err != nil {
		t.Fatalf("preparing scope: %s", err)
	}
	trace, err := s.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquiring: %s", err)
	}
	if got := simMod.Executions(); got != 3 {
		t.Errorf("module executed %d times, want 3", got)
	}
	if trace.Channel1[0][17] != 17 {
		t.Errorf("sample 17 is %g, want 17", trace.Channel1[0][17])
	}
}

func TestUHFLIScopeRetryBudgetAgainstSimulator(t *testing.T) {
	sim := zisim.New()
	u, err := zi.NewUHFLI(sim, "dev2043")
	if err != nil {
		t.Fatalf("creating driver: %s", err)
	}
	s, err := u.Scope()
	if err != nil {
		t.Fatalf("creating scope: %s", err)
	}
	mod, err := sim.ScopeModule()
	if err != nil {
		t.Fatalf("getting simulated module: %s", err)
	}
	simMod := mod.(*zisim.ScopeModule)
	simMod.SetRecordError(true)

	if err := s.SetChannels(1); err != nil {
		t.Fatalf("selecting channels: %s", err)
	}
	if err := s.SetLength(4096); err != nil {
		t.Fatalf("setting length: %s", err)
	}
	ctx := context.Background()
	if err := s.Prepare(ctx); err != nil {
		t.Fatalf("preparing scope: %s", err)
	}
	_, err = s.Acquire(ctx)
	if !errors.Is(err, zi.ErrAcquisition) {
		t.Fatalf("got %v, want ErrAcquisition", err)
	}
	if got := simMod.Executions(); got != 10 {
		t.Errorf("module executed %d times, want the full budget of 10", got)
	}
}

func TestHF2LIAgainstSimulator(t *testing.T) {
	sim := zisim.New()
	h, err := zi.NewHF2LI(sim, "dev1024")
	if err != nil {
		t.Fatalf("creating driver: %s", err)
	}
	if err := h.SetOutputRange(1, 1); err != nil {
		t.Fatalf("setting output range: %s", err)
	}
	if err := h.SetOutputAmplitude(1, 0.25); err != nil {
		t.Fatalf("setting amplitude: %s", err)
	}
	raw, err := sim.GetDouble("/dev1024/sigouts/0/amplitudes/6")
	if err != nil {
		t.Fatalf("reading amplitude node: %s", err)
	}
	if math.Abs(raw-0.25) > 1e-12 {
		t.Errorf("amplitude node holds %g, want 0.25", raw)
	}
	if err := h.SetOutputRange(1, 5); err == nil {
		t.Error("setting a range off the menu did not fail")
	}
}
