// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package zisim

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/gotmc/labrig/zi"
)

// ScopeModule is an in-memory stand-in for the LabOne scope streaming
// module. It implements zi.ScopeModule. Each Execute fabricates one
// record shaped after the scope nodes of the owning session; knobs
// control progress ramping and injected failures.
type ScopeModule struct {
	sess *Session

	mu           sync.Mutex
	ints         map[string]int
	doubles      map[string]float64
	device       string
	executing    bool
	progress     float64
	progressStep float64
	failFirst    int
	executes     int
	recordError  bool
	waves        map[int][]float64
}

// Subscribe registers a wave node, e.g. "/dev2043/scopes/0/wave", and
// learns the device ID from it.
func (m *ScopeModule) Subscribe(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 3 || parts[1] == "" {
		return errors.Errorf("malformed subscription path %q", path)
	}
	m.device = parts[1]
	return nil
}

// SetInt writes a module setting.
func (m *ScopeModule) SetInt(setting string, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ints[setting] = value
	return nil
}

// SetDouble writes a floating point module setting.
func (m *ScopeModule) SetDouble(setting string, value float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doubles[setting] = value
	return nil
}

// GetInt reads a module setting.
func (m *ScopeModule) GetInt(setting string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ints[setting], nil
}

// Execute starts an acquisition. The first FailFirst executions raise
// the module error flag.
func (m *ScopeModule) Execute() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executes++
	m.executing = true
	m.progress = 0
	if m.executes <= m.failFirst {
		m.ints["error"] = 1
	} else {
		m.ints["error"] = 0
	}
	return nil
}

// Progress advances by the progress step (default 1, i.e. done on the
// first poll) and returns the new value, capped at 1.
func (m *ScopeModule) Progress() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step := m.progressStep
	if step <= 0 {
		step = 1
	}
	m.progress += step
	if m.progress > 1 {
		m.progress = 1
	}
	return m.progress, nil
}

// Read fabricates one record shaped after the scope nodes of the owning
// session: selected channels carry segments × length samples, either
// scripted through ScriptWave or a synthesized sine.
func (m *ScopeModule) Read() ([]zi.ScopeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device == "" {
		return nil, errors.New("nothing subscribed")
	}
	node := func(s string) string { return fmt.Sprintf("/%s/scopes/0/%s", m.device, s) }
	sel, err := m.sess.GetInt(node("channel"))
	if err != nil {
		return nil, err
	}
	npts, err := m.sess.GetInt(node("length"))
	if err != nil {
		return nil, err
	}
	segs := 1
	if on, err := m.sess.GetInt(node("segments/enable")); err != nil {
		return nil, err
	} else if on != 0 {
		if n, err := m.sess.GetInt(node("segments/count")); err != nil {
			return nil, err
		} else if n > 0 {
			segs = n
		}
	}

	rec := zi.ScopeRecord{Error: m.recordError}
	for ch := 1; ch <= 2; ch++ {
		if sel&ch == 0 {
			continue
		}
		if w, ok := m.waves[ch]; ok {
			rec.Wave[ch-1] = w
			continue
		}
		rec.Wave[ch-1] = synthWave(segs * npts)
	}
	return []zi.ScopeRecord{rec}, nil
}

// Finish releases the acquisition.
func (m *ScopeModule) Finish() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executing = false
	return nil
}

// SetProgressStep sets how much each Progress poll advances, e.g. 0.25
// for completion on the fourth poll.
func (m *ScopeModule) SetProgressStep(step float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progressStep = step
}

// FailFirst raises the module error flag on the first n executions.
func (m *ScopeModule) FailFirst(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFirst = n
}

// SetRecordError marks every fabricated record as errored.
func (m *ScopeModule) SetRecordError(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordError = on
}

// ScriptWave fixes the flat sample data returned for a channel instead
// of the synthesized sine.
func (m *ScopeModule) ScriptWave(ch int, samples []float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.waves == nil {
		m.waves = make(map[int][]float64)
	}
	m.waves[ch] = samples
}

// Executions returns how many acquisitions have been started.
func (m *ScopeModule) Executions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executes
}

func synthWave(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Sin(2 * math.Pi * float64(i) / float64(n))
	}
	return w
}
