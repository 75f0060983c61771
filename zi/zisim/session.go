// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package zisim provides an in-memory LabOne session for tests and
// examples. It stores node values in maps and fabricates scope data, so
// drivers in the zi package can run without a data server.
package zisim

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/gotmc/labrig/zi"
)

// Session is an in-memory stand-in for a LabOne data server connection.
// It implements zi.Session. Node reads return the zero value until a
// value is written, like fresh nodes on a real device.
type Session struct {
	mu      sync.RWMutex
	ints    map[string]int
	doubles map[string]float64
	samples map[string]zi.Sample
	syncs   int
	closed  bool
	mod     *ScopeModule
}

// New returns an empty simulated session.
func New() *Session {
	return &Session{
		ints:    make(map[string]int),
		doubles: make(map[string]float64),
		samples: make(map[string]zi.Sample),
	}
}

func (s *Session) check() error {
	if s.closed {
		return errors.New("session closed")
	}
	return nil
}

// SetInt writes an integer node.
func (s *Session) SetInt(path string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.ints[path] = value
	return nil
}

// GetInt reads an integer node.
func (s *Session) GetInt(path string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.ints[path], nil
}

// SetDouble writes a floating point node.
func (s *Session) SetDouble(path string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.doubles[path] = value
	return nil
}

// GetDouble reads a floating point node.
func (s *Session) GetDouble(path string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return 0, err
	}
	return s.doubles[path], nil
}

// GetSample reads a demodulator sample node. Use StoreSample to script
// the sample returned for a path.
func (s *Session) GetSample(path string) (zi.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return zi.Sample{}, err
	}
	return s.samples[path], nil
}

// StoreSample scripts the sample returned by GetSample for the path.
func (s *Session) StoreSample(path string, smp zi.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[path] = smp
}

// Sync flushes the (imaginary) command queue.
func (s *Session) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}
	s.syncs++
	return nil
}

// Syncs returns how many times Sync has been called.
func (s *Session) Syncs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.syncs
}

// ScopeModule returns the simulated scope streaming module. Repeated
// calls return the same module.
func (s *Session) ScopeModule() (zi.ScopeModule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.mod == nil {
		s.mod = &ScopeModule{sess: s, ints: make(map[string]int), doubles: make(map[string]float64)}
	}
	return s.mod, nil
}

// Close marks the session closed. Further operations fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
