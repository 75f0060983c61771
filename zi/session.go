// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package zi provides drivers for Zurich Instruments lock-in amplifiers
// through the LabOne node tree. The data server connection is abstracted
// behind the Session interface so that the drivers can run against a real
// LabOne binding or against the zisim reference simulator.
package zi

import (
	"fmt"
	"math"
)

// LabOne API levels the drivers are written against. The session passed to
// a driver constructor must be connected at the matching level.
const (
	APILevelHF2 = 1
	APILevelUHF = 5
)

// Sample is one demodulator output record.
type Sample struct {
	X         float64
	Y         float64
	Frequency float64
	Phase     float64
	DIO       uint32
	Trigger   uint32
	AuxIn0    float64
	AuxIn1    float64
	Timestamp uint64
}

// R returns the demodulated amplitude sqrt(x²+y²) in volts.
func (s Sample) R() float64 {
	return math.Hypot(s.X, s.Y)
}

// Phi returns the demodulated phase angle in degrees.
func (s Sample) Phi() float64 {
	return math.Atan2(s.Y, s.X) * 180 / math.Pi
}

// Session is a connection to a LabOne data server scoped to one device.
// Paths are absolute node-tree paths such as /dev2109/demods/0/rate.
type Session interface {
	SetInt(path string, value int) error
	GetInt(path string) (int, error)
	SetDouble(path string, value float64) error
	GetDouble(path string) (float64, error)
	GetSample(path string) (Sample, error)
	// Sync blocks until every previous set has taken effect on the device.
	Sync() error
	// ScopeModule instantiates a scope streaming module on the session.
	ScopeModule() (ScopeModule, error)
	Close() error
}

// ScopeRecord is one record hauled from the scope module. Wave holds the
// two scope channels back to back, segments × length samples each; a
// channel that was not enabled is nil.
type ScopeRecord struct {
	Error bool
	Wave  [2][]float64
}

// ScopeModule is a LabOne scope streaming module. Settings are module
// paths relative to scopeModule/, such as mode or averager/weight.
type ScopeModule interface {
	Subscribe(path string) error
	SetInt(setting string, value int) error
	SetDouble(setting string, value float64) error
	GetInt(setting string) (int, error)
	Execute() error
	Progress() (float64, error)
	Read() ([]ScopeRecord, error)
	Finish() error
}

// nodePath builds a device node path from a 1-based module index, so
// nodePath("dev2109", "demods", 1, "rate") is /dev2109/demods/0/rate.
func nodePath(device, module string, number int, setting string) string {
	return fmt.Sprintf("/%s/%s/%d/%s", device, module, number-1, setting)
}
