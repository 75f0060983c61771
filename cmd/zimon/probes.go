// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gotmc/labrig/comm"
	"github.com/gotmc/labrig/monitor"
	"github.com/gotmc/labrig/qdev"
	"github.com/gotmc/labrig/rigol"
)

const qdacDefaultBaud = 480600

// openInstrument connects to the configured instrument and returns its
// probes plus a cleanup that closes the connection. The monitor polls
// probes one at a time, so the drivers need no locking of their own.
func openInstrument(cfg InstrumentConfig, log *logrus.Logger) ([]monitor.Probe, func() error, error) {
	switch cfg.Kind {
	case "ds4000":
		return openScope(cfg, log)
	case "qdac":
		return openQDac(cfg, log)
	}
	return nil, nil, fmt.Errorf("unknown instrument kind %q", cfg.Kind)
}

// openScope dials a DS4000 and exposes the peak-to-peak amplitude of each
// configured channel.
func openScope(cfg InstrumentConfig, log *logrus.Logger) ([]monitor.Probe, func() error, error) {
	conn, err := comm.OpenTCP(cfg.Addr, 5*time.Second)
	if err != nil {
		return nil, nil, err
	}
	scope, err := rigol.NewDS4000(conn)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	log.Infof("connected to %s: %s", cfg.Name, scope.ID())

	channels := cfg.Channels
	if len(channels) == 0 {
		channels = []int{1}
	}
	var probes []monitor.Probe
	for _, ch := range channels {
		ch := ch
		probes = append(probes, monitor.Probe{
			Name: fmt.Sprintf("%s.ch%d.amplitude", cfg.Name, ch),
			Unit: "V",
			Read: func() (float64, error) { return scope.Amplitude(ch) },
		})
	}
	return probes, conn.Close, nil
}

// openQDac opens the serial port and exposes voltage and current for each
// configured channel plus the temperature of the first main board.
func openQDac(cfg InstrumentConfig, log *logrus.Logger) ([]monitor.Probe, func() error, error) {
	baud := cfg.Baud
	if baud == 0 {
		baud = qdacDefaultBaud
	}
	port, err := comm.OpenSerial(cfg.Port, baud)
	if err != nil {
		return nil, nil, err
	}
	dac, err := qdev.NewQDac(port)
	if err != nil {
		port.Close()
		return nil, nil, err
	}
	log.Infof("connected to %s: QDac firmware %s", cfg.Name, dac.Version())

	channels := cfg.Channels
	if len(channels) == 0 {
		channels = []int{1}
	}
	var probes []monitor.Probe
	for _, ch := range channels {
		ch := ch
		probes = append(probes,
			monitor.Probe{
				Name: fmt.Sprintf("%s.ch%02d.voltage", cfg.Name, ch),
				Unit: "V",
				Read: func() (float64, error) { return dac.Voltage(ch) },
			},
			monitor.Probe{
				Name: fmt.Sprintf("%s.ch%02d.current", cfg.Name, ch),
				Unit: "A",
				Read: func() (float64, error) { return dac.Current(ch) },
			},
		)
	}
	probes = append(probes, monitor.Probe{
		Name: cfg.Name + ".board0.temperature",
		Unit: "C",
		Read: func() (float64, error) { return dac.Temperature(0, 0) },
	})
	return probes, dac.Close, nil
}
