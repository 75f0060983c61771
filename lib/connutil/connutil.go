// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package connutil wires the connection flags and opening shared by the
// example programs into one call.
package connutil

import (
	"flag"
	"io"
	"log"
	"time"

	"go.uber.org/multierr"

	"github.com/gotmc/labrig/comm"
	"github.com/gotmc/labrig/lib/find"
)

// Conn holds the connection settings for one instrument. Fields set before
// AddFlags become the flag defaults.
type Conn struct {
	SerialPort string
	Addr       string
	Baud       int
	Delay      time.Duration
	Debug      bool

	tty     string
	finderr error
}

// AddFlags registers the connection flags and is to be called before
// [flag.Parse]. The -port default comes from walking sysfs with filter, so
// -help shows the instrument actually attached.
func (c *Conn) AddFlags(filter find.FilterFn) {
	c.addFlags(flag.CommandLine, filter)
}

func (c *Conn) addFlags(fs *flag.FlagSet, filter find.FilterFn) {
	c.tty, c.finderr = find.Find(filter)
	if c.finderr != nil {
		log.Printf("locating serial port failed, guessing ttyUSB0: %s", c.finderr)
		c.tty = "ttyUSB0"
	}
	if c.Baud == 0 {
		c.Baud = 115200
	}

	fs.StringVar(&c.SerialPort, "port", "/dev/"+c.tty, "serial port for the instrument")
	fs.StringVar(&c.Addr, "addr", c.Addr, "TCP address; overrides the serial port when set")
	fs.IntVar(&c.Baud, "baud", c.Baud, "serial baud rate")
	fs.DurationVar(&c.Delay, "delay", c.Delay, "delay between writes")
	fs.BoolVar(&c.Debug, "debug", c.Debug, "log every command and reply")
}

// Setup opens the connection the flags describe and is to be called after
// [flag.Parse]. It returns the raw connection for drivers that take an
// io.ReadWriter, a Device built on it with opts for direct command traffic,
// and a cleanup func that drains and closes the connection.
func (c *Conn) Setup(opts ...comm.Option) (io.ReadWriteCloser, *comm.Device, func() error, error) {
	log.SetFlags(log.Lmicroseconds)

	var (
		rwc io.ReadWriteCloser
		err error
	)
	if c.Addr != "" {
		log.Printf("connecting to %s", c.Addr)
		rwc, err = comm.OpenTCP(c.Addr, 5*time.Second)
	} else {
		log.Printf("opening %s at %d baud", c.SerialPort, c.Baud)
		rwc, err = comm.OpenSerial(c.SerialPort, c.Baud)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	devOpts := make([]comm.Option, 0, len(opts)+2)
	if c.Delay > 0 {
		devOpts = append(devOpts, comm.WithWriteDelay(c.Delay))
	}
	if c.Debug {
		devOpts = append(devOpts, comm.WithDebug())
	}
	devOpts = append(devOpts, opts...)

	return rwc, comm.NewDevice(rwc, devOpts...), closeFunc(rwc), nil
}

// closeFunc discards any unread data when the connection supports that,
// then closes it, keeping every error.
func closeFunc(rwc io.ReadWriteCloser) func() error {
	return func() error {
		var errs error
		switch p := rwc.(type) {
		case interface{ ResetInputBuffer() error }:
			errs = multierr.Append(errs, p.ResetInputBuffer())
		case interface{ Flush() error }:
			errs = multierr.Append(errs, p.Flush())
		}
		return multierr.Append(errs, rwc.Close())
	}
}
