// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package monitor polls instrument probes at a fixed interval and fans the
// readings out to pluggable sinks: an SSE stream for browsers, Prometheus
// gauges, InfluxDB, Redis pub/sub, or a plain log.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

var (
	// ErrRunning is returned by Start when the monitor is already started.
	ErrRunning = errors.New("monitor already running")

	// ErrNotRunning is returned by Stop when the monitor is not started.
	ErrNotRunning = errors.New("monitor not running")
)

// Probe reads one numeric quantity from an instrument.
type Probe struct {
	Name string
	Unit string
	Read func() (float64, error)
}

// Sample is one probe reading.
type Sample struct {
	At    time.Time `json:"at"`
	Name  string    `json:"name"`
	Unit  string    `json:"unit"`
	Value float64   `json:"value"`
}

// Sink receives batches of samples. Push is called from the polling loop,
// so a sink that can stall should buffer or drop instead of blocking.
type Sink interface {
	Push(ctx context.Context, batch []Sample) error
	Close() error
}

// Monitor reads every probe once per interval and pushes each batch of
// samples to every sink. A probe that fails to read is logged and skipped
// for that tick; a sink that fails to push is logged and counted.
type Monitor struct {
	interval time.Duration
	probes   []Probe
	sinks    []Sink
	log      *logrus.Logger
	reg      prometheus.Registerer

	running int32 // used atomically
	quit    chan struct{}
	wg      sync.WaitGroup

	pushes      prometheus.Counter
	pushErrors  prometheus.Counter
	probeErrors *prometheus.CounterVec
}

// Option applies an option to the monitor.
type Option func(*Monitor)

// WithLogger routes the monitor's warnings to the given logger.
func WithLogger(log *logrus.Logger) Option { return func(m *Monitor) { m.log = log } }

// WithRegisterer selects the Prometheus registry for the monitor's own
// counters. The default registry is used otherwise.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(m *Monitor) { m.reg = reg }
}

// New creates a monitor polling at the given interval. Probes and sinks are
// added with AddProbe and AddSink before Start.
func New(interval time.Duration, opts ...Option) *Monitor {
	m := Monitor{
		interval: interval,
		log:      logrus.StandardLogger(),
		reg:      prometheus.DefaultRegisterer,
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(&m)
	}
	factory := promauto.With(m.reg)
	m.pushes = factory.NewCounter(prometheus.CounterOpts{
		Name: "labrig_monitor_pushes_total",
		Help: "Sample batches delivered to a sink.",
	})
	m.pushErrors = factory.NewCounter(prometheus.CounterOpts{
		Name: "labrig_monitor_push_errors_total",
		Help: "Sink pushes that returned an error.",
	})
	m.probeErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "labrig_monitor_probe_errors_total",
		Help: "Failed probe reads by probe name.",
	}, []string{"probe"})
	return &m
}

// AddProbe adds a probe to the poll list. All probes must be added before
// Start.
func (m *Monitor) AddProbe(p Probe) { m.probes = append(m.probes, p) }

// AddSink adds a sink to the fan-out list. All sinks must be added before
// Start.
func (m *Monitor) AddSink(s Sink) { m.sinks = append(m.sinks, s) }

// Running reports whether the polling loop is active.
func (m *Monitor) Running() bool { return atomic.LoadInt32(&m.running) == 1 }

// Start launches the polling loop.
func (m *Monitor) Start() error {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return ErrRunning
	}
	m.wg.Add(1)
	go m.loop()
	return nil
}

// Stop halts the polling loop and waits for it to finish the tick in
// progress. The monitor can be started again afterwards.
func (m *Monitor) Stop() error {
	if !atomic.CompareAndSwapInt32(&m.running, 1, 0) {
		return ErrNotRunning
	}
	m.quit <- struct{}{}
	m.wg.Wait()
	return nil
}

// Close stops the monitor if it is running and closes every sink,
// aggregating their errors.
func (m *Monitor) Close() error {
	var errs error
	if err := m.Stop(); err != nil && !errors.Is(err, ErrNotRunning) {
		errs = multierr.Append(errs, err)
	}
	for _, s := range m.sinks {
		errs = multierr.Append(errs, s.Close())
	}
	return errs
}

func (m *Monitor) loop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.poll()
		case <-m.quit:
			return
		}
	}
}

// poll reads every probe once and pushes the resulting batch to every sink.
func (m *Monitor) poll() {
	now := time.Now()
	batch := make([]Sample, 0, len(m.probes))
	for _, p := range m.probes {
		v, err := p.Read()
		if err != nil {
			m.probeErrors.WithLabelValues(p.Name).Inc()
			m.log.WithField("probe", p.Name).Warnf("probe read failed: %s", err)
			continue
		}
		batch = append(batch, Sample{At: now, Name: p.Name, Unit: p.Unit, Value: v})
	}
	if len(batch) == 0 {
		return
	}
	// A push has until the next tick to finish.
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()
	for _, s := range m.sinks {
		if err := s.Push(ctx, batch); err != nil {
			m.pushErrors.Inc()
			m.log.Warnf("sink push failed: %s", err)
			continue
		}
		m.pushes.Inc()
	}
}
