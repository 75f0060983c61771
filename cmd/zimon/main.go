// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// zimon polls lab instruments and serves the readings as an SSE stream,
// Prometheus metrics, and optional InfluxDB/Redis feeds.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gotmc/labrig/monitor"
)

func main() {
	configFile := flag.String("config", defaultConfigPath(), "path to the config file")
	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "zimon: %s\n", err)
		os.Exit(1)
	}
	log := setupLogger(cfg.Log)
	log.Infof("zimon starting with config %s", *configFile)

	reg := prometheus.NewRegistry()
	mon := monitor.New(time.Duration(cfg.PollInterval)*time.Second,
		monitor.WithLogger(log), monitor.WithRegisterer(reg))

	hub := monitor.NewSSEHub(log)
	mon.AddSink(hub)
	mon.AddSink(monitor.NewPromSink(reg))
	if cfg.Influx.Enabled {
		mon.AddSink(monitor.NewInfluxSink(
			cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket))
		log.Infof("influx sink enabled, bucket %s", cfg.Influx.Bucket)
	}
	if cfg.Redis.Enabled {
		sink, err := monitor.NewRedisSink(
			cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, log)
		if err != nil {
			log.Fatalf("redis sink: %s", err)
		}
		mon.AddSink(sink)
		log.Infof("redis sink enabled, channel %s", cfg.Redis.Channel)
	}
	if cfg.LogSamples {
		mon.AddSink(&monitor.LogSink{Log: log})
	}

	var cleanups []func() error
	for _, inst := range cfg.Instruments {
		probes, cleanup, err := openInstrument(inst, log)
		if err != nil {
			log.Fatalf("opening %s (%s): %s", inst.Name, inst.Kind, err)
		}
		cleanups = append(cleanups, cleanup)
		for _, p := range probes {
			mon.AddProbe(p)
		}
		log.Infof("%s contributes %d probes", inst.Name, len(probes))
	}

	if err := mon.Start(); err != nil {
		log.Fatalf("starting monitor: %s", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/events", hub)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if !mon.Running() {
			http.Error(w, "monitor stopped", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})
	srv := &http.Server{Addr: cfg.Listen, Handler: mux}
	go func() {
		log.Infof("listening on http://%s", cfg.Listen)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %s", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	log.Infof("received %s, shutting down", sig)

	// Closing the monitor first also closes the SSE hub, which releases the
	// streaming handlers so the HTTP shutdown is not stuck behind them.
	if err := mon.Close(); err != nil {
		log.Warnf("closing monitor: %s", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warnf("http shutdown: %s", err)
	}
	for _, cleanup := range cleanups {
		if err := cleanup(); err != nil {
			log.Warnf("closing instrument: %s", err)
		}
	}
	log.Info("zimon stopped")
}

func setupLogger(cfg LogConfig) *logrus.Logger {
	log := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	if cfg.File != "" {
		log.SetOutput(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		})
	}
	return log
}
