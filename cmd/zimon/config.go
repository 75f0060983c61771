// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil"
	"gopkg.in/yaml.v3"
)

// Config is the zimon configuration file.
type Config struct {
	Listen       string             `yaml:"listen"`
	PollInterval int64              `yaml:"poll_interval"` // seconds
	Log          LogConfig          `yaml:"log"`
	LogSamples   bool               `yaml:"log_samples"`
	Influx       InfluxConfig       `yaml:"influx"`
	Redis        RedisConfig        `yaml:"redis"`
	Instruments  []InstrumentConfig `yaml:"instruments"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"` // empty logs to stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type InfluxConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org"`
	Bucket  string `yaml:"bucket"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// InstrumentConfig names one instrument to poll. Kind selects the driver:
// "ds4000" connects over TCP to Addr, "qdac" opens the serial Port.
type InstrumentConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Addr     string `yaml:"addr"`
	Port     string `yaml:"port"`
	Baud     int    `yaml:"baud"`
	Channels []int  `yaml:"channels"`
}

// defaultConfigPath is where zimon looks for its config when -config is not
// given.
func defaultConfigPath() string {
	return filepath.Join(btcutil.AppDataDir("zimon", false), "zimon.yaml")
}

func defaultConfig() *Config {
	return &Config{
		Listen:       "localhost:8912",
		PollInterval: 5,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Channel: "labrig.samples",
		},
	}
}

// loadConfig reads the YAML file at path on top of the defaults, so an
// omitted field keeps its default value.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %s", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %s", err)
	}
	if cfg.PollInterval < 1 {
		cfg.PollInterval = 1
	}
	return cfg, nil
}
