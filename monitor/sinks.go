// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package monitor

import (
	"context"
	"encoding/json"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PromSink exports the latest value of every probe as a Prometheus gauge
// labeled by probe name and unit.
type PromSink struct {
	gauge *prometheus.GaugeVec
}

// NewPromSink registers the probe gauge with the given registry.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	return &PromSink{
		gauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "labrig_probe_value",
			Help: "Latest value read from each probe.",
		}, []string{"probe", "unit"}),
	}
}

// Push records the latest value of each sample's probe.
func (s *PromSink) Push(_ context.Context, batch []Sample) error {
	for _, smp := range batch {
		s.gauge.WithLabelValues(smp.Name, smp.Unit).Set(smp.Value)
	}
	return nil
}

// Close is a no-op; the registry owns the gauge.
func (s *PromSink) Close() error { return nil }

// InfluxSink writes samples to an InfluxDB bucket through the client's
// non-blocking write API, one measurement per probe name with the unit as a
// tag.
type InfluxSink struct {
	client influxdb2.Client
	write  api.WriteAPI
}

// NewInfluxSink connects the sink to a bucket. The client does not dial
// until the first flush, so errors surface through the write API's error
// channel and the logs, not here.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	client := influxdb2.NewClient(url, token)
	return &InfluxSink{
		client: client,
		write:  client.WriteAPI(org, bucket),
	}
}

// Push queues one point per sample for asynchronous writing.
func (s *InfluxSink) Push(_ context.Context, batch []Sample) error {
	for _, smp := range batch {
		p := influxdb2.NewPoint(
			smp.Name,
			map[string]string{"unit": smp.Unit},
			map[string]interface{}{"value": smp.Value},
			smp.At,
		)
		s.write.WritePoint(p)
	}
	return nil
}

// Close flushes queued points and shuts the client down.
func (s *InfluxSink) Close() error {
	s.write.Flush()
	s.client.Close()
	return nil
}

// redisKeep is how many recent samples the backup list retains.
const redisKeep = 1000

// RedisSink publishes each sample as JSON on a pub/sub channel and keeps a
// capped backup of recent samples in a list named after the channel.
type RedisSink struct {
	client  *redis.Client
	channel string
	list    string
	log     *logrus.Logger
}

// NewRedisSink connects to the Redis server and verifies the connection
// with a ping.
func NewRedisSink(addr, password string, db int, channel string, log *logrus.Logger) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "connecting to redis")
	}
	return &RedisSink{
		client:  client,
		channel: channel,
		list:    channel + ":recent",
		log:     log,
	}, nil
}

// Push publishes every sample and appends it to the backup list. A failed
// backup write is logged but does not fail the push.
func (s *RedisSink) Push(ctx context.Context, batch []Sample) error {
	for _, smp := range batch {
		data, err := json.Marshal(smp)
		if err != nil {
			return errors.Wrap(err, "marshaling sample")
		}
		if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
			return errors.Wrap(err, "publishing sample")
		}
		if err := s.client.LPush(ctx, s.list, data).Err(); err != nil {
			s.log.Warnf("redis backup list push failed: %s", err)
			continue
		}
		s.client.LTrim(ctx, s.list, 0, redisKeep-1)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisSink) Close() error { return s.client.Close() }

// LogSink writes every sample to a logrus logger. Useful when bringing up a
// probe setup.
type LogSink struct {
	Log *logrus.Logger
}

// Push logs one line per sample.
func (s *LogSink) Push(_ context.Context, batch []Sample) error {
	for _, smp := range batch {
		s.Log.WithFields(logrus.Fields{
			"probe": smp.Name,
			"value": smp.Value,
			"unit":  smp.Unit,
		}).Info("sample")
	}
	return nil
}

// Close is a no-op.
func (s *LogSink) Close() error { return nil }
