// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// clientBuffer is the number of batches queued per SSE client before the
// hub starts dropping for that client.
const clientBuffer = 8

// SSEHub streams sample batches to browsers as server-sent events, one JSON
// array per `data:` line. Each client gets its own buffered channel; a
// client that cannot keep up has batches dropped rather than stalling the
// polling loop.
type SSEHub struct {
	log *logrus.Logger

	mu      sync.Mutex
	nextID  int
	clients map[int]chan []Sample
	closed  bool
}

// NewSSEHub creates a hub with no clients. The hub is an http.Handler and a
// Sink.
func NewSSEHub(log *logrus.Logger) *SSEHub {
	return &SSEHub{
		log:     log,
		clients: make(map[int]chan []Sample),
	}
}

// Clients returns the number of connected clients.
func (h *SSEHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Push fans the batch out to every connected client without blocking.
func (h *SSEHub) Push(_ context.Context, batch []Sample) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.clients {
		select {
		case ch <- batch:
		default:
			h.log.Warnf("sse client %d is not keeping up, dropping batch", id)
		}
	}
	return nil
}

// Close disconnects every client and refuses new ones.
func (h *SSEHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for _, ch := range h.clients {
		close(ch)
	}
	h.clients = make(map[int]chan []Sample)
	return nil
}

// ServeHTTP subscribes the caller to the sample stream until the client
// disconnects or the hub closes.
func (h *SSEHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	ch, id, err := h.subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer h.unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case batch, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(batch)
			if err != nil {
				h.log.Warnf("marshaling sse batch: %s", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *SSEHub) subscribe() (chan []Sample, int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, 0, errors.New("sse hub is closed")
	}
	id := h.nextID
	h.nextID++
	ch := make(chan []Sample, clientBuffer)
	h.clients[id] = ch
	return ch, id, nil
}

func (h *SSEHub) unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}
