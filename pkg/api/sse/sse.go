// Package sse writes Server-Sent Events to an HTTP response.
package sse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

const ContentType = "text/event-stream"

var (
	ErrClosed       = errors.New("event stream closed")
	ErrNotStreaming = errors.New("response writer does not support streaming")
)

// Stream is safe for concurrent use. After a failed write, all further writes fail with ErrClosed.
type Stream struct {
	lock    sync.Mutex
	writer  io.Writer
	flusher http.Flusher
	logger  log.FieldLogger
	closed  bool
	last    time.Time
}

// New writes the event stream response headers and returns a stream for the response body.
func New(w http.ResponseWriter, logger log.FieldLogger) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrNotStreaming
	}

	header := w.Header()
	header.Set("Content-Type", ContentType)
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		writer:  w,
		flusher: flusher,
		logger:  logger,
		last:    time.Now(),
	}, nil
}

func (s *Stream) write(frame string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := io.WriteString(s.writer, frame); err != nil {
		s.closed = true
		s.logger.Warnf("Write to event stream: %s", err)
		return err
	}
	s.flusher.Flush()
	s.last = time.Now()
	return nil
}

// Send writes one event. Multi-line data is split into several data fields.
// An empty event name leaves out the event field.
func (s *Stream) Send(event, data string) error {
	return s.send("", event, data)
}

// SendMessage writes an unnamed event, which browsers dispatch to onmessage.
// The id field carries a label for clients that need more than the data.
func (s *Stream) SendMessage(id, data string) error {
	return s.send(id, "", data)
}

func (s *Stream) send(id, event, data string) error {
	var b strings.Builder
	if len(id) > 0 {
		fmt.Fprintf(&b, "id: %s\n", id)
	}
	if len(event) > 0 {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", strings.TrimSuffix(line, "\r"))
	}
	b.WriteString("\n")
	return s.write(b.String())
}

func (s *Stream) SendJSON(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return s.Send(event, string(data))
}

// Heartbeat writes a comment line, which clients ignore.
func (s *Stream) Heartbeat() error {
	return s.write(": ping\n\n")
}

// KeepAlive sends heartbeats whenever nothing was written for one interval.
// It returns when ctx is done or the stream fails.
func (s *Stream) KeepAlive(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(s.LastActivity()) < interval/2 {
				continue
			}
			if err := s.Heartbeat(); err != nil {
				return
			}
		}
	}
}

func (s *Stream) LastActivity() time.Time {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.last
}

func (s *Stream) Close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true
}
