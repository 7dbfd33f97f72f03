package sse_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nais/botdeploy/pkg/api/sse"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedRecorder guards the recorded body so that it can be read while a writer goroutine is active.
type lockedRecorder struct {
	lock sync.Mutex
	*httptest.ResponseRecorder
}

func (r *lockedRecorder) Write(p []byte) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *lockedRecorder) Flush() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.ResponseRecorder.Flush()
}

func (r *lockedRecorder) body() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.ResponseRecorder.Body.String()
}

type failingWriter struct {
	header http.Header
}

func (w *failingWriter) Header() http.Header {
	return w.header
}

func (w *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("broken pipe")
}

func (w *failingWriter) WriteHeader(int) {}

func (w *failingWriter) Flush() {}

type plainWriter struct {
	http.ResponseWriter
}

func TestNewSetsHeaders(t *testing.T) {
	recorder := httptest.NewRecorder()
	_, err := sse.New(recorder, log.StandardLogger())
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, sse.ContentType, recorder.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", recorder.Header().Get("Cache-Control"))
	assert.True(t, recorder.Flushed)
}

func TestNewRequiresFlusher(t *testing.T) {
	_, err := sse.New(plainWriter{httptest.NewRecorder()}, log.StandardLogger())
	assert.ErrorIs(t, err, sse.ErrNotStreaming)
}

func TestSend(t *testing.T) {
	recorder := httptest.NewRecorder()
	stream, err := sse.New(recorder, log.StandardLogger())
	require.NoError(t, err)

	require.NoError(t, stream.Send("created", "Created app my-bot"))
	require.NoError(t, stream.Send("", "first\nsecond"))
	require.NoError(t, stream.SendJSON("bot", map[string]string{"name": "my-bot"}))

	expected := "event: created\ndata: Created app my-bot\n\n" +
		"data: first\ndata: second\n\n" +
		"event: bot\ndata: {\"name\":\"my-bot\"}\n\n"
	assert.Equal(t, expected, recorder.Body.String())
}

func TestSendMessage(t *testing.T) {
	recorder := httptest.NewRecorder()
	stream, err := sse.New(recorder, log.StandardLogger())
	require.NoError(t, err)

	require.NoError(t, stream.SendMessage("building", "Build started"))
	require.NoError(t, stream.SendMessage("", "plain"))

	expected := "id: building\ndata: Build started\n\n" +
		"data: plain\n\n"
	assert.Equal(t, expected, recorder.Body.String())
	assert.NotContains(t, recorder.Body.String(), "event:")
}

func TestClosedStreamRejectsWrites(t *testing.T) {
	recorder := httptest.NewRecorder()
	stream, err := sse.New(recorder, log.StandardLogger())
	require.NoError(t, err)

	stream.Close()
	assert.ErrorIs(t, stream.Send("created", "hello"), sse.ErrClosed)
	assert.ErrorIs(t, stream.Heartbeat(), sse.ErrClosed)
	assert.Empty(t, recorder.Body.String())
}

func TestFailedWriteClosesStream(t *testing.T) {
	stream, err := sse.New(&failingWriter{header: make(http.Header)}, log.StandardLogger())
	require.NoError(t, err)

	assert.Error(t, stream.Send("created", "hello"))
	assert.ErrorIs(t, stream.Send("created", "hello"), sse.ErrClosed)
}

func TestKeepAlive(t *testing.T) {
	recorder := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}
	stream, err := sse.New(recorder, log.StandardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		stream.KeepAlive(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(recorder.body(), ": ping\n\n")
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepalive did not stop when the context was canceled")
	}
}
