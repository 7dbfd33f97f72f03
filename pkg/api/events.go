package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/nais/botdeploy/pkg/api/middleware"
	"github.com/nais/botdeploy/pkg/api/sse"
	"github.com/nais/botdeploy/pkg/store"
	log "github.com/sirupsen/logrus"
)

const EventBot = "bot"

// EventSource delivers upserted records to ch until ctx is done, then closes ch.
type EventSource interface {
	Subscribe(ctx context.Context, ch chan<- store.Record)
}

var _ EventSource = &store.Observed{}

type EventHandler struct {
	Source            EventSource
	HeartbeatInterval time.Duration
	BufferSize        int
}

// ServeHTTP streams every upserted bot record until the client goes away.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := log.WithFields(middleware.RequestLogFields(r))

	stream, err := sse.New(w, logger)
	if err != nil {
		respondMessage(w, r, http.StatusInternalServerError, err.Error())
		logger.Error(err)
		return
	}
	defer stream.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	interval := h.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	size := h.BufferSize
	if size <= 0 {
		size = 16
	}

	records := make(chan store.Record, size)
	wg := &sync.WaitGroup{}
	wg.Add(2)
	go func() {
		defer wg.Done()
		h.Source.Subscribe(ctx, records)
	}()
	go func() {
		defer wg.Done()
		stream.KeepAlive(ctx, interval)
	}()

	logger.Debugf("Event subscriber connected")

	for record := range records {
		if err := stream.SendJSON(EventBot, record); err != nil {
			cancel()
		}
	}

	wg.Wait()
	logger.Debugf("Event subscriber disconnected")
}
