package store

import (
	"context"
	"sync"

	"github.com/nais/botdeploy/pkg/logging"
	"github.com/nais/botdeploy/pkg/metrics"
)

// Observed wraps a Store and publishes every successful upsert to its subscribers.
type Observed struct {
	Store

	lock        sync.RWMutex
	subscribers map[context.Context]chan<- Record
}

var _ Store = &Observed{}

func NewObserved(backend Store) *Observed {
	return &Observed{
		Store:       backend,
		subscribers: make(map[context.Context]chan<- Record),
	}
}

func (o *Observed) Upsert(ctx context.Context, record Record) error {
	err := o.Store.Upsert(ctx, record)
	if err != nil {
		return err
	}

	stored, err := o.Store.Get(ctx, record.Name)
	if err != nil {
		logging.BotLogger(record.Name).Warnf("Read back upserted record: %s", err)
		stored = &record
	}

	o.publish(*stored)

	return nil
}

// publish never blocks; a subscriber that is not ready misses the record.
func (o *Observed) publish(record Record) {
	o.lock.RLock()
	defer o.lock.RUnlock()

	for _, channel := range o.subscribers {
		select {
		case channel <- record:
		default:
			logging.BotLogger(record.Name).Debugf("Event subscriber is lagging, dropping record")
		}
	}
}

// Subscribe delivers upserted records on channel until ctx is done, then closes channel.
// It blocks for the lifetime of the subscription.
func (o *Observed) Subscribe(ctx context.Context, channel chan<- Record) {
	o.lock.Lock()
	o.subscribers[ctx] = channel
	metrics.SetEventSubscribers(len(o.subscribers))
	o.lock.Unlock()

	<-ctx.Done()

	o.lock.Lock()
	delete(o.subscribers, ctx)
	metrics.SetEventSubscribers(len(o.subscribers))
	o.lock.Unlock()

	close(channel)
}

func (o *Observed) Subscribers() int {
	o.lock.RLock()
	defer o.lock.RUnlock()
	return len(o.subscribers)
}
