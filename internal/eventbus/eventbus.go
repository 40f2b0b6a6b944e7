// Package eventbus is a topic keyed publish/subscribe registry.
//
// Publish runs every handler of a topic synchronously on the caller's goroutine, in the
// order the handlers were subscribed, and hands back what each of them returned.
package eventbus

import (
	"aewatch/internal/components/assert"
	"aewatch/internal/components/telemetry"
	"context"
	"errors"
	"fmt"
	"sync"
)

const (
	report_bus_publish = "bus.publish"
)

// ErrSubscriberFailure wraps a panic raised by a handler during Publish.
var ErrSubscriberFailure = fmt.Errorf("subscriber failed")

// SubscriptionID identifies one registration, the same handler subscribed twice gets two ids.
type SubscriptionID uint64

// Handler is called with the topic it was published under and the payload.
type Handler[P any] func(ctx context.Context, topic string, payload P) (any, error)

// Result is what a single subscription produced during a publish.
type Result struct {
	Subscription SubscriptionID
	Value        any
	Err          error
}

// Results are ordered by subscription order.
type Results []Result

// Values returns the values of all the results, including those that failed.
func (r Results) Values() []any {
	values := make([]any, len(r))
	for i, res := range r {
		values[i] = res.Value
	}
	return values
}

// Err joins the errors of all failed subscribers, it is nil if none failed.
func (r Results) Err() error {
	var errs []error
	for _, res := range r {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

type subscription[P any] struct {
	id      SubscriptionID
	handler Handler[P]
}

// Bus is safe for concurrent use, handlers may subscribe and publish from within a publish.
type Bus[P any] struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	topics map[string][]subscription[P]
	tel    telemetry.API
}

func New[P any](tel telemetry.API) *Bus[P] {
	assert.NotNil(tel)
	return &Bus[P]{
		topics: map[string][]subscription[P]{},
		tel:    telemetry.NewScopedAPI("eventbus", tel),
	}
}

func (b *Bus[P]) Subscribe(topic string, handler Handler[P]) SubscriptionID {
	assert.NotNil(handler)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.topics[topic] = append(b.topics[topic], subscription[P]{
		id:      b.nextID,
		handler: handler,
	})
	return b.nextID
}

// Unsubscribe removes a single registration, it reports false if the id is unknown.
func (b *Bus[P]) Unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for topic, subs := range b.topics {
		for i, s := range subs {
			if s.id != id {
				continue
			}
			remaining := make([]subscription[P], 0, len(subs)-1)
			remaining = append(remaining, subs[:i]...)
			remaining = append(remaining, subs[i+1:]...)
			if len(remaining) == 0 {
				delete(b.topics, topic)
			} else {
				b.topics[topic] = remaining
			}
			return true
		}
	}
	return false
}

// Subscribers returns the number of registrations under a topic.
func (b *Bus[P]) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Publish calls every handler of `topic`. A failing handler never stops the handlers after it.
func (b *Bus[P]) Publish(ctx context.Context, topic string, payload P) Results {
	b.mu.RLock()
	subs := b.topics[topic]
	b.mu.RUnlock()

	// subs is never mutated in place (Subscribe appends, Unsubscribe copies) so it can be
	// iterated without the lock.
	results := make(Results, 0, len(subs))
	for _, s := range subs {
		value, err := b.call(ctx, s.handler, topic, payload)
		if err != nil {
			b.tel.ReportBroken(report_bus_publish, err, topic, s.id)
		}
		results = append(results, Result{
			Subscription: s.id,
			Value:        value,
			Err:          err,
		})
	}
	return results
}

func (b *Bus[P]) call(ctx context.Context, handler Handler[P], topic string, payload P) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			value = nil
			err = fmt.Errorf("%w: panic: %v", ErrSubscriberFailure, r)
		}
	}()
	return handler(ctx, topic, payload)
}
