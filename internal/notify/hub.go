// Package notify fans values out to subscribers over small buffered
// channels. A slow subscriber never blocks a publisher; it sees the most
// recent value instead of every value.
package notify

import (
	"context"
	"sync"
)

// Hub delivers published values to every live subscriber. Each subscriber
// channel holds at most one pending value; a newer publish replaces an
// undelivered older one.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[chan T]struct{}
	closed bool
	done   chan struct{}
}

// NewHub returns an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs: make(map[chan T]struct{}),
		done: make(chan struct{}),
	}
}

// SubscribeFrom registers a subscriber with initial already pending on its
// channel. The channel is closed when ctx is done or the hub is closed.
func (h *Hub[T]) SubscribeFrom(ctx context.Context, initial T) <-chan T {
	return h.subscribe(ctx, &initial)
}

func (h *Hub[T]) subscribe(ctx context.Context, initial *T) <-chan T {
	ch := make(chan T, 1)
	if initial != nil {
		ch <- *initial
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			h.remove(ch)
		case <-h.done:
		}
	}()
	return ch
}

func (h *Hub[T]) remove(ch chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
}

// Publish offers v to every subscriber without blocking.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- v:
			continue
		default:
		}
		// Full: drop the stale value and retry once.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

// Len returns the number of live subscribers.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscriber channel. Later subscriptions receive an
// already closed channel.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.done)
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
