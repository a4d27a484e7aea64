// Package rendezvous implements a keyed one-shot completion map: a
// neutral replacement for event-emitter "once" callbacks tied to session
// ids. A waiter can register before or after the matching event fires;
// whichever happens second delivers the value.
package rendezvous

import (
	"context"
	"fmt"
	"sync"
)

// Bus correlates asynchronous events to waiters by string key. Safe for
// concurrent use; every key is independent so handlers for distinct
// session ids never contend on one another.
type Bus struct {
	mu      sync.Mutex
	pending map[string]chan interface{}
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{pending: make(map[string]chan interface{})}
}

func (b *Bus) channel(key string) chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.pending[key]
	if !ok {
		ch = make(chan interface{}, 1)
		b.pending[key] = ch
	}
	return ch
}

// Publish delivers value to the waiter registered under key, creating a
// one-slot mailbox if Wait hasn't been called yet. Publishing twice under
// a key that has already been delivered and consumed is a no-op from the
// caller's perspective (the new channel is simply not observed) — callers
// are expected to publish each key at most once.
func (b *Bus) Publish(key string, value interface{}) {
	ch := b.channel(key)
	select {
	case ch <- value:
	default:
		// Someone already delivered under this key; callers are expected
		// to publish each key at most once (the auction engine and
		// session workflow both honor this).
	}
}

// Wait blocks until key is published or ctx is done, then removes the
// key's mailbox so it cannot be observed twice.
func (b *Bus) Wait(ctx context.Context, key string) (interface{}, error) {
	ch := b.channel(key)

	select {
	case v := <-ch:
		b.clear(key)
		return v, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("rendezvous: wait for %q: %w", key, ctx.Err())
	}
}

// Clear removes any pending mailbox for key without waiting, used by
// callers that gave up (e.g. the façade's outer deadline) to bound memory.
func (b *Bus) Clear(key string) {
	b.clear(key)
}

func (b *Bus) clear(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, key)
}
