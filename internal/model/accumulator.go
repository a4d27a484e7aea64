package model

import (
	"sync"
	"time"
)

// ModelListCompiledKey is the rendezvous key the façade waits on after
// publishing a list-models broadcast.
const ModelListCompiledKey = "model-list-compiled"

// publisher is the minimal rendezvous surface the accumulator needs.
type publisher interface {
	Publish(key string, value interface{})
}

// Accumulator dedupes models reported by list-models-response envelopes
// and, after a debounce window with no new arrivals, emits the compiled
// list exactly once.
type Accumulator struct {
	debounce time.Duration
	events   publisher

	mu      sync.Mutex
	seen    map[string]Info
	timer   *time.Timer
	emitted bool
}

// NewAccumulator builds an accumulator that debounces for waitTime (the
// auction window) before emitting.
func NewAccumulator(waitTime time.Duration, events publisher) *Accumulator {
	return &Accumulator{
		debounce: waitTime,
		events:   events,
		seen:     make(map[string]Info),
	}
}

// Reset clears accumulated state ahead of a new /v1/models round.
func (a *Accumulator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.seen = make(map[string]Info)
	a.emitted = false
}

// AddModel merges list into the accumulated set and (re)arms the debounce
// timer so a burst of responses collapses into one compiled emission.
func (a *Accumulator) AddModel(list []Info) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, m := range list {
		a.seen[m.ID] = m
	}

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.debounce, a.emit)
}

func (a *Accumulator) emit() {
	a.mu.Lock()
	if a.emitted {
		a.mu.Unlock()
		return
	}
	a.emitted = true

	compiled := make([]Info, 0, len(a.seen))
	for _, m := range a.seen {
		compiled = append(compiled, m)
	}
	a.mu.Unlock()

	a.events.Publish(ModelListCompiledKey, compiled)
}
